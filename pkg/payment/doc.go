// Package payment adapts external payment collaborators to
// subscription.PaymentGateway.
//
// Three gateways are provided:
//
//   - PaddleGateway opens Paddle transactions for catalog prices and reads
//     transaction.completed / transaction.payment_failed notifications.
//   - StripeGateway opens Stripe Checkout sessions in subscription mode and
//     reads invoice.paid / invoice.payment_failed notifications.
//   - SignedGateway speaks a small JSON protocol signed with the HMAC scheme
//     from pkg/webhook. It backs in-house payment relays and local testing.
//
// Every gateway carries the tenant ID through the collaborator's metadata so
// notifications can be routed back without a lookup table. Notifications that
// do not describe a charge are returned with subscription.WebhookIgnored.
//
// Use New to build the gateway selected by Config.Provider:
//
//	gw, err := payment.New(cfg)
//	if err != nil {
//		return err
//	}
//	svc := subscription.NewService(cat, promos, store, subscription.WithPaymentGateway(gw))
package payment

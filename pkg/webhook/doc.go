// Package webhook signs, verifies and delivers JSON notifications exchanged
// with billing collaborators.
//
// The package is transport only. It knows nothing about subscriptions or
// invoices; callers hand it a payload and an endpoint, or a received body and
// its signature header.
//
// # Signatures
//
// Signatures travel in a single header of the form
//
//	X-Freightbill-Signature: t=1767225600,v1=5257a869e7ecebeda32affa62cdca3fa51cad7e77a0e56ff536d0ce8e108d8bd
//
// where v1 is hex(HMAC-SHA256(secret, "<t>.<payload>")). Binding the
// timestamp into the MAC lets receivers reject replays older than a window.
// A header may carry several v1 entries while a secret is being rotated; any
// one of them matching is enough.
//
// Signing a payload:
//
//	header, err := webhook.Sign(secret, body, time.Now())
//	if err != nil {
//	    return err
//	}
//	req.Header.Set(webhook.SignatureHeader, header)
//
// Verifying a received request:
//
//	body, _ := io.ReadAll(r.Body)
//	err := webhook.Verify(secret, body, r.Header.Get(webhook.SignatureHeader),
//	    webhook.DefaultTolerance, time.Now())
//	switch {
//	case errors.Is(err, webhook.ErrSignatureExpired):
//	    // replayed or badly delayed
//	case errors.Is(err, webhook.ErrInvalidSignature):
//	    // wrong secret or tampered body
//	}
//
// A zero tolerance disables the age check. Timestamps more than a minute in
// the future are always rejected.
//
// # Delivery
//
// Sender marshals a value to JSON and POSTs it with retries:
//
//	sender := webhook.NewSender(
//	    webhook.WithSecret(cfg.InvoiceWebhookSecret),
//	    webhook.WithMaxRetries(5),
//	    webhook.WithTimeout(5*time.Second),
//	    webhook.WithCircuitBreaker(webhook.NewCircuitBreaker(5, 2, 30*time.Second)),
//	)
//
//	err := sender.Send(ctx, "https://invoices.example.com/hooks/price", event)
//
// Without options a sender makes up to four attempts (three retries) with a
// ten second timeout each, waiting per DefaultBackoff between them.
//
// # Retry Logic
//
// Input problems fail before any request is made, with ErrInvalidPayload for
// a value that cannot be marshalled and ErrInvalidURL for a malformed
// endpoint. A 4xx response other than 408, 425 and 429 stops the loop and
// wraps ErrPermanentFailure.
//
// Everything else is retried. When attempts run out Send returns an error
// wrapping ErrDeliveryFailed and the last attempt's error.
//
// Backoff is pluggable through BackoffStrategy. ExponentialBackoff multiplies
// the interval per attempt and spreads it by JitterFactor; FixedBackoff waits
// the same interval every time, which is handy in tests:
//
//	webhook.WithBackoff(webhook.FixedBackoff{Interval: time.Millisecond})
//
// # Circuit Breaker
//
// A CircuitBreaker shared by every Send to the same endpoint opens after
// failureThreshold consecutive failures. While open, Send fails fast with
// ErrCircuitOpen. Once recoveryTimeout has passed the circuit turns
// half-open: requests go through again, successThreshold successes close it
// and a single failure reopens it.
//
//	if webhook.IsCircuitOpen(err) {
//	    // the endpoint is down; the caller decides whether to queue or drop
//	}
//
// Sender, CircuitBreaker and the backoff strategies are safe for concurrent
// use.
package webhook

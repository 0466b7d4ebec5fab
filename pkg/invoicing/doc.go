// Package invoicing delivers price commitments to the fiscal invoicing
// collaborator.
//
// HTTPNotifier posts each subscription.PriceCommitment as a signed JSON
// webhook through pkg/webhook. StreamNotifier appends it to a Redis stream for
// consumers that pull. Fanout sends to several notifiers and reports every
// failure.
package invoicing

package catalog

import (
	"fmt"
	"time"
)

// Unlimited marks a limit without a cap (-1 chosen for SQL compatibility).
const Unlimited int64 = -1

// Money represents a monetary amount in the smallest currency unit.
type Money struct {
	Amount   int64  `json:"amount" yaml:"amount"`
	Currency string `json:"currency" yaml:"currency"`
}

func (m Money) String() string {
	return fmt.Sprintf("%d %s", m.Amount, m.Currency)
}

// Cycle is the billing cadence a subscription is charged on.
type Cycle string

const (
	CycleMonthly Cycle = "monthly"
	CycleYearly  Cycle = "yearly"
)

// Valid reports whether c is a known billing cycle.
func (c Cycle) Valid() bool {
	return c == CycleMonthly || c == CycleYearly
}

// Advance returns t moved forward by one billing cycle.
func (c Cycle) Advance(t time.Time) time.Time {
	if c == CycleYearly {
		return t.AddDate(1, 0, 0)
	}
	return t.AddDate(0, 1, 0)
}

// ParseCycle converts user input into a Cycle, defaulting empty input to monthly.
func ParseCycle(s string) (Cycle, error) {
	switch Cycle(s) {
	case "", CycleMonthly:
		return CycleMonthly, nil
	case CycleYearly:
		return CycleYearly, nil
	}
	return "", ErrInvalidCycle
}

// SupportTier is the support level bundled with a plan.
type SupportTier string

const (
	SupportEmail     SupportTier = "email"
	SupportPriority  SupportTier = "priority"
	SupportDedicated SupportTier = "dedicated"
)

// Limits caps tenant resources. Unlimited (-1) removes a cap.
type Limits struct {
	MaxUsers              int64 `json:"max_users" yaml:"max_users"`
	MaxOperationsPerMonth int64 `json:"max_operations_per_month" yaml:"max_operations_per_month"`
	MaxClients            int64 `json:"max_clients" yaml:"max_clients"`
}

// Features toggles product capabilities included in a plan.
type Features struct {
	ClientPortal        bool  `json:"client_portal" yaml:"client_portal"`
	CarrierTracking     bool  `json:"carrier_tracking" yaml:"carrier_tracking"`
	MaxCarriers         int64 `json:"max_carriers" yaml:"max_carriers"`
	ElectronicInvoicing bool  `json:"electronic_invoicing" yaml:"electronic_invoicing"`
	AdvancedReports     bool  `json:"advanced_reports" yaml:"advanced_reports"`
}

package limits

import (
	"github.com/dmitrymomot/freightbill/pkg/catalog"
)

// Resource is a countable tenant resource bounded by the plan.
type Resource string

const (
	ResourceUsers      Resource = "users"
	ResourceOperations Resource = "operations"
	ResourceClients    Resource = "clients"
	ResourceCarriers   Resource = "carriers"
)

// Resources lists every bounded resource in display order.
var Resources = []Resource{ResourceUsers, ResourceOperations, ResourceClients, ResourceCarriers}

// Monthly reports whether usage of r resets every calendar month.
func (r Resource) Monthly() bool { return r == ResourceOperations }

// Feature is a plan feature flag.
type Feature string

const (
	FeatureClientPortal        Feature = "client_portal"
	FeatureCarrierTracking     Feature = "carrier_tracking"
	FeatureElectronicInvoicing Feature = "electronic_invoicing"
	FeatureAdvancedReports     Feature = "advanced_reports"
)

// UsageInfo is the usage of one resource against its limit. Percent is -1
// for unlimited resources.
type UsageInfo struct {
	Current int64 `json:"current"`
	Limit   int64 `json:"limit"`
	Percent int   `json:"percent"`
}

func newUsageInfo(current, limit int64) UsageInfo {
	u := UsageInfo{Current: current, Limit: limit}
	switch {
	case limit == catalog.Unlimited:
		u.Percent = -1
	case limit == 0:
		u.Percent = 100
	default:
		u.Percent = int(min((current*100)/limit, 100))
	}
	return u
}

// Entitlements is what a tenant may use right now.
type Entitlements struct {
	PlanID    string                 `json:"plan_id"`
	Status    string                 `json:"status"`
	HasAccess bool                   `json:"has_access"`
	Features  catalog.Features       `json:"features"`
	Support   catalog.SupportTier    `json:"support_tier"`
	Usage     map[Resource]UsageInfo `json:"usage"`
}

// limitOf returns the plan limit for r.
func limitOf(p catalog.Plan, r Resource) (int64, error) {
	switch r {
	case ResourceUsers:
		return p.Limits.MaxUsers, nil
	case ResourceOperations:
		return p.Limits.MaxOperationsPerMonth, nil
	case ResourceClients:
		return p.Limits.MaxClients, nil
	case ResourceCarriers:
		return p.Features.MaxCarriers, nil
	}
	return 0, ErrInvalidResource
}

func featureOf(p catalog.Plan, f Feature) bool {
	switch f {
	case FeatureClientPortal:
		return p.Features.ClientPortal
	case FeatureCarrierTracking:
		return p.Features.CarrierTracking
	case FeatureElectronicInvoicing:
		return p.Features.ElectronicInvoicing
	case FeatureAdvancedReports:
		return p.Features.AdvancedReports
	}
	return false
}

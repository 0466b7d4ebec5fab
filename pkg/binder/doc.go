// Package binder fills request structs from HTTP requests for the typed
// handlers in package handler.
//
// Each binder reads one source and only touches fields tagged for it:
//
//	type changePlanRequest struct {
//		TenantID uuid.UUID `header:"X-Tenant-ID"`
//		PlanID   string    `json:"plan_id"`
//		Cycle    string    `json:"cycle"`
//	}
//
// JSON decodes the body in strict mode (unknown fields are rejected) and
// trims string values. Query, Path and Header parse scalars, slices (repeated
// or comma-separated), pointers for optional values, and any type
// implementing encoding.TextUnmarshaler such as uuid.UUID.
//
// Binding failures wrap one of the package errors so the HTTP layer can
// answer with 400 Bad Request.
package binder

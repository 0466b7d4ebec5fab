// Package requestid attaches a correlation identifier to every HTTP request
// and exposes it to handlers and structured logs.
//
// Middleware reuses a valid incoming X-Request-ID header or generates a new
// UUID, stores it in the request context and echoes it back in the response.
package requestid

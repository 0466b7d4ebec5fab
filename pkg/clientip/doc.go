// Package clientip resolves the caller's address behind reverse proxies and
// carries it in the request context for logging and rate-limit keys.
//
// Only deploy behind a proxy that overwrites X-Forwarded-For; otherwise the
// header is client-controlled.
package clientip

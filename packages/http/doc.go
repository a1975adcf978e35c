// Package http is the HTTP transport for request steps.
//
// It wraps the standard library's http package with additional features:
//   - A Session sharing cookies and connections across a whole run
//   - Per-session rate limiting
//   - Configurable timeouts, TLS verification, proxy and redirect handling
//   - Request building from a resolved step payload, including base_url joining
//   - Responses exposed as capture documents for extraction and validation
package http

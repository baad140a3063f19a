// Package api serves the HTTP surface.
//
// # Routes
//
//	POST /videos                upload (multipart field "file") -> {"id"}
//	GET  /videos/{id}           stored video with metadata headers
//	HEAD /videos/{id}           metadata headers only
//	GET  /videos/merge/{ids...} merge the ids in path order -> {"id"}
//	GET  /healthz               liveness
//
// Failures are rendered as {"error", "kind"}. Client-caused kinds carry a
// reason naming the offending id; server-side kinds carry a generic message
// while the diagnostic goes to the log. Every response carries X-Request-Id.
package api

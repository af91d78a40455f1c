// Package httpserver exposes the pipeline over a JSON HTTP API. Routing is
// plain net/http with per-area controllers under controllers/.
package httpserver

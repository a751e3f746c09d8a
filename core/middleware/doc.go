// Package middleware holds the Fiber middleware registered in cmd/start.go.
//
//   - auth checks the X-API-Key header (or api_key query parameter) against
//     server.api_key. An empty key leaves the API open, which suits the default
//     loopback-only bind.
//   - rayid tags every request with a uuid, echoed in the X-Ray-ID response
//     header and attached to log lines through logger.WithRayID.
//
// rayid must be registered first so the request log line already carries the id.
package middleware

// Package marketplace is the adapter for the app catalog the pipeline mines.
//
// Four read-only calls are exposed: Lookup (catalog search), LookupApp (single
// app by id), Autosuggest (search hints), and Reviews (recent customer
// reviews). The default endpoints are the public iTunes Search API, the
// MZSearchHints plist service, and the customer-review RSS feed in JSON form.
//
// Every network attempt waits on the shared ratelimit.Limiter. Responses with
// HTTP 408, 429, or 5xx are retried with exponential backoff honouring
// Retry-After. Successful bodies are stored in the optional response cache,
// and cache hits bypass both the network and the limiter.
//
// Errors carry services markers: ErrTimeout for deadline failures,
// ErrNotFound for unknown apps, ErrExternalTool for other upstream failures
// and malformed payloads, and ErrValidation for empty arguments.
package marketplace

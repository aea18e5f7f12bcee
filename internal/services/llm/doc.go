// Package llm is a small OpenRouter-compatible chat client that asks for JSON
// answers.
//
// The scoring pipeline uses it through scorellm for qualitative keyword
// assessments, and preflight uses HealthCheck to confirm the key and model.
//
// Requests retry on HTTP 408/429/5xx, network timeouts, and empty completions
// with exponential backoff (base 1s, max 10s, five attempts by default).
// Retry-After is honoured. Context cancellation aborts retries immediately.
//
// Errors carry services markers: a missing key is ErrConfiguration, deadline
// failures are ErrTimeout, and everything else upstream is ErrExternalTool.
package llm

// Package config loads, normalizes, and validates marketscout configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENROUTER_API_KEY and MARKETSCOUT_REDIS_URL. The Config type centralizes
// every knob the daemon and CLI need: data directories, marketplace endpoints,
// LLM credentials, worker pool sizing, discovery bounds, and the daily run
// schedule.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config

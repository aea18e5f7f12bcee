// Package notifications delivers pipeline events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when no topic is set. Events cover the
// daily winner, daily run failures, and failed jobs; the [notifications]
// toggles suppress whole event families.
package notifications

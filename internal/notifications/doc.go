// Package notifications pushes run outcomes to an ntfy topic.
//
// The default implementation publishes to the topic configured in
// config.toml and degrades to a no-op when no topic is set. Each event class
// (run completed, run failed, operational error) can be switched off
// independently so noisy deployments can keep only failure alerts.
package notifications

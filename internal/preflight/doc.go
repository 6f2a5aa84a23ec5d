// Package preflight provides readiness checks for the external services,
// binaries, and filesystem paths slackscribe depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll once at startup and logs every failure so a
//     misconfigured deployment is obvious before the first webhook arrives.
//   - The CLI "slackscribe status" command renders RunAll, CheckSystemDeps,
//     and the config-derived service summaries.
//
// Each check is gated by its config toggle; disabled features are skipped.
package preflight

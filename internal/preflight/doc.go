// Package preflight provides readiness checks for the backend and the local
// paths the console depends on.
//
// The "status" command runs RunAll and renders one row per Result. Checks for
// optional features report Passed with a "Disabled" detail when the feature is
// off.
package preflight

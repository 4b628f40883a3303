// Package preflight provides readiness checks for the services and
// filesystem paths a submission run depends on.
//
// These checks run in two contexts:
//   - The submit command runs RunAll before starting a run so a dead
//     endpoint or an unwritable data directory surfaces before any bytes
//     move.
//   - The CLI "entryway preflight" command prints the same results as a
//     standalone health report.
//
// Checks never mutate anything. Unset optional settings are skipped, not
// failed.
package preflight

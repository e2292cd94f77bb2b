// Package schedule parses schedule strings for the demo runner and turns
// them into submission delays for the scheduler core.
//
// Accepted forms:
//   - Cron expressions: 5-field or 6-field with optional seconds, plus
//     descriptors like "@hourly" and "@every 55m".
//   - Interval durations: Go duration strings like "55m" or "2h30m".
//   - Interval HH:MM: "00:50" means every 50 minutes.
//
// Prefix with "cron:", "interval:" or "every:" to force interpretation.
package schedule

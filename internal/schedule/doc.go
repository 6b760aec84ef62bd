// Package schedule turns declarative schedule strings into concrete run
// instants.
//
// A schedule is either a preset keyword (daily, weekly, monthly, asap,
// next-heartbeat) or a 5-field cron-like expression. Strings are parsed once
// at the boundary into a Spec; resolution evaluates local wall-clock fields
// in a caller-supplied timezone, so "0 9 * * 1-5" means 09:00 on that zone's
// clock regardless of DST.
package schedule

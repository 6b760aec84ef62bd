// Package board owns the task collection: the lifecycle state machine
// (create, update, run, pickup, complete, pause/resume, archive), the
// pull-queue eligibility rules, and the concurrency capacity arbiter.
//
// All mutations are serialized read-modify-write cycles over the whole
// collection behind a single mutex; persistence, change notification, and
// activity logging happen at the edges of each cycle.
package board

// Package storage persists the board state.
//
// It currently supports:
//   - Whole-collection task snapshots (read/replace)
//   - The settings record (maxConcurrent, timezone)
//   - Append-only activity records (audit trail)
package storage

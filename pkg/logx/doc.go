// Package logx wraps zerolog behind a small Logger/Service pair.
//
// The Service owns the sinks (console, file) and can swap them at runtime
// via Apply(); Loggers created from it stay live across reconfiguration.
package logx

package config

type Config struct {
	Logging LoggingConfig `json:"logging"`
	Storage StorageConfig `json:"storage"`
	API     APIConfig     `json:"api"`
	Board   BoardConfig   `json:"board"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./cronboard_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// APIConfig controls the HTTP surface workers and UIs talk to.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type APIConfig struct {
	Addr string `json:"addr"` // default: "127.0.0.1:8750"

	// RatePerSec throttles mutating requests; 0 applies a default.
	RatePerSec int `json:"rate_per_sec,omitempty"`

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

// BoardConfig carries board defaults and the known-channel set.
//
// Timezone and MaxConcurrent are defaults only; the store-backed settings
// record overrides them at runtime.
type BoardConfig struct {
	Timezone      string   `json:"timezone,omitempty"`       // IANA TZ, e.g. "Asia/Jakarta"
	MaxConcurrent int      `json:"max_concurrent,omitempty"` // default 1
	Channels      []string `json:"channels,omitempty"`

	// HistoryLimit caps runHistory per task; 0 keeps it unbounded.
	HistoryLimit int `json:"history_limit,omitempty"`
}

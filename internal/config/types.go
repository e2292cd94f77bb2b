package config

// Config is the whole daemon configuration. JSON and YAML are both accepted;
// YAML is coerced to JSON so the strict decoder applies either way.
type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Scheduler fixes the core's shape; capacity and workers cannot change
	// across a hot reload (the arena and pool are construction-time fixed).
	Scheduler SchedulerConfig `json:"scheduler"`

	// Storage enables the optional run-history store.
	Storage *StorageConfig `json:"storage,omitempty"`

	// Pprof enables the optional debug HTTP listener. Hot-reloadable.
	Pprof *PprofConfig `json:"pprof,omitempty"`

	// Tasks are the demo task definitions driven by the run loop.
	Tasks []TaskConfig `json:"tasks,omitempty"`
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

// SchedulerConfig controls the timed-task core.
//
// Defaults (when fields are omitted/zero):
//   - capacity: 64
//   - workers: 0 (everything runs synchronously on the driving loop)
//   - tick_interval: "250ms"
type SchedulerConfig struct {
	Capacity int `json:"capacity,omitempty"`
	Workers  int `json:"workers,omitempty"`

	// TickInterval is a Go duration string (e.g. "100ms", "1s"); the cadence
	// of the driving loop.
	TickInterval string `json:"tick_interval,omitempty"`

	// FinishPendingOnExit dispatches every still-pending task once, ignoring
	// remaining delays, before shutdown.
	FinishPendingOnExit bool `json:"finish_pending_on_exit,omitempty"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./ticksched_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// PprofConfig controls the optional pprof HTTP server.
type PprofConfig struct {
	Enabled              bool   `json:"enabled"`
	Address              string `json:"address,omitempty"` // default 127.0.0.1:6060
	BlockProfileRate     int    `json:"block_profile_rate,omitempty"`
	MutexProfileFraction int    `json:"mutex_profile_fraction,omitempty"`
}

// TaskConfig defines one demo task.
type TaskConfig struct {
	Label string `json:"label"`

	// Schedule accepts cron expressions, Go durations or HH:MM intervals;
	// see internal/schedule.
	Schedule string `json:"schedule"`

	// Synchronous forces execution on the driving loop's goroutine.
	Synchronous bool `json:"synchronous,omitempty"`

	// Repeat resubmits the task each time it fires (interval and cron
	// schedules both supported); one-shot otherwise.
	Repeat bool `json:"repeat,omitempty"`

	// Busy is a Go duration string simulating the callback's work.
	Busy string `json:"busy,omitempty"`
}

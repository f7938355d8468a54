package config

import "time"

const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

type Config struct {
	DataDir              string
	ProgressBackend      string // sqlite/file
	ProgressFile         string
	ResolveEnabled       bool
	ResolveTTL           time.Duration
	YtdlpFormat          string
	BufferFrames         int
	BufferReportInterval time.Duration
	LogLevel             string
}

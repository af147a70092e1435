// Package constants provides shared configuration values used across the logdog application.
package constants

import "time"

// Configuration file defaults
const (
	// DefaultConfigFile is the default application configuration filename
	DefaultConfigFile = "logdog.yaml"

	// DefaultMatcherFile is the default matcher configuration filename
	DefaultMatcherFile = "matchers.xml"

	// DefaultAPIHost is the default host for the API server
	DefaultAPIHost = "127.0.0.1"

	// DefaultAPIPort is the default port for the API server
	DefaultAPIPort = 5566

	// DefaultAPIAddress is the default base URL client commands talk to
	DefaultAPIAddress = "http://127.0.0.1:5566"

	// DefaultClientTimeout bounds a single client request to the API
	DefaultClientTimeout = 30 * time.Second
)

// Timeout and duration defaults
const (
	// DefaultStopTimeout bounds how long Stop waits for a reader loop to exit
	// before the external process is force killed.
	DefaultStopTimeout = 3000 * time.Millisecond

	// DefaultRestartDelay is the constant pause between relaunches of a
	// failed source command. It never grows.
	DefaultRestartDelay = 250 * time.Millisecond

	// DefaultDevicePollInterval is how often the device monitor queries adb
	DefaultDevicePollInterval = 3000 * time.Millisecond

	// DefaultShutdownTimeout is the default timeout for graceful shutdown
	DefaultShutdownTimeout = 10 * time.Second

	// DefaultRequestTimeout is the default timeout for API requests
	DefaultRequestTimeout = 30 * time.Second
)

// Log line layout
const (
	// TimestampPattern matches the threadtime timestamp at the start of a line.
	// It is always capture group 1 of a compiled matcher pattern.
	TimestampPattern = `^(\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3})`

	// TimestampLayout is the time.Parse layout for TimestampPattern captures
	TimestampLayout = "01-02 15:04:05.000"

	// LogTagColumn is where the tag begins in a threadtime line
	LogTagColumn = 33

	// LogLevelColumn is where the level letter sits in a threadtime line
	LogLevelColumn = 31
)

// Duration window limits
const (
	MinTimeWindowMinutes = 10
	MaxTimeWindowMinutes = 1440
	MinCountWindow       = 1000
	MaxCountWindow       = 100000
)

// Value retention
const (
	// DefaultValueLimit is the default number of values returned by the API
	DefaultValueLimit = 100

	// MaxValueLimit caps how many values a single request may return
	MaxValueLimit = MaxCountWindow
)

// Buffer sizes
const (
	// DefaultSubscriptionBuffer is the default size for subscription buffers
	DefaultSubscriptionBuffer = 100

	// ScannerBufferSize is the initial buffer size for log line scanning
	ScannerBufferSize = 64 * 1024 // 64KB

	// ScannerMaxBufferSize is the maximum buffer size for log line scanning
	ScannerMaxBufferSize = 1024 * 1024 // 1MB
)

// Built-in source names
const (
	SourceLogcatMainAndSystem = "logcat_main_and_system"
	SourceLogcatMain          = "logcat_main"
	SourceLogcatSystem        = "logcat_system"
	SourceLogcatEvents        = "logcat_events"
	SourceLogcatRadio         = "logcat_radio"
	SourceLogcatAll           = "logcat_all"
	SourceFile                = "File"
)

// BuiltinSources lists the built-in sources in registry order. The first
// entry is the default source for new matchers.
var BuiltinSources = []struct {
	Name string
	Cmd  string
}{
	{SourceLogcatMainAndSystem, "adb -d logcat -b main -b system -v threadtime"},
	{SourceLogcatMain, "adb -d logcat -b main -v threadtime"},
	{SourceLogcatSystem, "adb -d logcat -b system -v threadtime"},
	{SourceLogcatEvents, "adb -d logcat -b events -v threadtime"},
	{SourceLogcatRadio, "adb -d logcat -b radio -v threadtime"},
	{SourceLogcatAll, "adb -d logcat -b main -b system -b radio -b events -v threadtime"},
}

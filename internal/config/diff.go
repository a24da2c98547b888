package config

import "time"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; everything else
// requires a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	FallbackDeadlineChanged bool
	NewFallbackDeadline     time.Duration

	RoutingEnabledChanged bool
	NewRoutingEnabled     bool
}

// Empty reports whether the diff contains no hot-reloadable changes.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.FallbackDeadlineChanged && !d.RoutingEnabledChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Synthesis.FallbackDeadline != new.Synthesis.FallbackDeadline {
		d.FallbackDeadlineChanged = true
		d.NewFallbackDeadline = new.Synthesis.FallbackDeadline.Std()
	}

	if old.Routing.Enabled != new.Routing.Enabled {
		d.RoutingEnabledChanged = true
		d.NewRoutingEnabled = new.Routing.Enabled
	}

	return d
}

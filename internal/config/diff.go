package config

// ConfigDiff describes what changed between two configs. Only changes that
// can be applied to a running session are tracked individually; everything
// else is folded into RestartNeeded.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// DeltasChanged is true if any interpreter score magnitude changed.
	DeltasChanged bool

	// SalienceChanged is true if any key-moment threshold changed.
	SalienceChanged bool

	// SilenceChanged is true if the silence watchdog tunables changed.
	SilenceChanged bool

	// ThresholdsChanged is true if the speak or loud volume cutoffs changed.
	ThresholdsChanged bool

	// RestartNeeded is true if a field that is bound at session start
	// changed (agent, capture, playback, recording, analysis, metrics).
	RestartNeeded bool
}

// Changed reports whether the diff contains any change at all.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.DeltasChanged || d.SalienceChanged ||
		d.SilenceChanged || d.ThresholdsChanged || d.RestartNeeded
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Game.Deltas != new.Game.Deltas {
		d.DeltasChanged = true
	}
	if old.Game.Salience != new.Game.Salience {
		d.SalienceChanged = true
	}
	if old.Game.SilenceCheckInterval != new.Game.SilenceCheckInterval ||
		old.Game.SilenceTimeout != new.Game.SilenceTimeout ||
		old.Game.SilencePenalty != new.Game.SilencePenalty {
		d.SilenceChanged = true
	}
	if old.Game.SpeakThreshold != new.Game.SpeakThreshold ||
		old.Game.LoudThreshold != new.Game.LoudThreshold ||
		old.Game.LoudBoostEvery != new.Game.LoudBoostEvery {
		d.ThresholdsChanged = true
	}
	if old.Game.VideoSampleInterval != new.Game.VideoSampleInterval {
		d.RestartNeeded = true
	}

	if old.Server.MetricsAddr != new.Server.MetricsAddr ||
		old.Agent != new.Agent ||
		old.Capture != new.Capture ||
		old.Playback != new.Playback ||
		old.Recording != new.Recording ||
		old.Analysis != new.Analysis {
		d.RestartNeeded = true
	}

	return d
}

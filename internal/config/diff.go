package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs. Log level and
// proofread tuning are applied live; the other flags only tell the operator
// that a restart is needed.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// ProofreadChanged is set when any proofread.* value changed.
	ProofreadChanged bool
	NewProofread     ProofreadConfig

	// ProvidersChanged is set when the backend selection changed.
	ProvidersChanged bool

	// EventsChanged is set when the Kafka settings changed.
	EventsChanged bool

	// ServerChanged is set when listener settings changed.
	ServerChanged bool
}

// RequiresRestart reports whether a change cannot be applied live.
func (d ConfigDiff) RequiresRestart() bool {
	return d.ProvidersChanged || d.EventsChanged || d.ServerChanged
}

// Empty reports whether nothing tracked by the diff changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.ProofreadChanged && !d.RequiresRestart()
}

// Sections names the changed config sections, live ones first.
func (d ConfigDiff) Sections() []string {
	var out []string
	if d.LogLevelChanged {
		out = append(out, "server.log_level")
	}
	if d.ProofreadChanged {
		out = append(out, "proofread")
	}
	if d.ProvidersChanged {
		out = append(out, "providers")
	}
	if d.EventsChanged {
		out = append(out, "events")
	}
	if d.ServerChanged {
		out = append(out, "server")
	}
	return out
}

// Diff compares old and new configs.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !reflect.DeepEqual(old.Proofread, new.Proofread) {
		d.ProofreadChanged = true
		d.NewProofread = new.Proofread
	}

	if !reflect.DeepEqual(old.Providers, new.Providers) {
		d.ProvidersChanged = true
	}

	if old.Events.Enabled != new.Events.Enabled ||
		old.Events.Topic != new.Events.Topic ||
		!slices.Equal(old.Events.Brokers, new.Events.Brokers) {
		d.EventsChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr ||
		old.Server.MaxUploadBytes != new.Server.MaxUploadBytes ||
		old.Server.RequestTimeout != new.Server.RequestTimeout ||
		!reflect.DeepEqual(old.Server.TLS, new.Server.TLS) {
		d.ServerChanged = true
	}

	return d
}

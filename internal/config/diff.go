package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	DefaultLanguageChanged bool
	NewDefaultLanguage     string

	DefaultEngineChanged bool
	NewDefaultEngine     Engine

	PhraseListChanged bool
	PhraseListEnabled bool

	MaxSpeakersChanged bool
	NewMaxSpeakers     int
}

// Changed reports whether any hot-reloadable field differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.DefaultLanguageChanged || d.DefaultEngineChanged ||
		d.PhraseListChanged || d.MaxSpeakersChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart; credential or
// listener changes require one.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.DefaultLanguage() != new.DefaultLanguage() {
		d.DefaultLanguageChanged = true
		d.NewDefaultLanguage = new.DefaultLanguage()
	}
	if old.DefaultEngine() != new.DefaultEngine() {
		d.DefaultEngineChanged = true
		d.NewDefaultEngine = new.DefaultEngine()
	}
	if old.Transcription.UsePhraseList != new.Transcription.UsePhraseList {
		d.PhraseListChanged = true
		d.PhraseListEnabled = new.Transcription.UsePhraseList
	}
	if old.Transcription.MaxSpeakers != new.Transcription.MaxSpeakers {
		d.MaxSpeakersChanged = true
		d.NewMaxSpeakers = new.Transcription.MaxSpeakers
	}

	return d
}

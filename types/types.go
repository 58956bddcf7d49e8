package types

// Severity labels emitted when a line carries no severity of its own.
const (
	SeverityInfo    = "info"
	SeverityUnknown = "UNKNOWN"
)

// Source is one monitored log stream as written in the config file.
// Grammar is "bracketed" or "delimited"; Pattern and TimeFormat override the
// grammar defaults when set. Relative paths are resolved against log_dir.
type Source struct {
	Name       string `mapstructure:"name" yaml:"name"`
	Path       string `mapstructure:"path" yaml:"path"`
	Grammar    string `mapstructure:"grammar" yaml:"grammar"`
	Pattern    string `mapstructure:"pattern" yaml:"pattern,omitempty"`
	TimeFormat string `mapstructure:"time_format" yaml:"time_format,omitempty"`
	Encoding   string `mapstructure:"encoding" yaml:"encoding,omitempty"`
}

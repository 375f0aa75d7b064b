package server

// LogServerConfig controls the agent logger. Output goes to the terminal
// unless no_terminal is set, and additionally to file when configured.
type LogServerConfig struct {
	Level      string                  `mapstructure:"level"       yaml:"level"`
	TimeFormat string                  `mapstructure:"time_format" yaml:"time_format"`
	File       string                  `mapstructure:"file"        yaml:"file"`
	NoColor    bool                    `mapstructure:"no_color"    yaml:"no_color"`
	JSON       bool                    `mapstructure:"json"        yaml:"json"`
	NoTerminal bool                    `mapstructure:"no_terminal" yaml:"no_terminal"`
	Rotation   LogServerRotationConfig `mapstructure:"rotation"    yaml:"rotation"`
}

// LogServerRotationConfig is passed to lumberjack; sizes are in megabytes, age in days.
type LogServerRotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"     yaml:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"  yaml:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"      yaml:"max_age"`
	Compress   bool `mapstructure:"compress"     yaml:"compress"`
}

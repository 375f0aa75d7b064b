package server

type HTTPServerConfig struct {
	Address           string   `mapstructure:"address"             yaml:"address"`
	Workers           int      `mapstructure:"workers"             yaml:"workers"`
	Backlog           int      `mapstructure:"backlog"             yaml:"backlog"`
	BacklogTimeout    string   `mapstructure:"backlog_timeout"     yaml:"backlog_timeout"`
	ReadHeaderTimeout string   `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	MaxUploadSize     int64    `mapstructure:"max_upload_size"     yaml:"max_upload_size"`
	CORSOrigins       []string `mapstructure:"cors_origins"        yaml:"cors_origins"`
}

type AuthServerConfig struct {
	Secret       string `mapstructure:"secret"        yaml:"secret"`
	CookieName   string `mapstructure:"cookie_name"   yaml:"cookie_name"`
	CookieSecure bool   `mapstructure:"cookie_secure" yaml:"cookie_secure"`
	TokenTTL     string `mapstructure:"token_ttl"     yaml:"token_ttl"`
}

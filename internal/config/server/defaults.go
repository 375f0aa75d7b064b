package server

import "github.com/spf13/viper"

func GetServerDefault() BaseServerConfig {
	return BaseServerConfig{
		ShutdownTimeout: "10s",

		Log: LogServerConfig{
			Level:      "INFO",
			TimeFormat: "2006-01-02 15:04:05",
			File:       "",
			NoColor:    false,
			JSON:       false,
			NoTerminal: false,
			Rotation: LogServerRotationConfig{
				MaxSize:    128,
				MaxBackups: 5,
				MaxAge:     16,
				Compress:   false,
			},
		},

		Metadata: MetadataServerConfig{
			Type:     "sqlite",
			LogLevel: "silent",
			SQLite: MetadataSQLiteConfig{
				Path: "folio.db",
			},
			Postgres: MetadataPostgresConfig{
				DSN:          "",
				MaxOpenConns: 10,
			},
		},

		Storage: StorageServerConfig{
			Path:            "uploads",
			Timeout:         "30s",
			ThumbnailHeight: 40,
		},

		HTTP: HTTPServerConfig{
			Address:           ":8000",
			Workers:           2,
			Backlog:           1000,
			BacklogTimeout:    "120s",
			ReadHeaderTimeout: "10s",
			MaxUploadSize:     32 << 20,
			CORSOrigins:       []string{},
		},

		Auth: AuthServerConfig{
			Secret:       "",
			CookieName:   "folio_session",
			CookieSecure: false,
			TokenTTL:     "720h",
		},
	}
}

func setDefaults() {
	defaults := GetServerDefault()

	viper.SetDefault("shutdown_timeout", defaults.ShutdownTimeout)

	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("log.time_format", defaults.Log.TimeFormat)
	viper.SetDefault("log.file", defaults.Log.File)
	viper.SetDefault("log.no_color", defaults.Log.NoColor)
	viper.SetDefault("log.json", defaults.Log.JSON)
	viper.SetDefault("log.no_terminal", defaults.Log.NoTerminal)
	viper.SetDefault("log.rotation.max_size", defaults.Log.Rotation.MaxSize)
	viper.SetDefault("log.rotation.max_backups", defaults.Log.Rotation.MaxBackups)
	viper.SetDefault("log.rotation.max_age", defaults.Log.Rotation.MaxAge)
	viper.SetDefault("log.rotation.compress", defaults.Log.Rotation.Compress)

	// metadata.type has no default, see metadataType
	viper.BindEnv("metadata.type", "FOLIO_METADATA_TYPE")
	viper.SetDefault("metadata.log_level", defaults.Metadata.LogLevel)
	viper.SetDefault("metadata.sqlite.path", defaults.Metadata.SQLite.Path)
	viper.SetDefault("metadata.postgres.dsn", defaults.Metadata.Postgres.DSN)
	viper.SetDefault("metadata.postgres.max_open_conns", defaults.Metadata.Postgres.MaxOpenConns)
	// DATABASE_URL is what most hosting platforms inject for postgres
	viper.BindEnv("metadata.postgres.dsn", "FOLIO_METADATA_POSTGRES_DSN", "DATABASE_URL")

	viper.SetDefault("storage.path", defaults.Storage.Path)
	viper.SetDefault("storage.timeout", defaults.Storage.Timeout)
	viper.SetDefault("storage.thumbnail_height", defaults.Storage.ThumbnailHeight)

	viper.SetDefault("http.address", defaults.HTTP.Address)
	viper.SetDefault("http.workers", defaults.HTTP.Workers)
	viper.SetDefault("http.backlog", defaults.HTTP.Backlog)
	viper.SetDefault("http.backlog_timeout", defaults.HTTP.BacklogTimeout)
	viper.SetDefault("http.read_header_timeout", defaults.HTTP.ReadHeaderTimeout)
	viper.SetDefault("http.max_upload_size", defaults.HTTP.MaxUploadSize)
	viper.SetDefault("http.cors_origins", defaults.HTTP.CORSOrigins)

	viper.SetDefault("auth.secret", defaults.Auth.Secret)
	viper.SetDefault("auth.cookie_name", defaults.Auth.CookieName)
	viper.SetDefault("auth.cookie_secure", defaults.Auth.CookieSecure)
	viper.SetDefault("auth.token_ttl", defaults.Auth.TokenTTL)
}

package server

// StorageServerConfig holds the upload directory and thumbnail settings
type StorageServerConfig struct {
	Path            string `mapstructure:"path"             yaml:"path"`
	Timeout         string `mapstructure:"timeout"          yaml:"timeout"`
	ThumbnailHeight int    `mapstructure:"thumbnail_height" yaml:"thumbnail_height"`
}

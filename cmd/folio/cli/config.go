package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	envFiles    = []string{".env", ".env.local"}
	configPaths = []string{".", "./config", "/etc/folio", "$HOME/.folio"}
)

// loadEnvFiles loads every .env file found in dir. Missing files are fine;
// variables already set in the environment win.
func loadEnvFiles(dir string) {
	for _, envFile := range envFiles {
		godotenv.Load(filepath.Join(dir, envFile))
	}
}

func initConfig(path string) error {
	loadEnvFiles(".")

	if path != "" {
		viper.SetConfigFile(path)
		loadEnvFiles(filepath.Dir(path))
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		for _, configPath := range configPaths {
			viper.AddConfigPath(configPath)
			loadEnvFiles(configPath)
		}
	}

	// FOLIO_HTTP_ADDRESS overrides http.address
	viper.SetEnvPrefix("FOLIO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gosgi/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/gosgi"
	configFileName = "config.yaml"
)

func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}

	return filepath.Join(homeDir, userConfigDir)
}

// LoadConfig loads configuration from a single specified directory.
// Relative storage and deploy directories are resolved against it.
func LoadConfig(configPath string) (FrameworkConfig, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
			config.resolvePaths(configPath)
			return config, nil
		}
		logging.Info("ConfigLoader", "Error loading config.yaml from %s: %s", configFilePath, err)
		return FrameworkConfig{}, err
	}
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		// config malformed
		return FrameworkConfig{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}
	config.resolvePaths(configPath)

	if err := config.Validate(); err != nil {
		if coll, ok := err.(*ConfigurationErrorCollection); ok {
			for i := range coll.Errors {
				coll.Errors[i].FilePath = configFilePath
				coll.Errors[i].FileName = configFileName
			}
		}
		return FrameworkConfig{}, err
	}
	logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	return config, nil
}

func (c *FrameworkConfig) resolvePaths(base string) {
	if c.Storage.Dir != "" && !filepath.IsAbs(c.Storage.Dir) {
		c.Storage.Dir = filepath.Join(base, c.Storage.Dir)
	}
	if c.Deploy.Dir != "" && !filepath.IsAbs(c.Deploy.Dir) {
		c.Deploy.Dir = filepath.Join(base, c.Deploy.Dir)
	}
}

// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"console": true, "json": true}
)

// Load reads configuration from an explicit file when path is set, otherwise
// from config.yaml in ./configs or the working directory. A missing default
// file is not an error; every key has a default.
func Load(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	applyDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable ENV override like LOGGING_LEVEL
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("templates.dir", TemplatesDirEnv); err != nil {
		return nil, fmt.Errorf("bind %s: %w", TemplatesDirEnv, err)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads the first .env found; variables already set win.
func loadEnvFile() string {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// applyDefaults registers every key so that AutomaticEnv can override it.
func applyDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "report-deck")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")

	v.SetDefault("templates.dir", "")
	v.SetDefault("templates.relative_dir", filepath.Join("public", "report-ppt-templates"))
	v.SetDefault("templates.deck_file", "report_template.pptx")
	v.SetDefault("templates.temp_dir", os.TempDir())

	v.SetDefault("render.font_name", "Malgun Gothic")
	v.SetDefault("render.sender_label", "케이티 나스미디어")
	v.SetDefault("render.author", "AdMate Vision")
	v.SetDefault("render.title_format", "게재 현황 보고서 - %s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("metrics.textfile_path", "")
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if err := ValidateLogging(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return err
	}
	if cfg.Templates.DeckFile == "" {
		return fmt.Errorf("templates.deck_file is required")
	}
	if cfg.Templates.RelativeDir == "" {
		return fmt.Errorf("templates.relative_dir is required")
	}
	if cfg.Render.FontName == "" {
		return fmt.Errorf("render.font_name is required")
	}
	if strings.Count(cfg.Render.TitleFormat, "%s") > 1 {
		return fmt.Errorf("render.title_format accepts at most one %%s verb")
	}
	return nil
}

// ValidateLogging checks a log level and format pair. Command-line overrides
// go through it as well as the loaded configuration.
func ValidateLogging(level, format string) error {
	if !validLogLevels[level] {
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", level)
	}
	if !validLogFormats[format] {
		return fmt.Errorf("logging.format must be console or json (got %q)", format)
	}
	return nil
}

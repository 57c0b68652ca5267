// internal/assembly/config.go
package assembly

import (
	"os"

	"report-deck/internal/common/config"
)

type Config struct {
	FontName    string
	SenderLabel string
	Author      string
	// TitleFormat builds the document title; a single %s receives the advertiser.
	TitleFormat string
	// TempDir holds decoded photos while they are embedded.
	TempDir string
}

func LoadConfig(cfg *config.Config) *Config {
	c := &Config{
		FontName:    cfg.Render.FontName,
		SenderLabel: cfg.Render.SenderLabel,
		Author:      cfg.Render.Author,
		TitleFormat: cfg.Render.TitleFormat,
		TempDir:     cfg.Templates.TempDir,
	}
	if c.TempDir == "" {
		c.TempDir = os.TempDir()
	}
	return c
}

// internal/common/config/config.go
package config

// TemplatesDirEnv names the directory override for template assets.
const TemplatesDirEnv = "REPORT_PPT_TEMPLATES_DIR"

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Templates TemplatesConfig `mapstructure:"templates"`
	Render    RenderConfig    `mapstructure:"render"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// TemplatesConfig drives the template directory probe.
type TemplatesConfig struct {
	// Dir is the explicit override directory, bound to REPORT_PPT_TEMPLATES_DIR.
	Dir string `mapstructure:"dir"`
	// RelativeDir is joined to the install location and to the working directory.
	RelativeDir string `mapstructure:"relative_dir"`
	DeckFile    string `mapstructure:"deck_file"`
	TempDir     string `mapstructure:"temp_dir"`
}

// RenderConfig holds values baked into generated slides.
//
// FontName must name a font that can render Hangul on the machine opening the
// deck: "Malgun Gothic" on Windows, "Apple SD Gothic Neo" on macOS,
// "NanumGothic" on most Linux desktops.
type RenderConfig struct {
	FontName    string `mapstructure:"font_name"`
	SenderLabel string `mapstructure:"sender_label"`
	Author      string `mapstructure:"author"`
	TitleFormat string `mapstructure:"title_format"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	// TextfilePath, when set, receives the run's metrics in Prometheus text format.
	TextfilePath string `mapstructure:"textfile_path"`
}

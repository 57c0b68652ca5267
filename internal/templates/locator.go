// internal/templates/locator.go
package templates

import (
	"os"
	"path/filepath"
	"strings"

	"report-deck/internal/common/config"
	"report-deck/internal/common/logger"

	"github.com/spf13/afero"
)

// Asset is the logical name of a background image.
type Asset string

const (
	AssetCover   Asset = "cover"
	AssetSummary Asset = "summary"
	AssetBanner  Asset = "banner"
	AssetEnd     Asset = "end"
)

const (
	primarySuffix  = ".png.jpg"
	fallbackSuffix = ".png"
)

var assetFiles = map[Asset]string{
	AssetCover:   "slide-01-cover.png.jpg",
	AssetSummary: "slide-02-summary.png.jpg",
	AssetBanner:  "slide-03-banner.png.jpg",
	AssetEnd:     "slide-04-End.png.jpg",
}

// CandidateNames lists the file names probed for an asset, primary first.
func CandidateNames(a Asset) []string {
	primary, ok := assetFiles[a]
	if !ok {
		return nil
	}
	return []string{primary, strings.Replace(primary, primarySuffix, fallbackSuffix, 1)}
}

// DirSource yields one candidate directory, or false when it has none.
type DirSource interface {
	Name() string
	Dir() (string, bool)
}

// EnvDir is the explicit override directory.
type EnvDir struct {
	Path string
}

func (s EnvDir) Name() string { return "override" }

func (s EnvDir) Dir() (string, bool) {
	return s.Path, s.Path != ""
}

// ExecutableDir resolves Relative against the parent of the directory that
// holds the running binary, so bin/report-deck finds ./public/... next to bin/.
type ExecutableDir struct {
	Relative   string
	Executable func() (string, error)
}

func (s ExecutableDir) Name() string { return "install" }

func (s ExecutableDir) Dir() (string, bool) {
	executable := s.Executable
	if executable == nil {
		executable = os.Executable
	}
	exe, err := executable()
	if err != nil || exe == "" {
		return "", false
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(filepath.Dir(exe)), s.Relative), true
}

// WorkingDir resolves Relative against the current working directory.
type WorkingDir struct {
	Relative string
	Getwd    func() (string, error)
}

func (s WorkingDir) Name() string { return "cwd" }

func (s WorkingDir) Dir() (string, bool) {
	getwd := s.Getwd
	if getwd == nil {
		getwd = os.Getwd
	}
	wd, err := getwd()
	if err != nil {
		return "", false
	}
	return filepath.Join(wd, s.Relative), true
}

// DefaultSources is the production probe order: override, install, cwd.
func DefaultSources(cfg config.TemplatesConfig) []DirSource {
	return []DirSource{
		EnvDir{Path: cfg.Dir},
		ExecutableDir{Relative: cfg.RelativeDir},
		WorkingDir{Relative: cfg.RelativeDir},
	}
}

// Locator finds template files by probing its sources in order.
type Locator struct {
	fs       afero.Fs
	sources  []DirSource
	deckFile string
	logger   logger.Logger
}

func NewLocator(fs afero.Fs, log logger.Logger, deckFile string, sources ...DirSource) *Locator {
	return &Locator{
		fs:       fs,
		sources:  sources,
		deckFile: deckFile,
		logger:   log.WithFields(map[string]interface{}{"component": "templates"}),
	}
}

// ResolveAsset returns the first existing file for a, directories outer and
// name variants inner. Unknown assets are never found.
func (l *Locator) ResolveAsset(a Asset) (string, bool) {
	path, ok := l.probe(CandidateNames(a))
	if !ok {
		l.logger.Debug("template asset not found", map[string]interface{}{"asset": string(a)})
	}
	return path, ok
}

// ResolveFullTemplate returns the deck template path, if any.
func (l *Locator) ResolveFullTemplate() (string, bool) {
	if l.deckFile == "" {
		return "", false
	}
	path, ok := l.probe([]string{l.deckFile})
	if !ok {
		l.logger.Debug("deck template not found", map[string]interface{}{"file": l.deckFile})
	}
	return path, ok
}

func (l *Locator) probe(names []string) (string, bool) {
	if len(names) == 0 {
		return "", false
	}
	for _, src := range l.sources {
		dir, ok := src.Dir()
		if !ok {
			continue
		}
		if isDir, err := afero.IsDir(l.fs, dir); err != nil || !isDir {
			continue
		}
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if exists, err := afero.Exists(l.fs, candidate); err == nil && exists {
				l.logger.Debug("template file resolved", map[string]interface{}{
					"source": src.Name(),
					"path":   candidate,
				})
				return candidate, true
			}
		}
	}
	return "", false
}

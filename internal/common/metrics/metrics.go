// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every collector of a run. A one-shot CLI has no scrape
// endpoint, so the registry is flushed to a textfile instead.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	DecksAssembled = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_deck_assembled_total",
			Help: "Total number of decks written, by assembly branch",
		},
		[]string{"branch"},
	)

	DeckFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_deck_failures_total",
			Help: "Total number of failed assemblies, by error code",
		},
		[]string{"error_code"},
	)

	SlidesBuilt = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_deck_slides_built_total",
			Help: "Slides generated by the fallback layout, by slide kind",
		},
		[]string{"kind"},
	)

	PhotosSkipped = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_deck_photos_skipped_total",
			Help: "Photos left out of the deck, by reason",
		},
		[]string{"reason"},
	)

	AssetsMissing = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_deck_assets_missing_total",
			Help: "Background assets that could not be resolved or embedded",
		},
		[]string{"asset"},
	)

	AssemblyDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "report_deck_assembly_duration_seconds",
			Help:    "Duration of a full assembly in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"branch"},
	)
)

// WriteTextfile writes the registry in text exposition format. An empty path
// disables the export.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, Registry)
}

// internal/assembly/handler.go
package assembly

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "report-deck/internal/common/errors"
	"report-deck/internal/common/logger"
	"report-deck/internal/common/metrics"
	"report-deck/internal/common/observability"
	"report-deck/internal/deck"
	"report-deck/internal/placeholder"
	"report-deck/internal/templates"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	TaskType = "assemble-report-deck"
)

type Handler struct {
	config  *Config
	fs      afero.Fs
	locator *templates.Locator
	logger  logger.Logger
}

func NewHandler(config *Config, fs afero.Fs, locator *templates.Locator, log logger.Logger) *Handler {
	return &Handler{
		config:  config,
		fs:      fs,
		locator: locator,
		logger:  log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// Execute builds the deck for one report and writes it to input.OutputPath.
// Nothing is written unless the whole deck was built.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || input.Report == nil {
		return nil, apperrors.NewUsageError("report input is required")
	}
	if input.OutputPath == "" {
		return nil, apperrors.NewUsageError("output path is required")
	}

	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "assembly.execute",
		attribute.String("runId", input.RunID),
		attribute.String("outputPath", input.OutputPath),
	)
	defer span.End()

	log := h.logger.WithFields(map[string]interface{}{"runId": input.RunID})
	values := DeriveDisplayValues(input.Report)
	out := &Output{OutputPath: input.OutputPath, RunID: input.RunID}

	var (
		d   *deck.Deck
		err error
	)
	if path, ok := h.locator.ResolveFullTemplate(); ok {
		out.Branch = BranchTemplate
		log.Info("using deck template", map[string]interface{}{"template": path})
		d, err = h.fromTemplate(ctx, path, values, log)
	} else {
		out.Branch = BranchFallback
		log.Info("no deck template found, building fallback layout", nil)
		d, err = h.buildFallback(ctx, values, out, log)
	}
	if err != nil {
		return nil, h.fail(span, log, err)
	}

	if err := d.SetProperties(h.title(values), h.config.Author); err != nil {
		return nil, h.fail(span, log, apperrors.NewDeckBuildError("properties", err))
	}
	out.SlideCount = len(d.Slides())

	if err := ctx.Err(); err != nil {
		return nil, h.fail(span, log, apperrors.NewRunCancelledError(err))
	}
	if err := h.writeDeck(ctx, d, input.OutputPath); err != nil {
		return nil, h.fail(span, log, err)
	}

	metrics.DecksAssembled.WithLabelValues(string(out.Branch)).Inc()
	metrics.AssemblyDuration.WithLabelValues(string(out.Branch)).Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.String("branch", string(out.Branch)),
		attribute.Int("slides", out.SlideCount),
	)

	log.Info("deck assembled", map[string]interface{}{
		"branch":         out.Branch,
		"outputPath":     out.OutputPath,
		"slides":         out.SlideCount,
		"photosEmbedded": out.PhotosEmbedded,
		"photosSkipped":  out.PhotosSkipped,
		"missingAssets":  out.MissingAssets,
		"durationMs":     time.Since(start).Milliseconds(),
	})
	return out, nil
}

func (h *Handler) fromTemplate(ctx context.Context, path string, values *DisplayValues, log logger.Logger) (*deck.Deck, error) {
	_, span := observability.StartSpan(ctx, "assembly.substitute", attribute.String("template", path))
	defer span.End()

	d, err := deck.Open(h.fs, path)
	if err != nil {
		return nil, apperrors.NewTemplateLoadError(path, err)
	}

	res := placeholder.Substitute(d, values.PlaceholderMap())
	log.Debug("placeholders substituted", map[string]interface{}{
		"slides":     len(d.Slides()),
		"paragraphs": res.Paragraphs,
		"cells":      res.Cells,
	})
	return d, nil
}

// writeDeck serializes into memory first so a failed build never leaves a
// truncated file behind.
func (h *Handler) writeDeck(ctx context.Context, d *deck.Deck, path string) error {
	_, span := observability.StartSpan(ctx, "assembly.write")
	defer span.End()

	var buf bytes.Buffer
	if err := d.Write(&buf); err != nil {
		return apperrors.NewDeckBuildError("serialize", err)
	}
	if err := afero.WriteFile(h.fs, path, buf.Bytes(), 0o644); err != nil {
		_ = h.fs.Remove(path)
		return apperrors.NewDeckWriteError(path, err)
	}
	return nil
}

func (h *Handler) title(values *DisplayValues) string {
	if strings.Contains(h.config.TitleFormat, "%s") {
		return fmt.Sprintf(h.config.TitleFormat, values.Advertiser)
	}
	return h.config.TitleFormat
}

func (h *Handler) fail(span trace.Span, log logger.Logger, err error) error {
	code := apperrors.CodeOf(err)
	metrics.DeckFailures.WithLabelValues(string(code)).Inc()
	observability.RecordError(span, err)
	log.Error("deck assembly failed", map[string]interface{}{
		"errorCode": code,
		"error":     err.Error(),
	})
	return err
}

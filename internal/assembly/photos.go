// internal/assembly/photos.go
package assembly

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"report-deck/internal/common/observability"
	"report-deck/internal/deck"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/attribute"
)

// Reasons recorded when a photo is skipped.
const (
	skipDecode  = "decode"
	skipFormat  = "format"
	skipStaging = "staging"
	skipEmbed   = "embed"
)

var errEmptyPhoto = errors.New("empty photo payload")

var photoExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// decodePhoto strips everything up to the first comma, which drops a
// "data:image/jpeg;base64," prefix, and decodes the rest. Padded and unpadded
// standard and URL-safe alphabets are accepted.
func decodePhoto(payload string) ([]byte, error) {
	raw := payload
	if i := strings.IndexByte(raw, ','); i >= 0 {
		raw = raw[i+1:]
	}
	raw = strings.Join(strings.Fields(raw), "")
	if raw == "" {
		return nil, errEmptyPhoto
	}

	var lastErr error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		data, err := enc.DecodeString(raw)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// sniffPhoto returns the image MIME type of data, or false for anything that
// is not a JPEG, PNG or GIF.
func sniffPhoto(data []byte) (string, bool) {
	mime := http.DetectContentType(data)
	_, ok := photoExtensions[mime]
	return mime, ok
}

// embedPhoto decodes one payload, stages it in a temp file and places it on
// the slide. The temp file is removed before returning. On failure the
// returned reason labels the skip.
func (h *Handler) embedPhoto(ctx context.Context, s *deck.Slide, index int, payload string, rect deck.Rect) (string, error) {
	_, span := observability.StartSpan(ctx, "assembly.photo", attribute.Int("photo.index", index))
	defer span.End()

	data, err := decodePhoto(payload)
	if err != nil {
		observability.RecordError(span, err)
		return skipDecode, err
	}
	mime, ok := sniffPhoto(data)
	if !ok {
		err := fmt.Errorf("unsupported photo content %q", mime)
		observability.RecordError(span, err)
		return skipFormat, err
	}

	staged, err := h.stagePhoto(data, photoExtensions[mime])
	if err != nil {
		observability.RecordError(span, err)
		return skipStaging, err
	}
	if _, err := s.AddPicture(staged, rect); err != nil {
		observability.RecordError(span, err)
		return skipEmbed, err
	}
	return "", nil
}

func (h *Handler) stagePhoto(data []byte, ext string) ([]byte, error) {
	if err := h.fs.MkdirAll(h.config.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	f, err := afero.TempFile(h.fs, h.config.TempDir, "report-photo-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	name := f.Name()
	defer func() {
		if err := h.fs.Remove(name); err != nil {
			h.logger.Warn("failed to remove staged photo", map[string]interface{}{
				"path":  name,
				"error": err.Error(),
			})
		}
	}()

	_, writeErr := f.Write(data)
	closeErr := f.Close()
	if writeErr != nil {
		return nil, fmt.Errorf("write temp file: %w", writeErr)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("close temp file: %w", closeErr)
	}
	return afero.ReadFile(h.fs, name)
}

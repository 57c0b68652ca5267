// internal/assembly/fallback.go
package assembly

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	apperrors "report-deck/internal/common/errors"
	"report-deck/internal/common/logger"
	"report-deck/internal/common/metrics"
	"report-deck/internal/common/observability"
	"report-deck/internal/deck"
	"report-deck/internal/formatter"
	"report-deck/internal/templates"

	"github.com/spf13/afero"
)

const (
	colorDark  = "333333"
	colorWhite = "FFFFFF"
	colorGrey  = "AAAAAA"

	disclaimer = "※ 본 수치는 공공데이터(역사별 승·하차/유동인구) 기반 추정치이며, 실제 광고 노출 수는 편차가 있을 수 있습니다."
)

// Photo slot geometry in inches.
const (
	photoY      = 1.2
	photoWidth  = 4.5
	photoHeight = 3.375
)

var photoColumns = [2]float64{0.4, 5.1}

// fallbackBuilder lays out the built-in deck when no template exists. Each
// slide with a background asset draws white text over it; without the asset
// the plain variant adds dark text readable on a blank slide.
type fallbackBuilder struct {
	h      *Handler
	deck   *deck.Deck
	values *DisplayValues
	out    *Output
	log    logger.Logger
}

func (h *Handler) buildFallback(ctx context.Context, values *DisplayValues, out *Output, log logger.Logger) (*deck.Deck, error) {
	ctx, span := observability.StartSpan(ctx, "assembly.fallback")
	defer span.End()

	d, err := deck.New(deck.SlideWidth, deck.SlideHeight)
	if err != nil {
		return nil, apperrors.NewDeckBuildError("skeleton", err)
	}
	b := &fallbackBuilder{h: h, deck: d, values: values, out: out, log: log}

	steps := []struct {
		kind  string
		build func(context.Context) error
	}{
		{"cover", b.cover},
		{"summary", b.summary},
		{"timeband", b.timeBands},
		{"photos", b.photos},
		{"closing", b.closing},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.NewRunCancelledError(err)
		}
		if err := step.build(ctx); err != nil {
			if apperrors.CodeOf(err) != apperrors.ErrCodeUnclassified {
				return nil, err
			}
			return nil, apperrors.NewDeckBuildError(step.kind, err)
		}
	}
	return d, nil
}

func (b *fallbackBuilder) newSlide(kind string) (*deck.Slide, error) {
	s, err := b.deck.AddSlide()
	if err != nil {
		return nil, err
	}
	metrics.SlidesBuilt.WithLabelValues(kind).Inc()
	return s, nil
}

// background stretches the asset over the whole slide. It reports false when
// the asset is unavailable, which selects the plain variant.
func (b *fallbackBuilder) background(s *deck.Slide, asset templates.Asset) bool {
	path, ok := b.h.locator.ResolveAsset(asset)
	if !ok {
		b.missing(asset, nil)
		return false
	}
	data, err := afero.ReadFile(b.h.fs, path)
	if err != nil {
		b.missing(asset, err)
		return false
	}
	w, h := b.deck.Size()
	if _, err := s.AddPicture(data, deck.Rect{W: w, H: h}); err != nil {
		b.missing(asset, err)
		return false
	}
	return true
}

func (b *fallbackBuilder) missing(asset templates.Asset, cause error) {
	metrics.AssetsMissing.WithLabelValues(string(asset)).Inc()
	name := string(asset)
	for _, m := range b.out.MissingAssets {
		if m == name {
			name = ""
			break
		}
	}
	if name != "" {
		b.out.MissingAssets = append(b.out.MissingAssets, name)
	}
	if cause != nil {
		err := apperrors.NewAssetMissingError(string(asset), cause)
		b.log.Warn("background asset unusable, using plain layout", map[string]interface{}{
			"asset":     string(asset),
			"errorCode": err.Code,
			"error":     err.Error(),
		})
	}
}

func (b *fallbackBuilder) text(s *deck.Slide, x, y, w, h float64, text string, size float64, bold bool, color string, center bool) {
	style := deck.TextStyle{Font: b.h.config.FontName, Size: size, Bold: bold, Color: color}
	if center {
		style.Align = deck.AlignCenter
	}
	s.AddTextBox(deck.InchRect(x, y, w, h), text, style)
}

func (b *fallbackBuilder) table(s *deck.Slide, rows [][]string, x, y, w, rowHeight, size float64) error {
	cols := 0
	for _, r := range rows {
		cols = max(cols, len(r))
	}
	tbl, err := s.AddTable(len(rows), cols, deck.InchRect(x, y, w, rowHeight*float64(len(rows))),
		deck.TextStyle{Font: b.h.config.FontName, Size: size})
	if err != nil {
		return err
	}
	for r, row := range rows {
		for c, v := range row {
			tbl.Cell(r, c).SetText(v)
		}
	}
	return nil
}

func (b *fallbackBuilder) cover(ctx context.Context) error {
	s, err := b.newSlide("cover")
	if err != nil {
		return err
	}
	v := b.values
	hasBackground := b.background(s, templates.AssetCover)

	b.text(s, 0.8, 2.0, 8, 0.7, v.Advertiser+" N.square 광고배너 게재보고서", 24, true, colorWhite, false)
	if v.DateDotted != "" {
		b.text(s, 4, 5.0, 2, 0.35, v.DateDotted, 14, false, colorWhite, true)
	}
	if hasBackground {
		return nil
	}

	b.text(s, 0.5, 1.2, 9, 0.8, v.Advertiser+" 게재 현황 보고서", 28, true, colorDark, true)
	location := v.LineStation()
	if v.Subtitle != "" {
		location += " / " + v.Subtitle
	}
	b.text(s, 0.5, 2.0, 9, 0.4, location, 18, false, colorDark, true)
	if v.DateDashed != "" {
		b.text(s, 0.5, 2.6, 9, 0.35, "보고 일자: "+v.DateDashed, 14, false, colorDark, true)
	}
	return nil
}

func (b *fallbackBuilder) summary(ctx context.Context) error {
	s, err := b.newSlide("summary")
	if err != nil {
		return err
	}
	v := b.values
	hasBackground := b.background(s, templates.AssetSummary)

	b.text(s, 0.5, 0.25, 6, 0.45, v.Advertiser+" 예상 노출량 리포트", 20, true, colorWhite, false)
	peak := "피크 시간대: - (0명)"
	if p := v.Ranked.Peak(); p != nil {
		peak = fmt.Sprintf("피크 시간대: %s (%s명)", p.Band, formatter.Compact(p.Exposure))
	}
	b.text(s, 7, 0.3, 2.2, 0.3, peak, 11, false, colorWhite, false)
	if second := v.Ranked.Second(); second != nil {
		b.text(s, 7, 0.55, 2.2, 0.3, fmt.Sprintf("2순위: %s (%s명)", second.Band, formatter.Compact(second.Exposure)), 11, false, colorWhite, false)
	}

	b.text(s, 0.5, 0.95, 2, 0.35, v.LineStation(), 12, false, colorWhite, false)
	b.text(s, 2.6, 0.95, 2, 0.35, v.DailyFlowCompact+"명", 12, false, colorWhite, false)
	b.text(s, 4.7, 0.95, 1.2, 0.35, v.Days(), 12, false, colorWhite, false)
	b.text(s, 6, 0.95, 2, 0.35, v.TotalCompact+"명", 12, false, colorWhite, false)

	if len(v.Ranked) > 0 {
		rows := [][]string{{"시간대", "예상 노출량(만명)", "비중", "순위"}}
		for i, band := range v.Ranked {
			label := band.Band
			if i == 0 {
				label += " 피크"
			}
			rows = append(rows, []string{
				label,
				formatter.TenThousands(band.Exposure),
				fmt.Sprintf("%.0f%%", formatter.Percent(band.Exposure, v.TotalExposure)),
				strconv.Itoa(i + 1),
			})
		}
		if err := b.table(s, rows, 0.5, 1.5, 4.2, 0.35, 10); err != nil {
			return err
		}
	}

	b.text(s, 0.5, 5.15, 9, 0.4, disclaimer, 8, false, colorGrey, false)
	if hasBackground {
		return nil
	}

	b.text(s, 0.5, 0.3, 9, 0.5, "예상 노출량 요약", 22, true, colorDark, false)
	return b.table(s, [][]string{
		{"항목", "내용"},
		{"역/호선", v.LineStation()},
		{"일평균 유동인구", v.DailyFlowFull + "명"},
		{"게재 기간", v.Days()},
		{"예상 총 노출량", v.TotalFull + "명"},
	}, 0.5, 1.0, 9, 0.4, 14)
}

func (b *fallbackBuilder) timeBands(ctx context.Context) error {
	v := b.values
	if len(v.Bands) == 0 {
		return nil
	}
	s, err := b.newSlide("timeband")
	if err != nil {
		return err
	}

	b.text(s, 0.5, 0.3, 9, 0.5, "시간대별 예상 노출량", 22, true, colorDark, false)
	rows := [][]string{{"시간대", "예상 노출량"}}
	for _, band := range v.Bands {
		rows = append(rows, []string{band.Band, formatter.Full(band.Exposure) + "명"})
	}
	return b.table(s, rows, 0.5, 1.0, 9, 0.4, 14)
}

func (b *fallbackBuilder) photos(ctx context.Context) error {
	photos := b.values.Photos
	for i := 0; i < len(photos); i += 2 {
		if err := ctx.Err(); err != nil {
			return apperrors.NewRunCancelledError(err)
		}
		s, err := b.newSlide("photo")
		if err != nil {
			return err
		}
		b.background(s, templates.AssetBanner)

		for j, payload := range photos[i:min(i+2, len(photos))] {
			index := i + j
			rect := deck.InchRect(photoColumns[j], photoY, photoWidth, photoHeight)
			reason, err := b.h.embedPhoto(ctx, s, index, payload, rect)
			if err != nil {
				b.out.PhotosSkipped++
				metrics.PhotosSkipped.WithLabelValues(reason).Inc()
				skipErr := apperrors.NewImageDecodeError(index, err)
				b.log.Warn("photo skipped", map[string]interface{}{
					"index":     index,
					"reason":    reason,
					"errorCode": skipErr.Code,
					"error":     skipErr.Error(),
				})
				continue
			}
			b.out.PhotosEmbedded++
		}
	}
	return nil
}

func (b *fallbackBuilder) closing(ctx context.Context) error {
	s, err := b.newSlide("closing")
	if err != nil {
		return err
	}
	v := b.values
	hasBackground := b.background(s, templates.AssetEnd)

	b.text(s, 3, 2.4, 4, 0.5, b.h.config.SenderLabel+" "+v.ManagerName, 18, false, colorWhite, true)
	b.text(s, 3, 2.95, 4, 0.4, v.ManagerEmail, 14, false, colorWhite, true)
	if hasBackground {
		return nil
	}

	b.text(s, 0.5, 2, 9, 0.5, "문서 끝", 22, true, colorDark, true)
	var contact []string
	for _, part := range []string{v.ManagerName, v.ManagerEmail} {
		if part != "" {
			contact = append(contact, part)
		}
	}
	if len(contact) > 0 {
		b.text(s, 0.5, 2.6, 9, 0.4, strings.Join(contact, " · "), 14, false, colorDark, true)
	}
	return nil
}

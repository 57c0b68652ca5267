package assembly

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"

	apperrors "report-deck/internal/common/errors"
	"report-deck/internal/common/logger"
	"report-deck/internal/deck"
	"report-deck/internal/models"
	"report-deck/internal/templates"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

const (
	testOutputPath   = "/out/report.pptx"
	testTemplatesDir = "/templates"
	testTempDir      = "/tmp/report-deck"
)

func createTestConfig() *Config {
	return &Config{
		FontName:    "Malgun Gothic",
		SenderLabel: "케이티 나스미디어",
		Author:      "AdMate Vision",
		TitleFormat: "게재 현황 보고서 - %s",
		TempDir:     testTempDir,
	}
}

func createTestHandler(t *testing.T, fs afero.Fs, templatesDir string) *Handler {
	log := logger.NewTestLogger(t)
	var sources []templates.DirSource
	if templatesDir != "" {
		sources = append(sources, templates.EnvDir{Path: templatesDir})
	}
	locator := templates.NewLocator(fs, log, "report_template.pptx", sources...)
	return NewHandler(createTestConfig(), fs, locator, log)
}

func createTestReport() *models.ReportInput {
	return &models.ReportInput{
		AdvertiserName:       "에이비씨",
		Station:              "여의도역",
		Line:                 "5호선",
		DisplayDays:          14,
		DateStr:              "20240315",
		Subtitle:             "출구 2번",
		CampaignManagerName:  "홍길동",
		CampaignManagerEmail: "hong@example.com",
		Exposure: models.Exposure{
			TotalExposure: 25000,
			DailyFlow:     45000,
			ByTimeBand:    []models.TimeBandExposure{},
		},
		ImageBase64s: []string{},
	}
}

func testPNG(t *testing.T, c color.Color) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for x := 0; x < 8; x++ {
		for y := 0; y < 6; y++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func photoPayload(t *testing.T, c color.Color) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(testPNG(t, c))
}

func runAndOpen(t *testing.T, fs afero.Fs, h *Handler, report *models.ReportInput) (*Output, *deck.Deck) {
	out, err := h.Execute(context.Background(), &Input{Report: report, OutputPath: testOutputPath, RunID: "run-1"})
	require.NoError(t, err)
	d, err := deck.Open(fs, testOutputPath)
	require.NoError(t, err)
	return out, d
}

func slideTexts(s *deck.Slide) []string {
	var texts []string
	for _, sh := range s.Shapes() {
		if tf := sh.TextFrame(); tf != nil {
			texts = append(texts, tf.Text())
		}
	}
	return texts
}

func slideTables(s *deck.Slide) []*deck.Table {
	var tables []*deck.Table
	for _, sh := range s.Shapes() {
		if tbl := sh.Table(); tbl != nil {
			tables = append(tables, tbl)
		}
	}
	return tables
}

func slidePictures(s *deck.Slide) []*deck.Shape {
	var pics []*deck.Shape
	for _, sh := range s.Shapes() {
		if sh.IsPicture() {
			pics = append(pics, sh)
		}
	}
	return pics
}

func tableRow(tbl *deck.Table, r int) []string {
	row := make([]string, tbl.NumCols())
	for c := range row {
		row[c] = tbl.Cell(r, c).Text()
	}
	return row
}

// ==========================
// Fallback Scenario Tests
// ==========================

func TestHandler_Execute_MinimalReport(t *testing.T) {
	fs := afero.NewMemMapFs()
	h := createTestHandler(t, fs, "")

	out, d := runAndOpen(t, fs, h, &models.ReportInput{})

	assert.Equal(t, BranchFallback, out.Branch)
	assert.Equal(t, 3, out.SlideCount)
	assert.Equal(t, testOutputPath, out.OutputPath)
	assert.Equal(t, "run-1", out.RunID)
	assert.ElementsMatch(t, []string{"cover", "summary", "end"}, out.MissingAssets)

	slides := d.Slides()
	require.Len(t, slides, 3)

	cover := slideTexts(slides[0])
	assert.Contains(t, cover, " N.square 광고배너 게재보고서")
	assert.Contains(t, cover, " 게재 현황 보고서")
	assert.NotContains(t, cover, "보고 일자: ")

	summary := slides[1]
	assert.Contains(t, slideTexts(summary), "피크 시간대: - (0명)")
	for _, text := range slideTexts(summary) {
		assert.NotContains(t, text, "2순위")
	}
	tables := slideTables(summary)
	require.Len(t, tables, 1, "only the plain summary table without time bands")
	assert.Equal(t, 5, tables[0].NumRows())
	assert.Equal(t, 2, tables[0].NumCols())
	assert.Equal(t, []string{"일평균 유동인구", "0명"}, tableRow(tables[0], 2))
	assert.Equal(t, []string{"게재 기간", "0일"}, tableRow(tables[0], 3))

	closing := slideTexts(slides[2])
	assert.Contains(t, closing, "문서 끝")
	assert.Len(t, closing, 3, "sender line, email line and the plain title; no contact line")
}

func TestHandler_Execute_TimeBands(t *testing.T) {
	fs := afero.NewMemMapFs()
	h := createTestHandler(t, fs, "")
	report := createTestReport()
	report.Exposure.ByTimeBand = []models.TimeBandExposure{
		{Band: "08-10", Exposure: 5000},
		{Band: "18-20", Exposure: 20000},
	}

	out, d := runAndOpen(t, fs, h, report)

	assert.Equal(t, 4, out.SlideCount)
	slides := d.Slides()
	require.Len(t, slides, 4)

	cover := slideTexts(slides[0])
	assert.Contains(t, cover, "에이비씨 N.square 광고배너 게재보고서")
	assert.Contains(t, cover, "2024.03.15")
	assert.Contains(t, cover, "5호선 여의도역 / 출구 2번")
	assert.Contains(t, cover, "보고 일자: 2024-03-15")

	summaryTexts := slideTexts(slides[1])
	assert.Contains(t, summaryTexts, "에이비씨 예상 노출량 리포트")
	assert.Contains(t, summaryTexts, "피크 시간대: 18-20 (2.0만명)")
	assert.Contains(t, summaryTexts, "2순위: 08-10 (5,000명)")
	assert.Contains(t, summaryTexts, "4.5만명")
	assert.Contains(t, summaryTexts, "14일")
	assert.Contains(t, summaryTexts, "2.5만명")

	tables := slideTables(slides[1])
	require.Len(t, tables, 2)
	ranked := tables[0]
	assert.Equal(t, []string{"시간대", "예상 노출량(만명)", "비중", "순위"}, tableRow(ranked, 0))
	assert.Equal(t, []string{"18-20 피크", "2.0", "80%", "1"}, tableRow(ranked, 1))
	assert.Equal(t, []string{"08-10", "0.5", "20%", "2"}, tableRow(ranked, 2))
	assert.Equal(t, []string{"예상 총 노출량", "2.5만명"}, tableRow(tables[1], 4))

	assert.Contains(t, slideTexts(slides[2]), "시간대별 예상 노출량")
	detail := slideTables(slides[2])
	require.Len(t, detail, 1)
	assert.Equal(t, []string{"시간대", "예상 노출량"}, tableRow(detail[0], 0))
	assert.Equal(t, []string{"08-10", "5,000명"}, tableRow(detail[0], 1))
	assert.Equal(t, []string{"18-20", "2.0만명"}, tableRow(detail[0], 2))

	closing := slideTexts(slides[3])
	assert.Contains(t, closing, "케이티 나스미디어 홍길동")
	assert.Contains(t, closing, "홍길동 · hong@example.com")
}

func TestHandler_Execute_ZeroTotalGivesZeroPercent(t *testing.T) {
	fs := afero.NewMemMapFs()
	h := createTestHandler(t, fs, "")
	report := createTestReport()
	report.Exposure.TotalExposure = 0
	report.Exposure.ByTimeBand = []models.TimeBandExposure{{Band: "07-09", Exposure: 3000}}

	_, d := runAndOpen(t, fs, h, report)

	ranked := slideTables(d.Slides()[1])[0]
	assert.Equal(t, []string{"07-09 피크", "0.3", "0%", "1"}, tableRow(ranked, 1))
}

func TestHandler_Execute_Photos(t *testing.T) {
	red := photoPayload(t, color.RGBA{R: 255, A: 255})
	green := photoPayload(t, color.RGBA{G: 255, A: 255})
	blue := base64.RawStdEncoding.EncodeToString(testPNG(t, color.RGBA{B: 255, A: 255}))

	tests := []struct {
		name         string
		photos       []string
		wantSlides   int
		wantPictures []int
		wantEmbedded int
		wantSkipped  int
	}{
		{
			name:         "three valid photos fill two slides",
			photos:       []string{red, green, blue},
			wantSlides:   5,
			wantPictures: []int{2, 1},
			wantEmbedded: 3,
		},
		{
			name:         "undecodable photo leaves its slot empty",
			photos:       []string{red, "!!!not base64!!!", blue},
			wantSlides:   5,
			wantPictures: []int{1, 1},
			wantEmbedded: 2,
			wantSkipped:  1,
		},
		{
			name:         "non-image payload is skipped",
			photos:       []string{green, base64.StdEncoding.EncodeToString([]byte("hello, world"))},
			wantSlides:   4,
			wantPictures: []int{1},
			wantEmbedded: 1,
			wantSkipped:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			h := createTestHandler(t, fs, "")
			report := createTestReport()
			report.ImageBase64s = tt.photos

			out, d := runAndOpen(t, fs, h, report)

			assert.Equal(t, tt.wantSlides, out.SlideCount)
			assert.Equal(t, tt.wantEmbedded, out.PhotosEmbedded)
			assert.Equal(t, tt.wantSkipped, out.PhotosSkipped)

			slides := d.Slides()
			require.Len(t, slides, tt.wantSlides)
			photoSlides := slides[2 : len(slides)-1]
			require.Len(t, photoSlides, len(tt.wantPictures))
			for i, want := range tt.wantPictures {
				pics := slidePictures(photoSlides[i])
				require.Len(t, pics, want)
				assert.Equal(t, deck.InchRect(0.4, 1.2, 4.5, 3.375), pics[0].Rect())
			}

			entries, err := afero.ReadDir(fs, testTempDir)
			require.NoError(t, err)
			assert.Empty(t, entries, "staged photos are removed")
		})
	}
}

func TestHandler_Execute_SecondPhotoColumn(t *testing.T) {
	fs := afero.NewMemMapFs()
	h := createTestHandler(t, fs, "")
	report := createTestReport()
	report.ImageBase64s = []string{
		photoPayload(t, color.RGBA{R: 255, A: 255}),
		photoPayload(t, color.RGBA{G: 255, A: 255}),
	}

	_, d := runAndOpen(t, fs, h, report)

	pics := slidePictures(d.Slides()[2])
	require.Len(t, pics, 2)
	assert.Equal(t, deck.InchRect(5.1, 1.2, 4.5, 3.375), pics[1].Rect())
	img, ok := pics[1].Image()
	require.True(t, ok)
	assert.Equal(t, testPNG(t, color.RGBA{G: 255, A: 255}), img)
}

// ==========================
// Background Asset Tests
// ==========================

func TestHandler_Execute_BackgroundAssets(t *testing.T) {
	fs := afero.NewMemMapFs()
	bg := testPNG(t, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	require.NoError(t, afero.WriteFile(fs, testTemplatesDir+"/slide-01-cover.png.jpg", bg, 0o644))
	require.NoError(t, afero.WriteFile(fs, testTemplatesDir+"/slide-04-End.png", bg, 0o644))
	require.NoError(t, afero.WriteFile(fs, testTemplatesDir+"/slide-02-summary.png.jpg", []byte("corrupt"), 0o644))
	h := createTestHandler(t, fs, testTemplatesDir)

	out, d := runAndOpen(t, fs, h, createTestReport())

	assert.Equal(t, BranchFallback, out.Branch)
	assert.Equal(t, []string{"summary"}, out.MissingAssets)

	slides := d.Slides()
	require.Len(t, slides, 3)

	coverShapes := slides[0].Shapes()
	require.NotEmpty(t, coverShapes)
	assert.True(t, coverShapes[0].IsPicture(), "background is the back-most shape")
	assert.Equal(t, deck.Rect{W: deck.SlideWidth, H: deck.SlideHeight}, coverShapes[0].Rect())
	assert.NotContains(t, slideTexts(slides[0]), "에이비씨 게재 현황 보고서")

	assert.Empty(t, slidePictures(slides[1]), "corrupt background falls back to the plain layout")
	assert.Contains(t, slideTexts(slides[1]), "예상 노출량 요약")

	assert.Len(t, slidePictures(slides[2]), 1)
	assert.NotContains(t, slideTexts(slides[2]), "문서 끝")
}

// ==========================
// Template Branch Tests
// ==========================

func writeTemplateDeck(t *testing.T, fs afero.Fs) {
	d, err := deck.New(deck.SlideWidth, deck.SlideHeight)
	require.NoError(t, err)
	s, err := d.AddSlide()
	require.NoError(t, err)

	style := deck.TextStyle{Font: "Malgun Gothic", Size: 20, Color: "FFFFFF"}
	title := s.AddTextBox(deck.InchRect(0.5, 0.5, 9, 1), "{광고", style)
	title.TextFrame().Paragraphs()[0].AddRun("주명} 게재 보고서")
	s.AddTextBox(deck.InchRect(0.5, 1.5, 9, 1), "{년.월.일} / {부제}", style)
	s.AddTextBox(deck.InchRect(0.5, 2.5, 9, 1), "고정 문구", style)

	tbl, err := s.AddTable(2, 2, deck.InchRect(0.5, 3.5, 9, 1), style)
	require.NoError(t, err)
	tbl.Cell(0, 0).SetText("{역/호선}")
	tbl.Cell(0, 1).SetText("{게재 기간}")
	tbl.Cell(1, 0).SetText("{피크 시간대}")
	tbl.Cell(1, 1).SetText("고정")

	var buf bytes.Buffer
	require.NoError(t, d.Write(&buf))
	require.NoError(t, afero.WriteFile(fs, testTemplatesDir+"/report_template.pptx", buf.Bytes(), 0o644))
}

func TestHandler_Execute_TemplateBranch(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTemplateDeck(t, fs)
	h := createTestHandler(t, fs, testTemplatesDir)
	report := createTestReport()
	report.Exposure.ByTimeBand = []models.TimeBandExposure{{Band: "08-10", Exposure: 5000}, {Band: "18-20", Exposure: 20000}}
	report.ImageBase64s = []string{photoPayload(t, color.RGBA{R: 255, A: 255})}

	out, d := runAndOpen(t, fs, h, report)

	assert.Equal(t, BranchTemplate, out.Branch)
	assert.Equal(t, 1, out.SlideCount, "template decks keep their own slides")
	assert.Zero(t, out.PhotosEmbedded)

	slides := d.Slides()
	require.Len(t, slides, 1)
	texts := slideTexts(slides[0])
	assert.Equal(t, []string{"에이비씨 게재 보고서", "2024.03.15 / 출구 2번", "고정 문구"}, texts)

	tables := slideTables(slides[0])
	require.Len(t, tables, 1)
	assert.Equal(t, []string{"5호선 여의도역", "14일"}, tableRow(tables[0], 0))
	assert.Equal(t, []string{"18-20", "고정"}, tableRow(tables[0], 1))

	core, ok := d.Part("docProps/core.xml")
	require.True(t, ok)
	assert.Contains(t, string(core), "게재 현황 보고서 - 에이비씨")
	assert.Contains(t, string(core), "AdMate Vision")
}

// withoutPart copies a .pptx archive, leaving out one part.
func withoutPart(t *testing.T, pptx []byte, name string) []byte {
	zr, err := zip.NewReader(bytes.NewReader(pptx), int64(len(pptx)))
	require.NoError(t, err)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range zr.File {
		if f.Name == name {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		w, err := zw.Create(f.Name)
		require.NoError(t, err)
		_, err = io.Copy(w, rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestHandler_Execute_TemplateWithoutCoreProperties(t *testing.T) {
	fs := afero.NewMemMapFs()
	tpl, err := deck.New(deck.SlideWidth, deck.SlideHeight)
	require.NoError(t, err)
	s, err := tpl.AddSlide()
	require.NoError(t, err)
	s.AddTextBox(deck.InchRect(0.5, 0.5, 9, 1), "{광고주명}", deck.TextStyle{Size: 20})
	var buf bytes.Buffer
	require.NoError(t, tpl.Write(&buf))
	stripped := withoutPart(t, buf.Bytes(), "docProps/core.xml")
	require.NoError(t, afero.WriteFile(fs, testTemplatesDir+"/report_template.pptx", stripped, 0o644))
	h := createTestHandler(t, fs, testTemplatesDir)

	out, d := runAndOpen(t, fs, h, createTestReport())

	assert.Equal(t, BranchTemplate, out.Branch)
	assert.Equal(t, []string{"에이비씨"}, slideTexts(d.Slides()[0]))
	core, ok := d.Part("docProps/core.xml")
	require.True(t, ok, "core properties are added")
	assert.Contains(t, string(core), "게재 현황 보고서 - 에이비씨")
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T) (afero.Fs, string)
		ctx      func() context.Context
		input    *Input
		wantCode apperrors.ErrorCode
		wantExit int
	}{
		{
			name:     "missing report",
			input:    &Input{OutputPath: testOutputPath},
			wantCode: apperrors.ErrCodeUsage,
			wantExit: apperrors.ExitUsage,
		},
		{
			name:     "missing output path",
			input:    &Input{Report: createTestReport()},
			wantCode: apperrors.ErrCodeUsage,
			wantExit: apperrors.ExitUsage,
		},
		{
			name: "unreadable template",
			setup: func(t *testing.T) (afero.Fs, string) {
				fs := afero.NewMemMapFs()
				require.NoError(t, afero.WriteFile(fs, testTemplatesDir+"/report_template.pptx", []byte("not a zip"), 0o644))
				return fs, testTemplatesDir
			},
			input:    &Input{Report: createTestReport(), OutputPath: testOutputPath},
			wantCode: apperrors.ErrCodeTemplateLoad,
			wantExit: apperrors.ExitFailure,
		},
		{
			name: "cancelled run",
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			input:    &Input{Report: createTestReport(), OutputPath: testOutputPath},
			wantCode: apperrors.ErrCodeRunCancelled,
			wantExit: apperrors.ExitFailure,
		},
		{
			name: "read-only destination",
			setup: func(t *testing.T) (afero.Fs, string) {
				return afero.NewReadOnlyFs(afero.NewMemMapFs()), ""
			},
			input:    &Input{Report: createTestReport(), OutputPath: testOutputPath},
			wantCode: apperrors.ErrCodeDeckWrite,
			wantExit: apperrors.ExitFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, dir := afero.Fs(afero.NewMemMapFs()), ""
			if tt.setup != nil {
				fs, dir = tt.setup(t)
			}
			ctx := context.Background()
			if tt.ctx != nil {
				ctx = tt.ctx()
			}
			h := createTestHandler(t, fs, dir)

			out, err := h.Execute(ctx, tt.input)

			require.Error(t, err)
			assert.Nil(t, out)
			assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
			assert.Equal(t, tt.wantExit, apperrors.ExitCode(err))

			exists, statErr := afero.Exists(fs, testOutputPath)
			require.NoError(t, statErr)
			assert.False(t, exists, "no partial artifact")
		})
	}
}

// ==========================
// Derived Value Tests
// ==========================

func TestDeriveDisplayValues(t *testing.T) {
	report := createTestReport()
	report.AdvertiserName = "에이\xed\xa0\x80비씨"
	report.Exposure.ByTimeBand = []models.TimeBandExposure{{Band: "08-10\xed\xb0\x80", Exposure: 5000}}
	report.DateStr = "2024\uFFFD0315"

	v := DeriveDisplayValues(report)

	assert.Equal(t, "에이비씨", v.Advertiser)
	assert.Equal(t, "08-10", v.Bands[0].Band)
	assert.Equal(t, "08-10", v.Ranked.Peak().Band)
	assert.Equal(t, "2024.03.15", v.DateDotted)
	assert.Equal(t, "2024-03-15", v.DateDashed)
	assert.Equal(t, "4.5만", v.DailyFlowCompact)
	assert.Equal(t, "2.5만", v.TotalFull)
	assert.Equal(t, "5호선 여의도역", v.LineStation())
	assert.Equal(t, "14일", v.Days())
}

func TestPlaceholderMap(t *testing.T) {
	t.Run("populated report", func(t *testing.T) {
		report := createTestReport()
		report.Exposure.ByTimeBand = []models.TimeBandExposure{{Band: "18-20", Exposure: 1}}

		m := DeriveDisplayValues(report).PlaceholderMap()

		require.Len(t, m, 16)
		values := make(map[string]string, len(m))
		for _, p := range m {
			values[p.Token] = p.Value
		}
		assert.Equal(t, "에이비씨", values["{광고주명}"])
		assert.Equal(t, "2024.03.15", values["{년.월.일}"])
		assert.Equal(t, "5호선 여의도역", values["{역/호선}"])
		assert.Equal(t, "여의도역", values["{여의도역}"])
		assert.Equal(t, "5호선", values["{n호선}"])
		assert.Equal(t, "4.5만", values["{일평균 유동인구}"])
		assert.Equal(t, "2.5만", values["{총 노출량}"])
		assert.Equal(t, "14일", values["{게재 기간}"])
		assert.Equal(t, "출구 2번", values["{부제}"])
		assert.Equal(t, "18-20", values["{피크 시간대}"])
	})

	t.Run("empty report", func(t *testing.T) {
		m := DeriveDisplayValues(&models.ReportInput{}).PlaceholderMap()

		assert.Equal(t, "0", m.Replace("{일평균 유동인구}"))
		assert.Equal(t, "0", m.Replace("{예상 총 노출량}"))
		assert.Equal(t, "0일", m.Replace("{게재 기간}"))
		assert.Equal(t, "-", m.Replace("{피크 시간대}"))
		assert.Equal(t, "", m.Replace("{년.월.일}"))
	})
}

func TestDecodePhoto(t *testing.T) {
	want := testPNG(t, color.RGBA{A: 255})
	std := base64.StdEncoding.EncodeToString(want)

	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{name: "padded", payload: std},
		{name: "data url", payload: "data:image/png;base64," + std},
		{name: "unpadded", payload: base64.RawStdEncoding.EncodeToString(want)},
		{name: "url safe", payload: base64.RawURLEncoding.EncodeToString(want)},
		{name: "wrapped lines", payload: std[:10] + "\n" + std[10:]},
		{name: "empty", payload: "", wantErr: true},
		{name: "header only", payload: "data:image/png;base64,", wantErr: true},
		{name: "garbage", payload: "!!!", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := decodePhoto(tt.payload)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, want, data)
			mime, ok := sniffPhoto(data)
			assert.True(t, ok)
			assert.Equal(t, "image/png", mime)
		})
	}
}

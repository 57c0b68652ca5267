// internal/assembly/models.go
package assembly

import (
	"fmt"

	"report-deck/internal/formatter"
	"report-deck/internal/models"
	"report-deck/internal/placeholder"
)

// Branch names the assembly path a run took.
type Branch string

const (
	BranchTemplate Branch = "template"
	BranchFallback Branch = "fallback"
)

type Input struct {
	Report     *models.ReportInput `json:"report"`
	OutputPath string              `json:"outputPath"`
	RunID      string              `json:"runId,omitempty"`
}

type Output struct {
	OutputPath     string   `json:"outputPath"`
	Branch         Branch   `json:"branch"`
	SlideCount     int      `json:"slideCount"`
	PhotosEmbedded int      `json:"photosEmbedded"`
	PhotosSkipped  int      `json:"photosSkipped"`
	MissingAssets  []string `json:"missingAssets,omitempty"`
	RunID          string   `json:"runId,omitempty"`
}

// DisplayValues is every string the deck shows, derived once per run. All
// payload text is sanitized here.
type DisplayValues struct {
	Advertiser   string
	Station      string
	Line         string
	Subtitle     string
	ManagerName  string
	ManagerEmail string
	DisplayDays  int

	DateDotted string
	DateDashed string

	DailyFlow        float64
	TotalExposure    float64
	DailyFlowCompact string
	TotalCompact     string
	DailyFlowFull    string
	TotalFull        string

	// Bands keeps input order; Ranked is sorted by exposure.
	Bands  []models.TimeBandExposure
	Ranked formatter.Ranking

	Photos []string
}

func DeriveDisplayValues(in *models.ReportInput) *DisplayValues {
	date := formatter.SanitizeText(in.DateStr)
	bands := make([]models.TimeBandExposure, len(in.Exposure.ByTimeBand))
	for i, b := range in.Exposure.ByTimeBand {
		bands[i] = models.TimeBandExposure{Band: formatter.SanitizeText(b.Band), Exposure: b.Exposure}
	}

	return &DisplayValues{
		Advertiser:   formatter.SanitizeText(in.AdvertiserName),
		Station:      formatter.SanitizeText(in.Station),
		Line:         formatter.SanitizeText(in.Line),
		Subtitle:     formatter.SanitizeText(in.Subtitle),
		ManagerName:  formatter.SanitizeText(in.CampaignManagerName),
		ManagerEmail: formatter.SanitizeText(in.CampaignManagerEmail),
		DisplayDays:  in.DisplayDays,

		DateDotted: formatter.FormatDate(date),
		DateDashed: formatter.FormatDateDashed(date),

		DailyFlow:        in.Exposure.DailyFlow,
		TotalExposure:    in.Exposure.TotalExposure,
		DailyFlowCompact: formatter.Compact(in.Exposure.DailyFlow),
		TotalCompact:     formatter.Compact(in.Exposure.TotalExposure),
		DailyFlowFull:    formatter.Full(in.Exposure.DailyFlow),
		TotalFull:        formatter.Full(in.Exposure.TotalExposure),

		Bands:  bands,
		Ranked: formatter.RankTimeBands(bands),

		Photos: in.ImageBase64s,
	}
}

// LineStation is "{line} {station}" as shown on slides.
func (v *DisplayValues) LineStation() string {
	return v.Line + " " + v.Station
}

func (v *DisplayValues) Days() string {
	return fmt.Sprintf("%d일", v.DisplayDays)
}

// PlaceholderMap is the token table for template decks.
func (v *DisplayValues) PlaceholderMap() placeholder.Map {
	peak := "-"
	if p := v.Ranked.Peak(); p != nil {
		peak = p.Band
	}
	return placeholder.Map{
		{Token: "{광고주명}", Value: v.Advertiser},
		{Token: "{년.월.일}", Value: v.DateDotted},
		{Token: "{캠페인 담당자 이름}", Value: v.ManagerName},
		{Token: "{캠페인 담당자 이메일}", Value: v.ManagerEmail},
		{Token: "{역/호선}", Value: v.LineStation()},
		{Token: "{역사명}", Value: v.Station},
		{Token: "{역명}", Value: v.Station},
		{Token: "{n호선}", Value: v.Line},
		{Token: "{5호선}", Value: v.Line},
		{Token: "{여의도역}", Value: v.Station},
		{Token: "{일평균 유동인구}", Value: v.DailyFlowCompact},
		{Token: "{게재 기간}", Value: v.Days()},
		{Token: "{예상 총 노출량}", Value: v.TotalCompact},
		{Token: "{총 노출량}", Value: v.TotalCompact},
		{Token: "{부제}", Value: v.Subtitle},
		{Token: "{피크 시간대}", Value: peak},
	}
}

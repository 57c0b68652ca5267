// internal/models/report.go
package models

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	apperrors "report-deck/internal/common/errors"
	"report-deck/internal/common/validation"
)

// ReportInput is the fully-populated report payload. Every field has a zero
// default: missing or null JSON values leave it empty, zero or nil.
type ReportInput struct {
	AdvertiserName       string   `json:"advertiserName"`
	Station              string   `json:"station"`
	Line                 string   `json:"line"`
	DisplayDays          int      `json:"displayDays"`
	Exposure             Exposure `json:"exposure"`
	ImageBase64s         []string `json:"imageBase64s"`
	Subtitle             string   `json:"subtitle"`
	DateStr              string   `json:"dateStr"` // yyyyMMdd, at most 8 characters
	CampaignManagerName  string   `json:"campaignManagerName"`
	CampaignManagerEmail string   `json:"campaignManagerEmail"`
}

// Exposure holds the estimated exposure figures of a campaign.
type Exposure struct {
	TotalExposure float64            `json:"totalExposure"`
	DailyFlow     float64            `json:"dailyFlow"`
	ByTimeBand    []TimeBandExposure `json:"byTimeBand"`
}

// TimeBandExposure is the exposure attributed to one labelled time band
// such as "08~10". Labels are not unique and arrive in no particular order.
type TimeBandExposure struct {
	Band     string  `json:"band"`
	Exposure float64 `json:"exposure"`
}

// numericField accepts a number, a numeric string or null.
const numericField = `{"type": ["number", "string", "null"], "pattern": "^\\s*[-+]?([0-9]+(\\.[0-9]*)?|\\.[0-9]+)([eE][-+]?[0-9]+)?\\s*$"}`

// ReportInputSchema accepts null for every field and ignores unknown keys.
// Numeric fields also take numeric strings.
const ReportInputSchema = `{
  "type": "object",
  "properties": {
    "advertiserName": {"type": ["string", "null"]},
    "station": {"type": ["string", "null"]},
    "line": {"type": ["string", "null"]},
    "displayDays": ` + numericField + `,
    "subtitle": {"type": ["string", "null"]},
    "dateStr": {"type": ["string", "null"]},
    "campaignManagerName": {"type": ["string", "null"]},
    "campaignManagerEmail": {"type": ["string", "null"]},
    "imageBase64s": {
      "type": ["array", "null"],
      "items": {"type": "string"}
    },
    "exposure": {
      "type": ["object", "null"],
      "properties": {
        "totalExposure": ` + numericField + `,
        "dailyFlow": ` + numericField + `,
        "byTimeBand": {
          "type": ["array", "null"],
          "items": {
            "type": "object",
            "properties": {
              "band": {"type": ["string", "null"]},
              "exposure": ` + numericField + `
            }
          }
        }
      }
    }
  }
}`

// reportWire mirrors the JSON document; displayDays may carry a fraction.
type reportWire struct {
	AdvertiserName       string        `json:"advertiserName"`
	Station              string        `json:"station"`
	Line                 string        `json:"line"`
	DisplayDays          number        `json:"displayDays"`
	Exposure             *exposureWire `json:"exposure"`
	ImageBase64s         []string      `json:"imageBase64s"`
	Subtitle             string        `json:"subtitle"`
	DateStr              string        `json:"dateStr"`
	CampaignManagerName  string        `json:"campaignManagerName"`
	CampaignManagerEmail string        `json:"campaignManagerEmail"`
}

type exposureWire struct {
	TotalExposure number         `json:"totalExposure"`
	DailyFlow     number         `json:"dailyFlow"`
	ByTimeBand    []timeBandWire `json:"byTimeBand"`
}

type timeBandWire struct {
	Band     string `json:"band"`
	Exposure number `json:"exposure"`
}

// number decodes a JSON number or a numeric string; null leaves it zero.
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", s)
		}
		*n = number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = number(f)
	return nil
}

// ParseReportInput reads the complete document from r, validates it against
// ReportInputSchema and returns the normalized payload.
func ParseReportInput(r io.Reader) (*ReportInput, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.NewInputParseError("read input", err)
	}
	if strings.TrimSpace(string(raw)) == "" {
		return nil, apperrors.NewInputParseError("empty input document", nil)
	}

	result, err := validation.ValidateDocument(ReportInputSchema, raw)
	if err != nil {
		return nil, apperrors.NewInputParseError("malformed JSON", err)
	}
	if !result.Valid {
		return nil, apperrors.NewInputParseError(
			fmt.Sprintf("schema violations: %s", strings.Join(result.GetErrorMessages(), "; ")), nil)
	}

	var wire reportWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, apperrors.NewInputParseError("decode JSON", err)
	}

	return wire.normalize(), nil
}

func (w *reportWire) normalize() *ReportInput {
	in := &ReportInput{
		AdvertiserName:       w.AdvertiserName,
		Station:              w.Station,
		Line:                 w.Line,
		DisplayDays:          int(w.DisplayDays),
		ImageBase64s:         w.ImageBase64s,
		Subtitle:             w.Subtitle,
		DateStr:              truncateRunes(w.DateStr, 8),
		CampaignManagerName:  w.CampaignManagerName,
		CampaignManagerEmail: w.CampaignManagerEmail,
	}
	in.Exposure.ByTimeBand = []TimeBandExposure{}
	if w.Exposure != nil {
		in.Exposure.TotalExposure = float64(w.Exposure.TotalExposure)
		in.Exposure.DailyFlow = float64(w.Exposure.DailyFlow)
		for _, b := range w.Exposure.ByTimeBand {
			in.Exposure.ByTimeBand = append(in.Exposure.ByTimeBand, TimeBandExposure{
				Band:     b.Band,
				Exposure: float64(b.Exposure),
			})
		}
	}
	if in.ImageBase64s == nil {
		in.ImageBase64s = []string{}
	}
	return in
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

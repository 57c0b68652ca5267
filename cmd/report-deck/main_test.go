package main

import (
	"bytes"
	"strings"
	"testing"

	"report-deck/internal/common/config"
	apperrors "report-deck/internal/common/errors"
	"report-deck/internal/deck"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOutput = "/report.pptx"

func isolateTemplates(t *testing.T) {
	t.Setenv(config.TemplatesDirEnv, "")
	t.Setenv("TEMPLATES_TEMP_DIR", "/tmp/report-deck")
	t.Setenv("METRICS_TEXTFILE_PATH", "")
}

func TestRun_ExitCodes(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		stdin      string
		wantExit   int
		wantFile   bool
		wantStderr string
	}{
		{
			name:       "missing output argument",
			args:       nil,
			stdin:      `{}`,
			wantExit:   apperrors.ExitUsage,
			wantStderr: usageLine,
		},
		{
			name:       "too many arguments",
			args:       []string{"/a.pptx", "/b.pptx"},
			stdin:      `{}`,
			wantExit:   apperrors.ExitUsage,
			wantStderr: usageLine,
		},
		{
			name:       "unknown flag",
			args:       []string{"--bogus", testOutput},
			stdin:      `{}`,
			wantExit:   apperrors.ExitUsage,
			wantStderr: usageLine,
		},
		{
			name:       "unknown log level",
			args:       []string{"--log-level", "verbose", testOutput},
			stdin:      `{}`,
			wantExit:   apperrors.ExitUsage,
			wantStderr: "logging.level",
		},
		{
			name:       "unknown log format",
			args:       []string{"--log-format", "logfmt", testOutput},
			stdin:      `{}`,
			wantExit:   apperrors.ExitUsage,
			wantStderr: "logging.format",
		},
		{
			name:       "malformed json",
			args:       []string{testOutput},
			stdin:      `{"advertiserName": `,
			wantExit:   apperrors.ExitInputParse,
			wantStderr: string(apperrors.ErrCodeInputParse),
		},
		{
			name:       "wrong field type",
			args:       []string{testOutput},
			stdin:      `{"displayDays": "many"}`,
			wantExit:   apperrors.ExitInputParse,
			wantStderr: string(apperrors.ErrCodeInputParse),
		},
		{
			name:     "empty object",
			args:     []string{testOutput},
			stdin:    `{}`,
			wantExit: apperrors.ExitOK,
			wantFile: true,
		},
		{
			name:     "flags before the output path",
			args:     []string{"--log-level", "debug", "--log-format", "json", testOutput},
			stdin:    `{"advertiserName": null, "extra": 1}`,
			wantExit: apperrors.ExitOK,
			wantFile: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateTemplates(t)
			fs := afero.NewMemMapFs()
			var stderr bytes.Buffer

			code := run(tt.args, strings.NewReader(tt.stdin), &stderr, fs)

			assert.Equal(t, tt.wantExit, code, stderr.String())
			if tt.wantStderr != "" {
				assert.Contains(t, stderr.String(), tt.wantStderr)
			}
			exists, err := afero.Exists(fs, testOutput)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFile, exists)
		})
	}
}

func TestRun_WritesFallbackDeck(t *testing.T) {
	isolateTemplates(t)
	fs := afero.NewMemMapFs()
	var stderr bytes.Buffer
	stdin := `{
		"advertiserName": "에이비씨",
		"station": "여의도역",
		"line": "5호선",
		"displayDays": 14,
		"dateStr": "20240315",
		"exposure": {"totalExposure": 25000, "dailyFlow": 45000, "byTimeBand": [{"band": "08-10", "exposure": 5000}]}
	}`

	code := run([]string{testOutput}, strings.NewReader(stdin), &stderr, fs)

	require.Equal(t, apperrors.ExitOK, code, stderr.String())
	d, err := deck.Open(fs, testOutput)
	require.NoError(t, err)
	assert.Len(t, d.Slides(), 4)

	core, ok := d.Part("docProps/core.xml")
	require.True(t, ok)
	assert.Contains(t, string(core), "게재 현황 보고서 - 에이비씨")
}

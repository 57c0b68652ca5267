// cmd/report-deck/main.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"report-deck/internal/assembly"
	"report-deck/internal/common/config"
	apperrors "report-deck/internal/common/errors"
	"report-deck/internal/common/logger"
	"report-deck/internal/common/metrics"
	"report-deck/internal/models"
	"report-deck/internal/templates"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

const usageLine = "Usage: report-deck <output.pptx>"

type options struct {
	configPath string
	logLevel   string
	logFormat  string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stderr, afero.NewOsFs()))
}

// run executes one command line and returns the process exit status. Nothing
// is written to stdout.
func run(args []string, stdin io.Reader, stderr io.Writer, fs afero.Fs) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand(stdin, stderr, fs)
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stderr)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.ErrCodeUsage {
			fmt.Fprintln(stderr, usageLine)
		}
		fmt.Fprintf(stderr, "report-deck: %v\n", err)
	}
	return apperrors.ExitCode(err)
}

func newRootCommand(stdin io.Reader, stderr io.Writer, fs afero.Fs) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "report-deck [flags] <output.pptx>",
		Short: "Build a campaign report deck from a JSON payload on stdin",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 || args[0] == "" {
				return apperrors.NewUsageError(fmt.Sprintf("expected exactly one output path, got %d arguments", len(args)))
			}
			return nil
		},
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return generate(cmd.Context(), opts, args[0], stdin, stderr, fs)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return apperrors.NewUsageError(err.Error())
	})

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "path to a config file (default ./configs/config.yaml or ./config.yaml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format: console or json")
	return cmd
}

func generate(ctx context.Context, opts *options, outputPath string, stdin io.Reader, stderr io.Writer, fs afero.Fs) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return apperrors.NewConfigLoadError(err)
	}
	level, format := cfg.Logging.Level, cfg.Logging.Format
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	if opts.logFormat != "" {
		format = opts.logFormat
	}
	if err := config.ValidateLogging(level, format); err != nil {
		return apperrors.NewUsageError(err.Error())
	}

	log := logger.NewWriterLogger(level, format, stderr)
	defer log.Sync()

	runID := uuid.NewString()
	log.Info("starting report deck run", map[string]interface{}{
		"runId":      runID,
		"outputPath": outputPath,
		"version":    cfg.App.Version,
	})

	report, err := models.ParseReportInput(stdin)
	if err != nil {
		log.Error("input rejected", map[string]interface{}{
			"runId":     runID,
			"errorCode": apperrors.CodeOf(err),
			"error":     err.Error(),
		})
		return err
	}

	locator := templates.NewLocator(fs, log, cfg.Templates.DeckFile, templates.DefaultSources(cfg.Templates)...)
	handler := assembly.NewHandler(assembly.LoadConfig(cfg), fs, locator, log)

	_, err = handler.Execute(ctx, &assembly.Input{
		Report:     report,
		OutputPath: outputPath,
		RunID:      runID,
	})

	if mErr := metrics.WriteTextfile(cfg.Metrics.TextfilePath); mErr != nil {
		log.Warn("failed to write metrics textfile", map[string]interface{}{
			"path":  cfg.Metrics.TextfilePath,
			"error": mErr.Error(),
		})
	}
	return err
}

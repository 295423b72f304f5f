package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brightline-research/orggeo/internal/alerts"
	"github.com/brightline-research/orggeo/internal/csvio"
	"github.com/brightline-research/orggeo/pkg/fema"
	"github.com/brightline-research/orggeo/pkg/nws"
)

var alertsOutput string

var alertsCmd = &cobra.Command{
	Use:   "alerts <input>",
	Short: "Add weather alerts and FEMA disasters to a geocoded list",
	Long: `Matches each organization's NWS region against the nationwide active
alert feed and each organization's state against recent FEMA disaster
declarations, then writes a combined risk assessment per row.

The input is a file produced by "orggeo geocode": the CWA_Region and
Primary Address State/Province columns drive the matching.

Examples:
  # Enrich a geocoded file in place alongside the input
  orggeo alerts organizations_geocoded.csv

  # Explicit output path
  orggeo alerts organizations_geocoded.csv -o with_alerts.csv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("alerts"); err != nil {
			return err
		}

		input := args[0]
		tbl, err := csvio.ReadTable(input, "")
		if err != nil {
			return eris.Wrap(err, "alerts: read input")
		}
		zap.L().Info("alerts: loaded input",
			zap.String("path", input),
			zap.Int("rows", tbl.Len()),
		)

		// The nationwide active-alert feed runs to tens of megabytes;
		// give it more room than the per-point lookups need.
		weatherTimeout := cfg.Weather.Timeout()
		if weatherTimeout < 30*time.Second {
			weatherTimeout = 30 * time.Second
		}
		weather := nws.NewClient(
			nws.WithUserAgent(cfg.Weather.UserAgent),
			nws.WithHTTPClient(&http.Client{Timeout: weatherTimeout}),
		)

		disasters := fema.NewClient(
			fema.WithTop(cfg.FEMA.MaxDeclarations),
			fema.WithHTTPClient(&http.Client{Timeout: cfg.FEMA.Timeout()}),
		)

		report, err := alerts.New(weather, disasters).Run(ctx, tbl)
		if err != nil {
			return err
		}

		outPath := alertsOutput
		if outPath == "" {
			outPath = csvio.DefaultOutputPath(input, "_with_weather_alerts_and_fema")
		}
		if err := csvio.WriteCSV(outPath, tbl); err != nil {
			return eris.Wrap(err, "alerts: write output")
		}
		zap.L().Info("alerts: wrote output",
			zap.String("path", outPath),
			zap.Int("rows", tbl.Len()),
		)

		fmt.Print(report.Summary())

		return nil
	},
}

func init() {
	alertsCmd.Flags().StringVarP(&alertsOutput, "output", "o", "", "output CSV path (default: input name + _with_weather_alerts_and_fema.csv)")
	rootCmd.AddCommand(alertsCmd)
}

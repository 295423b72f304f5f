package main

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brightline-research/orggeo/internal/csvio"
	"github.com/brightline-research/orggeo/internal/pipeline"
	"github.com/brightline-research/orggeo/pkg/geocode"
	"github.com/brightline-research/orggeo/pkg/nws"
)

var (
	geocodeOutput   string
	geocodeDelay    float64
	geocodeEncoding string
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode <input>",
	Short: "Geocode an organization address list",
	Long: `Geocodes each organization address through a cascade of free and paid
providers, records coordinates, geocoding status and method, and tags each
success with its NWS County Warning Area.

Rows that already carry coordinates are skipped, so the command can be
re-run on its own output to fill gaps after interruptions or provider
outages.

Examples:
  # Geocode a CSV export, writing <input>_geocoded.csv alongside it
  orggeo geocode organizations.csv

  # Excel input, explicit output path
  orggeo geocode organizations.xlsx -o geocoded.csv

  # Slower pacing for strict provider rate limits
  orggeo geocode organizations.csv --delay 2.5`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("geocode"); err != nil {
			return err
		}

		delay := cfg.Geocode.DelayInterval()
		if geocodeDelay >= 0 {
			delay = time.Duration(geocodeDelay * float64(time.Second))
		}
		if delay < 500*time.Millisecond && !confirmLowDelay(delay) {
			fmt.Println("Aborted.")
			return nil
		}

		input := args[0]
		tbl, err := csvio.ReadTable(input, geocodeEncoding)
		if err != nil {
			return eris.Wrap(err, "geocode: read input")
		}
		if err := tbl.RequireColumns(csvio.RequiredColumns...); err != nil {
			return eris.Wrap(err, "geocode: validate input")
		}
		zap.L().Info("geocode: loaded input",
			zap.String("path", input),
			zap.Int("rows", tbl.Len()),
		)

		opts := []geocode.Option{
			geocode.WithGoogleAPIKey(cfg.Google.APIKey),
			geocode.WithDelay(delay),
			geocode.WithTimeout(cfg.Geocode.Timeout()),
			geocode.WithUserAgent(cfg.Geocode.UserAgent),
		}
		if cfg.Geocode.PatternsFile != "" {
			patterns, patErr := geocode.LoadPatterns(cfg.Geocode.PatternsFile)
			if patErr != nil {
				return eris.Wrap(patErr, "geocode: load simplification patterns")
			}
			opts = append(opts, geocode.WithSimplifier(geocode.NewSimplifier(patterns...)))
		}
		cascade := geocode.New(opts...)

		if cascade.PaidTierConfigured() {
			zap.L().Info("geocode: Google Maps API key found, paid tier enabled as final fallback")
		} else {
			zap.L().Info("geocode: no Google Maps API key, free providers only")
		}

		weather := nws.NewClient(
			nws.WithUserAgent(cfg.Weather.UserAgent),
			nws.WithHTTPClient(&http.Client{Timeout: cfg.Weather.Timeout()}),
		)

		pipe := pipeline.New(cascade, pipeline.NewRegionEnricher(weather))
		stats, runErr := pipe.Run(ctx, tbl)

		// Write whatever was processed, interrupt included, so a rerun on
		// the output file resumes where this one stopped.
		outPath := geocodeOutput
		if outPath == "" {
			outPath = csvio.DefaultOutputPath(input, "_geocoded")
		}
		if err := csvio.WriteCSV(outPath, tbl); err != nil {
			return eris.Wrap(err, "geocode: write output")
		}
		zap.L().Info("geocode: wrote output",
			zap.String("path", outPath),
			zap.Int("rows", tbl.Len()),
		)

		fmt.Print(stats.Summary())

		return runErr
	},
}

func init() {
	geocodeCmd.Flags().StringVarP(&geocodeOutput, "output", "o", "", "output CSV path (default: input name + _geocoded.csv)")
	geocodeCmd.Flags().Float64VarP(&geocodeDelay, "delay", "d", -1, "seconds between calls to the same provider (default: geocode.delay from config)")
	geocodeCmd.Flags().StringVarP(&geocodeEncoding, "encoding", "e", "", "input encoding label, e.g. utf-8, windows-1252, iso-8859-1 (default: auto-detect)")
	rootCmd.AddCommand(geocodeCmd)
}

// confirmLowDelay asks before running with sub-500ms pacing, which can
// violate the free providers' usage policies.
func confirmLowDelay(delay time.Duration) bool {
	fmt.Fprintf(os.Stderr, "Warning: a %.2fs delay between requests may violate provider usage policies.\n", delay.Seconds())
	fmt.Fprint(os.Stderr, "Continue anyway? (y/N): ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line), "y")
}

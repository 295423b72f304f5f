package main

import (
	"fmt"
	"net/http"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/brightline-research/orggeo/pkg/geocode"
)

var keycheckCmd = &cobra.Command{
	Use:   "keycheck",
	Short: "Verify the Google Maps API key",
	Long: `Reports whether a Google Maps API key is configured and performs one
live test geocode against the Google Geocoding API.

Examples:
  GOOGLE_MAPS_API_KEY=... orggeo keycheck`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		fmt.Println("=== GOOGLE MAPS API KEY CHECK ===")

		if err := cfg.Validate("keycheck"); err != nil {
			fmt.Println("API key found: No")
			fmt.Println("Check:")
			fmt.Println("  1. Is GOOGLE_MAPS_API_KEY (or ORGGEO_GOOGLE_API_KEY) exported?")
			fmt.Println("  2. Is google.api_key set in config.yaml?")
			return err
		}

		key := cfg.Google.APIKey
		fmt.Println("API key found: Yes")
		fmt.Printf("API key length: %d characters\n", len(key))
		fmt.Printf("API key starts with: %s...\n", firstN(key, 10))
		fmt.Printf("API key ends with: ...%s\n", lastN(key, 10))

		fmt.Println("\n=== TESTING API CONNECTION ===")

		provider := geocode.NewGoogle(
			&http.Client{Timeout: cfg.Geocode.Timeout()},
			geocode.NewPacer(0),
			key,
		)

		coord, err := provider.Resolve(ctx, "New York, NY")
		if err != nil {
			fmt.Println("API test failed:", err)
			fmt.Println("\nPossible issues:")
			fmt.Println("  1. API key has IP restrictions")
			fmt.Println("  2. Geocoding API not enabled for the project")
			fmt.Println("  3. Billing not set up")
			fmt.Println("  4. API key invalid")
			return eris.Wrap(err, "keycheck: test geocode")
		}
		if coord == nil {
			fmt.Println("API returned no results")
			return eris.New("keycheck: test geocode returned no results")
		}

		fmt.Println("API test successful!")
		fmt.Printf("Test coordinates: %.6f, %.6f\n", coord.Lat, coord.Lon)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keycheckCmd)
}

func firstN(s string, n int) string {
	if len(s) < n {
		n = len(s)
	}
	return s[:n]
}

func lastN(s string, n int) string {
	if len(s) < n {
		n = len(s)
	}
	return s[len(s)-n:]
}

package pipeline

import (
	"fmt"
	"sort"
	"strings"
)

// RunStats accumulates counters for one pipeline run. Counters are
// commutative across rows; Summary is read once after the run completes.
type RunStats struct {
	Total         int
	AlreadyHad    int
	NewlyGeocoded int
	Failed        int
	EmptyAddress  int

	// ByMethod counts every row carrying a winning method, whether
	// geocoded in this run or in an earlier one.
	ByMethod map[string]int

	// Lookup outcomes from this run only.
	RegionFound       int
	RegionOutside     int
	RegionUnavailable int

	// ByRegion is the histogram over the final table, pre-existing
	// region codes included.
	ByRegion map[string]int
}

// NewRunStats creates an empty stats collector.
func NewRunStats() *RunStats {
	return &RunStats{
		ByMethod: make(map[string]int),
		ByRegion: make(map[string]int),
	}
}

// CountMethod adds one row to the method breakdown. Empty and "Failed"
// markers are excluded.
func (s *RunStats) CountMethod(method string) {
	if method != "" && method != MethodFailed {
		s.ByMethod[method]++
	}
}

// CountLookup records one region-lookup outcome from this run.
func (s *RunStats) CountLookup(outcome RegionOutcome) {
	switch outcome {
	case RegionFound:
		s.RegionFound++
	case RegionOutside:
		s.RegionOutside++
	case RegionUnavailable:
		s.RegionUnavailable++
	case RegionNone:
	}
}

// CountRegion adds a resolved region code to the histogram.
func (s *RunStats) CountRegion(code string) {
	if code != "" {
		s.ByRegion[code]++
	}
}

// WithRegion returns how many rows ended the run with a region code.
func (s *RunStats) WithRegion() int {
	n := 0
	for _, count := range s.ByRegion {
		n += count
	}
	return n
}

// TopRegions returns up to n region codes ordered by row count, ties
// broken alphabetically.
func (s *RunStats) TopRegions(n int) []string {
	codes := make([]string, 0, len(s.ByRegion))
	for code := range s.ByRegion {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		if s.ByRegion[codes[i]] != s.ByRegion[codes[j]] {
			return s.ByRegion[codes[i]] > s.ByRegion[codes[j]]
		}
		return codes[i] < codes[j]
	})
	if len(codes) > n {
		codes = codes[:n]
	}
	return codes
}

// Summary renders the end-of-run report.
func (s *RunStats) Summary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Geocoding Summary:\n")
	fmt.Fprintf(&b, "Total addresses processed: %d\n", s.Total)
	fmt.Fprintf(&b, "Already had geocoding data: %d\n", s.AlreadyHad)
	fmt.Fprintf(&b, "Newly geocoded in this run: %d\n", s.NewlyGeocoded)
	fmt.Fprintf(&b, "Failed to geocode: %d\n", s.Failed)
	fmt.Fprintf(&b, "Empty addresses: %d\n", s.EmptyAddress)
	if s.Total > 0 {
		rate := float64(s.NewlyGeocoded+s.AlreadyHad) / float64(s.Total) * 100
		fmt.Fprintf(&b, "Overall success rate: %.1f%%\n", rate)
	}

	if len(s.ByMethod) > 0 {
		fmt.Fprintf(&b, "\nGeocoding method breakdown:\n")
		methods := make([]string, 0, len(s.ByMethod))
		for m := range s.ByMethod {
			methods = append(methods, m)
		}
		sort.Strings(methods)
		for _, m := range methods {
			fmt.Fprintf(&b, "  %s: %d addresses\n", m, s.ByMethod[m])
		}
	}

	withRegion := s.WithRegion()
	fmt.Fprintf(&b, "\nCWA Region Summary:\n")
	fmt.Fprintf(&b, "  Addresses with CWA region: %d\n", withRegion)
	fmt.Fprintf(&b, "  Addresses without CWA region: %d\n", s.Total-withRegion)

	if withRegion > 0 {
		fmt.Fprintf(&b, "\nTop CWA regions:\n")
		for _, code := range s.TopRegions(5) {
			fmt.Fprintf(&b, "  %s: %d addresses\n", code, s.ByRegion[code])
		}
	}

	return b.String()
}

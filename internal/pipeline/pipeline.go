// Package pipeline drives per-record geocoding and region enrichment over
// an organization address table: incremental gate, fallback cascade,
// CWA region lookup, and run statistics.
package pipeline

import (
	"context"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/brightline-research/orggeo/internal/csvio"
	"github.com/brightline-research/orggeo/pkg/geocode"
)

// Geocoding_Status values written to the table.
const (
	StatusSuccess      = "Success"
	StatusFailed       = "Failed"
	StatusEmptyAddress = "Empty Address"
)

// MethodFailed marks rows where every strategy missed.
const MethodFailed = "Failed"

// Geocoder resolves one address. Satisfied by *geocode.Cascade.
type Geocoder interface {
	Geocode(ctx context.Context, addr geocode.AddressInput) (*geocode.Result, error)
}

// RegionLookup resolves a coordinate to a CWA region. Satisfied by
// *RegionEnricher.
type RegionLookup interface {
	Lookup(ctx context.Context, lat, lon float64) (string, RegionOutcome)
}

// Pipeline enriches an organization table row by row, in input order.
type Pipeline struct {
	geocoder Geocoder
	regions  RegionLookup
	progress bool
}

// New creates a Pipeline. A progress bar is shown when stderr is a
// terminal.
func New(geocoder Geocoder, regions RegionLookup) *Pipeline {
	return &Pipeline{
		geocoder: geocoder,
		regions:  regions,
		progress: isatty.IsTerminal(os.Stderr.Fd()),
	}
}

// Run processes every row of the table in order, mutating it in place,
// and returns the run's statistics. An interrupt stops processing at a
// record boundary; rows finished so far keep their values, so writing the
// table and rerunning resumes through the incremental gate. Per-row
// provider or enrichment failures never abort the run.
func (p *Pipeline) Run(ctx context.Context, t *csvio.Table) (*RunStats, error) {
	log := zap.L().With(zap.String("run_id", uuid.NewString()))

	t.EnsureColumns(csvio.EnrichmentColumns...)

	stats := NewRunStats()
	stats.Total = t.Len()

	var bar *progressbar.ProgressBar
	if p.progress {
		bar = progressbar.NewOptions(t.Len(),
			progressbar.OptionSetDescription("Geocoding"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	log.Info("pipeline: starting run", zap.Int("rows", t.Len()))

	for row := 0; row < t.Len(); row++ {
		if ctx.Err() != nil {
			log.Warn("pipeline: interrupted at record boundary", zap.Int("row", row))
			return stats, eris.Wrap(ctx.Err(), "pipeline: interrupted")
		}

		p.processRow(ctx, log, t, row, stats)

		if bar != nil {
			_ = bar.Add(1)
		}
	}

	log.Info("pipeline: run complete",
		zap.Int("newly_geocoded", stats.NewlyGeocoded),
		zap.Int("already_had", stats.AlreadyHad),
		zap.Int("failed", stats.Failed),
		zap.Int("empty_address", stats.EmptyAddress),
	)
	return stats, nil
}

func (p *Pipeline) processRow(ctx context.Context, log *zap.Logger, t *csvio.Table, row int, stats *RunStats) {
	org := t.Get(row, csvio.ColOrgName)

	if hasGeocodeData(t, row) {
		stats.AlreadyHad++
		stats.CountMethod(t.Get(row, csvio.ColMethod))

		if region := regionValue(t, row); region != "" {
			stats.CountRegion(region)
			return
		}

		// The row was geocoded in an earlier run but has no region yet;
		// retry only the lookup.
		if t.Get(row, csvio.ColStatus) != StatusSuccess {
			return
		}
		lat, lon, ok := existingCoordinates(t, row)
		if !ok {
			log.Warn("pipeline: unparseable stored coordinates",
				zap.Int("row", row),
				zap.String("organization", org),
			)
			return
		}
		p.enrichRegion(ctx, t, row, lat, lon, stats)
		return
	}

	addr := geocode.AddressInput{
		Street:  t.Get(row, csvio.ColStreet),
		City:    t.Get(row, csvio.ColCity),
		State:   t.Get(row, csvio.ColState),
		ZipCode: t.Get(row, csvio.ColZip),
	}
	if addr.OneLine() == "" {
		t.Set(row, csvio.ColStatus, StatusEmptyAddress)
		stats.EmptyAddress++
		log.Debug("pipeline: empty address",
			zap.Int("row", row),
			zap.String("organization", org),
		)
		return
	}

	result, err := p.geocoder.Geocode(ctx, addr)
	if err != nil {
		// Cascade errors mean interruption; leave the row untouched so a
		// rerun retries it.
		log.Warn("pipeline: geocode aborted",
			zap.Int("row", row),
			zap.String("organization", org),
			zap.Error(err),
		)
		return
	}

	if !result.Matched {
		t.Set(row, csvio.ColStatus, StatusFailed)
		t.Set(row, csvio.ColMethod, MethodFailed)
		stats.Failed++
		log.Info("pipeline: all geocoding strategies failed",
			zap.Int("row", row),
			zap.String("organization", org),
		)
		return
	}

	t.Set(row, csvio.ColLatitude, formatCoordinate(result.Latitude))
	t.Set(row, csvio.ColLongitude, formatCoordinate(result.Longitude))
	t.Set(row, csvio.ColStatus, StatusSuccess)
	t.Set(row, csvio.ColMethod, result.Method)
	stats.NewlyGeocoded++
	stats.CountMethod(result.Method)
	log.Info("pipeline: geocoded",
		zap.Int("row", row),
		zap.String("organization", org),
		zap.String("method", result.Method),
	)

	p.enrichRegion(ctx, t, row, result.Latitude, result.Longitude, stats)
}

// enrichRegion looks up and stores the row's CWA region. Only successful
// geocodes reach here.
func (p *Pipeline) enrichRegion(ctx context.Context, t *csvio.Table, row int, lat, lon float64, stats *RunStats) {
	code, outcome := p.regions.Lookup(ctx, lat, lon)
	stats.CountLookup(outcome)
	if outcome == RegionFound {
		t.Set(row, csvio.ColRegion, code)
		stats.CountRegion(code)
	}
}

func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/brightline-research/orggeo/pkg/geocode"
	"github.com/brightline-research/orggeo/pkg/nws"
)

// --- Geocoder Mock ---

type mockGeocoder struct {
	mock.Mock
}

func (m *mockGeocoder) Geocode(ctx context.Context, addr geocode.AddressInput) (*geocode.Result, error) {
	args := m.Called(ctx, addr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*geocode.Result), args.Error(1)
}

// --- RegionLookup Mock ---

type mockRegions struct {
	mock.Mock
}

func (m *mockRegions) Lookup(ctx context.Context, lat, lon float64) (string, RegionOutcome) {
	args := m.Called(ctx, lat, lon)
	return args.String(0), args.Get(1).(RegionOutcome)
}

// --- NWS Client Mock ---

type mockNWSClient struct {
	mock.Mock
}

func (m *mockNWSClient) CWA(ctx context.Context, lat, lon float64) (string, error) {
	args := m.Called(ctx, lat, lon)
	return args.String(0), args.Error(1)
}

func (m *mockNWSClient) ActiveAlerts(ctx context.Context) ([]nws.Alert, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]nws.Alert), args.Error(1)
}

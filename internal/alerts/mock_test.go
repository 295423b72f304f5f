package alerts

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/brightline-research/orggeo/pkg/fema"
	"github.com/brightline-research/orggeo/pkg/nws"
)

// --- NWS Client Mock ---

type mockWeather struct {
	mock.Mock
}

func (m *mockWeather) CWA(ctx context.Context, lat, lon float64) (string, error) {
	args := m.Called(ctx, lat, lon)
	return args.String(0), args.Error(1)
}

func (m *mockWeather) ActiveAlerts(ctx context.Context) ([]nws.Alert, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]nws.Alert), args.Error(1)
}

// --- FEMA Client Mock ---

type mockFEMA struct {
	mock.Mock
}

func (m *mockFEMA) DeclarationsByState(ctx context.Context, state string) ([]fema.Declaration, error) {
	args := m.Called(ctx, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]fema.Declaration), args.Error(1)
}

package tariff

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-cs/internal/domain"
	"github.com/seu-repo/ocpp-cs/internal/mocks"
)

func newTestResolver(t *testing.T, segments []domain.TariffSegment, samples []domain.MeterSample) *Resolver {
	t.Helper()
	repo := &mocks.MockTariffRepository{
		FindAllFunc: func(ctx context.Context) ([]domain.TariffSegment, error) { return segments, nil },
	}
	meterSamples := &mocks.MockMeterSampleRepository{
		FindByTransactionFunc: func(ctx context.Context, transactionID int64) ([]domain.MeterSample, error) { return samples, nil },
	}
	logger, _ := zap.NewDevelopment()
	r, err := New(repo, meterSamples, "Asia/Taipei", DefaultPriceNT, logger)
	if err != nil {
		t.Fatalf("unexpected error building resolver: %v", err)
	}
	return r
}

func mustParse(t *testing.T, layout, value string) time.Time {
	t.Helper()
	loc, _ := time.LoadLocation("Asia/Taipei")
	ts, err := time.ParseInLocation(layout, value, loc)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return ts
}

// Cross-midnight seed scenario: a segment filed under 2026-07-30 running
// 22:00-06:00 must still cover 2026-07-31 01:00 via the prior-date fallback.
func TestPriceAt_CrossMidnightSegmentFallsBackToPriorDate(t *testing.T) {
	segments := []domain.TariffSegment{
		{Date: "2026-07-30", Start: "22:00", End: "06:00", PriceNT: 8.0},
	}
	r := newTestResolver(t, segments, nil)

	price, err := r.PriceAt(mustParse(t, "2006-01-02 15:04", "2026-07-31 01:00"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 8.0 {
		t.Fatalf("expected cross-midnight price 8.0, got %v", price)
	}
}

func TestPriceAt_NoMatchFallsBackToDefault(t *testing.T) {
	r := newTestResolver(t, nil, nil)

	price, err := r.PriceAt(time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != DefaultPriceNT {
		t.Fatalf("expected default price %v, got %v", DefaultPriceNT, price)
	}
}

func TestSegmentedCost_ReplaysSamplesAcrossTwoSegments(t *testing.T) {
	segments := []domain.TariffSegment{
		{Date: "2026-07-31", Start: "00:00", End: "07:59", PriceNT: 4.0},
		{Date: "2026-07-31", Start: "08:00", End: "23:59", PriceNT: 6.0},
	}
	samples := []domain.MeterSample{
		{Timestamp: mustParse(t, "2006-01-02 15:04", "2026-07-31 07:00"), EnergyWh: 0},
		{Timestamp: mustParse(t, "2006-01-02 15:04", "2026-07-31 07:30"), EnergyWh: 1000},
		{Timestamp: mustParse(t, "2006-01-02 15:04", "2026-07-31 08:30"), EnergyWh: 3000},
	}
	r := newTestResolver(t, segments, samples)

	total, breakdown, err := r.SegmentedCost(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// First delta (1 kWh) attributed to the 4.0 segment, second delta
	// (2 kWh) attributed to the 6.0 segment: 1*4 + 2*6 = 16.0.
	if total != 16.0 {
		t.Fatalf("expected total cost 16.0, got %v", total)
	}
	if len(breakdown) != 2 {
		t.Fatalf("expected 2 segment buckets, got %d", len(breakdown))
	}
	if breakdown[0].PriceNT != 4.0 || breakdown[0].EnergyKWh != 1.0 {
		t.Fatalf("unexpected first bucket: %+v", breakdown[0])
	}
	if breakdown[1].PriceNT != 6.0 || breakdown[1].EnergyKWh != 2.0 {
		t.Fatalf("unexpected second bucket: %+v", breakdown[1])
	}
}

func TestSegmentedCost_IgnoresNonPositiveDeltas(t *testing.T) {
	samples := []domain.MeterSample{
		{Timestamp: mustParse(t, "2006-01-02 15:04", "2026-07-31 07:00"), EnergyWh: 1000},
		{Timestamp: mustParse(t, "2006-01-02 15:04", "2026-07-31 07:30"), EnergyWh: 900},
	}
	r := newTestResolver(t, nil, samples)

	total, breakdown, err := r.SegmentedCost(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 0 || len(breakdown) != 0 {
		t.Fatalf("expected no cost for a non-increasing register, got total=%v breakdown=%+v", total, breakdown)
	}
}

func TestSegmentedCost_FewerThanTwoSamplesIsZero(t *testing.T) {
	r := newTestResolver(t, nil, []domain.MeterSample{{EnergyWh: 500}})

	total, breakdown, err := r.SegmentedCost(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 0 || breakdown != nil {
		t.Fatalf("expected zero-value result for < 2 samples, got total=%v breakdown=%+v", total, breakdown)
	}
}

// Package tariff resolves the time-of-use price schedule used for both
// streaming and final prepaid billing.
package tariff

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-cs/internal/ports"
)

// DefaultPriceNT is used whenever no segment covers a given instant and
// no prior-date segment can be found either.
const DefaultPriceNT = 6.0

const dateLayout = "2006-01-02"

// window is a segment normalized to minutes-since-midnight for one
// calendar date, with start > end meaning the window wraps past midnight.
type window struct {
	start int
	end   int
	price float64
}

// Resolver implements ports.TariffResolver against a date-keyed
// time-of-use schedule, refreshed from the repository on demand.
type Resolver struct {
	repo         ports.TariffRepository
	meterSamples ports.MeterSampleRepository
	loc          *time.Location
	defaultPrice float64
	log          *zap.Logger

	mu     sync.RWMutex
	byDate map[string][]window
	loaded bool
}

// New builds a resolver for the given IANA timezone name (defaulting to
// Asia/Taipei, the community's home region) and default price.
func New(repo ports.TariffRepository, meterSamples ports.MeterSampleRepository, timezone string, defaultPrice float64, log *zap.Logger) (*Resolver, error) {
	if timezone == "" {
		timezone = "Asia/Taipei"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	if defaultPrice <= 0 {
		defaultPrice = DefaultPriceNT
	}
	return &Resolver{repo: repo, meterSamples: meterSamples, loc: loc, defaultPrice: defaultPrice, log: log}, nil
}

// Refresh reloads the schedule from storage; callers invoke it after an
// admin daily-pricing update so in-flight resolutions pick up the change
// without restarting the process.
func (r *Resolver) Refresh(ctx context.Context) error {
	segs, err := r.repo.FindAll(ctx)
	if err != nil {
		return err
	}
	byDate := make(map[string][]window)
	for _, s := range segs {
		if _, err := time.Parse(dateLayout, s.Date); err != nil {
			r.log.Warn("skipping tariff segment with invalid date", zap.String("date", s.Date), zap.Error(err))
			continue
		}
		start, err := parseHHMM(s.Start)
		if err != nil {
			r.log.Warn("skipping tariff segment with invalid start", zap.String("start", s.Start), zap.Error(err))
			continue
		}
		end, err := parseHHMM(s.End)
		if err != nil {
			r.log.Warn("skipping tariff segment with invalid end", zap.String("end", s.End), zap.Error(err))
			continue
		}
		byDate[s.Date] = append(byDate[s.Date], window{start: start, end: end, price: s.PriceNT})
	}

	r.mu.Lock()
	r.byDate = byDate
	r.loaded = true
	r.mu.Unlock()
	return nil
}

// parseHHMM normalizes "24:00" to the last minute of the day (23:59) so
// a midnight-ending segment is inclusive of the day's final minute. A
// segment with start==end covers the full day.
func parseHHMM(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, err
	}
	if h == 24 && m == 0 {
		return 23*60 + 59, nil
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("out of range time %q", s)
	}
	return h*60 + m, nil
}

func (r *Resolver) ensureLoaded(ctx context.Context) error {
	r.mu.RLock()
	loaded := r.loaded
	r.mu.RUnlock()
	if loaded {
		return nil
	}
	return r.Refresh(ctx)
}

// PriceAt resolves the NT$/kWh price in effect at t. Among overlapping
// segments filed under the same date the highest price wins (the
// conservative choice for a prepaid system). Absent a same-date match it
// repeats the lookup for the prior calendar date (handles cross-midnight
// segments filed under their starting date), then falls back to the
// configured default price.
func (r *Resolver) PriceAt(t time.Time) (float64, error) {
	if err := r.ensureLoaded(context.Background()); err != nil {
		return 0, err
	}

	local := t.In(r.loc)
	minute := local.Hour()*60 + local.Minute()
	date := local.Format(dateLayout)

	if price, ok := r.bestMatch(date, minute); ok {
		return price, nil
	}
	priorDate := local.AddDate(0, 0, -1).Format(dateLayout)
	if price, ok := r.bestMatch(priorDate, minute); ok {
		return price, nil
	}
	return r.defaultPrice, nil
}

func (r *Resolver) bestMatch(date string, minute int) (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var candidates []float64
	for _, w := range r.byDate[date] {
		if windowContains(w, minute) {
			candidates = append(candidates, w.price)
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(candidates)))
	return candidates[0], true
}

func windowContains(w window, minute int) bool {
	if w.start == w.end {
		return true
	}
	if w.start <= w.end {
		return minute >= w.start && minute <= w.end
	}
	// Cross-midnight segment, e.g. 22:00-06:00.
	return minute >= w.start || minute <= w.end
}

// segmentKey identifies one (date, start, end, price) accumulation bucket
// in a SegmentedCost breakdown.
type segmentKey struct {
	date  string
	start string
	end   string
	price float64
}

// SegmentedCost replays the transaction's persisted MeterSample energy
// register readings in timestamp order. For each adjacent pair it takes
// the positive delta in cumulative energy and attributes it to the
// tariff segment active at the later sample's timestamp, accumulating
// into per-(date,start,end,price) buckets. It returns the ordered
// buckets and their sum.
func (r *Resolver) SegmentedCost(ctx context.Context, transactionID int64) (float64, []ports.SegmentCost, error) {
	samples, err := r.meterSamples.FindByTransaction(ctx, transactionID)
	if err != nil {
		return 0, nil, fmt.Errorf("load meter samples for transaction %d: %w", transactionID, err)
	}
	if len(samples) < 2 {
		return 0, nil, nil
	}
	if err := r.ensureLoaded(ctx); err != nil {
		return 0, nil, err
	}

	buckets := make(map[segmentKey]*ports.SegmentCost)
	var order []segmentKey
	var total float64

	for i := 1; i < len(samples); i++ {
		prev, cur := samples[i-1], samples[i]
		deltaKWh := (cur.EnergyWh - prev.EnergyWh) / 1000.0
		if deltaKWh <= 0 {
			continue
		}

		local := cur.Timestamp.In(r.loc)
		minute := local.Hour()*60 + local.Minute()
		date := local.Format(dateLayout)
		start, end, price, ok := r.matchingWindow(date, minute)
		if !ok {
			priorDate := local.AddDate(0, 0, -1).Format(dateLayout)
			start, end, price, ok = r.matchingWindow(priorDate, minute)
			date = priorDate
		}
		if !ok {
			start, end, price = "00:00", "23:59", r.defaultPrice
		}

		key := segmentKey{date: date, start: start, end: end, price: price}
		bucket, exists := buckets[key]
		if !exists {
			bucket = &ports.SegmentCost{Date: date, Start: start, End: end, PriceNT: price}
			buckets[key] = bucket
			order = append(order, key)
		}
		cost := deltaKWh * price
		bucket.EnergyKWh += deltaKWh
		bucket.Cost += cost
		total += cost
	}

	result := make([]ports.SegmentCost, 0, len(order))
	for _, key := range order {
		result = append(result, *buckets[key])
	}
	return total, result, nil
}

// matchingWindow returns the HH:MM bounds and price of the highest-priced
// window covering minute on date.
func (r *Resolver) matchingWindow(date string, minute int) (string, string, float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *window
	for i, w := range r.byDate[date] {
		if !windowContains(w, minute) {
			continue
		}
		if best == nil || w.price > best.price {
			best = &r.byDate[date][i]
		}
	}
	if best == nil {
		return "", "", 0, false
	}
	return formatHHMM(best.start), formatHHMM(best.end), best.price, true
}

func formatHHMM(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

var _ ports.TariffResolver = (*Resolver)(nil)

package analytics

import (
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitr-backend/internal/domain"
)

type fakeSource struct {
	daily      map[string]*domain.DailyStat
	categories map[string][]*domain.CategoryStat
	hours      map[string][]*domain.HourlyActivity
	failDaily  bool
	calls      []string
}

func (f *fakeSource) DailyStats(_ context.Context, day time.Time) (*domain.DailyStat, error) {
	key := day.Format("2006-01-02")
	f.calls = append(f.calls, key)
	if f.failDaily {
		return nil, errors.New("postgres down")
	}
	if st, ok := f.daily[key]; ok {
		return st, nil
	}
	return &domain.DailyStat{Day: day}, nil
}

func (f *fakeSource) CategoryStats(_ context.Context, day time.Time) ([]*domain.CategoryStat, error) {
	return f.categories[day.Format("2006-01-02")], nil
}

func (f *fakeSource) HourlyActivity(_ context.Context, day time.Time) ([]*domain.HourlyActivity, error) {
	return f.hours[day.Format("2006-01-02")], nil
}

type fakeSink struct {
	daily      []*domain.DailyStat
	categories []*domain.CategoryStat
	hours      []*domain.HourlyActivity
}

func (f *fakeSink) InsertDailyStats(_ context.Context, stats []*domain.DailyStat) error {
	f.daily = append(f.daily, stats...)
	return nil
}

func (f *fakeSink) InsertCategoryStats(_ context.Context, stats []*domain.CategoryStat) error {
	f.categories = append(f.categories, stats...)
	return nil
}

func (f *fakeSink) InsertHourlyActivity(_ context.Context, rows []*domain.HourlyActivity) error {
	f.hours = append(f.hours, rows...)
	return nil
}

func newRollup(t *testing.T, source *fakeSource, sink *fakeSink) *Rollup {
	t.Helper()
	r, err := NewRollup(RollupOptions{
		Source: source,
		Sink:   sink,
		Logger: log.New(testWriter{t}, "", 0),
	})
	require.NoError(t, err)
	r.now = func() time.Time {
		return time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	}
	return r
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestRollupRebuildsTwoDayWindow(t *testing.T) {
	source := &fakeSource{
		daily: map[string]*domain.DailyStat{
			"2026-03-01": {Day: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), PoolsCreated: 4, BetsPlaced: 31},
			"2026-03-02": {Day: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), PoolsCreated: 1, BetsPlaced: 6},
		},
		categories: map[string][]*domain.CategoryStat{
			"2026-03-02": {{Category: "football", BetsPlaced: 6}},
		},
		hours: map[string][]*domain.HourlyActivity{
			"2026-03-02": {{Hour: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), EventsIndexed: 12}},
		},
	}
	sink := &fakeSink{}
	r := newRollup(t, source, sink)

	require.NoError(t, r.Run(context.Background()))

	// Oldest day first, today last.
	assert.Equal(t, []string{"2026-03-01", "2026-03-02"}, source.calls)
	require.Len(t, sink.daily, 2)
	assert.Equal(t, uint64(4), sink.daily[0].PoolsCreated)
	assert.Equal(t, uint64(1), sink.daily[1].PoolsCreated)
	require.Len(t, sink.categories, 1)
	assert.Equal(t, "football", sink.categories[0].Category)
	require.Len(t, sink.hours, 1)
	assert.Equal(t, uint64(12), sink.hours[0].EventsIndexed)
}

func TestRollupAbortsOnSourceError(t *testing.T) {
	source := &fakeSource{failDaily: true}
	sink := &fakeSink{}
	r := newRollup(t, source, sink)

	err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2026-03-01")
	assert.Empty(t, sink.daily)
}

func TestNewRollupRequiresDependencies(t *testing.T) {
	_, err := NewRollup(RollupOptions{})
	require.Error(t, err)
}

package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ammonia-battery/internal/analysis"
	"ammonia-battery/internal/economics"
	"ammonia-battery/internal/model"
)

func testSchedule(t *testing.T, name string) *model.Schedule {
	t.Helper()
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	periods := []model.PeriodResult{
		{Index: 0, Start: start, End: start.Add(time.Hour), Price: -10, Action: model.ActionCharging, ChargeMW: 5, LevelStart: 0, LevelEnd: 2, NetRevenue: 50},
		{Index: 1, Start: start.Add(time.Hour), End: start.Add(2 * time.Hour), Price: 90, Action: model.ActionDischarging, DischargeMW: 3, LevelStart: 2, LevelEnd: 0, NetRevenue: 270},
	}
	s, err := model.NewSchedule(name, 1, "t", periods, []float64{0, 2, 0}, model.SolveMetadata{
		Status: "optimal", Backend: "simplex", Objective: 320, Attempts: 1,
	})
	require.NoError(t, err)
	return s
}

func testRun(t *testing.T, name string) *Run {
	t.Helper()
	var econ economics.Report
	econ.System.NetAnnualProfit = 1234
	econ.LCOA.PerTonne = 450
	econ.LCOE.PerMWh = math.Inf(1)
	econ.LCOS.PerMWh = math.NaN()
	return &Run{
		ID:        name + "-id",
		Scenario:  name,
		CreatedAt: time.Now().UTC(),
		Schedule:  testSchedule(t, name),
		Economics: econ,
	}
}

func TestNewRun(t *testing.T) {
	s := testSchedule(t, "base")
	run := NewRun(s, economics.Report{}, analysis.Report{})
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "base", run.Scenario)
	assert.WithinDuration(t, time.Now(), run.CreatedAt, time.Minute)

	other := NewRun(s, economics.Report{}, analysis.Report{})
	assert.NotEqual(t, run.ID, other.ID)
}

func TestResultCacheExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewResultCache(10 * time.Minute)
	c.now = func() time.Time { return now }

	run := testRun(t, "a")
	c.Put(run)
	got, ok := c.Get(run.ID)
	require.True(t, ok)
	assert.Same(t, run, got)

	_, ok = c.Get("missing")
	assert.False(t, ok)

	now = now.Add(11 * time.Minute)
	_, ok = c.Get(run.ID)
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	c.Put(testRun(t, "b"))
	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Zero(t, c.Len())
}

func TestNilResultCache(t *testing.T) {
	var c *ResultCache
	c.Put(testRun(t, "a"))
	_, ok := c.Get("a-id")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
	assert.Zero(t, c.Sweep())
	c.Clear()
	c.RunSweeper(context.Background(), time.Millisecond)
}

func TestRunSweeperStopsOnCancel(t *testing.T) {
	c := NewResultCache(time.Nanosecond)
	c.Put(testRun(t, "a"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.RunSweeper(ctx, time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRepositoryRoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	run := testRun(t, "base")
	require.NoError(t, repo.SaveRun(run))

	got, err := repo.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, "base", got.Scenario)
	assert.Equal(t, "optimal", got.Status)
	assert.Equal(t, "simplex", got.Backend)
	assert.Equal(t, 320.0, got.Objective)
	assert.Equal(t, 2, got.Periods)
	assert.Equal(t, "t", got.StorageUnit)
	assert.Equal(t, 320.0, got.NetRevenue)
	assert.Equal(t, 1234.0, got.NetAnnualProfit)
	require.NotNil(t, got.LCOA)
	assert.Equal(t, 450.0, *got.LCOA)
	assert.Nil(t, got.LCOE)
	assert.Nil(t, got.LCOS)
	assert.WithinDuration(t, run.CreatedAt, got.CreatedAt, time.Second)

	rows, err := repo.Periods(run.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 0, rows[0].PeriodIndex)
	assert.Equal(t, "CHARGING", rows[0].Action)
	assert.Equal(t, 5.0, rows[0].ChargeMW)
	assert.Equal(t, 3.0, rows[1].DischargeMW)
	assert.Equal(t, 270.0, rows[1].NetRevenue)
}

func TestRepositoryListAndDelete(t *testing.T) {
	repo := openTestRepo(t)
	older := testRun(t, "older")
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := testRun(t, "newer")
	require.NoError(t, repo.SaveRun(older))
	require.NoError(t, repo.SaveRun(newer))

	runs, err := repo.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "newer", runs[0].Scenario)

	runs, err = repo.ListRuns(1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	require.NoError(t, repo.DeleteRun(older.ID))
	_, err = repo.GetRun(older.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.Periods(older.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.DeleteRun(older.ID), ErrNotFound)

	assert.Error(t, repo.SaveRun(&Run{ID: "empty"}))
}

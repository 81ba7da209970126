package report

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ladder_maker/internal/config"
	"ladder_maker/internal/core"
)

func sampleReport(id string) *core.CycleReport {
	return &core.CycleReport{
		CycleID:   id,
		StartedAt: time.Now().UTC().Truncate(time.Millisecond),
		Elapsed:   1500 * time.Millisecond,
		Results: []core.ConfigResult{
			{Name: "main", Account: "ACC_1", Cancelled: 2, Created: 3, Elapsed: 200 * time.Millisecond},
			{Name: "broken", Account: "ACC_2", Err: errors.New("ledger timeout"), Flattened: true},
		},
	}
}

func TestMemoryStore_SaveAndLoadRecent(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(10)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.SaveReport(ctx, sampleReport(fmt.Sprintf("cycle-%d", i))))
	}

	got, err := store.LoadRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "cycle-2", got[0].CycleID, "newest first")
	assert.Equal(t, "cycle-1", got[1].CycleID)
}

func TestMemoryStore_BoundedRetention(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(2)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.SaveReport(ctx, sampleReport(fmt.Sprintf("cycle-%d", i))))
	}

	got, err := store.LoadRecent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "cycle-4", got[0].CycleID)
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	t.Parallel()

	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "reports.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	want := sampleReport("cycle-1")
	require.NoError(t, store.SaveReport(ctx, want))

	got, err := store.LoadRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, want.CycleID, got[0].CycleID)
	assert.Equal(t, want.Elapsed, got[0].Elapsed)
	require.Len(t, got[0].Results, 2)
	assert.Equal(t, "main", got[0].Results[0].Name)
	assert.Equal(t, 2, got[0].Results[0].Cancelled)
	require.Error(t, got[0].Results[1].Err)
	assert.Equal(t, "ledger timeout", got[0].Results[1].Err.Error())
	assert.True(t, got[0].Results[1].Flattened)
}

func TestNewStore_Backends(t *testing.T) {
	t.Parallel()

	mem, err := NewStore(config.ReportConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, mem)

	sq, err := NewStore(config.ReportConfig{
		Backend: "sqlite",
		Path:    filepath.Join(t.TempDir(), "reports.db"),
	})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, sq)

	_, err = NewStore(config.ReportConfig{Backend: "postgres"})
	assert.Error(t, err)
}

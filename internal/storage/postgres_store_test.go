package storage

import (
	"context"
	"testing"
	"time"

	"github.com/bitcomplete/sqltestutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/transpool/internal/models"
)

// newPostgres starts a throwaway postgres:16 container. Docker (or podman
// behind DOCKER_HOST) must be reachable; the test is skipped otherwise.
func newPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container tests are skipped in -short mode")
	}
	ctx := context.Background()
	startCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	pg, err := sqltestutil.StartPostgresContainer(startCtx, "16")
	if err != nil {
		t.Skipf("no container runtime: %v", err)
	}
	t.Cleanup(func() { assert.NoError(t, pg.Shutdown(ctx)) })

	for {
		ps, err := NewPostgresStore(startCtx, pg.ConnectionString())
		if err == nil {
			t.Cleanup(func() { assert.NoError(t, ps.Close()) })
			require.NoError(t, ps.Migrate(ctx))
			return ps
		}
		// the server refuses connections until it has finished starting up
		if startCtx.Err() != nil {
			require.NoError(t, err, "cannot connect to test database")
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	ps := newPostgres(t)
	ctx := context.Background()
	dep := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	next, err := ps.NextMatchID(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, next)

	m := models.MatchDTO{
		ID:      7,
		Request: models.RequestDTO{ID: 3, RiderID: "rita", Source: "A", Destination: "C"},
		Route: []models.LegDTO{
			{OfferID: 1, DriverID: "dave", Leg: 0, From: "A", To: "B", Departure: dep, Arrival: dep.Add(10 * time.Minute), Price: 10, Riders: []string{"rita"}},
			{OfferID: 2, DriverID: "olga", Leg: 0, From: "B", To: "C", Departure: dep.Add(10 * time.Minute), Arrival: dep.Add(30 * time.Minute), Price: 20},
		},
		TotalPrice:      30,
		Drivers:         []string{"dave", "olga"},
		Departure:       dep,
		Arrival:         dep.Add(30 * time.Minute),
		FuelConsumption: 1.5,
		CreatedAt:       dep,
	}
	require.NoError(t, ps.SaveMatch(ctx, m))
	assert.ErrorIs(t, ps.SaveMatch(ctx, m), ErrDuplicateMatch)

	got, err := ps.MatchesByRider(ctx, "rita")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 7, got[0].ID)
	assert.Equal(t, []string{"dave", "olga"}, got[0].Drivers)
	assert.Equal(t, []int{1, 2}, got[0].OfferIDs)
	assert.Equal(t, 30, got[0].TotalPrice)
	require.Len(t, got[0].Route, 2)
	assert.Equal(t, []string{"rita"}, got[0].Route[0].Riders)
	assert.True(t, dep.Equal(got[0].Departure))

	next, err = ps.NextMatchID(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, next)

	none, err := ps.MatchesByRider(ctx, "sam")
	require.NoError(t, err)
	assert.Empty(t, none)
}

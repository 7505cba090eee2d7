//go:build integration

// This file exercises internal/db against a real PostgreSQL instance via
// testcontainers-go, rather than a fake/mock: the reserved-wallet claim
// transition (spec.md section 9) is a conditional UPDATE whose
// correctness depends on actual database-level atomicity, which a Go
// mock cannot meaningfully verify. Run with `go test -tags=integration`
// on a machine with a working Docker daemon.
package db

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "ctcustody",
				"POSTGRES_PASSWORD": "ctcustody",
				"POSTGRES_DB":       "ctcustody",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://ctcustody:ctcustody@%s:%s/ctcustody?sslmode=disable", host, port.Port())
	database, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(database.Close)

	_, err = database.pool.Exec(ctx, Schema)
	require.NoError(t, err)

	return database
}

func TestClaimReservedUser_ConvertsReservedRowExactlyOnce(t *testing.T) {
	database := startTestDB(t)
	ctx := context.Background()

	reserved, err := database.CreateReservedUser(ctx, "telegram", "AliceWonderland")
	require.NoError(t, err)
	require.Nil(t, reserved.PlatformUserID)

	claimed, ok, err := database.ClaimReservedUser(ctx, "alicewonderland", 42, "Alice")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, reserved.ID, claimed.ID)
	require.NotNil(t, claimed.PlatformUserID)
	require.Equal(t, int64(42), *claimed.PlatformUserID)

	_, ok, err = database.ClaimReservedUser(ctx, "alicewonderland", 43, "Alice")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestClaimReservedUser_ConcurrentClaimsConvergeOnOneWinner(t *testing.T) {
	database := startTestDB(t)
	ctx := context.Background()

	_, err := database.CreateReservedUser(ctx, "telegram", "RaceWinner")
	require.NoError(t, err)

	const attempts = 10
	var wg sync.WaitGroup
	wins := make([]bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, ok, err := database.ClaimReservedUser(ctx, "racewinner", int64(1000+i), "")
			require.NoError(t, err)
			wins[i] = ok
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, w := range wins {
		if w {
			winners++
		}
	}
	require.Equal(t, 1, winners)
}

func TestClaimReservedUser_NoMatchFallsThroughToLiveCreate(t *testing.T) {
	database := startTestDB(t)
	ctx := context.Background()

	_, ok, err := database.ClaimReservedUser(ctx, "nobody-reserved-this", 7, "")
	require.NoError(t, err)
	require.False(t, ok)

	live, err := database.CreateLiveUser(ctx, "telegram", 7, "nobody-reserved-this", "")
	require.NoError(t, err)
	require.NotNil(t, live.PlatformUserID)
}

func TestWallet_PubkeyUniqueAcrossUsers(t *testing.T) {
	database := startTestDB(t)
	ctx := context.Background()

	u1, err := database.CreateLiveUser(ctx, "telegram", 1, "user1", "")
	require.NoError(t, err)
	u2, err := database.CreateLiveUser(ctx, "telegram", 2, "user2", "")
	require.NoError(t, err)

	_, err = database.CreateWallet(ctx, u1.ID, "Sameh11111111111111111111111111111111111111", "handle-1")
	require.NoError(t, err)

	_, err = database.CreateWallet(ctx, u2.ID, "Sameh11111111111111111111111111111111111111", "handle-2")
	require.Error(t, err)
}

//go:build integration

// Exercises internal/wallet against a real PostgreSQL instance: the
// claim-or-create login flow and wallet provisioning both depend on
// internal/db's conditional-update atomicity, the same reason
// internal/db/db_test.go reaches for testcontainers-go instead of a
// mock.
package wallet

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"ctcustody/internal/db"
)

func startTestDB(t *testing.T) *db.DB {
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
	database, err := db.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(database.Close)

	err = database.Exec(ctx, db.Schema)
	require.NoError(t, err)

	return database
}

func TestClaimOrCreate_ClaimsReservedWalletExactlyOnce(t *testing.T) {
	database := startTestDB(t)
	ctx := context.Background()

	reserved, err := database.CreateReservedUser(ctx, "telegram", "PreOnboarded")
	require.NoError(t, err)
	svc := New(database)
	_, sgn, err := svc.Provision(ctx, reserved.ID)
	require.NoError(t, err)
	reservedPubkey := sgn.PublicKey().String()

	user, w, claimedSigner, err := svc.ClaimOrCreate(ctx, "telegram", 99, "preonboarded", "Pre Onboarded")
	require.NoError(t, err)
	require.NotNil(t, user.PlatformUserID)
	require.Equal(t, int64(99), *user.PlatformUserID)
	require.Equal(t, reservedPubkey, w.Pubkey)
	require.Equal(t, reservedPubkey, claimedSigner.PublicKey().String())
}

func TestClaimOrCreate_NoReservedRowCreatesLiveUserAndWallet(t *testing.T) {
	database := startTestDB(t)
	ctx := context.Background()

	svc := New(database)
	user, w, sgn, err := svc.ClaimOrCreate(ctx, "telegram", 7, "brand-new", "Brand New")
	require.NoError(t, err)
	require.NotNil(t, user.PlatformUserID)
	require.Equal(t, w.Pubkey, sgn.PublicKey().String())

	again, w2, _, err := svc.ClaimOrCreate(ctx, "telegram", 7, "brand-new", "")
	require.NoError(t, err)
	require.Equal(t, user.ID, again.ID)
	require.Equal(t, w.ID, w2.ID)
}

func TestEnsureWallet_ProvisionsExactlyOnce(t *testing.T) {
	database := startTestDB(t)
	ctx := context.Background()

	user, err := database.CreateLiveUser(ctx, "telegram", 1, "solo", "")
	require.NoError(t, err)

	svc := New(database)
	w1, _, err := svc.EnsureWallet(ctx, user.ID)
	require.NoError(t, err)
	w2, _, err := svc.EnsureWallet(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, w1.ID, w2.ID)
}

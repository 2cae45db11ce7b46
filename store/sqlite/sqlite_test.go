package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workforce-billing/billing"
	"github.com/warp/workforce-billing/store/sqlite"
	"github.com/warp/workforce-billing/store/storetest"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) billing.TxStore { return newTestStore(t) })
}

func TestSQLiteStore_OnePendingTopupPerCompany(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateAccount(ctx, billing.Account{Username: "acme", Name: "Acme", Role: billing.RoleCompany}))

	topup := billing.Topup{Company: "acme", Amount: billing.MustParseMoney("10"), Status: billing.TopupPending}
	_, err := store.CreateTopup(ctx, topup)
	require.NoError(t, err)

	_, err = store.CreateTopup(ctx, topup)
	assert.True(t, billing.IsClientError(err))
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	// GIVEN: A file database with a company
	// WHEN: Closing and reopening it
	// THEN: The balance survives in cents

	path := filepath.Join(t.TempDir(), "workforce.db")
	ctx := context.Background()

	store, err := sqlite.New(path)
	require.NoError(t, err)
	require.NoError(t, store.CreateAccount(ctx, billing.Account{
		Username: "acme", Name: "Acme", Role: billing.RoleCompany, Balance: billing.MustParseMoney("12.34"),
	}))
	require.NoError(t, store.Close())

	store, err = sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	acct, err := store.GetAccount(ctx, "acme")
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.Equal(t, "12.34", acct.Balance.String())
	require.NoError(t, store.Ping(ctx))
}

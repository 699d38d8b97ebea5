//go:build integration

package integration

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accredit/compliance/internal/domain"
	"github.com/accredit/compliance/test/integration/testutil"
)

func ctxT(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestRegistryRepository_RoundTrip(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := ctxT(t)
	seeded := env.SeedRegistry("reg-1", testutil.WithVerifiedOnly(), testutil.WithRegistryMask(0b1011))

	byKey, err := env.Registries.FindByKey(ctx, env.Pool, "reg-1")
	require.NoError(t, err)
	require.NotNil(t, byKey)
	assert.Equal(t, *seeded, *byKey)

	byMint, err := env.Registries.FindByMint(ctx, env.Pool, seeded.Mint)
	require.NoError(t, err)
	require.NotNil(t, byMint)
	assert.Equal(t, seeded.Key, byMint.Key)

	missing, err := env.Registries.FindByKey(ctx, env.Pool, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestEntryRepository_CreateBumpsWhitelistCount(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := ctxT(t)
	env.SeedRegistry("reg")
	env.SeedEntry("reg", "alice", domain.KycStandard, domain.JurisdictionJapan)
	env.SeedEntry("reg", "bob", domain.KycBasic, domain.JurisdictionEu)

	reg, err := env.Registries.FindByKey(ctx, env.Pool, "reg")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), reg.WhitelistCount)
}

func TestEntryRepository_RoundTripsFullRangeLimits(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := ctxT(t)
	env.SeedRegistry("reg")
	seeded := env.SeedEntry("reg", "whale", domain.KycInstitutional, domain.JurisdictionSingapore,
		testutil.WithDailyLimit(math.MaxUint64), testutil.WithExpiry(testutil.StartTime+86_400))

	got, err := env.Entries.Find(ctx, env.Pool, "reg", "whale")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, *seeded, *got)
	assert.Equal(t, uint64(math.MaxUint64), got.DailyLimit)
}

func TestEntryRepository_UpdateUsageAndList(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := ctxT(t)
	env.SeedRegistry("reg")
	for _, w := range []domain.Key{"carol", "alice", "bob"} {
		env.SeedEntry("reg", w, domain.KycBasic, domain.JurisdictionJapan)
	}

	tx, err := env.Pool.Begin(ctx)
	require.NoError(t, err)
	locked, err := env.Entries.LockForUpdate(ctx, tx, "reg", "alice")
	require.NoError(t, err)
	require.NotNil(t, locked)
	usage := domain.Usage{DailyVolume: 500, VolumeResetTime: testutil.StartTime + 10, LastActivity: testutil.StartTime + 10}
	require.NoError(t, env.Entries.UpdateUsage(ctx, tx, "reg", "alice", usage))
	require.NoError(t, tx.Commit(ctx))

	assert.Equal(t, usage, env.Entry("reg", "alice").Usage())

	page, err := env.Entries.ListByRegistry(ctx, env.Pool, "reg", "", 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, domain.Key("alice"), page[0].Wallet)
	assert.Equal(t, domain.Key("bob"), page[1].Wallet)

	rest, err := env.Entries.ListByRegistry(ctx, env.Pool, "reg", page[1].Wallet, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, domain.Key("carol"), rest[0].Wallet)
}

func TestEntryRepository_UpdateUsageMissingEntry(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := ctxT(t)
	env.SeedRegistry("reg")

	tx, err := env.Pool.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	err = env.Entries.UpdateUsage(ctx, tx, "reg", "ghost", domain.Usage{DailyVolume: 1})
	assert.Error(t, err)
}

func TestTransferRepository_DuplicateTransferIDConflicts(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := ctxT(t)
	env.SeedRegistry("reg")

	id := "tx-1"
	rec := &domain.TransferRecord{
		TransferID: &id,
		Registry:   "reg",
		Sender:     "alice",
		Amount:     10,
		KycChecked: true,
		ExecutedAt: testutil.StartTime,
	}
	stored, err := env.Transfers.Insert(ctx, env.Pool, rec)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, stored.ID)

	_, err = env.Transfers.Insert(ctx, env.Pool, rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict("")))

	found, err := env.Transfers.FindByTransferID(ctx, env.Pool, "reg", id)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, stored.ID, found.ID)
}

func TestTransferRepository_ListByWalletNewestFirst(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := ctxT(t)
	env.SeedRegistry("reg")

	for i := int64(0); i < 3; i++ {
		_, err := env.Transfers.Insert(ctx, env.Pool, &domain.TransferRecord{
			Registry:   "reg",
			Sender:     "alice",
			Amount:     uint64(i + 1),
			ExecutedAt: testutil.StartTime + i,
		})
		require.NoError(t, err)
	}

	records, err := env.Transfers.ListByWallet(ctx, env.Pool, "reg", "alice", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, uint64(3), records[0].Amount)
	assert.Equal(t, uint64(2), records[1].Amount)
	assert.Nil(t, records[0].TransferID)
	assert.Nil(t, records[0].Receiver)
}

func TestOutboxRepository_FetchAndMark(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := ctxT(t)

	req := domain.TransferRequest{Registry: "reg", Sender: "alice", Amount: 5}
	first := domain.NewTransferApprovedEvent(req, domain.Allow(5, testutil.StartTime), nil, nil)
	second := domain.NewTransferRejectedEvent(req, domain.Deny(domain.ParticipantSender, domain.ErrKycRequired(), 5, testutil.StartTime))
	require.NoError(t, env.Outbox.Insert(ctx, env.Pool, first))
	require.NoError(t, env.Outbox.Insert(ctx, env.Pool, second))

	events, err := env.Outbox.FetchUnpublished(ctx, env.Pool, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, first.EventID, events[0].EventID)
	assert.Equal(t, domain.EventTransferRejected, events[1].EventType)
	assert.Less(t, events[0].SeqID, events[1].SeqID)
	assert.JSONEq(t, string(first.Payload), string(events[0].Payload))

	require.NoError(t, env.Outbox.MarkPublished(ctx, env.Pool, []int64{events[0].SeqID}))

	remaining, err := env.Outbox.FetchUnpublished(ctx, env.Pool, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, second.EventID, remaining[0].EventID)

	backlog, err := env.Outbox.Backlog(ctx, env.Pool)
	require.NoError(t, err)
	assert.Equal(t, int64(1), backlog.Pending)
	assert.WithinDuration(t, second.OccurredAt, backlog.Oldest, time.Millisecond)

	require.NoError(t, env.Outbox.MarkPublished(ctx, env.Pool, []int64{remaining[0].SeqID}))
	backlog, err = env.Outbox.Backlog(ctx, env.Pool)
	require.NoError(t, err)
	assert.Zero(t, backlog.Pending)
	assert.True(t, backlog.Oldest.IsZero())
}

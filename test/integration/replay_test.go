//go:build integration

package integration

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accredit/compliance/internal/domain"
	"github.com/accredit/compliance/internal/gate"
	"github.com/accredit/compliance/test/integration/testutil"
)

func TestReplay_InvariantsHoldAgainstPostgres(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.SeedRegistry("reg", testutil.WithVerifiedOnly())
	env.SeedEntry("reg", "alice", domain.KycBasic, domain.JurisdictionJapan, testutil.WithDailyLimit(1_000))
	env.SeedEntry("reg", "bob", domain.KycBasic, domain.JurisdictionEu)
	env.SeedEntry("reg", "mallory", domain.KycBasic, domain.JurisdictionUsa)

	var reqs []domain.TransferRequest
	for i := 0; i < 12; i++ {
		receiver := domain.Key("bob")
		if i%5 == 4 {
			receiver = "mallory"
		}
		reqs = append(reqs, domain.TransferRequest{
			TransferID: fmt.Sprintf("replay-%d", i%10),
			Registry:   "reg",
			Sender:     "alice",
			Receiver:   receiver,
			Amount:     150,
		})
	}

	h := gate.NewReplayHarness(env.Service)
	res, err := h.Execute(ctxT(t), "reg", "alice", reqs)
	require.NoError(t, err)

	for _, inv := range res.Invariants {
		assert.True(t, inv.Passed, "%s: %s", inv.Name, inv.Detail)
	}
	assert.Equal(t, 2, res.Denied[domain.CodeJurisdictionRestricted])
	assert.LessOrEqual(t, res.FinalUsage.DailyVolume, uint64(1_000))

	env.Clock.Advance(24 * time.Hour)
	next, err := h.Execute(ctxT(t), "reg", "alice", []domain.TransferRequest{
		{Registry: "reg", Sender: "alice", Receiver: "bob", Amount: 1_000},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, next.Applied)
	assert.True(t, next.AllPassed)
}

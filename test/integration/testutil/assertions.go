//go:build integration

package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/accredit/compliance/internal/domain"
)

// DecodeJSON reads and decodes a JSON response body into dst.
func DecodeJSON(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
}

// AssertStatus checks that the response has the expected HTTP status code.
func AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// AssertErrorCode checks that the response body contains the expected error code.
func AssertErrorCode(t *testing.T, resp *http.Response, expectedCode domain.ErrorCode) {
	t.Helper()
	var errResp struct {
		Code    domain.ErrorCode `json:"code"`
		Message string           `json:"message"`
	}
	DecodeJSON(t, resp, &errResp)
	if errResp.Code != expectedCode {
		t.Errorf("expected error code %q, got %q (message: %s)", expectedCode, errResp.Code, errResp.Message)
	}
}

// AssertVolume checks the stored rolling-window volume of an entry.
func AssertVolume(t *testing.T, env *TestEnv, registry, wallet domain.Key, volume uint64) {
	t.Helper()
	e := env.Entry(registry, wallet)
	if e.DailyVolume != volume {
		t.Errorf("daily_volume of %s/%s: expected %d, got %d", registry, wallet, volume, e.DailyVolume)
	}
}

// CountTransfers returns the number of transfer records sent by wallet.
func CountTransfers(t *testing.T, env *TestEnv, registry, wallet domain.Key) int {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var count int
	err := env.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM transfer_records WHERE registry_key = $1 AND sender = $2",
		string(registry), string(wallet)).Scan(&count)
	if err != nil {
		t.Fatalf("CountTransfers: %v", err)
	}
	return count
}

// CountOutboxEvents returns the number of outbox events of type et for an entry.
func CountOutboxEvents(t *testing.T, env *TestEnv, registry, wallet domain.Key, et domain.EventType) int {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var count int
	err := env.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM event_outbox WHERE aggregate_id = $1 AND event_type = $2",
		domain.EntryAggregateID(registry, wallet), string(et)).Scan(&count)
	if err != nil {
		t.Fatalf("CountOutboxEvents: %v", err)
	}
	return count
}

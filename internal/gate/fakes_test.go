package gate

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/accredit/compliance/internal/domain"
	"github.com/accredit/compliance/internal/repository"
)

type entryKey struct{ registry, wallet domain.Key }

type memState struct {
	registries map[domain.Key]domain.KycRegistry
	entries    map[entryKey]domain.WhitelistEntry
	transfers  []domain.TransferRecord
	outbox     []domain.OutboxDraft
}

func (s memState) clone() memState {
	c := memState{
		registries: make(map[domain.Key]domain.KycRegistry, len(s.registries)),
		entries:    make(map[entryKey]domain.WhitelistEntry, len(s.entries)),
		transfers:  append([]domain.TransferRecord(nil), s.transfers...),
		outbox:     append([]domain.OutboxDraft(nil), s.outbox...),
	}
	for k, v := range s.registries {
		c.registries[k] = v
	}
	for k, v := range s.entries {
		c.entries[k] = v
	}
	return c
}

// memDB is an in-memory stand-in for the pool. Begin serializes transactions
// the way row locks on the sender would, and Rollback restores the state
// captured at Begin.
type memDB struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	state memState

	failOutbox error
	failUsage  error
	begins     int
}

func newMemDB() *memDB {
	return &memDB{state: memState{
		registries: map[domain.Key]domain.KycRegistry{},
		entries:    map[entryKey]domain.WhitelistEntry{},
	}}
}

func (db *memDB) Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (db *memDB) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, nil
}

func (db *memDB) QueryRow(context.Context, string, ...interface{}) pgx.Row { return nil }

func (db *memDB) Begin(context.Context) (pgx.Tx, error) {
	db.txMu.Lock()
	db.mu.Lock()
	db.begins++
	snapshot := db.state.clone()
	db.mu.Unlock()
	return &memTx{db: db, snapshot: snapshot}, nil
}

type memTx struct {
	pgx.Tx
	db       *memDB
	snapshot memState
	done     bool
}

func (tx *memTx) Commit(context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true
	tx.db.txMu.Unlock()
	return nil
}

func (tx *memTx) Rollback(context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true
	tx.db.mu.Lock()
	tx.db.state = tx.snapshot
	tx.db.mu.Unlock()
	tx.db.txMu.Unlock()
	return nil
}

func (db *memDB) putRegistry(r domain.KycRegistry) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.state.registries[r.Key] = r
}

func (db *memDB) putEntry(e domain.WhitelistEntry) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.state.entries[entryKey{e.Registry, e.Wallet}] = e
}

func (db *memDB) entry(registry, wallet domain.Key) domain.WhitelistEntry {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.state.entries[entryKey{registry, wallet}]
}

func (db *memDB) transferCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.state.transfers)
}

func (db *memDB) events() []domain.OutboxDraft {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]domain.OutboxDraft(nil), db.state.outbox...)
}

type memRegistries struct{ db *memDB }

func (r memRegistries) FindByKey(_ context.Context, _ repository.DBTX, key domain.Key) (*domain.KycRegistry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	reg, ok := r.db.state.registries[key]
	if !ok {
		return nil, nil
	}
	return &reg, nil
}

func (r memRegistries) FindByMint(_ context.Context, _ repository.DBTX, mint domain.Key) (*domain.KycRegistry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, reg := range r.db.state.registries {
		if reg.Mint == mint {
			return &reg, nil
		}
	}
	return nil, nil
}

func (r memRegistries) Create(_ context.Context, _ repository.DBTX, reg *domain.KycRegistry) error {
	r.db.putRegistry(*reg)
	return nil
}

type memEntries struct{ db *memDB }

func (r memEntries) Find(_ context.Context, _ repository.DBTX, registry, wallet domain.Key) (*domain.WhitelistEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, ok := r.db.state.entries[entryKey{registry, wallet}]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (r memEntries) LockForUpdate(ctx context.Context, tx pgx.Tx, registry, wallet domain.Key) (*domain.WhitelistEntry, error) {
	return r.Find(ctx, tx, registry, wallet)
}

func (r memEntries) Create(_ context.Context, _ repository.DBTX, e *domain.WhitelistEntry) error {
	r.db.putEntry(*e)
	return nil
}

func (r memEntries) UpdateUsage(_ context.Context, _ pgx.Tx, registry, wallet domain.Key, u domain.Usage) error {
	if r.db.failUsage != nil {
		return r.db.failUsage
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	k := entryKey{registry, wallet}
	e := r.db.state.entries[k]
	e.DailyVolume, e.VolumeResetTime, e.LastActivity = u.DailyVolume, u.VolumeResetTime, u.LastActivity
	r.db.state.entries[k] = e
	return nil
}

func (r memEntries) ListByRegistry(_ context.Context, _ repository.DBTX, registry, after domain.Key, limit int) ([]domain.WhitelistEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.WhitelistEntry
	for k, e := range r.db.state.entries {
		if k.registry == registry && k.wallet > after {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Wallet < out[j].Wallet })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memTransfers struct{ db *memDB }

func (r memTransfers) FindByTransferID(_ context.Context, _ repository.DBTX, registry domain.Key, id string) (*domain.TransferRecord, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, rec := range r.db.state.transfers {
		if rec.Registry == registry && rec.TransferID != nil && *rec.TransferID == id {
			return &rec, nil
		}
	}
	return nil, nil
}

func (r memTransfers) Insert(_ context.Context, _ repository.DBTX, rec *domain.TransferRecord) (*domain.TransferRecord, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	stored := *rec
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now()
	r.db.state.transfers = append(r.db.state.transfers, stored)
	return &stored, nil
}

func (r memTransfers) ListByWallet(_ context.Context, _ repository.DBTX, registry, wallet domain.Key, limit int) ([]domain.TransferRecord, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.TransferRecord
	for i := len(r.db.state.transfers) - 1; i >= 0 && len(out) < limit; i-- {
		rec := r.db.state.transfers[i]
		if rec.Registry == registry && rec.Sender == wallet {
			out = append(out, rec)
		}
	}
	return out, nil
}

type memOutbox struct{ db *memDB }

func (r memOutbox) Insert(_ context.Context, _ repository.DBTX, d domain.OutboxDraft) error {
	if r.db.failOutbox != nil {
		return r.db.failOutbox
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	d.SeqID = int64(len(r.db.state.outbox) + 1)
	r.db.state.outbox = append(r.db.state.outbox, d)
	return nil
}

func (r memOutbox) FetchUnpublished(_ context.Context, _ repository.DBTX, limit int) ([]domain.OutboxDraft, error) {
	events := r.db.events()
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (r memOutbox) MarkPublished(context.Context, repository.DBTX, []int64) error { return nil }

func (r memOutbox) Backlog(context.Context, repository.DBTX) (domain.OutboxBacklog, error) {
	return domain.OutboxBacklog{Pending: int64(len(r.db.events()))}, nil
}

func (r memOutbox) TryLockRelay(context.Context, repository.DBTX) (bool, error) { return true, nil }

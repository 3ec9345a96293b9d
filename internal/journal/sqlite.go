package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pixil98/go-authority/internal/authority"
)

const defaultBacklog = 4096

var ErrClosed = errors.New("journal closed")

type JournalOpt func(*Journal)

// WithBacklog sets how many transitions may wait for the writer.
func WithBacklog(n int) JournalOpt {
	return func(j *Journal) {
		j.backlog = n
	}
}

// Journal appends every committed transition to a SQLite table. Writes happen
// on a single writer goroutine so Broadcast never blocks the coordinator.
type Journal struct {
	db      *sql.DB
	backlog int

	ch      chan req
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

type req struct {
	t    authority.Transition
	at   time.Time
	sync chan struct{}
}

// OpenSQLite opens or creates the journal at path. ":memory:" keeps it in
// memory for the life of the process.
func OpenSQLite(path string, opts ...JournalOpt) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("empty journal path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	// One connection: the writer is the only mutator and :memory: databases
	// are per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	j := &Journal{
		db:      db,
		backlog: defaultBacklog,
	}
	for _, opt := range opts {
		opt(j)
	}
	j.ch = make(chan req, j.backlog)

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.loop()
	}()

	return j, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS transitions (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			entity        TEXT    NOT NULL,
			seq           INTEGER NOT NULL,
			prev          TEXT    NOT NULL,
			next          TEXT    NOT NULL,
			kind          TEXT    NOT NULL,
			steers        INTEGER NOT NULL,
			claimable     INTEGER NOT NULL,
			await_confirm INTEGER NOT NULL,
			removed       INTEGER NOT NULL,
			recorded_at   TEXT    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS transitions_entity ON transitions(entity, id);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("initialising journal schema: %w", err)
		}
	}
	return nil
}

// Start closes the journal when ctx ends.
func (j *Journal) Start(ctx context.Context) error {
	<-ctx.Done()
	return j.Close()
}

// Broadcast satisfies claim.Broadcaster. A full backlog drops the entry
// rather than stalling the authority; the drop is counted and logged here,
// not reported as a broadcast failure.
func (j *Journal) Broadcast(ctx context.Context, t authority.Transition) error {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return ErrClosed
	}
	select {
	case j.ch <- req{t: t, at: time.Now().UTC()}:
	default:
		n := j.dropped.Add(1)
		slog.WarnContext(ctx, "journal backlog full, transition dropped", "entity", t.Entity, "seq", t.Seq, "dropped", n)
	}
	return nil
}

// Sync waits until everything broadcast so far has been written.
func (j *Journal) Sync(ctx context.Context) error {
	done := make(chan struct{})

	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return ErrClosed
	}
	select {
	case j.ch <- req{sync: done}:
	case <-ctx.Done():
		j.mu.RUnlock()
		return ctx.Err()
	}
	j.mu.RUnlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped returns how many transitions were lost to a full backlog.
func (j *Journal) Dropped() uint64 {
	return j.dropped.Load()
}

// History returns the recorded transitions of one entity, oldest first.
func (j *Journal) History(ctx context.Context, entity authority.EntityID) ([]authority.Transition, error) {
	rows, err := j.db.QueryContext(ctx, selectTransitions+` WHERE entity = ? ORDER BY id`, string(entity))
	if err != nil {
		return nil, fmt.Errorf("querying history of %s: %w", entity, err)
	}
	defer func() { _ = rows.Close() }()

	var out []authority.Transition
	for rows.Next() {
		t, err := scanTransition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Replay calls fn with every recorded transition in commit order.
func (j *Journal) Replay(ctx context.Context, fn func(authority.Transition) error) error {
	rows, err := j.db.QueryContext(ctx, selectTransitions+` ORDER BY id`)
	if err != nil {
		return fmt.Errorf("querying journal: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		t, err := scanTransition(rows)
		if err != nil {
			return err
		}
		if err := fn(t); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Close drains pending writes and closes the database. It is safe to call
// more than once.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	close(j.ch)
	j.mu.Unlock()

	j.wg.Wait()
	if n := j.dropped.Load(); n > 0 {
		slog.Warn("journal dropped transitions", "count", n)
	}
	return j.db.Close()
}

func (j *Journal) loop() {
	for r := range j.ch {
		if r.sync != nil {
			close(r.sync)
			continue
		}
		if err := j.insert(r.t, r.at); err != nil {
			slog.Warn("journaling transition", "entity", r.t.Entity, "seq", r.t.Seq, "error", err)
		}
	}
}

func (j *Journal) insert(t authority.Transition, at time.Time) error {
	_, err := j.db.Exec(`INSERT INTO transitions
		(entity, seq, prev, next, kind, steers, claimable, await_confirm, removed, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(t.Entity), int64(t.Seq), string(t.Prev), string(t.Next), t.Kind,
		t.Steers, t.Claimable, t.AwaitConfirm, t.Removed, at.Format(time.RFC3339Nano),
	)
	return err
}

const selectTransitions = `SELECT entity, seq, prev, next, kind, steers, claimable, await_confirm, removed FROM transitions`

func scanTransition(rows *sql.Rows) (authority.Transition, error) {
	var (
		t                    authority.Transition
		entity, prev, next   string
		seq                  int64
		steers, claimable    bool
		awaitConfirm, remove bool
	)
	if err := rows.Scan(&entity, &seq, &prev, &next, &t.Kind, &steers, &claimable, &awaitConfirm, &remove); err != nil {
		return authority.Transition{}, fmt.Errorf("scanning transition: %w", err)
	}
	t.Entity = authority.EntityID(entity)
	t.Seq = uint64(seq)
	t.Prev = authority.ActorID(prev)
	t.Next = authority.ActorID(next)
	t.Steers = steers
	t.Claimable = claimable
	t.AwaitConfirm = awaitConfirm
	t.Removed = remove
	return t, nil
}

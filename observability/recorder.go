// Package observability records server usage to a small SQLite database.
// Persistence is async and non-blocking: buffer overflow silently drops
// events rather than applying backpressure to request handling. A nil
// *Recorder is a valid no-op, so the stats database stays optional.
package observability

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/skitzo2000/MD-easy/dbopen"
	"github.com/skitzo2000/MD-easy/idgen"
)

// Schema creates the events table. Pass it to dbopen.WithSchema.
const Schema = `
CREATE TABLE IF NOT EXISTS events (
	id        TEXT PRIMARY KEY,
	name      TEXT NOT NULL,
	detail    TEXT,
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_name_ts ON events(name, timestamp);
`

// Event names recorded by the server.
const (
	EventDocFetched   = "doc_fetched"
	EventListServed   = "list_served"
	EventRefresh      = "refresh_published"
	EventSubscribed   = "stream_opened"
	EventUnsubscribed = "stream_closed"
	EventAuthDenied   = "auth_denied"
)

type event struct {
	id     string
	name   string
	detail string
	at     time.Time
}

// Recorder buffers events and flushes them to SQLite in batches. All methods
// are safe on a nil receiver.
type Recorder struct {
	db     *sql.DB
	logger *slog.Logger
	events chan event

	mu       sync.Mutex
	counters map[string]uint64
	dropped  uint64

	stop chan struct{}
	done chan struct{}
}

const (
	eventBuffer   = 256
	flushInterval = 5 * time.Second
	flushTimeout  = 10 * time.Second
)

// NewRecorder starts a recorder writing to db. The caller keeps ownership of
// db and closes it after Close returns.
func NewRecorder(db *sql.DB, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		db:       db,
		logger:   logger,
		events:   make(chan event, eventBuffer),
		counters: make(map[string]uint64),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go r.loop()
	return r
}

// Record queues one event. Never blocks: when the buffer is full the event
// is dropped and only the in-memory counter advances.
func (r *Recorder) Record(name, detail string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.counters[name]++
	r.mu.Unlock()

	select {
	case r.events <- event{id: idgen.New(), name: name, detail: detail, at: time.Now()}:
	default:
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
	}
}

// Counters returns a snapshot of per-event totals since process start.
func (r *Recorder) Counters() map[string]uint64 {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]uint64, len(r.counters))
	for k, v := range r.counters {
		out[k] = v
	}
	return out
}

// Dropped returns how many events overflowed the persistence buffer.
func (r *Recorder) Dropped() uint64 {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close flushes buffered events and stops the background goroutine.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	close(r.stop)
	<-r.done
	return nil
}

func (r *Recorder) loop() {
	defer close(r.done)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	var batch []event
	for {
		select {
		case ev := <-r.events:
			batch = append(batch, ev)
			if len(batch) >= eventBuffer/2 {
				r.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				r.flush(batch)
				batch = batch[:0]
			}
		case <-r.stop:
			// Drain whatever Record managed to queue before Close.
			for {
				select {
				case ev := <-r.events:
					batch = append(batch, ev)
					continue
				default:
				}
				break
			}
			if len(batch) > 0 {
				r.flush(batch)
			}
			return
		}
	}
}

func (r *Recorder) flush(batch []event) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	err := dbopen.RunTx(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO events (id, name, detail, timestamp) VALUES (?,?,?,?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, ev := range batch {
			if _, err := stmt.ExecContext(ctx, ev.id, ev.name, ev.detail, ev.at.Unix()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.logger.Error("stats flush failed", "error", err, "events", len(batch))
	}
}

// Count reports how many events with name were persisted since cutoff.
// Zero cutoff means all time.
func (r *Recorder) Count(ctx context.Context, name string, cutoff time.Time) (int64, error) {
	if r == nil {
		return 0, nil
	}
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE name = ? AND timestamp >= ?`,
		name, cutoff.Unix()).Scan(&n)
	return n, err
}

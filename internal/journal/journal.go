package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/zanderp25/DeskThing-Client/pkg/wire"
)

// ErrBufferFull is returned by Record when the envelope was dropped.
var ErrBufferFull = errors.New("journal buffer full")

// Config configures a Journal.
type Config struct {
	Table         string
	BatchSize     int
	FlushInterval time.Duration
	BufferSize    int
}

// DefaultConfig returns the default journal configuration.
func DefaultConfig() Config {
	return Config{
		Table:         "deskthing_messages",
		BatchSize:     100,
		FlushInterval: time.Second,
		BufferSize:    1000,
	}
}

// Metrics tracks journal activity.
type Metrics struct {
	Received int64
	Dropped  int64
	Inserts  int64
	Flushes  int64
	Errors   int64
}

type row struct {
	ID         uuid.UUID
	ReceivedAt time.Time
	App        string
	Type       string
	Request    string
	Payload    []byte
}

// Journal batches application envelopes into a Postgres table.
type Journal struct {
	cfg    Config
	logger *slog.Logger
	db     DB
	insert string

	input chan row
	now   func() time.Time

	// Batching
	batch   []row
	batchMu sync.Mutex

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metricsMu sync.Mutex
	metrics   Metrics
}

// New creates a Journal writing to db.
func New(cfg Config, db DB, logger *slog.Logger) *Journal {
	def := DefaultConfig()
	if cfg.Table == "" {
		cfg.Table = def.Table
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.BufferSize < cfg.BatchSize {
		cfg.BufferSize = max(def.BufferSize, cfg.BatchSize)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{
		cfg:    cfg,
		logger: logger.With("component", "journal"),
		db:     db,
		insert: fmt.Sprintf(`
			INSERT INTO %s (id, received_at, app, type, request, payload)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING
		`, pgx.Identifier{cfg.Table}.Sanitize()),
		input: make(chan row, cfg.BufferSize),
		now:   time.Now,
		batch: make([]row, 0, cfg.BatchSize),
	}
}

// Record is a listener.Listener. It enqueues application envelopes and
// ignores everything else.
func (j *Journal) Record(env wire.Envelope) error {
	if env.Kind != wire.KindApplication {
		return nil
	}
	r, err := j.transform(env)
	if err != nil {
		j.count(func(m *Metrics) { m.Errors++ })
		return err
	}

	select {
	case j.input <- r:
		j.count(func(m *Metrics) { m.Received++ })
		return nil
	default:
		j.count(func(m *Metrics) { m.Dropped++ })
		return ErrBufferFull
	}
}

// Start begins consuming envelopes and writing to the database.
func (j *Journal) Start(ctx context.Context) error {
	j.ctx, j.cancel = context.WithCancel(ctx)

	j.wg.Add(1)
	go j.consumeLoop()

	j.logger.Info("journal started",
		"table", j.cfg.Table,
		"batch_size", j.cfg.BatchSize,
		"flush_interval", j.cfg.FlushInterval,
	)
	return nil
}

// Stop drains buffered envelopes and writes them with ctx.
func (j *Journal) Stop(ctx context.Context) error {
	j.logger.Info("stopping journal")

	if j.cancel != nil {
		j.cancel()
	}

	// Wait for goroutines
	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		j.logger.Warn("journal stop timed out")
		return ctx.Err()
	}

	// Final drain and flush
drain:
	for {
		select {
		case r := <-j.input:
			j.append(r)
		default:
			break drain
		}
	}
	err := j.flush(ctx)

	j.logger.Info("journal stopped")
	return err
}

// Stats returns current metrics.
func (j *Journal) Stats() Metrics {
	j.metricsMu.Lock()
	defer j.metricsMu.Unlock()
	return j.metrics
}

func (j *Journal) count(fn func(*Metrics)) {
	j.metricsMu.Lock()
	fn(&j.metrics)
	j.metricsMu.Unlock()
}

// consumeLoop accumulates batches and flushes on size or interval.
func (j *Journal) consumeLoop() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-j.ctx.Done():
			return
		case r := <-j.input:
			if j.append(r) {
				_ = j.flush(j.ctx)
			}
		case <-ticker.C:
			_ = j.flush(j.ctx)
		}
	}
}

// append adds a row and reports whether the batch is full.
func (j *Journal) append(r row) bool {
	j.batchMu.Lock()
	defer j.batchMu.Unlock()
	j.batch = append(j.batch, r)
	return len(j.batch) >= j.cfg.BatchSize
}

// transform converts an envelope to a row.
func (j *Journal) transform(env wire.Envelope) (row, error) {
	var payload []byte
	if env.Payload != nil {
		var err error
		payload, err = json.Marshal(env.Payload)
		if err != nil {
			return row{}, fmt.Errorf("encode payload of %s/%s: %w", env.App, env.Type, err)
		}
	}
	return row{
		ID:         uuid.New(),
		ReceivedAt: j.now().UTC(),
		App:        env.App,
		Type:       env.Type,
		Request:    env.Request,
		Payload:    payload,
	}, nil
}

// flush writes the current batch to the database.
func (j *Journal) flush(ctx context.Context) error {
	j.batchMu.Lock()
	if len(j.batch) == 0 {
		j.batchMu.Unlock()
		return nil
	}

	// Take ownership of current batch
	batch := j.batch
	j.batch = make([]row, 0, j.cfg.BatchSize)
	j.batchMu.Unlock()

	start := time.Now()

	inserted, err := j.batchInsert(ctx, batch)
	if err != nil {
		lost := j.requeue(batch)
		j.count(func(m *Metrics) {
			m.Errors++
			m.Dropped += int64(lost)
		})
		j.logger.Error("batch insert failed",
			"error", err,
			"count", len(batch),
			"requeued", len(batch)-lost,
			"lost", lost,
		)
		return err
	}

	j.count(func(m *Metrics) {
		m.Inserts += int64(inserted)
		m.Flushes++
	})

	j.logger.Debug("flushed envelopes",
		"count", len(batch),
		"duration", time.Since(start),
	)
	return nil
}

// requeue puts the rows of a failed flush back ahead of rows that arrived
// since, keeping at most BufferSize rows. Inserts ignore conflicting ids,
// so rows the failed batch did write are not duplicated. It returns the
// number of oldest rows dropped to stay within the limit.
func (j *Journal) requeue(failed []row) int {
	j.batchMu.Lock()
	defer j.batchMu.Unlock()

	merged := make([]row, 0, len(failed)+len(j.batch))
	merged = append(merged, failed...)
	merged = append(merged, j.batch...)

	lost := 0
	if over := len(merged) - j.cfg.BufferSize; over > 0 {
		lost = over
		merged = merged[over:]
	}
	j.batch = merged
	return lost
}

// batchInsert inserts rows using pgx.Batch.
func (j *Journal) batchInsert(ctx context.Context, rows []row) (inserted int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(j.insert, r.ID, r.ReceivedAt, r.App, r.Type, r.Request, r.Payload)
	}

	results := j.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return inserted, err
		}
		inserted += int(ct.RowsAffected())
	}

	return inserted, nil
}

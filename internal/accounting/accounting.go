// Package accounting implements the Accounting Sink (C8): transactional,
// best-effort append of Cost Record and Request Log rows (§4.8).
//
// The batching architecture — buffered channel, background flush
// goroutine, drop-and-count on overflow, graceful drain on Close — is
// generalised from the teacher's internal/logger/logger.go, whose own
// comments in internal/app/init.go name this exact ClickHouse-backed
// path as the intended managed-build destination for request
// accounting. Cost Records and Request Logs are batched and flushed
// through two independent channels so a Request Log write failure can
// never poison cost accounting (§4.8).
package accounting

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	channelBuffer = 10_000
	batchSize     = 100
	flushInterval = time.Second
)

// CostRecord is the durable row described in §3.
type CostRecord struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	RequestID    string
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
	CostUSD      decimal.Decimal
	LatencyMs    int
	CreatedAt    time.Time
}

// RequestLog is the durable row describing the routing decision (§3).
type RequestLog struct {
	ID               uuid.UUID
	RequestID        string
	TenantID         uuid.UUID
	Task             string
	Budget           string
	LatencySensitive bool
	ProviderUsed     string
	FallbackUsed     bool
	Status           string // "success" or "failure"
	CreatedAt        time.Time
}

// DB is the seam onto the durable store. ClickHouseDB is the production
// implementation; a fake satisfying this interface is all tests need.
type DB interface {
	InsertCostRecords(ctx context.Context, rows []CostRecord) error
	InsertRequestLogs(ctx context.Context, rows []RequestLog) error
}

// Sink is a non-blocking, batched writer for both row kinds. Logging
// never blocks the request hot path: Record* sends to a buffered channel
// and returns immediately, dropping (and counting) entries only if the
// channel is completely full.
type Sink struct {
	db DB

	costCh chan CostRecord
	logCh  chan RequestLog
	done   chan struct{}

	closeOnce sync.Once
	wg        sync.WaitGroup

	droppedCost int64
	droppedLogs int64

	baseCtx context.Context
	log     *slog.Logger
}

// New builds a Sink and starts its two background flush goroutines.
func New(ctx context.Context, db DB, log *slog.Logger) *Sink {
	if log == nil {
		log = slog.Default()
	}
	s := &Sink{
		db:      db,
		costCh:  make(chan CostRecord, channelBuffer),
		logCh:   make(chan RequestLog, channelBuffer),
		done:    make(chan struct{}),
		baseCtx: ctx,
		log:     log,
	}
	s.wg.Add(2)
	go s.runCost()
	go s.runRequestLog()
	return s
}

// RecordCost enqueues a Cost Record write. Non-fatal, non-blocking: a full
// channel increments DroppedCost rather than blocking the caller (§4.8,
// §7 "DB errors in C8 ... response still 200").
func (s *Sink) RecordCost(rec CostRecord) {
	select {
	case s.costCh <- rec:
	default:
		atomic.AddInt64(&s.droppedCost, 1)
	}
}

// RecordRequestLog enqueues a Request Log write, independent of cost
// accounting (§4.8 "written in separate transactions").
func (s *Sink) RecordRequestLog(entry RequestLog) {
	select {
	case s.logCh <- entry:
	default:
		atomic.AddInt64(&s.droppedLogs, 1)
	}
}

func (s *Sink) DroppedCost() int64 { return atomic.LoadInt64(&s.droppedCost) }
func (s *Sink) DroppedLogs() int64 { return atomic.LoadInt64(&s.droppedLogs) }

// Close stops accepting new background work and drains whatever remains
// queued before returning.
func (s *Sink) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	s.wg.Wait()
	return nil
}

func (s *Sink) runCost() {
	defer s.wg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]CostRecord, 0, batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.db.InsertCostRecords(s.baseCtx, batch); err != nil {
			s.log.ErrorContext(s.baseCtx, "accounting: cost record batch insert failed",
				slog.String("error", err.Error()), slog.Int("rows", len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case rec := <-s.costCh:
			batch = append(batch, rec)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.done:
			for {
				select {
				case rec := <-s.costCh:
					batch = append(batch, rec)
					if len(batch) >= batchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

func (s *Sink) runRequestLog() {
	defer s.wg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]RequestLog, 0, batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.db.InsertRequestLogs(s.baseCtx, batch); err != nil {
			s.log.ErrorContext(s.baseCtx, "accounting: request log batch insert failed",
				slog.String("error", err.Error()), slog.Int("rows", len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-s.logCh:
			batch = append(batch, entry)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.done:
			for {
				select {
				case entry := <-s.logCh:
					batch = append(batch, entry)
					if len(batch) >= batchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

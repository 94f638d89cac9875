package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reqtrail/reqtrail/internal/model"
	"github.com/reqtrail/reqtrail/internal/pkg/logger"
	"github.com/reqtrail/reqtrail/internal/pkg/metrics"
)

type HistoryRepo interface {
	Insert(ctx context.Context, rec *model.RequestRecord) error
	List(ctx context.Context, q model.HistoryQuery) ([]*model.RequestRecord, error)
	Clear(ctx context.Context) (int64, error)

	// MaxID reports the highest sequence number currently stored, 0 when
	// empty. Clients polling with since_id use it as their resume point.
	MaxID(ctx context.Context) (uint64, error)
}

// HistoryService owns the persistence sink. Writes happen inline in the
// caller's request path: Record returns only after the durable store has
// accepted the row.
type HistoryService struct {
	repo    HistoryRepo
	buffer  *historyBuffer
	logFile *os.File

	encMu sync.Mutex
	enc   *json.Encoder

	// localSeq numbers records when no repo is attached to do it.
	localSeq atomic.Uint64

	subMu sync.RWMutex
	subs  map[chan *model.RequestRecord]struct{}
}

func NewHistoryService(logDir string, bufferSize int, repo HistoryRepo) (*HistoryService, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, err
	}

	// simple per-day file rotation
	filename := filepath.Join(logDir, "history-"+time.Now().Format("2006-01-02")+".jsonl")
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	return &HistoryService{
		repo:    repo,
		buffer:  newHistoryBuffer(bufferSize),
		logFile: f,
		enc:     json.NewEncoder(f),
		subs:    make(map[chan *model.RequestRecord]struct{}),
	}, nil
}

// Record persists one captured request. On repo failure the record is not
// kept anywhere durable; the error goes back to the caller and the response
// already sent to the client is unaffected.
func (s *HistoryService) Record(ctx context.Context, rec *model.RequestRecord) error {
	if rec == nil {
		return nil
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	if s.repo != nil {
		if err := s.repo.Insert(ctx, rec); err != nil {
			metrics.PersistFailures.Inc()
			return err
		}
	} else {
		rec.Seq = s.localSeq.Add(1)
	}
	metrics.RecordsPersisted.Inc()

	s.buffer.Add(rec.Clone())

	s.encMu.Lock()
	if err := s.enc.Encode(rec); err != nil {
		logger.Error("Failed to mirror history record to file", "error", err)
	}
	s.encMu.Unlock()

	s.publish(rec)
	return nil
}

func (s *HistoryService) List(ctx context.Context, q model.HistoryQuery) ([]*model.RequestRecord, error) {
	if s.repo != nil {
		records, err := s.repo.List(ctx, q)
		if err == nil {
			return records, nil
		}
		logger.Error("History repo list failed, serving from buffer", "error", err)
	}
	return s.buffer.List(q), nil
}

// MaxID reports the highest stored sequence number, falling back to the
// buffer's watermark when no repo is reachable.
func (s *HistoryService) MaxID(ctx context.Context) (uint64, error) {
	if s.repo != nil {
		id, err := s.repo.MaxID(ctx)
		if err == nil {
			return id, nil
		}
		logger.Error("History repo max-id failed, serving from buffer", "error", err)
	}
	return s.buffer.MaxSeq(), nil
}

// Clear drops every stored record and reports how many were removed.
func (s *HistoryService) Clear(ctx context.Context) (int64, error) {
	var removed int64
	if s.repo != nil {
		n, err := s.repo.Clear(ctx)
		if err != nil {
			return 0, err
		}
		removed = n
	} else {
		removed = int64(s.buffer.Len())
	}
	s.buffer.Reset()
	return removed, nil
}

// Subscribe registers a live-tail consumer. The returned cancel func must be
// called exactly once; after it returns the channel is closed.
func (s *HistoryService) Subscribe() (<-chan *model.RequestRecord, func()) {
	ch := make(chan *model.RequestRecord, 16)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
		s.subMu.Unlock()
	}
	return ch, cancel
}

func (s *HistoryService) publish(rec *model.RequestRecord) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for ch := range s.subs {
		select {
		case ch <- rec.Clone():
		default:
			// slow consumer, drop rather than block the request path
		}
	}
}

func (s *HistoryService) Close() {
	s.subMu.Lock()
	for ch := range s.subs {
		delete(s.subs, ch)
		close(ch)
	}
	s.subMu.Unlock()
	s.logFile.Close()
}

// historyBuffer is a fixed-size ring of the most recent records, used for
// listing when no durable repo is reachable.
type historyBuffer struct {
	mu        sync.Mutex
	maxSize   int
	records   []*model.RequestRecord
	nextIndex int
	maxSeq    uint64
}

func newHistoryBuffer(maxSize int) *historyBuffer {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &historyBuffer{
		maxSize: maxSize,
		records: make([]*model.RequestRecord, 0, maxSize),
	}
}

func (b *historyBuffer) Add(rec *model.RequestRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if rec.Seq > b.maxSeq {
		b.maxSeq = rec.Seq
	}
	if len(b.records) < b.maxSize {
		b.records = append(b.records, rec)
		return
	}
	b.records[b.nextIndex] = rec
	b.nextIndex = (b.nextIndex + 1) % b.maxSize
}

func (b *historyBuffer) MaxSeq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxSeq
}

func (b *historyBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

func (b *historyBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = b.records[:0]
	b.nextIndex = 0
	b.maxSeq = 0
}

// List filters the whole ring, sorts like the SQL backend would, and
// returns value copies, so stored records stay immutable no matter what
// callers do with the result.
func (b *historyBuffer) List(q model.HistoryQuery) []*model.RequestRecord {
	limit := q.Limit
	if limit <= 0 || limit > b.maxSize {
		limit = b.maxSize
	}

	b.mu.Lock()
	results := make([]*model.RequestRecord, 0, len(b.records))
	for _, rec := range b.records {
		if rec == nil {
			continue
		}
		if q.SinceSeq > 0 && rec.Seq < q.SinceSeq {
			continue
		}
		if q.From != nil && rec.CreatedAt.Before(*q.From) {
			continue
		}
		if q.To != nil && rec.CreatedAt.After(*q.To) {
			continue
		}
		if !model.MatchesFilter(rec, q.Filter) {
			continue
		}
		results = append(results, rec.Clone())
	}
	b.mu.Unlock()

	model.SortRecords(results, q.OrderBy)
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

package main

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

const (
	journalBuffer     = 256
	journalBatchSize  = 50
	journalFlushEvery = time.Second
)

var errJournalStopped = errors.New("journal stopped")

// journalOp is one request to the background writer. Exactly one of result,
// purge or done is set.
type journalOp struct {
	result *MatchResult
	purge  string
	done   chan struct{}
}

// Journal records match results of live rooms with batched background writes
type Journal struct {
	db       *DB
	ops      chan journalOp
	stop     chan struct{}
	exited   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewJournal creates and starts the journal background writer
func NewJournal(db *DB) *Journal {
	j := &Journal{
		db:     db,
		ops:    make(chan journalOp, journalBuffer),
		stop:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	j.wg.Add(1)
	go j.writer()
	return j
}

// Record enqueues a result (non-blocking). It is called from room loops, so a
// full queue drops the result rather than stalling a tick.
func (j *Journal) Record(r MatchResult) {
	select {
	case j.ops <- journalOp{result: &r}:
	default:
		log.Printf("journal: queue full, dropping result of room %s", r.RoomID)
	}
}

// Purge removes everything recorded for a room once earlier writes landed
func (j *Journal) Purge(roomID string) {
	select {
	case j.ops <- journalOp{purge: roomID}:
	case <-j.stop:
	}
}

// Sync waits until every operation queued before it has been written
func (j *Journal) Sync(ctx context.Context) error {
	select {
	case <-j.stop:
		return errJournalStopped
	default:
	}
	done := make(chan struct{})
	select {
	case j.ops <- journalOp{done: done}:
	case <-j.stop:
		return errJournalStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-j.exited:
		return errJournalStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Results returns a room's recorded results after pending writes are flushed
func (j *Journal) Results(ctx context.Context, roomID string, limit int) ([]ResultRow, error) {
	if err := j.Sync(ctx); err != nil {
		return nil, err
	}
	if j.db == nil {
		return []ResultRow{}, nil
	}
	return j.db.RoomResults(roomID, limit)
}

// Stop drains queued operations and shuts down the writer
func (j *Journal) Stop() {
	j.stopOnce.Do(func() { close(j.stop) })
	j.wg.Wait()
}

// writer is the background goroutine that batches results into the database
func (j *Journal) writer() {
	defer j.wg.Done()
	defer close(j.exited)

	batch := make([]MatchResult, 0, journalBatchSize)
	ticker := time.NewTicker(journalFlushEvery)
	defer ticker.Stop()

	handle := func(op journalOp) {
		switch {
		case op.result != nil:
			batch = append(batch, *op.result)
			if len(batch) >= journalBatchSize {
				batch = j.flush(batch)
			}
		case op.purge != "":
			batch = j.flush(batch)
			if j.db != nil {
				if err := j.db.PurgeRoom(op.purge); err != nil {
					log.Printf("journal: %v", err)
				}
			}
		case op.done != nil:
			batch = j.flush(batch)
			close(op.done)
		}
	}

	for {
		select {
		case op := <-j.ops:
			handle(op)
		case <-ticker.C:
			batch = j.flush(batch)
		case <-j.stop:
			for {
				select {
				case op := <-j.ops:
					handle(op)
				default:
					j.flush(batch)
					return
				}
			}
		}
	}
}

// flush writes a batch and returns it emptied
func (j *Journal) flush(batch []MatchResult) []MatchResult {
	if j.db == nil || len(batch) == 0 {
		return batch[:0]
	}
	if err := j.db.insertResults(batch); err != nil {
		log.Printf("journal: %v", err)
	}
	return batch[:0]
}

// Package audit provides the file-backed audit store: one JSON record
// per line, written by a background goroutine so evaluations never block
// on disk.
package audit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/aegis-authz/aegis/internal/domain/audit"
)

// defaultQueueSize bounds the in-flight records; beyond it records are
// dropped and counted rather than stalling the evaluation path.
const defaultQueueSize = 1024

// FileStore implements audit.Store by appending JSON lines to a file.
type FileStore struct {
	logger *slog.Logger
	queue  chan audit.Record
	drops  atomic.Int64

	wg     sync.WaitGroup
	closed atomic.Bool
	file   *os.File
}

// NewFileStore opens (appending) the audit file at path and starts the
// writer goroutine.
func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening audit file: %w", err)
	}
	s := &FileStore{
		logger: logger,
		queue:  make(chan audit.Record, defaultQueueSize),
		file:   f,
	}
	s.wg.Add(1)
	go s.writeLoop()
	return s, nil
}

// Record implements audit.Store. It never blocks; when the queue is full
// the record is dropped and counted.
func (s *FileStore) Record(r audit.Record) {
	if s.closed.Load() {
		return
	}
	select {
	case s.queue <- r:
	default:
		s.drops.Add(1)
	}
}

// Drops reports how many records were dropped due to backpressure.
func (s *FileStore) Drops() int64 { return s.drops.Load() }

// Close stops accepting records, flushes the queue, and closes the file.
func (s *FileStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.queue)
	s.wg.Wait()
	return s.file.Close()
}

func (s *FileStore) writeLoop() {
	defer s.wg.Done()
	enc := json.NewEncoder(s.file)
	for r := range s.queue {
		if err := enc.Encode(r); err != nil {
			s.logger.Error("writing audit record failed", "error", err)
		}
	}
}

package eventlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultQueueSize = 256

// ErrClosed is returned by write operations issued after Close.
var ErrClosed = errors.New("eventlog: store closed")

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Default: zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock sets the time source used for record timestamps and backup names.
// Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithQueueSize sets the write queue capacity. Default: 256.
func WithQueueSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

type taskKind int

const (
	taskAppend taskKind = iota
	taskReplace
	taskBarrier
)

// task is one queued write operation. Exactly one worker goroutine executes
// tasks, in enqueue order, so read-modify-write cycles never interleave.
type task struct {
	kind    taskKind
	record  json.RawMessage   // taskAppend: the marshaled record to push
	replace []json.RawMessage // taskReplace: the full array to write
	done    chan error        // nil for fire-and-forget
}

// Store persists event records as a single pretty-printed JSON array file.
//
// The file is exclusively owned by the Store: every mutation is funneled
// through a bounded FIFO task queue drained by one worker goroutine, so at
// most one write is in flight at any instant and writes complete in enqueue
// order. Reads are not queued and may observe the pre-write state, but never
// a torn file. A missing file is equivalent to an empty array; unparseable
// content triggers backup-then-salvage recovery on read.
type Store struct {
	path      string
	logger    *zap.Logger
	now       func() time.Time
	queueSize int

	mu sync.Mutex // guards physical access to the log file

	tasks   chan task
	drained chan struct{} // closed when the worker exits

	closeMu   sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// New creates a Store for the given log file path and starts its write
// worker. The file itself is created lazily on first read.
func New(path string, opts ...Option) *Store {
	s := &Store{
		path:      path,
		logger:    zap.NewNop(),
		now:       time.Now,
		queueSize: defaultQueueSize,
	}
	for _, opt := range opts {
		opt(s)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.logger.Warn("event log directory create failed",
				zap.String("dir", dir),
				zap.Error(err),
			)
		}
	}

	s.tasks = make(chan task, s.queueSize)
	s.drained = make(chan struct{})
	go s.run()
	return s
}

// Path returns the log file path.
func (s *Store) Path() string {
	return s.path
}

// Read returns every record currently in the log.
//
// Read never fails: a missing file is created as an empty array, unreadable
// content is logged and reported as empty, and corrupt content is recovered
// (see recovery.go). Callers always get some array, at worst empty.
func (s *Store) Read() []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

// readLocked implements Read. Caller must hold s.mu.
func (s *Store) readLocked() []json.RawMessage {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		if werr := os.WriteFile(s.path, []byte("[]"), 0o644); werr != nil {
			s.logger.Warn("event log create failed",
				zap.String("path", s.path),
				zap.Error(werr),
			)
		}
		return nil
	}
	if err != nil {
		s.logger.Warn("event log read failed",
			zap.String("path", s.path),
			zap.Error(err),
		)
		return nil
	}

	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}

	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err == nil {
		return records
	}

	if json.Valid(raw) {
		// Valid JSON that is not an array. Not corruption: report empty and
		// let the next write coerce the file back to an array.
		s.logger.Warn("event log holds non-array JSON, treating as empty",
			zap.String("path", s.path),
		)
		return nil
	}

	return s.recoverLocked(raw)
}

// Append records an event of the given type with an opaque JSON payload.
//
// The record's timestamp is assigned here, but the read-modify-write against
// the file runs later on the queue worker, in FIFO order with every other
// write. Append is fire-and-forget: an eventual write failure is logged and
// never surfaced, and the queue keeps advancing past it. Append blocks only
// when the queue is full.
func (s *Store) Append(eventType string, data json.RawMessage) {
	rec, err := json.Marshal(Event{
		Type:      eventType,
		Timestamp: s.now().UTC().Format(timestampLayout),
		Data:      data,
	})
	if err != nil {
		s.logger.Warn("event record marshal failed",
			zap.String("type", eventType),
			zap.Error(err),
		)
		return
	}
	if err := s.enqueue(task{kind: taskAppend, record: rec}); err != nil {
		s.logger.Warn("append dropped",
			zap.String("type", eventType),
			zap.Error(err),
		)
	}
}

// Overwrite replaces the log's content with the given array, waiting for the
// queued write to complete. A nil slice writes an empty array, never null.
func (s *Store) Overwrite(records []json.RawMessage) error {
	done := make(chan error, 1)
	if err := s.enqueue(task{kind: taskReplace, replace: records, done: done}); err != nil {
		return err
	}
	return <-done
}

// Clear resets the log to an empty array. Typically invoked after a digest
// has been dispatched so the log does not grow across dispatch cycles.
func (s *Store) Clear() error {
	return s.Overwrite(nil)
}

// Flush blocks until every write enqueued before it has completed.
func (s *Store) Flush() {
	done := make(chan error, 1)
	if err := s.enqueue(task{kind: taskBarrier, done: done}); err != nil {
		return
	}
	<-done
}

// Close drains the queue and stops the worker. Write operations issued after
// Close return ErrClosed; appends are dropped with a log entry. Idempotent.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.closeMu.Lock()
		s.closed = true
		s.closeMu.Unlock()
		close(s.tasks)
		<-s.drained
	})
}

func (s *Store) enqueue(t task) error {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	s.tasks <- t
	return nil
}

// run is the single queue consumer. Each append task re-reads the current
// array so that the full read-modify-write cycle is serialized; interleaved
// cycles would lose updates.
func (s *Store) run() {
	defer close(s.drained)
	for t := range s.tasks {
		var err error
		switch t.kind {
		case taskAppend:
			records := s.Read()
			records = append(records, t.record)
			err = s.write(records)
		case taskReplace:
			err = s.write(t.replace)
		case taskBarrier:
			// Nothing to do: reaching the barrier is the signal.
		}
		if t.done != nil {
			t.done <- err
		} else if err != nil {
			s.logger.Warn("event log write failed",
				zap.String("path", s.path),
				zap.Error(err),
			)
		}
	}
}

// write serializes the array pretty-printed and rewrites the file in full.
// Deliberately an in-place overwrite, not an atomic rename: durability here
// is best-effort, and read-time recovery handles a crash mid-write.
func (s *Store) write(records []json.RawMessage) error {
	if records == nil {
		records = []json.RawMessage{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("eventlog: marshal: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("eventlog: write %s: %w", s.path, err)
	}
	return nil
}

// Backup copies the current log file to a timestamp-suffixed sibling and
// returns the backup path. Used after a successful digest dispatch; the copy
// is never pruned. Distinct from the corruption backups written during
// recovery, which use a .backup-<millis> suffix.
func (s *Store) Backup() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("eventlog: backup read %s: %w", s.path, err)
	}

	stamp := strings.NewReplacer(":", "-", ".", "-").
		Replace(s.now().UTC().Format(timestampLayout))
	dst := s.path + "." + stamp
	if err := os.WriteFile(dst, raw, 0o644); err != nil {
		return "", fmt.Errorf("eventlog: backup write %s: %w", dst, err)
	}
	return dst, nil
}

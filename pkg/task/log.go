package task

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Log record event kinds.
const (
	EventProgress = "progress"
	EventWarning  = "warning"
	EventResult   = "result"
)

// Record is one line of a background task's append-only log. Records carry a
// per-task monotonically increasing sequence number so a reader can resume
// tailing after a crash by re-synchronizing on the next newline.
type Record struct {
	Seq          uint64    `json:"seq"`
	TS           time.Time `json:"ts"`
	Event        string    `json:"event"`
	Status       string    `json:"status,omitempty"`
	Turns        int       `json:"turns,omitempty"`
	InputTokens  int       `json:"input_tokens,omitempty"`
	OutputTokens int       `json:"output_tokens,omitempty"`
	Text         string    `json:"text,omitempty"`
	Reason       string    `json:"reason,omitempty"`
}

// logWriter appends records to a task's log file, enforcing the output-size
// ceiling. Once the ceiling is reached it writes a single truncation marker
// and silently drops everything after; an oversized task log is a warning,
// not an error.
type logWriter struct {
	mu        sync.Mutex
	f         *os.File
	seq       uint64
	written   int64
	limit     int64
	truncated bool
	log       *logrus.Entry
}

func newLogWriter(path string, limit int64, logger *logrus.Logger) (*logWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening task log %s: %w", path, err)
	}
	return &logWriter{
		f:     f,
		limit: limit,
		log:   logger.WithField("log", path),
	}, nil
}

// Append writes one record. The seq field is assigned here.
func (w *logWriter) Append(rec Record) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.truncated {
		return
	}

	w.seq++
	rec.Seq = w.seq
	if rec.TS.IsZero() {
		rec.TS = time.Now()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		w.log.WithError(err).Warn("dropping unencodable log record")
		return
	}
	data = append(data, '\n')

	if w.limit > 0 && w.written+int64(len(data)) > w.limit {
		w.truncate()
		return
	}

	n, err := w.f.Write(data)
	w.written += int64(n)
	if err != nil {
		w.log.WithError(err).Warn("task log write failed")
	}
}

// truncate writes the terminal truncation marker. Caller holds mu.
func (w *logWriter) truncate() {
	w.truncated = true
	w.seq++
	marker := Record{
		Seq:    w.seq,
		TS:     time.Now(),
		Event:  EventWarning,
		Reason: fmt.Sprintf("output truncated: log reached the %d byte ceiling", w.limit),
	}
	data, _ := json.Marshal(marker)
	data = append(data, '\n')
	n, _ := w.f.Write(data)
	w.written += int64(n)
	w.log.Warn("task output truncated at size ceiling")
}

// Truncated reports whether the ceiling was hit.
func (w *logWriter) Truncated() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.truncated
}

func (w *logWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

// ReadLog parses every record in a task log file. Unparseable lines (e.g. a
// torn write at the tail) are skipped rather than failing the read.
func ReadLog(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}

// Package audit implements the JSONL audit log writer (spec 6.4): one
// JSON object per line, appended to a calendar-date-rotating file
// under <workspace>/.intercom/logs/.
//
// Grounded on: original_source/src/audit/writer.rs (JsonlAuditWriter -
// mutex-guarded writer state holding the currently open file and its
// date, reopened whenever the calendar date advances between writes).
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/softwaresalt/agent-intercom/internal/ierrors"
	"github.com/softwaresalt/agent-intercom/internal/models"
)

// Logger is the contract any consumer of the audit trail depends on;
// the Request Broker, Session Manager, and MCP tool handlers record
// events through this narrow interface rather than the concrete
// Writer, matching the repository-wide small-interface idiom.
type Logger interface {
	Log(entry models.AuditRecord) error
}

// Writer is the daily-rotating JSONL implementation of Logger.
type Writer struct {
	logDir string
	logger *zap.Logger

	mu          sync.Mutex
	currentDate string
	file        *os.File
	buf         *bufio.Writer
}

// New constructs a Writer rooted at logDir, creating it (and any
// parent directories) if necessary.
func New(logDir string, logger *zap.Logger) (*Writer, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, ierrors.WrapConfig(err, "failed to create audit log directory %q", logDir)
	}
	return &Writer{logDir: logDir, logger: logger}, nil
}

// Log appends entry as one JSON line, rotating to a new file first if
// the calendar date has advanced since the last write.
func (w *Writer) Log(entry models.AuditRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	today := time.Now().UTC().Format("2006-01-02")
	if w.file == nil || w.currentDate != today {
		if err := w.rotate(today); err != nil {
			return err
		}
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return ierrors.WrapDb(err, "failed to encode audit record")
	}
	if _, err := w.buf.Write(line); err != nil {
		w.logger.Warn("failed to write audit log entry", zap.Error(err))
		return ierrors.WrapDb(err, "audit write failed")
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return ierrors.WrapDb(err, "audit write failed")
	}
	if err := w.buf.Flush(); err != nil {
		w.logger.Warn("failed to flush audit log", zap.Error(err))
		return ierrors.WrapDb(err, "audit flush failed")
	}
	return nil
}

// rotate opens (or creates) the audit file for date and makes it the
// active sink. The caller must hold w.mu.
func (w *Writer) rotate(date string) error {
	if w.file != nil {
		_ = w.buf.Flush()
		_ = w.file.Close()
	}
	path := filepath.Join(w.logDir, fmt.Sprintf("audit-%s.jsonl", date))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return ierrors.WrapConfig(err, "failed to open audit log %q", path)
	}
	w.file = f
	w.buf = bufio.NewWriter(f)
	w.currentDate = date
	return nil
}

// Close flushes and closes the currently open audit file, if any.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	if err := w.buf.Flush(); err != nil {
		return ierrors.WrapDb(err, "failed to flush audit log on close")
	}
	return w.file.Close()
}

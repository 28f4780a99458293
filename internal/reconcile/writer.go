// internal/reconcile/writer.go
package reconcile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/memeswap/internal/swap"
)

// Header is the first row of every reconciliation file.
var Header = []string{"timestamp", "attempt_id", "payer", "destination", "lamports", "signature", "status", "reason"}

// ErrClosed is returned by RecordFee after Close.
var ErrClosed = errors.New("reconcile: writer closed")

// CSVWriter appends fee outcomes that need operator follow-up to a CSV file.
// Every row is flushed and synced before RecordFee returns.
type CSVWriter struct {
	mu       sync.Mutex
	writer   *csv.Writer
	file     *os.File
	logger   *zap.Logger
	filePath string
	closed   bool

	writtenRecords uint64
}

// NewCSVWriter opens filePath in append mode, writing the header if the file is empty.
func NewCSVWriter(filePath string, logger *zap.Logger) (*CSVWriter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	w := &CSVWriter{
		writer:   csv.NewWriter(file),
		file:     file,
		logger:   logger.Named("reconcile"),
		filePath: filePath,
	}
	if stat.Size() == 0 {
		if err := w.writeRow(Header); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}
	return w, nil
}

// RecordFee implements swap.Reconciler.
func (w *CSVWriter) RecordFee(o swap.FeeOutcome) error {
	at := o.At
	if at.IsZero() {
		at = time.Now()
	}
	row := []string{
		at.UTC().Format(time.RFC3339),
		o.AttemptID,
		o.Payer,
		o.Destination,
		strconv.FormatUint(o.Lamports, 10),
		o.Signature,
		o.Status,
		o.Reason,
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if err := w.writeRow(row); err != nil {
		return err
	}
	w.writtenRecords++

	w.logger.Info("Fee outcome recorded",
		zap.String("attempt_id", o.AttemptID),
		zap.String("status", o.Status),
		zap.Uint64("lamports", o.Lamports))
	return nil
}

func (w *CSVWriter) writeRow(row []string) error {
	if err := w.writer.Write(row); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}
	return nil
}

// Close closes the underlying file. Further RecordFee calls fail with ErrClosed.
func (w *CSVWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	w.logger.Debug("Reconciliation file closed",
		zap.String("file", w.filePath),
		zap.Uint64("writtenRecords", w.writtenRecords))
	return nil
}

// Written returns the number of fee rows written by this writer.
func (w *CSVWriter) Written() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writtenRecords
}

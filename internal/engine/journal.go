package engine

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord is one line of the trade journal.
type TradeRecord struct {
	RunID        string           `json:"run_id"`
	Timestamp    time.Time        `json:"timestamp"`
	Side         string           `json:"side"`
	Symbol       string           `json:"symbol,omitempty"`
	Requested    string           `json:"requested,omitempty"`
	Result       string           `json:"result"`
	RejectReason string           `json:"reject_reason,omitempty"`
	USD          *decimal.Decimal `json:"usd,omitempty"`
	Units        *decimal.Decimal `json:"units,omitempty"`
	Price        *decimal.Decimal `json:"price,omitempty"`
	CashAfter    *decimal.Decimal `json:"cash_after,omitempty"`
}

// Journal appends trade records as newline delimited JSON. It is an audit
// trail only; nothing reads it back on startup. A nil *Journal discards.
type Journal struct {
	runID  string
	file   *os.File
	writer *bufio.Writer
	mu     sync.Mutex
}

func NewJournal(path string, runID string) (*Journal, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &Journal{
		runID:  runID,
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (j *Journal) RunID() string {
	if j == nil {
		return ""
	}
	return j.runID
}

func (j *Journal) Append(record TradeRecord) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	record.RunID = j.runID
	payload, err := json.Marshal(record)
	if err != nil {
		slog.Error("failed to marshal trade record", "error", err)
		return
	}
	if _, err := j.writer.Write(append(payload, '\n')); err != nil {
		slog.Error("failed to write trade record", "error", err)
		return
	}
	if err := j.writer.Flush(); err != nil {
		slog.Error("failed to flush trade journal", "error", err)
	}
}

func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.writer.Flush(); err != nil {
		_ = j.file.Close()
		return err
	}
	return j.file.Close()
}

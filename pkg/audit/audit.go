// Package audit records wallet lifecycle events in an append-only JSONL
// journal. Each record carries the SHA-256 hash of its predecessor so that
// edits, deletions and reordering are detected by Verify.
package audit

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MinAuditDiskSpace is the free space required before appending.
const MinAuditDiskSpace = 1024 * 1024 // 1 MB

// genesis is the chain value preceding the first record.
const genesis = "genesis"

// Operation types
const (
	OpWalletUnlock       = "wallet.unlock"
	OpWalletUnlockFailed = "wallet.unlock_failed"
	OpWalletLock         = "wallet.lock"
	OpWalletLockRejected = "wallet.lock_rejected"
	OpWalletDelete       = "wallet.delete"
	OpWalletExport       = "wallet.export"
	OpWalletImport       = "wallet.import"
)

// Result indicates the outcome of an operation
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultDenied  = "denied"
)

// Event is a single journal record.
type Event struct {
	Version   int    `json:"v"`
	ID        string `json:"id"`
	Timestamp string `json:"ts"` // RFC 3339 nanosecond precision

	Operation string `json:"op"`
	Wallet    string `json:"wallet"`
	Storage   string `json:"storage,omitempty"`

	Result string     `json:"result"`
	Error  *ErrorInfo `json:"error,omitempty"`

	Chain Chain `json:"chain"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Chain links a record to its predecessor.
type Chain struct {
	Sequence int64  `json:"seq"`
	PrevHash string `json:"prev"`
	Hash     string `json:"hash"`
}

// chainState is persisted next to the journal so appends do not need to
// re-read every file.
type chainState struct {
	Sequence int64  `json:"seq"`
	PrevHash string `json:"prev"`
}

// Logger appends events to monthly files under a directory.
type Logger struct {
	path     string
	storage  string
	mu       sync.Mutex
	loaded   bool
	sequence int64
	prevHash string
}

// NewLogger creates a journal rooted at path. Nothing is written until the
// first event.
func NewLogger(path string) *Logger {
	return &Logger{path: path, prevHash: genesis}
}

// WithStorage tags subsequent events with a storage kind.
func (l *Logger) WithStorage(kind string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.storage = kind
	return l
}

// Path returns the journal directory.
func (l *Logger) Path() string {
	return l.path
}

// Log appends an event for wallet.
func (l *Logger) Log(op, wallet, result string, errInfo *ErrorInfo) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.path, 0700); err != nil {
		return fmt.Errorf("audit: failed to create directory: %w", err)
	}
	if err := l.checkDiskSpace(); err != nil {
		return err
	}
	if !l.loaded {
		if err := l.loadChainState(); err != nil && !os.IsNotExist(err) {
			return err
		}
		l.loaded = true
	}

	event := Event{
		Version:   1,
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Operation: op,
		Wallet:    wallet,
		Storage:   l.storage,
		Result:    result,
		Error:     errInfo,
	}

	event.Chain.Sequence = l.sequence + 1
	event.Chain.PrevHash = l.prevHash
	event.Chain.Hash = hashRecord(&event)

	if err := l.writeEvent(&event); err != nil {
		return err
	}

	l.sequence = event.Chain.Sequence
	l.prevHash = event.Chain.Hash
	return l.saveChainState()
}

// LogSuccess is a convenience method for successful operations
func (l *Logger) LogSuccess(op, wallet string) error {
	return l.Log(op, wallet, ResultSuccess, nil)
}

// LogError is a convenience method for failed operations
func (l *Logger) LogError(op, wallet, code, msg string) error {
	return l.Log(op, wallet, ResultError, &ErrorInfo{Code: code, Message: msg})
}

// LogDenied is a convenience method for refused operations
func (l *Logger) LogDenied(op, wallet, reason string) error {
	return l.Log(op, wallet, ResultDenied, &ErrorInfo{Message: reason})
}

// hashRecord covers every field except the hash itself.
func hashRecord(e *Event) string {
	errData := ""
	if e.Error != nil {
		errData = e.Error.Code + "|" + e.Error.Message
	}
	data := fmt.Sprintf("%d|%s|%s|%s|%s|%s|%s|%s|%d|%s",
		e.Version, e.ID, e.Timestamp, e.Operation, e.Wallet, e.Storage,
		e.Result, errData, e.Chain.Sequence, e.Chain.PrevHash)
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

func (l *Logger) writeEvent(e *Event) error {
	filename := filepath.Join(l.path, time.Now().UTC().Format("2006-01")+".jsonl")

	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("audit: failed to open log file: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("audit: failed to marshal event: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("audit: failed to write event: %w", err)
	}
	return nil
}

func (l *Logger) loadChainState() error {
	data, err := os.ReadFile(filepath.Join(l.path, "audit.meta"))
	if err != nil {
		return err
	}
	var state chainState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("audit: corrupted chain state: %w", err)
	}
	l.sequence = state.Sequence
	l.prevHash = state.PrevHash
	return nil
}

func (l *Logger) saveChainState() error {
	data, err := json.Marshal(chainState{Sequence: l.sequence, PrevHash: l.prevHash})
	if err != nil {
		return fmt.Errorf("audit: failed to marshal chain state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(l.path, "audit.meta"), data, 0600); err != nil {
		return fmt.Errorf("audit: failed to save chain state: %w", err)
	}
	return nil
}

// VerifyResult contains the results of chain verification
type VerifyResult struct {
	Valid        bool     `json:"valid"`
	RecordsTotal int      `json:"records_total"`
	Errors       []string `json:"errors,omitempty"`
}

// Verify walks every journal file in order and checks sequence numbers,
// predecessor links and record hashes.
func (l *Logger) Verify() (*VerifyResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	events, err := l.readAll()
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{Valid: true}
	expectedPrev := genesis
	var expectedSeq int64 = 1

	for i := range events {
		e := &events[i]
		result.RecordsTotal++

		if e.Chain.Sequence != expectedSeq {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf(
				"sequence gap at record %s: expected %d, got %d", e.ID, expectedSeq, e.Chain.Sequence))
		}
		if e.Chain.PrevHash != expectedPrev {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf(
				"chain broken at record %s", e.ID))
		}
		if hashRecord(e) != e.Chain.Hash {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf(
				"hash mismatch at record %s: possible tampering", e.ID))
		}

		expectedPrev = e.Chain.Hash
		expectedSeq = e.Chain.Sequence + 1
	}

	return result, nil
}

// ListEvents returns the most recent events, optionally limited and
// filtered to those after since.
func (l *Logger) ListEvents(limit int, since time.Time) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	events, err := l.readAll()
	if err != nil {
		return nil, err
	}

	if !since.IsZero() {
		filtered := events[:0]
		for _, e := range events {
			ts, err := time.Parse(time.RFC3339Nano, e.Timestamp)
			if err != nil {
				continue
			}
			if ts.After(since) {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}

// Export renders events as "json" or "csv".
func (l *Logger) Export(format string) ([]byte, error) {
	events, err := l.ListEvents(0, time.Time{})
	if err != nil {
		return nil, err
	}

	switch format {
	case "json":
		return json.MarshalIndent(events, "", "  ")
	case "csv":
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		_ = w.Write([]string{"timestamp", "operation", "wallet", "result"})
		for _, e := range events {
			_ = w.Write([]string{csvSafe(e.Timestamp), csvSafe(e.Operation), csvSafe(e.Wallet), csvSafe(e.Result)})
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, fmt.Errorf("audit: failed to write csv: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("audit: unsupported format: %s", format)
	}
}

// csvSafe neutralises leading formula characters.
func csvSafe(field string) string {
	if field != "" && (field[0] == '=' || field[0] == '+' || field[0] == '-' || field[0] == '@') {
		return "'" + field
	}
	return field
}

func (l *Logger) readAll() ([]Event, error) {
	files, err := filepath.Glob(filepath.Join(l.path, "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("audit: failed to list log files: %w", err)
	}
	// YYYY-MM.jsonl names sort chronologically
	sort.Strings(files)

	var events []Event
	for _, file := range files {
		fileEvents, err := readLogFile(file)
		if err != nil {
			return nil, fmt.Errorf("audit: failed to read %s: %w", file, err)
		}
		events = append(events, fileEvents...)
	}
	return events, nil
}

func readLogFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("failed to parse line: %w", err)
		}
		events = append(events, e)
	}
	return events, scanner.Err()
}

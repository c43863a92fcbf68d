// Package audit implements the append-only vision-loop audit log (spec
// §4.6.5): one JSON object per iteration, written to a single file.
package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/ngoclaw/deskflow/internal/domain/vision"
	"github.com/ngoclaw/deskflow/internal/service/visionnav"
)

// Sink appends one JSON line per vision-loop iteration to path.
// 每次视觉循环迭代追加一行 JSON，仅追加不改写。
type Sink struct {
	mu   sync.Mutex
	file *os.File
}

// Open creates (or appends to) the audit log file at path, creating parent
// directories as needed.
func Open(path string) (*Sink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &Sink{file: f}, nil
}

// Close closes the underlying file.
func (s *Sink) Close() error {
	return s.file.Close()
}

var _ visionnav.AuditSink = (*Sink)(nil)

type record struct {
	TimestampMs  int64              `json:"timestamp"`
	RequestID    string             `json:"request_id"`
	Iteration    int                `json:"iter"`
	Action       vision.Action      `json:"action"`
	Coordinates  *vision.Coordinates `json:"coordinates,omitempty"`
	Confidence   float64            `json:"confidence"`
	Reasoning    string             `json:"reasoning"`
	Clamped      bool               `json:"clamped,omitempty"`
	LoopDetected bool               `json:"loop_detected,omitempty"`
	Critical     bool               `json:"critical,omitempty"`
	Outcome      string             `json:"outcome"`
}

// LogIteration appends entry as one JSON line.
func (s *Sink) LogIteration(entry visionnav.AuditEntry) {
	rec := record{
		TimestampMs:  entry.TimestampMs,
		RequestID:    entry.RequestID,
		Iteration:    entry.Iteration,
		Action:       entry.Action,
		Coordinates:  entry.Coordinates,
		Confidence:   entry.Confidence,
		Reasoning:    entry.Reasoning,
		Clamped:      entry.Clamped,
		LoopDetected: entry.LoopDetected,
		Critical:     entry.Critical,
		Outcome:      entry.Outcome,
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.file.Write(line)
}

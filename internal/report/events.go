package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventUpload   EventType = "upload"
	EventDedup    EventType = "dedup"
	EventConflict EventType = "conflict"
	EventRegister EventType = "register"
	EventSchema   EventType = "schema"
	EventReclaim  EventType = "reclaim"
	EventPurge    EventType = "purge"
	EventWatch    EventType = "watch"
	EventError    EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// Event represents a single event in the pipeline
type Event struct {
	Timestamp    time.Time  `json:"ts"`
	Level        EventLevel `json:"level"`
	Event        EventType  `json:"event"`
	SubjectID    string     `json:"subject_id,omitempty"`
	Context      string     `json:"context,omitempty"`
	Hash         string     `json:"hash,omitempty"`
	URL          string     `json:"url,omitempty"`
	AssetID      int64      `json:"asset_id,omitempty"`
	ParentID     int64      `json:"parent_id,omitempty"`
	Bytes        int64      `json:"bytes,omitempty"`
	Deduplicated bool       `json:"deduplicated,omitempty"`
	Table        string     `json:"table,omitempty"`
	Field        string     `json:"field,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	Duration     int64      `json:"duration_ms,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// EventLogger writes events to a JSONL file
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
}

// NewEventLogger creates a new event logger with a minimum log level
// minLevel determines which events are written (e.g., LevelInfo skips LevelDebug)
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("events-%s.jsonl", timestamp)
	path := filepath.Join(outputDir, filename)

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// NullLogger returns a logger that discards everything
func NullLogger() *EventLogger {
	return &EventLogger{}
}

// Path returns the log file path, empty for a null logger
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil // Silently ignore if logger not initialized
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// Close closes the underlying log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// LogUpload records a newly persisted asset
func (l *EventLogger) LogUpload(subjectID, context, hash, url string, assetID, bytes int64, duration time.Duration) {
	l.Log(&Event{
		Level:     LevelInfo,
		Event:     EventUpload,
		SubjectID: subjectID,
		Context:   context,
		Hash:      hash,
		URL:       url,
		AssetID:   assetID,
		Bytes:     bytes,
		Duration:  duration.Milliseconds(),
	})
}

// LogDedup records an upload satisfied by an existing asset
func (l *EventLogger) LogDedup(subjectID, context, hash string, assetID int64) {
	l.Log(&Event{
		Level:        LevelInfo,
		Event:        EventDedup,
		SubjectID:    subjectID,
		Context:      context,
		Hash:         hash,
		AssetID:      assetID,
		Deduplicated: true,
	})
}

// LogConflict records a create race resolved by falling back to lookup
func (l *EventLogger) LogConflict(subjectID, hash string, assetID int64) {
	l.Log(&Event{
		Level:     LevelInfo,
		Event:     EventConflict,
		SubjectID: subjectID,
		Hash:      hash,
		AssetID:   assetID,
		Reason:    "concurrent create for identical content",
	})
}

// LogRegister records a usage-edge registration, failed or not
func (l *EventLogger) LogRegister(subjectID, context string, assetID int64, err error) {
	event := &Event{
		Level:     LevelDebug,
		Event:     EventRegister,
		SubjectID: subjectID,
		Context:   context,
		AssetID:   assetID,
	}
	if err != nil {
		event.Level = LevelWarning
		event.Error = err.Error()
	}
	l.Log(event)
}

// LogSchema records a column observed missing in the backend schema
func (l *EventLogger) LogSchema(table, field string) {
	l.Log(&Event{
		Level:  LevelWarning,
		Event:  EventSchema,
		Table:  table,
		Field:  field,
		Reason: "column missing in deployed schema, dropped from writes",
	})
}

// LogReclaim records a swept asset
func (l *EventLogger) LogReclaim(assetID int64, hash string, bytes int64, reason string) {
	l.Log(&Event{
		Level:   LevelInfo,
		Event:   EventReclaim,
		AssetID: assetID,
		Hash:    hash,
		Bytes:   bytes,
		Reason:  reason,
	})
}

// LogPurge records removal of an orphaned object's bytes
func (l *EventLogger) LogPurge(url string, err error) {
	event := &Event{
		Level: LevelInfo,
		Event: EventPurge,
		URL:   url,
	}
	if err != nil {
		event.Level = LevelWarning
		event.Error = err.Error()
	}
	l.Log(event)
}

// LogWatch records an inbox file picked up by the watcher
func (l *EventLogger) LogWatch(path string, err error) {
	event := &Event{
		Level: LevelDebug,
		Event: EventWatch,
		URL:   path,
	}
	if err != nil {
		event.Level = LevelWarning
		event.Error = err.Error()
	}
	l.Log(event)
}

// LogError records a fatal pipeline error
func (l *EventLogger) LogError(subjectID, context string, err error) {
	l.Log(&Event{
		Level:     LevelError,
		Event:     EventError,
		SubjectID: subjectID,
		Context:   context,
		Error:     err.Error(),
	})
}

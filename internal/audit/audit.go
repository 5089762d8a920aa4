// Package audit writes a structured trail of administrative and
// upstream events, separate from the operational log.
package audit

import (
	"io"
	"log/slog"
	"os"
)

// EventType represents the type of audit event
type EventType string

const (
	EventMappingCreated EventType = "mapping_created"
	EventPersistFailed  EventType = "persist_failed"
	EventResolveServed  EventType = "resolve_served"
	EventUpstreamError  EventType = "upstream_error"
)

// Event represents one audit log record. The timestamp comes from the
// slog handler.
type Event struct {
	Type       EventType `json:"type"`
	MappingID  string    `json:"mapping_id,omitempty"`
	Mode       string    `json:"mode,omitempty"`
	TTLSeconds int       `json:"ttl_seconds,omitempty"`
	Cached     bool      `json:"cached,omitempty"`
	Code       int       `json:"code,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Config holds audit logger configuration
type Config struct {
	// Enabled enables/disables the audit trail
	Enabled bool `yaml:"enabled"`

	// Output is "stdout", "stderr", or a file path
	Output string `yaml:"output"`

	// Format is "json" or "text"
	Format string `yaml:"format"`
}

// DefaultConfig returns the default audit configuration
func DefaultConfig() *Config {
	return &Config{
		Enabled: true,
		Output:  "stdout",
		Format:  "json",
	}
}

// Logger writes audit events
type Logger struct {
	logger  *slog.Logger
	enabled bool
}

// NewLogger creates a new audit logger
func NewLogger(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var output io.Writer
	switch cfg.Output {
	case "stdout", "":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		output = f
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(output, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewJSONHandler(output, &slog.HandlerOptions{Level: slog.LevelInfo})
	}

	return &Logger{
		logger:  slog.New(handler),
		enabled: cfg.Enabled,
	}, nil
}

// Log writes an audit event
func (l *Logger) Log(event *Event) {
	if !l.enabled || l.logger == nil {
		return
	}

	attrs := []any{
		slog.String("type", string(event.Type)),
	}
	if event.MappingID != "" {
		attrs = append(attrs, slog.String("mapping_id", event.MappingID))
	}
	if event.Mode != "" {
		attrs = append(attrs, slog.String("mode", event.Mode))
	}
	if event.Type == EventMappingCreated {
		attrs = append(attrs, slog.Int("ttl_seconds", event.TTLSeconds))
	}
	if event.Type == EventResolveServed {
		attrs = append(attrs, slog.Bool("cached", event.Cached))
	}
	if event.Code != 0 {
		attrs = append(attrs, slog.Int("code", event.Code))
	}
	if event.Error != "" {
		attrs = append(attrs, slog.String("error", event.Error))
	}

	l.logger.Info("audit", attrs...)
}

// LogMappingCreated records a successful create operation
func (l *Logger) LogMappingCreated(id, mode string, ttlSeconds int) {
	l.Log(&Event{
		Type:       EventMappingCreated,
		MappingID:  id,
		Mode:       mode,
		TTLSeconds: ttlSeconds,
	})
}

// LogPersistFailed records a create whose durable write failed
func (l *Logger) LogPersistFailed(err error) {
	l.Log(&Event{
		Type:  EventPersistFailed,
		Error: err.Error(),
	})
}

// LogResolveServed records a served resolve, cached or fetched
func (l *Logger) LogResolveServed(id string, cached bool) {
	l.Log(&Event{
		Type:      EventResolveServed,
		MappingID: id,
		Cached:    cached,
	})
}

// LogUpstreamError records a failed upstream fetch. Code is 0 for
// transport failures.
func (l *Logger) LogUpstreamError(id string, code int, err error) {
	e := &Event{
		Type:      EventUpstreamError,
		MappingID: id,
		Code:      code,
	}
	if err != nil {
		e.Error = err.Error()
	}
	l.Log(e)
}

package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"solana-pool-monitor/internal/domain"
)

// File appends one JSON line per event to a local append-only file.
type File struct {
	mu sync.Mutex
	f  *os.File
}

// NewFile opens (or creates) the file in append-only mode.
func NewFile(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event file: %w", err)
	}
	return &File{f: f}, nil
}

// Compile-time interface check.
var _ Sink = (*File)(nil)

// Name identifies the sink.
func (s *File) Name() string { return "file" }

// Deliver appends the event as a JSON line.
func (s *File) Deliver(_ context.Context, event *domain.PoolCreationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.f.Write(data); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"track-tamper-detector/models"
)

type memoryReading struct {
	update    models.SensorUpdate
	expiresAt time.Time
}

// MemoryStore is the in-process Store used when no Redis address is set.
type MemoryStore struct {
	mu       sync.Mutex
	nextID   int64
	alerts   map[int64]*models.Alert
	active   map[string]int64
	readings map[string]memoryReading
	ttl      time.Duration
	now      func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(readingTTL time.Duration) *MemoryStore {
	return &MemoryStore{
		alerts:   make(map[int64]*models.Alert),
		active:   make(map[string]int64),
		readings: make(map[string]memoryReading),
		ttl:      readingTTL,
		now:      time.Now,
	}
}

func (s *MemoryStore) RecordAlert(_ context.Context, candidate models.Alert) (models.Alert, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.active[candidate.NodeID]; ok {
		existing := s.alerts[id]
		existing.LastSeen = candidate.LastSeen
		return *existing, false, nil
	}

	s.nextID++
	alert := candidate
	alert.ID = s.nextID
	s.alerts[alert.ID] = &alert
	s.active[alert.NodeID] = alert.ID
	return alert, true, nil
}

func (s *MemoryStore) ListAlerts(_ context.Context) ([]models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) MarkConstruction(_ context.Context, id int64) (models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.alerts[id]
	if !ok {
		return models.Alert{}, fmt.Errorf("alert %d: %w", id, models.ErrAlertNotFound)
	}
	alert.IsConstruction = true
	return *alert, nil
}

func (s *MemoryStore) ResolveAlert(_ context.Context, id int64) (models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.alerts[id]
	if !ok {
		return models.Alert{}, fmt.Errorf("alert %d: %w", id, models.ErrAlertNotFound)
	}
	alert.Status = models.AlertFixed
	if s.active[alert.NodeID] == id {
		delete(s.active, alert.NodeID)
	}
	return *alert, nil
}

func (s *MemoryStore) SaveReading(_ context.Context, update models.SensorUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.readings[update.NodeID] = memoryReading{
		update:    update,
		expiresAt: s.now().Add(s.ttl),
	}
	return nil
}

func (s *MemoryStore) GetReading(_ context.Context, nodeID string) (*models.SensorUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.readings[nodeID]
	if !ok {
		return nil, nil
	}
	if s.ttl > 0 && s.now().After(r.expiresAt) {
		delete(s.readings, nodeID)
		return nil, nil
	}
	update := r.update
	return &update, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

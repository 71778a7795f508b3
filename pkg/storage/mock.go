package storage

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/jwebster45206/npc-engine/pkg/belief"
	"github.com/jwebster45206/npc-engine/pkg/cognition"
	"github.com/jwebster45206/npc-engine/pkg/emotion"
	"github.com/jwebster45206/npc-engine/pkg/memory"
	"github.com/jwebster45206/npc-engine/pkg/persona"
	"github.com/jwebster45206/npc-engine/pkg/relationship"
)

type pairKey struct{ npc, user string }

// MockStorage is an in-memory Storage for tests.
type MockStorage struct {
	mu              sync.RWMutex
	relationships   map[pairKey]relationship.Relationship
	emotions        map[string]emotion.State
	playerBeliefs   map[pairKey]belief.Set
	selfBeliefs     map[string]belief.SelfSet
	turns           []memory.TurnEntry
	nextTurnID      int64
	memories        map[pairKey]string
	classifications []cognition.ClassificationRecord
	personas        map[string]*persona.Persona
	pingError       error
	saveMemoryError error
	saveMemoryCalls int
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates an empty mock storage.
func NewMockStorage() *MockStorage {
	return &MockStorage{
		relationships: make(map[pairKey]relationship.Relationship),
		emotions:      make(map[string]emotion.State),
		playerBeliefs: make(map[pairKey]belief.Set),
		selfBeliefs:   make(map[string]belief.SelfSet),
		memories:      make(map[pairKey]string),
		personas:      make(map[string]*persona.Persona),
	}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetSaveMemoryError makes SaveMemory fail with err until reset with nil.
func (m *MockStorage) SetSaveMemoryError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveMemoryError = err
}

// SaveMemoryCalls reports how many times SaveMemory succeeded.
func (m *MockStorage) SaveMemoryCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saveMemoryCalls
}

// AddPersona registers a persona for GetPersona.
func (m *MockStorage) AddPersona(p *persona.Persona) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.personas[p.ID] = p
}

// Turns returns a copy of every buffered row regardless of status.
func (m *MockStorage) Turns() []memory.TurnEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.turns)
}

// Ping mocks storage ping
func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

// Close mocks storage close
func (m *MockStorage) Close() error {
	return nil
}

func (m *MockStorage) EnsureRelationship(ctx context.Context, npcID, userID string) (*relationship.Relationship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pairKey{npcID, userID}
	rel, ok := m.relationships[k]
	if !ok {
		rel = *relationship.New(npcID, userID)
		rel.UpdatedAt = time.Now()
		m.relationships[k] = rel
	}
	return &rel, nil
}

func (m *MockStorage) LoadRelationship(ctx context.Context, npcID, userID string) (*relationship.Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rel, ok := m.relationships[pairKey{npcID, userID}]
	if !ok {
		return nil, ErrNotFound
	}
	return &rel, nil
}

func (m *MockStorage) SaveRelationship(ctx context.Context, rel *relationship.Relationship) error {
	if rel == nil {
		return errors.New("relationship cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relationships[pairKey{rel.NPCID, rel.UserID}] = *rel
	return nil
}

func (m *MockStorage) LoadEmotions(ctx context.Context, npcID string) (emotion.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.emotions[npcID]; ok {
		return s.Clone(), nil
	}
	return emotion.State{}, nil
}

func (m *MockStorage) SaveEmotions(ctx context.Context, npcID string, state emotion.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emotions[npcID] = state.Clone()
	return nil
}

func (m *MockStorage) LoadPlayerBeliefs(ctx context.Context, npcID, userID string) (belief.Set, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.playerBeliefs[pairKey{npcID, userID}]), nil
}

func (m *MockStorage) SavePlayerBeliefs(ctx context.Context, npcID, userID string, set belief.Set) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playerBeliefs[pairKey{npcID, userID}] = slices.Clone(set)
	return nil
}

func (m *MockStorage) LoadSelfBeliefs(ctx context.Context, npcID string) (belief.SelfSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.selfBeliefs[npcID]), nil
}

func (m *MockStorage) SaveSelfBeliefs(ctx context.Context, npcID string, set belief.SelfSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selfBeliefs[npcID] = slices.Clone(set)
	return nil
}

func (m *MockStorage) AppendTurn(ctx context.Context, entry *memory.TurnEntry) error {
	if entry == nil {
		return errors.New("turn entry cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextTurnID++
	entry.ID = m.nextTurnID
	entry.Status = memory.StatusPending
	entry.Processed = false
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	m.turns = append(m.turns, *entry)
	return nil
}

func (m *MockStorage) PendingTurns(ctx context.Context, npcID, userID string) ([]memory.TurnEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []memory.TurnEntry
	for _, t := range m.turns {
		if t.NPCID == npcID && t.UserID == userID && t.Status == memory.StatusPending {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MockStorage) MarkProcessed(ctx context.Context, npcID, userID string, ids []int64) error {
	m.transition(npcID, userID, ids, memory.StatusProcessed)
	return nil
}

func (m *MockStorage) ArchiveTurns(ctx context.Context, npcID, userID string, ids []int64) error {
	m.transition(npcID, userID, ids, memory.StatusSuperseded)
	return nil
}

func (m *MockStorage) transition(npcID, userID string, ids []int64, to memory.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.turns {
		t := &m.turns[i]
		if t.NPCID != npcID || t.UserID != userID || t.Status != memory.StatusPending || !slices.Contains(ids, t.ID) {
			continue
		}
		t.Status = to
		t.Processed = to == memory.StatusProcessed
	}
}

func (m *MockStorage) LoadMemory(ctx context.Context, npcID, userID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.memories[pairKey{npcID, userID}], nil
}

func (m *MockStorage) SaveMemory(ctx context.Context, npcID, userID string, doc string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveMemoryError != nil {
		return m.saveMemoryError
	}
	m.memories[pairKey{npcID, userID}] = doc
	m.saveMemoryCalls++
	return nil
}

func (m *MockStorage) AppendClassification(ctx context.Context, rec cognition.ClassificationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classifications = append(m.classifications, rec)
	return nil
}

func (m *MockStorage) ListClassifications(ctx context.Context, npcID, userID string) ([]cognition.ClassificationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []cognition.ClassificationRecord
	for _, r := range m.classifications {
		if r.NPCID == npcID && r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockStorage) GetPersona(ctx context.Context, npcID string) (*persona.Persona, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.personas[npcID]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

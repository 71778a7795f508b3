package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/jwebster45206/npc-engine/pkg/persona"
	"github.com/jwebster45206/npc-engine/pkg/storage"
)

// personaLoader reads personas from DATA_DIR/personas/{id}.yaml and caches
// them for the life of the process.
type personaLoader struct {
	dir    string
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]*persona.Persona
}

func newPersonaLoader(dataDir string, logger *slog.Logger) *personaLoader {
	if dataDir == "" {
		dataDir = "./data"
	}
	return &personaLoader{
		dir:    filepath.Join(dataDir, "personas"),
		logger: logger,
		cache:  make(map[string]*persona.Persona),
	}
}

func (l *personaLoader) get(npcID string) (*persona.Persona, error) {
	l.mu.RLock()
	p, ok := l.cache[npcID]
	l.mu.RUnlock()
	if ok {
		return p, nil
	}

	if npcID == "" || npcID != filepath.Base(npcID) {
		return nil, fmt.Errorf("invalid persona id %q", npcID)
	}

	var data []byte
	var err error
	for _, ext := range []string{".yaml", ".yml"} {
		data, err = os.ReadFile(filepath.Join(l.dir, npcID+ext))
		if err == nil || !errors.Is(err, fs.ErrNotExist) {
			break
		}
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("persona %s: %w", npcID, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read persona file: %w", err)
	}

	p, err = persona.Parse(npcID, data)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("Loaded persona", "npc_id", npcID, "dir", l.dir)

	l.mu.Lock()
	l.cache[npcID] = p
	l.mu.Unlock()
	return p, nil
}

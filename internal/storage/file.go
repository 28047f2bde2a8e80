package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dropDatabas3/farmauth/internal/observability/logger"
	"github.com/dropDatabas3/farmauth/internal/security/secretbox"
	"github.com/dropDatabas3/farmauth/internal/util/atomicwrite"
)

const fileFormatVersion = 1

var ErrCorrupt = errors.New("storage: archivo de sesión corrupto")

type fileDoc struct {
	Version int                  `json:"version"`
	Entries map[string]fileEntry `json:"entries"`
}

type fileEntry struct {
	Value     string     `json:"value"`
	Sealed    bool       `json:"sealed,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// fileStore relee el documento completo en cada operación; el volumen es de
// unas pocas claves por usuario.
type fileStore struct {
	path string
	box  *secretbox.Box
	now  func() time.Time
	mu   sync.Mutex
}

// NewFile abre (o creará en la primera escritura) el documento en cfg.Path.
// Con cfg.Key los valores se sellan con AES-GCM.
func NewFile(cfg FileConfig) (Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("file path vacío")
	}
	fs := &fileStore{path: cfg.Path, now: time.Now}
	if cfg.Key != "" {
		box, err := secretbox.New(cfg.Key)
		if err != nil {
			return nil, err
		}
		fs.box = box
	}
	return fs, nil
}

func (f *fileStore) load() (fileDoc, error) {
	doc := fileDoc{Version: fileFormatVersion, Entries: map[string]fileEntry{}}
	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, err
	}
	if len(b) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return fileDoc{Version: fileFormatVersion, Entries: map[string]fileEntry{}}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if doc.Entries == nil {
		doc.Entries = map[string]fileEntry{}
	}
	return doc, nil
}

// loadForWrite descarta un documento corrupto en lugar de bloquear la sesión.
func (f *fileStore) loadForWrite() (fileDoc, error) {
	doc, err := f.load()
	if errors.Is(err, ErrCorrupt) {
		logger.L().Warn("session file reset",
			logger.Component("storage"), logger.Driver(DriverFile), logger.Err(err))
		return doc, nil
	}
	return doc, err
}

func (f *fileStore) save(doc fileDoc) error {
	doc.Version = fileFormatVersion
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return atomicwrite.WriteFile(f.path, b, 0o600)
}

func (f *fileStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return "", err
	}
	e, ok := doc.Entries[key]
	if !ok {
		return "", ErrNotFound
	}
	if e.ExpiresAt != nil && !f.now().Before(*e.ExpiresAt) {
		return "", ErrNotFound
	}
	if !e.Sealed {
		return e.Value, nil
	}
	if f.box == nil {
		return "", fmt.Errorf("storage: %q está sellada y no hay clave configurada", key)
	}
	return f.box.Open(e.Value)
}

func (f *fileStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.loadForWrite()
	if err != nil {
		return err
	}
	now := f.now()
	e := fileEntry{Value: value, UpdatedAt: now.UTC()}
	if ttl > 0 {
		exp := now.Add(ttl).UTC()
		e.ExpiresAt = &exp
	}
	if f.box != nil {
		sealed, err := f.box.Seal(value)
		if err != nil {
			return err
		}
		e.Value, e.Sealed = sealed, true
	}
	doc.Entries[key] = e
	f.prune(doc, now)
	return f.save(doc)
}

func (f *fileStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.loadForWrite()
	if err != nil {
		return err
	}
	if _, ok := doc.Entries[key]; !ok {
		return nil
	}
	delete(doc.Entries, key)
	f.prune(doc, f.now())
	return f.save(doc)
}

func (f *fileStore) prune(doc fileDoc, now time.Time) {
	for k, e := range doc.Entries {
		if e.ExpiresAt != nil && !now.Before(*e.ExpiresAt) {
			delete(doc.Entries, k)
		}
	}
}

func (f *fileStore) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := f.load()
	return err
}

func (f *fileStore) Close() error { return nil }

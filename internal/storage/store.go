package storage

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

// Catalog is a read-only view of validated definitions.
type Catalog[T ValidatingSpec] interface {
	Get(string) (T, bool)
	IDs() []string
}

// decoders maps asset file extensions to their format.
var decoders = map[string]func([]byte, any) error{
	".json": json.Unmarshal,
	".yaml": yaml.Unmarshal,
	".yml":  yaml.Unmarshal,
}

// FileStore loads every JSON or YAML asset beneath a directory.
type FileStore[T ValidatingSpec] struct {
	path    string
	records map[string]T

	mu sync.RWMutex
}

func NewFileStore[T ValidatingSpec](path string) (*FileStore[T], error) {
	s := &FileStore[T]{
		path:    path,
		records: map[string]T{},
	}

	if err := s.Reload(); err != nil {
		return nil, err
	}

	return s, nil
}

// Reload rereads the directory. On error the previous records are kept.
func (s *FileStore[T]) Reload() error {
	records := map[string]T{}

	err := filepath.WalkDir(s.path, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		decode, ok := decoders[filepath.Ext(path)]
		if !ok {
			return nil
		}

		asset, err := loadAsset[T](path, decode)
		if err != nil {
			return fmt.Errorf("loading %s: %w", filepath.Base(path), err)
		}
		if err := asset.Validate(); err != nil {
			return fmt.Errorf("validating %s: %w", filepath.Base(path), err)
		}
		if _, ok := records[asset.Identifier]; ok {
			return fmt.Errorf("duplicate key detected: %s", asset.Identifier)
		}

		records[asset.Identifier] = asset.Spec
		return nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
	return nil
}

func (s *FileStore[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	val, ok := s.records[id]
	return val, ok
}

// IDs returns the loaded identifiers, sorted.
func (s *FileStore[T]) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func loadAsset[T ValidatingSpec](path string, decode func([]byte, any) error) (*Asset[T], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	asset := &Asset[T]{}
	if err := decode(data, asset); err != nil {
		return nil, fmt.Errorf("unmarshalling asset: %w", err)
	}
	return asset, nil
}

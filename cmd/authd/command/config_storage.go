package command

import (
	"fmt"
	"os"

	"github.com/pixil98/go-authority/internal/spawn"
	"github.com/pixil98/go-authority/internal/storage"
	"github.com/pixil98/go-errors"
)

type StorageConfig struct {
	Entities AssetConfig[*spawn.EntityDef] `json:"entities"`
}

func (c *StorageConfig) validate() error {
	el := errors.NewErrorList()
	el.Add(c.Entities.validate("entities"))
	return el.Err()
}

type AssetConfig[T storage.ValidatingSpec] struct {
	Path string `json:"path"`
}

func (c *AssetConfig[T]) validate(name string) error {
	if c.Path == "" {
		return fmt.Errorf("%s: path is required", name)
	}
	if _, err := os.Stat(c.Path); err != nil {
		return fmt.Errorf("%s: invalid path %q: %w", name, c.Path, err)
	}
	return nil
}

func (c *AssetConfig[T]) buildFileStore() (*storage.FileStore[T], error) {
	return storage.NewFileStore[T](c.Path)
}

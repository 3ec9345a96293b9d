package command

import (
	"fmt"
	"path/filepath"

	"github.com/pixil98/go-authority/internal/journal"
)

// JournalConfig enables the transition journal when Path is set.
type JournalConfig struct {
	Path    string `json:"path,omitempty"`
	Backlog int    `json:"backlog,omitempty"`
}

func (c *JournalConfig) validate() error {
	if c.Backlog < 0 {
		return fmt.Errorf("journal: backlog must not be negative")
	}
	if c.Path != "" && c.Path != ":memory:" && filepath.Ext(c.Path) == "" {
		return fmt.Errorf("journal: path %q needs a file name", c.Path)
	}
	return nil
}

func (c *JournalConfig) enabled() bool {
	return c.Path != ""
}

func (c *JournalConfig) buildJournal() (*journal.Journal, error) {
	var opts []journal.JournalOpt
	if c.Backlog > 0 {
		opts = append(opts, journal.WithBacklog(c.Backlog))
	}
	return journal.OpenSQLite(c.Path, opts...)
}

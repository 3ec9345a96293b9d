package display

import (
	"strings"
	"testing"

	"github.com/pixil98/go-testutil"
)

func TestEntityName(t *testing.T) {
	tests := map[string]struct {
		id  string
		exp string
	}{
		"single word": {id: "horse-1", exp: "Horse 1"},
		"multi word":  {id: "war-horse-2", exp: "War Horse 2"},
		"no suffix":   {id: "flag", exp: "Flag"},
		"empty":       {id: "", exp: ""},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			testutil.AssertEqual(t, "name", EntityName(tt.id), tt.exp)
		})
	}
}

func TestWrap(t *testing.T) {
	text := strings.Repeat("word ", 40)
	for _, line := range strings.Split(Wrap(text), "\n") {
		if len(line) > DefaultWidth {
			t.Errorf("line exceeds width: %d", len(line))
		}
	}
}

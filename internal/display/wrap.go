package display

import (
	"strings"

	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const DefaultWidth = 80

var titleCaser = cases.Title(language.English)

// Wrap word-wraps text to DefaultWidth, preserving ANSI escape sequences.
func Wrap(text string) string {
	return wordwrap.String(text, DefaultWidth)
}

// Title returns s in title case.
func Title(s string) string {
	return titleCaser.String(s)
}

// EntityName turns an instance id like "war-horse-2" into "War Horse 2".
func EntityName(id string) string {
	return Title(strings.ReplaceAll(id, "-", " "))
}

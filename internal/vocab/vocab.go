// Package vocab loads the category vocabulary: the fixed set of
// spending categories the classifier is allowed to assign, each with a
// free-text nature label (e.g. "Fuel,Expense").
package vocab

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Vocabulary is the ordered category -> nature mapping. Insertion order
// is preserved so the category list is enumerated to the model in a
// deterministic order, which also fixes the first-match tie-break when
// extracting a category from the model response.
type Vocabulary struct {
	names   []string
	natures map[string]string
}

// Load reads a vocabulary file from disk. Only a missing or unreadable
// file is an error; malformed lines are skipped by Parse.
func Load(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vocab.Load: open %q: %w", path, err)
	}
	defer f.Close()

	v, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("vocab.Load: read %q: %w", path, err)
	}
	return v, nil
}

// Parse reads lines of the form "category,nature". A line is accepted
// only when splitting on commas yields exactly two non-empty trimmed
// fields; everything else (blank lines, extra commas, missing fields)
// is skipped without error. A duplicate category keeps its original
// position but takes the last nature seen.
func Parse(r io.Reader) (*Vocabulary, error) {
	v := &Vocabulary{natures: make(map[string]string)}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		parts := strings.Split(strings.TrimSpace(scanner.Text()), ",")
		if len(parts) != 2 {
			continue
		}
		category := strings.TrimSpace(parts[0])
		nature := strings.TrimSpace(parts[1])
		if category == "" || nature == "" {
			continue
		}
		if _, seen := v.natures[category]; !seen {
			v.names = append(v.names, category)
		}
		v.natures[category] = nature
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("vocab.Parse: scan: %w", err)
	}

	return v, nil
}

// Names returns the category names in insertion order. The returned
// slice is shared; callers must not modify it.
func (v *Vocabulary) Names() []string {
	return v.names
}

// Nature returns the nature label for a category.
func (v *Vocabulary) Nature(category string) (string, bool) {
	n, ok := v.natures[category]
	return n, ok
}

// Len returns the number of categories.
func (v *Vocabulary) Len() int {
	return len(v.names)
}

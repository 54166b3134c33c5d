package session

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/partools/par/errors"
)

// History tracks the two most recently opened labels so "open -" can jump
// back to the previous one. Anything deeper than two slots is deliberately
// not recorded.
type History struct {
	path string
}

type historyDoc struct {
	Current  string `json:"current"`
	Previous string `json:"previous"`
}

// NewHistory creates a history backed by the given file.
func NewHistory(path string) *History {
	return &History{path: path}
}

func (h *History) load() historyDoc {
	var doc historyDoc
	data, err := os.ReadFile(h.path)
	if err != nil {
		return doc
	}
	// A broken history file is not worth recovering; jump history just resets.
	_ = json.Unmarshal(data, &doc)
	return doc
}

func (h *History) save(doc historyDoc) error {
	if err := os.MkdirAll(filepath.Dir(h.path), 0755); err != nil {
		return errors.StateWrite(h.path, err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.StateWrite(h.path, err)
	}
	if err := os.WriteFile(h.path, data, 0644); err != nil {
		return errors.StateWrite(h.path, err)
	}
	return nil
}

// RecordOpen shifts the history when a label is opened. Re-opening the
// current label is a no-op so toggling with "open -" keeps working.
func (h *History) RecordOpen(label string) error {
	doc := h.load()
	if doc.Current == label {
		return nil
	}
	doc.Previous = doc.Current
	doc.Current = label
	return h.save(doc)
}

// Previous resolves the "-" target to the previously opened label.
func (h *History) Previous() (string, error) {
	doc := h.load()
	if doc.Previous == "" {
		return "", errors.New(errors.ErrCodeNotFound, "no previous session to switch to")
	}
	return doc.Previous, nil
}

// Forget drops a label from the history, used when its record is removed.
func (h *History) Forget(label string) error {
	doc := h.load()
	changed := false
	if doc.Current == label {
		doc.Current = doc.Previous
		doc.Previous = ""
		changed = true
	}
	if doc.Previous == label {
		doc.Previous = ""
		changed = true
	}
	if !changed {
		return nil
	}
	return h.save(doc)
}

package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/partools/par/errors"
)

const (
	// SessionsFile holds single-repo and checkout session records.
	SessionsFile = "sessions.json"

	// WorkspacesFile holds multi-repo workspace records.
	WorkspacesFile = "workspaces.json"

	// legacyStateFile is the pre-split layout: either a bare sessions
	// document, or a unified document with "sessions"/"workspaces" keys.
	legacyStateFile = "state.json"

	legacyBackupSuffix = ".bak"
)

// Migrate upgrades any legacy store layout found in dataDir to the current
// split layout. It runs once at startup, before any store is read.
//
// Records from the legacy file are folded into sessions.json and
// workspaces.json without overwriting entries that already exist there. The
// legacy file is preserved as state.json.bak and then removed, so migration
// never runs twice for the same data.
func Migrate(dataDir string, log *logrus.Entry) error {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	legacyPath := filepath.Join(dataDir, legacyStateFile)
	data, err := os.ReadFile(legacyPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.StateWrite(legacyPath, err)
	}

	if strings.TrimSpace(string(data)) == "" {
		log.WithField("path", legacyPath).Debug("Legacy state file is empty, discarding")
		return retireLegacy(legacyPath, data)
	}

	sessions, workspaces, ok := splitLegacy(data)
	if !ok {
		log.WithField("path", legacyPath).Warn("Legacy state file is unparsable; preserving it as a backup only")
		return retireLegacy(legacyPath, data)
	}

	if err := foldInto(filepath.Join(dataDir, SessionsFile), sessions, log); err != nil {
		return err
	}
	if err := foldInto(filepath.Join(dataDir, WorkspacesFile), workspaces, log); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"sessions":   len(sessions),
		"workspaces": len(workspaces),
	}).Info("Migrated legacy state file to the split layout")

	return retireLegacy(legacyPath, data)
}

// splitLegacy interprets the legacy bytes. A unified document carries
// "sessions" and/or "workspaces" top-level keys whose values are scope maps;
// anything else that parses as a scope map is treated as sessions only.
func splitLegacy(data []byte) (sessions, workspaces Document, ok bool) {
	var unified struct {
		Sessions   Document `json:"sessions"`
		Workspaces Document `json:"workspaces"`
	}
	if err := json.Unmarshal(data, &unified); err == nil {
		if unified.Sessions != nil || unified.Workspaces != nil {
			if unified.Sessions == nil {
				unified.Sessions = make(Document)
			}
			if unified.Workspaces == nil {
				unified.Workspaces = make(Document)
			}
			return unified.Sessions, unified.Workspaces, true
		}
	}

	var flat Document
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, nil, false
	}
	return flat, make(Document), true
}

// foldInto merges the migrated document into an existing store file. Entries
// already present in the target win, so re-running against stale backups can
// never clobber newer records.
func foldInto(path string, migrated Document, log *logrus.Entry) error {
	if len(migrated) == 0 {
		return nil
	}

	store := NewStore(path, DefaultTTL, log)
	doc, err := store.Load()
	if err != nil {
		return err
	}

	for scope, records := range migrated {
		existing, ok := doc[scope]
		if !ok {
			doc[scope] = records
			continue
		}
		for label, record := range records {
			if _, taken := existing[label]; !taken {
				existing[label] = record
			}
		}
	}

	return store.Save(doc)
}

// retireLegacy preserves the consumed legacy bytes and removes the original
// file.
func retireLegacy(path string, data []byte) error {
	backupPath := path + legacyBackupSuffix
	if err := os.WriteFile(backupPath, data, 0644); err != nil {
		return errors.StateWrite(backupPath, err)
	}
	if err := os.Remove(path); err != nil {
		return errors.StateWrite(path, err)
	}
	return nil
}

// Package state implements the persistent record store backing sessions and
// workspaces. Each Store owns one JSON file partitioned into named scopes
// (a repository path or a global namespace) mapping labels to records.
//
// Reads are cached with a short TTL. Writes go through a temporary file and
// an atomic rename so a crash or concurrent reader never observes a partial
// document. An unparsable file is backed up once and replaced with an empty
// document instead of failing the process.
package state

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/partools/par/errors"
)

// DefaultTTL is how long a cached read stays valid before the next Load
// hits disk again.
const DefaultTTL = 30 * time.Second

// backupSuffix is appended to the store path when a corrupt file is set aside.
const backupSuffix = ".backup"

// Document is the full contents of one store file: scope key to label to
// record. Records are kept generic here; typed decoding happens at the
// session layer.
type Document map[string]map[string]any

// Store is a cached, crash-safe JSON document store bound to a single file.
type Store struct {
	path string
	ttl  time.Duration
	log  *logrus.Entry

	mu       sync.Mutex
	cache    Document
	loadedAt time.Time
	hasCache bool

	// now is swapped in tests to control TTL expiry.
	now func() time.Time
}

// NewStore creates a store for the given file. The file does not need to
// exist yet. A nil logger discards warnings.
func NewStore(path string, ttl time.Duration, log *logrus.Entry) *Store {
	if log == nil {
		silenced := logrus.New()
		silenced.SetOutput(io.Discard)
		log = logrus.NewEntry(silenced)
	}
	return &Store{
		path: path,
		ttl:  ttl,
		log:  log,
		now:  time.Now,
	}
}

// Path returns the file this store reads and writes.
func (s *Store) Path() string {
	return s.path
}

// Load returns the full document, serving the cached copy while it is fresh.
// A missing file yields an empty document. A corrupt file is copied aside
// once, logged, and replaced by an empty document; Load never fails for
// corruption.
func (s *Store) Load() (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (Document, error) {
	if s.hasCache && s.now().Sub(s.loadedAt) < s.ttl {
		return s.cache, nil
	}

	doc := make(Document)

	data, err := os.ReadFile(s.path)
	switch {
	case os.IsNotExist(err):
		// First run, nothing persisted yet.
	case err != nil:
		return nil, errors.StateWrite(s.path, err)
	case strings.TrimSpace(string(data)) == "":
		// Treat an empty file like a missing one.
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			s.recoverCorrupt(data, err)
			doc = make(Document)
		}
	}

	s.cache = doc
	s.loadedAt = s.now()
	s.hasCache = true
	return doc, nil
}

// recoverCorrupt preserves the unparsable bytes next to the store file. The
// backup is written only once so repeated loads of the same corrupt file do
// not churn.
func (s *Store) recoverCorrupt(data []byte, parseErr error) {
	backupPath := s.path + backupSuffix
	if _, err := os.Stat(backupPath); err == nil {
		s.log.WithField("backup", backupPath).Warn("State file is corrupt; backup already exists, starting empty")
		return
	}

	if err := os.WriteFile(backupPath, data, 0644); err != nil {
		s.log.WithError(err).WithField("path", s.path).Warn("State file is corrupt and backup failed; starting empty")
		return
	}

	s.log.WithFields(logrus.Fields{
		"path":   s.path,
		"backup": backupPath,
		"error":  parseErr.Error(),
	}).Warn("State file is corrupt; backed it up and starting empty")
}

// Save atomically replaces the store file with the given document. The cache
// is updated only after the replace lands, so a failed write leaves both the
// file and the cache at their previous contents.
func (s *Store) Save(doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(doc)
}

func (s *Store) saveLocked(doc Document) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.StateWrite(s.path, err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.StateWrite(s.path, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return errors.StateWrite(s.path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.StateWrite(s.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.StateWrite(s.path, err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return errors.StateWrite(s.path, err)
	}

	s.cache = doc
	s.loadedAt = s.now()
	s.hasCache = true
	return nil
}

// Scope returns a copy of the sub-document stored under key. A missing
// scope yields an empty map. The caller may populate the copy and pass it
// back to SetScope; mutating it never touches the cache.
func (s *Store) Scope(key string) (map[string]any, error) {
	doc, err := s.Load()
	if err != nil {
		return nil, err
	}

	sub := make(map[string]any, len(doc[key]))
	for label, rec := range doc[key] {
		sub[label] = rec
	}
	return sub, nil
}

// SetScope replaces the sub-document under key. An empty sub-document
// removes the key, keeping the file minimal. The change is applied to a
// copy of the document, so a failed write leaves the cache at the contents
// that actually reached disk.
func (s *Store) SetScope(key string, sub map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.loadLocked()
	if err != nil {
		return err
	}

	doc := make(Document, len(current)+1)
	for k, v := range current {
		doc[k] = v
	}
	if len(sub) == 0 {
		delete(doc, key)
	} else {
		doc[key] = sub
	}

	return s.saveLocked(doc)
}

// Invalidate forces the next Load to read from disk regardless of TTL.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasCache = false
}

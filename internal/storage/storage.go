// Package storage persists installed bundle revisions and per-bundle data
// files on the local filesystem.
//
// Layout below the root directory:
//
//	bundle-<id>/
//	  bundle.yaml          install record (location, start level, autostart)
//	  revision-<n>.yaml    descriptor content of revision n
//	  data/                private data area handed out by DataFile
package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"gosgi/internal/module"
	"gosgi/pkg/logging"
)

const (
	bundleDirPrefix = "bundle-"
	recordFileName  = "bundle.yaml"
	dataDirName     = "data"
)

// Record is what the framework needs to reinstall a bundle after a restart.
type Record struct {
	ID         module.BundleID `yaml:"id"`
	Location   string          `yaml:"location"`
	Revision   int             `yaml:"revision"`
	StartLevel int             `yaml:"startLevel"`
	AutoStart  bool            `yaml:"autoStart"`
}

// FileStorage stores bundle content below a root directory.
type FileStorage struct {
	mu   sync.RWMutex
	root string
}

// NewFileStorage creates a FileStorage rooted at root. Nothing is created
// on disk until Init or Store is called.
func NewFileStorage(root string) *FileStorage {
	return &FileStorage{root: root}
}

// Root returns the storage root directory.
func (s *FileStorage) Root() string {
	return s.root
}

// Init prepares the root directory, wiping it first when clean is set.
func (s *FileStorage) Init(clean bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if clean {
		if err := os.RemoveAll(s.root); err != nil {
			return fmt.Errorf("failed to clean storage %s: %w", s.root, err)
		}
		logging.Info("Storage", "Cleaned bundle storage at %s", s.root)
	}
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", s.root, err)
	}
	return nil
}

// Store writes the content of one bundle revision.
func (s *FileStorage) Store(bundle module.BundleID, revision int, r io.Reader) error {
	if revision < 1 {
		return fmt.Errorf("revision must be positive, got %d", revision)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read content of bundle %d: %w", bundle, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.bundleDir(bundle)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	path := s.revisionPath(bundle, revision)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}

	logging.Debug("Storage", "Stored bundle %d revision %d at %s", bundle, revision, path)
	return nil
}

// Load returns the content of one bundle revision.
func (s *FileStorage) Load(bundle module.BundleID, revision int) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path := s.revisionPath(bundle, revision)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("bundle %d revision %d not found", bundle, revision)
		}
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return data, nil
}

// Open is Load wrapped in a reader.
func (s *FileStorage) Open(bundle module.BundleID, revision int) (io.Reader, error) {
	data, err := s.Load(bundle, revision)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// Prune removes every stored revision of bundle older than keep.
func (s *FileStorage) Prune(bundle module.BundleID, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rev := range s.revisionsLocked(bundle) {
		if rev >= keep {
			continue
		}
		if err := os.Remove(s.revisionPath(bundle, rev)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete revision %d of bundle %d: %w", rev, bundle, err)
		}
	}
	return nil
}

// Revisions lists the stored revisions of bundle in ascending order.
func (s *FileStorage) Revisions(bundle module.BundleID) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revisionsLocked(bundle)
}

func (s *FileStorage) revisionsLocked(bundle module.BundleID) []int {
	matches, _ := filepath.Glob(filepath.Join(s.bundleDir(bundle), "revision-*.yaml"))
	var revs []int
	for _, m := range matches {
		base := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), "revision-"), ".yaml")
		if n, err := strconv.Atoi(base); err == nil {
			revs = append(revs, n)
		}
	}
	sort.Ints(revs)
	return revs
}

// Remove deletes everything stored for bundle, data files included.
func (s *FileStorage) Remove(bundle module.BundleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.bundleDir(bundle)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete %s: %w", dir, err)
	}
	logging.Debug("Storage", "Removed storage of bundle %d", bundle)
	return nil
}

// DataFile returns the path of a file in the bundle's private data area.
// An empty name returns the data directory itself. The directory is created
// on demand.
func (s *FileStorage) DataFile(bundle module.BundleID, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.bundleDir(bundle), dataDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	if name == "" {
		return dir, nil
	}
	return filepath.Join(dir, sanitizeFilename(name)), nil
}

// SaveRecord persists the install record of a bundle.
func (s *FileStorage) SaveRecord(rec Record) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record of bundle %d: %w", rec.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.bundleDir(rec.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, recordFileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}
	return nil
}

// Records returns every persisted install record ordered by bundle id.
// Unreadable records are logged and skipped.
func (s *FileStorage) Records() ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", s.root, err)
	}

	var records []Record
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), bundleDirPrefix) {
			continue
		}
		path := filepath.Join(s.root, e.Name(), recordFileName)
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				logging.Warn("Storage", "Skipping unreadable record %s: %v", path, err)
			}
			continue
		}
		var rec Record
		if err := yaml.Unmarshal(data, &rec); err != nil {
			logging.Warn("Storage", "Skipping malformed record %s: %v", path, err)
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

func (s *FileStorage) bundleDir(bundle module.BundleID) string {
	return filepath.Join(s.root, fmt.Sprintf("%s%d", bundleDirPrefix, bundle))
}

func (s *FileStorage) revisionPath(bundle module.BundleID, revision int) string {
	return filepath.Join(s.bundleDir(bundle), fmt.Sprintf("revision-%d.yaml", revision))
}

// sanitizeFilename keeps data file names inside the data directory.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_", " ", "_")
	sanitized := replacer.Replace(name)

	for strings.Contains(sanitized, "__") {
		sanitized = strings.ReplaceAll(sanitized, "__", "_")
	}
	sanitized = strings.Trim(sanitized, "_")
	if sanitized == "" || sanitized == "." || sanitized == ".." {
		sanitized = "unnamed"
	}
	return sanitized
}

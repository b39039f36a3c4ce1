// Package cas implements the content-addressed store of block build results.
package cas

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.trai.ch/wasmblock/internal/core/domain"
	"go.trai.ch/wasmblock/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	entryFileName = "entry.json"
	blobsDirName  = "blobs"
	tmpPrefix     = ".tmp-"
)

var _ ports.CacheStore = (*Store)(nil)

// Store keeps one directory per cache key: <root>/store/<backend>/<digest>/{entry.json,blobs/}.
// Entries are staged in a temporary sibling and renamed into place, so readers never observe
// a half-written entry. Concurrent writers of the same key race and the last rename wins.
type Store struct {
	root   string
	logger ports.Logger
}

// NewStore creates a Store below the cache root.
func NewStore(root string, logger ports.Logger) *Store {
	return &Store{root: root, logger: logger}
}

// Root returns the cache root.
func (s *Store) Root() string {
	return s.root
}

// Get returns the entry stored under key. Missing, corrupt and partial entries are misses,
// including blobs whose content no longer matches the recorded digest.
func (s *Store) Get(key domain.CacheKey) (*domain.CacheEntry, error) {
	dir := s.entryDir(key)

	//nolint:gosec // path is built from the cache root and a hex digest
	data, err := os.ReadFile(filepath.Join(dir, entryFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, "failed to read cache entry"), "key", key.String())
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		s.corrupt(key, "unreadable entry")
		return nil, nil
	}
	if entry.Key != key {
		s.corrupt(key, "entry stored under the wrong key")
		return nil, nil
	}

	for i := range entry.Artifacts {
		a := &entry.Artifacts[i]
		if !validRelPath(a.Path) {
			s.corrupt(key, "artifact path escapes the entry: "+a.Path)
			return nil, nil
		}
		blob := filepath.Join(dir, blobsDirName, filepath.FromSlash(a.Path))
		info, err := os.Stat(blob)
		if err != nil || !info.Mode().IsRegular() || info.Size() != a.Size {
			s.corrupt(key, "missing or truncated artifact "+a.Path)
			return nil, nil
		}
		if digest, err := hashFile(blob); err != nil || digest != a.Digest {
			s.corrupt(key, "artifact content does not match its digest "+a.Path)
			return nil, nil
		}
		a.Source = blob
	}

	return &entry, nil
}

// Put stores entry, copying every artifact from dir/<artifact path>.
func (s *Store) Put(entry domain.CacheEntry, dir string) error {
	if entry.Key.IsZero() {
		return zerr.New("cache entry has no key")
	}

	backendDir := filepath.Join(domain.StorePath(s.root), entry.Key.Backend)
	if err := os.MkdirAll(backendDir, domain.DirPerm); err != nil {
		return zerr.Wrap(err, domain.ErrStoreCreateFailed.Error())
	}

	tmp := filepath.Join(backendDir, tmpPrefix+uuid.NewString())
	if err := os.MkdirAll(filepath.Join(tmp, blobsDirName), domain.DirPerm); err != nil {
		return zerr.Wrap(err, domain.ErrStoreCreateFailed.Error())
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(tmp)
		}
	}()

	for _, a := range entry.Artifacts {
		if !validRelPath(a.Path) {
			return zerr.With(zerr.New("invalid artifact path"), "path", a.Path)
		}
		src := filepath.Join(dir, filepath.FromSlash(a.Path))
		dst := filepath.Join(tmp, blobsDirName, filepath.FromSlash(a.Path))
		if err := copyFile(src, dst); err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrStoreWriteFailed.Error()), "artifact", a.Path)
		}
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return zerr.Wrap(err, domain.ErrStoreMarshalFailed.Error())
	}
	if err := os.WriteFile(filepath.Join(tmp, entryFileName), data, domain.FilePerm); err != nil {
		return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}

	final := s.entryDir(entry.Key)
	if err := replaceDir(tmp, final); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrStoreWriteFailed.Error()), "key", entry.Key.String())
	}
	committed = true
	return nil
}

// Stats counts entries and the bytes their blobs occupy.
func (s *Store) Stats() (domain.CacheStats, error) {
	stats := domain.CacheStats{Root: s.root}
	storeDir := domain.StorePath(s.root)

	err := filepath.WalkDir(storeDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() && strings.HasPrefix(d.Name(), tmpPrefix) {
			return filepath.SkipDir
		}
		if d.IsDir() {
			return nil
		}
		if d.Name() == entryFileName {
			stats.Entries++
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		stats.Bytes += info.Size()
		return nil
	})
	if err != nil {
		return stats, zerr.Wrap(err, "failed to scan cache")
	}
	return stats, nil
}

// Clean removes every entry and the backend work directories.
func (s *Store) Clean() error {
	for _, dir := range []string{domain.StorePath(s.root), filepath.Join(s.root, domain.WorkDirName)} {
		if err := os.RemoveAll(dir); err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrStoreCleanFailed.Error()), "path", dir)
		}
	}
	return nil
}

func (s *Store) entryDir(key domain.CacheKey) string {
	return filepath.Join(domain.StorePath(s.root), key.Backend, key.Digest)
}

func (s *Store) corrupt(key domain.CacheKey, reason string) {
	if s.logger == nil {
		return
	}
	s.logger.Warn("ignoring corrupt cache entry " + key.String() + ": " + reason)
}

// replaceDir renames src to dst, removing whatever dst held before.
func replaceDir(src, dst string) error {
	const attempts = 3
	var err error
	for range attempts {
		if err = os.RemoveAll(dst); err != nil {
			return err
		}
		if err = os.Rename(src, dst); err == nil {
			return nil
		}
		// Another writer renamed its entry in between.
		if !errors.Is(err, fs.ErrExist) && !errors.Is(err, syscall.ENOTEMPTY) {
			return err
		}
	}
	return err
}

func validRelPath(p string) bool {
	if p == "" || strings.HasPrefix(p, "/") || filepath.IsAbs(p) {
		return false
	}
	clean := filepath.ToSlash(filepath.Clean(filepath.FromSlash(p)))
	return clean == p && clean != ".." && !strings.HasPrefix(clean, "../")
}

func hashFile(path string) (string, error) {
	//nolint:gosec // path is a blob of a cache entry
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), domain.DirPerm); err != nil {
		return err
	}
	//nolint:gosec // artifacts come from the build staging directory
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	//nolint:gosec // dst lives in the cache
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm()|0o200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// FormatBytes renders n in binary units for the cache command.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatInt(n, 10) + " B"
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	value := float64(n) / float64(div)
	return strconv.FormatFloat(value, 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}

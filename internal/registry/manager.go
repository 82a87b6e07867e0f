package registry

import (
	"archive/tar"
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/fnhost/internal/funckey"
	"github.com/nextlevelbuilder/fnhost/internal/users"
)

const (
	metadataFileName = "metadata.json"
	configFileName   = "config.json"
	contentsDirName  = "contents"
)

// Cell is the shared mutable cell a canonical entry and its alias
// entry (if any) both point to. Readers snapshot under RLock and drop
// it before any suspension point; writers likewise never hold the
// lock across I/O.
type Cell struct {
	mu sync.RWMutex
	Fn Function
}

// Snapshot returns a copy of the cell's current Function value.
func (c *Cell) Snapshot() Function {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Fn
}

// Manager is the in-memory, persistent function catalog keyed by
// internal/funckey.Key, with a secondary alias namespace sharing cells
// with their canonical entry.
type Manager struct {
	mu      sync.RWMutex
	entries map[funckey.Key]*Cell
	root    string
	dirty   atomicBool
	log     *slog.Logger
}

// NewManager creates a Manager rooted at dir and loads any existing
// catalog from disk. A missing root directory is an empty catalog, not
// an error.
func NewManager(dir string, log *slog.Logger) (*Manager, error) {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{
		entries: make(map[funckey.Key]*Cell),
		root:    dir,
		log:     log,
	}
	if err := m.readFromFS(); err != nil {
		return nil, err
	}
	return m, nil
}

// Duplicated reports a key already present at add-time (as either
// canonical or alias).
type errKind int

const (
	errDuplicated errKind = iota
	errNotFound
	errNotAliased
)

type mgrError struct {
	kind errKind
	msg  string
}

func (e *mgrError) Error() string { return e.msg }

func IsDuplicated(err error) bool { e, ok := err.(*mgrError); return ok && e.kind == errDuplicated }
func IsNotFound(err error) bool   { e, ok := err.(*mgrError); return ok && e.kind == errNotFound }
func IsNotAliased(err error) bool { e, ok := err.(*mgrError); return ok && e.kind == errNotAliased }

func dupErr(k funckey.Key) error {
	return &mgrError{kind: errDuplicated, msg: fmt.Sprintf("function %q already exists", k)}
}
func notFoundErr(k funckey.Key) error {
	return &mgrError{kind: errNotFound, msg: fmt.Sprintf("no such function %q", k)}
}
func notAliasedErr(k funckey.Key) error {
	return &mgrError{kind: errNotAliased, msg: fmt.Sprintf("function %q has no alias", k)}
}

// ContentsPath returns the host filesystem path of a function's
// unpacked tarball contents directory.
func (m *Manager) ContentsPath(key funckey.Key) string {
	return filepath.Join(m.root, key.String(), contentsDirName)
}

func (m *Manager) funcDir(key funckey.Key) string {
	return filepath.Join(m.root, key.String())
}

// Add creates a canonical entry for key with the given initial group,
// and unpacks tarball (tar or gzipped-tar) into its contents
// directory. Fails Duplicated if key is already present, even as an
// alias.
func (m *Manager) Add(key funckey.Key, initGroup *users.Group, tarball io.Reader) error {
	m.mu.Lock()
	if _, exists := m.entries[key]; exists {
		m.mu.Unlock()
		return dupErr(key)
	}
	cell := &Cell{Fn: Function{
		Meta:   Metadata{Name: key.Name, Version: key.Version},
		Config: Config{Group: initGroup, Addr: DefaultAddr, Sandbox: DefaultSandboxConfig()},
	}}
	m.entries[key] = cell
	m.mu.Unlock()

	dir := m.funcDir(key)
	contentsDir := filepath.Join(dir, contentsDirName)
	if err := os.MkdirAll(contentsDir, 0o755); err != nil {
		return fmt.Errorf("creating contents directory: %w", err)
	}
	if err := extractTar(tarball, contentsDir); err != nil {
		return fmt.Errorf("unpacking tarball: %w", err)
	}
	m.dirty.set(true)
	return nil
}

// ModifyConfig replaces the config of the cell addressed by key
// (canonical or alias). Fails NotFound.
func (m *Manager) ModifyConfig(key funckey.Key, newConfig Config) error {
	m.mu.RLock()
	cell, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return notFoundErr(key)
	}
	cell.mu.Lock()
	cell.Fn.Config = newConfig
	cell.mu.Unlock()
	m.dirty.set(true)
	return nil
}

// ModifyAlias sets (or clears, if newAlias is nil) key's version
// alias. Idempotent if unchanged. Overwrites any previous occupant of
// the alias slot, clearing that occupant's own alias pointer if it was
// itself canonical, per spec.md §4.2.
func (m *Manager) ModifyAlias(key funckey.Key, newAlias *string) error {
	m.mu.Lock()
	cell, ok := m.entries[key]
	if !ok {
		m.mu.Unlock()
		return notFoundErr(key)
	}

	cell.mu.Lock()
	oldAlias := cell.Fn.Meta.VersionAlias
	if oldAlias == nil && newAlias == nil {
		cell.mu.Unlock()
		m.mu.Unlock()
		return nil
	}
	if oldAlias != nil && newAlias != nil && *oldAlias == *newAlias {
		cell.mu.Unlock()
		m.mu.Unlock()
		return nil
	}
	cell.Fn.Meta.VersionAlias = newAlias
	cell.mu.Unlock()

	if oldAlias != nil {
		delete(m.entries, funckey.Key{Name: key.Name, Version: *oldAlias})
	}
	if newAlias != nil {
		aliasKey := funckey.Key{Name: key.Name, Version: *newAlias}
		if prior, exists := m.entries[aliasKey]; exists && prior != cell {
			// prior is displaced from the alias slot: usually another
			// version that held this alias, but a canonical entry at the
			// same key is overwritten the same way. Either way prior's
			// VersionAlias is cleared.
			prior.mu.Lock()
			prior.Fn.Meta.VersionAlias = nil
			prior.mu.Unlock()
		}
		m.entries[aliasKey] = cell
	}
	m.mu.Unlock()

	m.dirty.set(true)
	return nil
}

// Remove deletes the canonical entry for key, its alias entry (if
// any), and the function's on-disk directory. Fails NotFound.
func (m *Manager) Remove(key funckey.Key) error {
	m.mu.Lock()
	cell, ok := m.entries[key]
	if !ok {
		m.mu.Unlock()
		return notFoundErr(key)
	}
	delete(m.entries, key)
	cell.mu.RLock()
	alias := cell.Fn.Meta.VersionAlias
	cell.mu.RUnlock()
	if alias != nil {
		delete(m.entries, funckey.Key{Name: key.Name, Version: *alias})
	}
	m.mu.Unlock()

	m.dirty.set(true)
	return os.RemoveAll(m.funcDir(key))
}

// Get resolves key (canonical or alias) to its cell.
func (m *Manager) Get(key funckey.Key) (*Cell, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cell, ok := m.entries[key]
	return cell, ok
}

// Dirty reports whether mutations are pending a flush.
func (m *Manager) Dirty() bool { return m.dirty.get() }

// --- persistence ---

// readFromFS scans the root for function subdirectories, parsing
// metadata.json and config.json in each, inserting the canonical entry
// and (if present) the alias entry. Duplicate entries are logged and
// skipped. A missing root is an empty catalog.
func (m *Manager) readFromFS() error {
	entries, err := os.ReadDir(m.root)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading registry root: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		key, err := funckey.Parse(entry.Name())
		if err != nil {
			m.log.Warn("skipping malformed function directory", slog.String("dir", entry.Name()), slog.Any("error", err))
			continue
		}
		dir := filepath.Join(m.root, entry.Name())
		var meta Metadata
		if err := readJSON(filepath.Join(dir, metadataFileName), &meta); err != nil {
			m.log.Warn("skipping function with unreadable metadata", slog.String("key", key.String()), slog.Any("error", err))
			continue
		}
		var cfg Config
		if err := readJSON(filepath.Join(dir, configFileName), &cfg); err != nil {
			m.log.Warn("skipping function with unreadable config", slog.String("key", key.String()), slog.Any("error", err))
			continue
		}
		cell := &Cell{Fn: Function{Meta: meta, Config: cfg}}

		if meta.VersionAlias != nil {
			aliasKey := funckey.Key{Name: key.Name, Version: *meta.VersionAlias}
			if _, exists := m.entries[aliasKey]; exists {
				m.log.Warn("duplicate alias entry during load, skipping", slog.String("alias_key", aliasKey.String()))
			} else {
				m.entries[aliasKey] = cell
			}
		}
		if _, exists := m.entries[key]; exists {
			m.log.Warn("duplicate function entry during load, skipping", slog.String("key", key.String()))
			continue
		}
		m.entries[key] = cell
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// WriteAllToFS fans out one write per canonical function in parallel;
// per-function errors are logged and do not abort the batch. The
// dirty flag is cleared regardless of partial failure — it tracks
// "pending work submitted", not "guaranteed durable".
func (m *Manager) WriteAllToFS() error {
	m.mu.RLock()
	type job struct {
		key  funckey.Key
		cell *Cell
	}
	var jobs []job
	seen := make(map[*Cell]bool)
	for k, cell := range m.entries {
		if cell.Fn.Meta.Name == k.Name && cell.Fn.Meta.Version == k.Version {
			if !seen[cell] {
				seen[cell] = true
				jobs = append(jobs, job{key: k, cell: cell})
			}
		}
	}
	m.mu.RUnlock()

	var g errgroup.Group
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			if err := m.writeOne(j.key, j.cell); err != nil {
				m.log.Error("writing function to disk", slog.String("key", j.key.String()), slog.Any("error", err))
			}
			return nil
		})
	}
	_ = g.Wait()
	m.dirty.set(false)
	return nil
}

func (m *Manager) writeOne(key funckey.Key, cell *Cell) error {
	fn := cell.Snapshot()
	dir := m.funcDir(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := writeJSONPretty(filepath.Join(dir, metadataFileName), fn.Meta); err != nil {
		return err
	}
	if err := writeJSONPretty(filepath.Join(dir, configFileName), fn.Config); err != nil {
		return err
	}
	return nil
}

func writeJSONPretty(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmp.Name())
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return err
	}
	cleanup = false
	return nil
}

func extractTar(r io.Reader, destDir string) error {
	var tr *tar.Reader

	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err == nil && len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("opening gzip stream: %w", err)
		}
		defer gz.Close()
		tr = tar.NewReader(gz)
	} else {
		tr = tar.NewReader(br)
	}

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}
		target := filepath.Join(destDir, filepath.Clean(hdr.Name))
		if !isWithinDir(destDir, target) {
			return fmt.Errorf("tar entry %q escapes destination directory", hdr.Name)
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode&0o777|0o200))
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
		default:
			// symlinks, devices, etc. are not supported contents and are skipped
		}
	}
}

func isWithinDir(dir, target string) bool {
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return false
	}
	return rel != ".." && !filepathHasPrefix(rel, ".."+string(filepath.Separator))
}

func filepathHasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

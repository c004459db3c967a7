package files

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/BHARGAVSAI558/final-zero-trust/internal/client"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/files/sniffer"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/ids"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/models"
)

var (
	ErrNotFound = errors.New("file not found")
	ErrNoActor  = errors.New("no authenticated user")
	ErrNoSink   = errors.New("download sink not configured")
)

// Actor is whoever performs a file operation; the AuthContext satisfies it.
type Actor interface {
	Username() string
}

type Remote interface {
	ListFiles(ctx context.Context) ([]models.FileEntry, error)
	ListRecycleBin(ctx context.Context) ([]models.FileEntry, error)
	ReadFile(ctx context.Context, name, user string, action models.FileAction) (models.FileContent, error)
	EditFile(ctx context.Context, name, content, user string) error
	DeleteFile(ctx context.Context, name, user string) error
	RestoreFile(ctx context.Context, trashedName, user string) error
	RecordFileAccess(ctx context.Context, ev models.FileAccessEvent) error
}

type DownloadSink interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

type mutationKind int

const (
	mutationDeleted mutationKind = iota + 1
	mutationRestored
	mutationSaved
)

// mutation is a confirmed change to one file. Lists fetched before gen was
// reached cannot undo it.
type mutation struct {
	kind        mutationKind
	gen         uint64
	trashedName string
}

// Manager owns the active and recycle-bin file lists. The server is
// authoritative for both; local changes only follow confirmed remote calls.
type Manager struct {
	remote Remote
	sink   DownloadSink
	logger zerolog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	loaded bool
	active map[string]models.FileEntry
	// trash is keyed by the server's trashed name.
	trash map[string]models.FileEntry
	// placeholders stand in for entries deleted locally whose trashed name
	// the server has not reported yet, keyed by original name.
	placeholders map[string]models.FileEntry
	purged       map[string]models.FileEntry
	// known remembers the last active metadata per name so restored
	// entries keep their sensitivity.
	known map[string]models.FileEntry
	// gen counts confirmed mutations; every refresh records the value it
	// started at.
	gen       uint64
	mutations map[string]mutation
}

func NewManager(remote Remote, sink DownloadSink, logger zerolog.Logger) *Manager {
	m := &Manager{
		remote: remote,
		sink:   sink,
		logger: logger.With().Str("component", "files").Logger(),
		now:    time.Now,
	}
	m.resetLocked()
	return m
}

func (m *Manager) resetLocked() {
	m.loaded = false
	m.active = map[string]models.FileEntry{}
	m.trash = map[string]models.FileEntry{}
	m.placeholders = map[string]models.FileEntry{}
	m.purged = map[string]models.FileEntry{}
	m.known = map[string]models.FileEntry{}
	m.mutations = map[string]mutation{}
}

func (m *Manager) generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gen
}

// confirmLocked records a mutation the server has acknowledged.
func (m *Manager) confirmLocked(name string, kind mutationKind, trashedName string) {
	m.gen++
	m.mutations[name] = mutation{kind: kind, gen: m.gen, trashedName: trashedName}
}

// newerThan returns the mutation of name confirmed after a fetch that
// started at gen.
func (m *Manager) newerThan(name string, gen uint64) (mutation, bool) {
	mu, ok := m.mutations[name]
	return mu, ok && mu.gen > gen
}

// settleLocked forgets mutations a full refresh started after them has
// already observed.
func (m *Manager) settleLocked(gen uint64) {
	for name, mu := range m.mutations {
		if mu.gen <= gen {
			delete(m.mutations, name)
		}
	}
}

func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

// Refresh fetches both lists and reconciles them. On failure the previous
// lists are kept. Entries changed by a mutation confirmed while the fetch
// was in flight keep their local state.
func (m *Manager) Refresh(ctx context.Context) error {
	start := m.generation()
	var active, trash []models.FileEntry
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		active, err = m.remote.ListFiles(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		trash, err = m.remote.ListRecycleBin(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyActiveLocked(active, start)
	m.applyTrashLocked(trash, start)
	m.settleLocked(start)
	m.loaded = true
	return nil
}

func (m *Manager) refreshTrash(ctx context.Context) error {
	start := m.generation()
	trash, err := m.remote.ListRecycleBin(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyTrashLocked(trash, start)
	return nil
}

func (m *Manager) applyActiveLocked(entries []models.FileEntry, start uint64) {
	next := make(map[string]models.FileEntry, len(entries))
	for _, e := range entries {
		e.State = models.FileStateActive
		if mu, ok := m.newerThan(e.Name, start); ok {
			if mu.kind == mutationDeleted {
				continue
			}
			if cur, ok := m.active[e.Name]; ok {
				e = cur
			}
		}
		next[e.Name] = e
		m.known[e.Name] = e
	}
	for name, mu := range m.mutations {
		if mu.gen <= start || mu.kind == mutationDeleted {
			continue
		}
		if _, listed := next[name]; listed {
			continue
		}
		if cur, ok := m.active[name]; ok {
			next[name] = cur
		}
	}
	m.active = next
}

// applyTrashLocked replaces the recycle bin with the server's view. An
// entry that left the bin without reappearing among active files was
// purged by the server.
func (m *Manager) applyTrashLocked(entries []models.FileEntry, start uint64) {
	next := make(map[string]models.FileEntry, len(entries))
	for _, e := range entries {
		if mu, ok := m.newerThan(e.OriginalName, start); ok && mu.kind == mutationRestored && mu.trashedName == e.Name {
			continue
		}
		e.State = models.FileStateTrashed
		if k, ok := m.known[e.OriginalName]; ok {
			e.Sensitivity = k.Sensitivity
			e.ModifiedAt = k.ModifiedAt
		}
		next[e.Name] = e
		delete(m.placeholders, e.OriginalName)
		delete(m.purged, e.Name)
	}

	for name, old := range m.trash {
		if _, still := next[name]; still {
			continue
		}
		if mu, ok := m.newerThan(old.OriginalName, start); ok && mu.kind == mutationDeleted {
			next[name] = old
			continue
		}
		if _, restored := m.active[old.OriginalName]; restored {
			continue
		}
		old.State = models.FileStatePurged
		m.purged[name] = old
	}
	m.trash = next
}

func (m *Manager) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

// List returns active files ordered by name.
func (m *Manager) List() []models.FileEntry {
	m.mu.RLock()
	out := make([]models.FileEntry, 0, len(m.active))
	for _, e := range m.active {
		out = append(out, e)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// ListTrash returns recycle-bin entries, most recently deleted first.
func (m *Manager) ListTrash() []models.FileEntry {
	m.mu.RLock()
	out := make([]models.FileEntry, 0, len(m.trash)+len(m.placeholders))
	for _, e := range m.trash {
		out = append(out, e)
	}
	for _, e := range m.placeholders {
		out = append(out, e)
	}
	m.mu.RUnlock()
	sortByDeleted(out)
	return out
}

func (m *Manager) Purged() []models.FileEntry {
	m.mu.RLock()
	out := make([]models.FileEntry, 0, len(m.purged))
	for _, e := range m.purged {
		out = append(out, e)
	}
	m.mu.RUnlock()
	sortByDeleted(out)
	return out
}

func sortByDeleted(out []models.FileEntry) {
	sort.SliceStable(out, func(a, b int) bool {
		da, db := out[a].DeletedAt, out[b].DeletedAt
		if da != nil && db != nil && !da.Equal(*db) {
			return da.After(*db)
		}
		if (da == nil) != (db == nil) {
			return da != nil
		}
		return out[a].Name < out[b].Name
	})
}

func (m *Manager) Open(ctx context.Context, actor Actor, name string) (models.FileContent, error) {
	user, err := userOf(actor)
	if err != nil {
		return models.FileContent{}, err
	}
	content, err := m.remote.ReadFile(ctx, name, user, models.FileActionRead)
	if err != nil {
		return models.FileContent{}, err
	}
	m.audit(ctx, user, name, models.FileActionRead)
	return content, nil
}

// Save overwrites a plain-text file. Download-only formats are refused with
// a NOT_EDITABLE error before anything is sent.
func (m *Manager) Save(ctx context.Context, actor Actor, name, content string) error {
	user, err := userOf(actor)
	if err != nil {
		return err
	}
	if !sniffer.Editable(name, []byte(content)) {
		return client.NewError(client.KindNotEditable, "save", fmt.Errorf("%s is download-only", name))
	}
	if err := m.remote.EditFile(ctx, name, content, user); err != nil {
		return err
	}

	m.mu.Lock()
	if e, ok := m.active[name]; ok {
		now := m.now()
		e.SizeBytes = int64(len(content))
		e.ModifiedAt = &now
		m.active[name] = e
		m.known[name] = e
		m.confirmLocked(name, mutationSaved, "")
	}
	m.mu.Unlock()

	m.audit(ctx, user, name, models.FileActionWrite)
	return nil
}

// Delete soft-deletes a file. The entry leaves the active list only once
// the server has confirmed the move into the recycle bin.
func (m *Manager) Delete(ctx context.Context, actor Actor, name string) error {
	user, err := userOf(actor)
	if err != nil {
		return err
	}
	if err := m.remote.DeleteFile(ctx, name, user); err != nil {
		return err
	}

	m.mu.Lock()
	now := m.now()
	entry, ok := m.active[name]
	if !ok {
		entry = m.known[name]
		entry.Name = name
	}
	delete(m.active, name)
	m.confirmLocked(name, mutationDeleted, "")
	m.placeholders[name] = models.FileEntry{
		OriginalName: name,
		SizeBytes:    entry.SizeBytes,
		ModifiedAt:   entry.ModifiedAt,
		DeletedAt:    &now,
		Sensitivity:  entry.Sensitivity,
		State:        models.FileStateTrashed,
	}
	m.mu.Unlock()

	m.audit(ctx, user, name, models.FileActionDelete)

	if err := m.refreshTrash(ctx); err != nil {
		m.logger.Warn().Err(err).Str("file", name).Msg("recycle bin refresh after delete failed")
	}
	return nil
}

// Restore moves a recycle-bin entry back to the active list. name may be the
// trashed name or the original one. Purged entries yield a CONFLICT error.
func (m *Manager) Restore(ctx context.Context, actor Actor, name string) (models.FileEntry, error) {
	user, err := userOf(actor)
	if err != nil {
		return models.FileEntry{}, err
	}

	entry, found, placeholder := m.lookupTrash(name)
	if placeholder {
		if err := m.refreshTrash(ctx); err != nil {
			return models.FileEntry{}, err
		}
		entry, found, placeholder = m.lookupTrash(name)
	}
	if !found || placeholder {
		if m.isPurged(name) {
			return models.FileEntry{}, client.NewError(client.KindConflict, "restore", fmt.Errorf("%s was purged", name))
		}
		return models.FileEntry{}, fmt.Errorf("restore %s: %w", name, ErrNotFound)
	}

	if err := m.remote.RestoreFile(ctx, entry.Name, user); err != nil {
		return models.FileEntry{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	restored, ok := m.known[entry.OriginalName]
	if !ok {
		restored = models.FileEntry{
			Name:        entry.OriginalName,
			SizeBytes:   entry.SizeBytes,
			ModifiedAt:  entry.ModifiedAt,
			Sensitivity: entry.Sensitivity,
		}
	}
	restored.State = models.FileStateActive
	delete(m.trash, entry.Name)
	delete(m.placeholders, restored.Name)
	m.active[restored.Name] = restored
	m.confirmLocked(restored.Name, mutationRestored, entry.Name)
	return restored, nil
}

func (m *Manager) lookupTrash(name string) (entry models.FileEntry, found, placeholder bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if e, ok := m.trash[name]; ok {
		return e, true, false
	}
	var best *models.FileEntry
	for _, e := range m.trash {
		if e.OriginalName != name {
			continue
		}
		if best == nil || (e.DeletedAt != nil && (best.DeletedAt == nil || e.DeletedAt.After(*best.DeletedAt))) {
			e := e
			best = &e
		}
	}
	if best != nil {
		return *best, true, false
	}
	if e, ok := m.placeholders[name]; ok {
		return e, true, true
	}
	return models.FileEntry{}, false, false
}

func (m *Manager) isPurged(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.purged[name]; ok {
		return true
	}
	for _, e := range m.purged {
		if e.OriginalName == name {
			return true
		}
	}
	return false
}

// Download copies a file into the download sink and returns its location.
func (m *Manager) Download(ctx context.Context, actor Actor, name string) (string, error) {
	user, err := userOf(actor)
	if err != nil {
		return "", err
	}
	if m.sink == nil {
		return "", ErrNoSink
	}
	content, err := m.remote.ReadFile(ctx, name, user, models.FileActionDownload)
	if err != nil {
		return "", err
	}
	data := []byte(content.Content)
	key := fmt.Sprintf("%s/%s-%s", user, ids.New(), name)
	location, err := m.sink.Put(ctx, key, data, sniffer.ContentType(name, data))
	if err != nil {
		return "", fmt.Errorf("store download: %w", err)
	}
	m.audit(ctx, user, name, models.FileActionDownload)
	return location, nil
}

// audit emits a file access event. Failures are logged and never reach the
// caller of the file operation.
func (m *Manager) audit(ctx context.Context, user, name string, action models.FileAction) {
	ev := models.FileAccessEvent{User: user, File: name, Action: action, Timestamp: m.now()}
	if err := m.remote.RecordFileAccess(ctx, ev); err != nil {
		m.logger.Warn().
			Err(err).
			Str("user", user).
			Str("file", name).
			Str("action", string(action)).
			Msg("file access event not recorded")
	}
}

func userOf(actor Actor) (string, error) {
	if actor == nil || actor.Username() == "" {
		return "", ErrNoActor
	}
	return actor.Username(), nil
}

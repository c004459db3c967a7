package files

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BHARGAVSAI558/final-zero-trust/internal/client"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/models"
)

type user string

func (u user) Username() string { return string(u) }

// fakeServer mimics the file service: deletes move files into a recycle bin
// under a timestamp prefix, restores move them back.
type fakeServer struct {
	mu       sync.Mutex
	active   map[string]models.FileEntry
	content  map[string]string
	trash    map[string]models.FileEntry
	events   []models.FileAccessEvent
	auditErr error
	listErr  error
	edits    int
}

func newFakeServer(entries ...models.FileEntry) *fakeServer {
	s := &fakeServer{
		active:  map[string]models.FileEntry{},
		content: map[string]string{},
		trash:   map[string]models.FileEntry{},
	}
	for _, e := range entries {
		s.active[e.Name] = e
		s.content[e.Name] = "content of " + e.Name
	}
	return s
}

func (s *fakeServer) ListFiles(ctx context.Context) ([]models.FileEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.FileEntry
	for _, e := range s.active {
		out = append(out, e)
	}
	return out, nil
}

func (s *fakeServer) ListRecycleBin(ctx context.Context) ([]models.FileEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.FileEntry
	for _, e := range s.trash {
		out = append(out, e)
	}
	return out, nil
}

func (s *fakeServer) ReadFile(ctx context.Context, name, user string, action models.FileAction) (models.FileContent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.content[name]
	if !ok {
		return models.FileContent{}, &client.Error{Kind: client.KindServer, Status: 404, Op: "read_file"}
	}
	return models.FileContent{Name: name, Content: c, Size: int64(len(c))}, nil
}

func (s *fakeServer) EditFile(ctx context.Context, name, content, user string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edits++
	s.content[name] = content
	return nil
}

func (s *fakeServer) DeleteFile(ctx context.Context, name, user string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.active[name]
	if !ok {
		return &client.Error{Kind: client.KindServer, Status: 404, Op: "delete_file"}
	}
	delete(s.active, name)
	deleted := time.Date(2024, 5, 1, 10, 15, 0, 0, time.UTC)
	trashed := "20240501_101500_" + name
	s.trash[trashed] = models.FileEntry{
		Name:         trashed,
		OriginalName: name,
		SizeBytes:    e.SizeBytes,
		DeletedAt:    &deleted,
		Sensitivity:  models.SensitivityInternal,
		State:        models.FileStateTrashed,
	}
	return nil
}

func (s *fakeServer) RestoreFile(ctx context.Context, trashedName, user string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.trash[trashedName]
	if !ok {
		return &client.Error{Kind: client.KindServer, Status: 404, Op: "restore_file"}
	}
	delete(s.trash, trashedName)
	s.active[e.OriginalName] = models.FileEntry{Name: e.OriginalName, SizeBytes: e.SizeBytes, State: models.FileStateActive}
	return nil
}

func (s *fakeServer) RecordFileAccess(ctx context.Context, ev models.FileAccessEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditErr != nil {
		return s.auditErr
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *fakeServer) purgeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trash = map[string]models.FileEntry{}
}

type memorySink struct {
	objects map[string][]byte
	types   map[string]string
}

func (m *memorySink) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	m.objects[key] = data
	m.types[key] = contentType
	return "downloads/" + key, nil
}

var modified = time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

func report() models.FileEntry {
	return models.FileEntry{
		Name:        "report.txt",
		SizeBytes:   120,
		ModifiedAt:  &modified,
		Sensitivity: models.SensitivitySensitive,
		State:       models.FileStateActive,
	}
}

func newTestManager(t *testing.T, server *fakeServer) *Manager {
	t.Helper()
	m := NewManager(server, &memorySink{objects: map[string][]byte{}, types: map[string]string{}}, zerolog.Nop())
	require.NoError(t, m.Refresh(context.Background()))
	return m
}

func TestDeleteRestoreRoundTrip(t *testing.T) {
	server := newFakeServer(report())
	m := newTestManager(t, server)
	ctx := context.Background()
	original := m.List()[0]

	require.NoError(t, m.Delete(ctx, user("bob"), "report.txt"))
	assert.Empty(t, m.List())
	trash := m.ListTrash()
	require.Len(t, trash, 1)
	assert.Equal(t, "20240501_101500_report.txt", trash[0].Name)
	assert.Equal(t, models.SensitivitySensitive, trash[0].Sensitivity, "sensitivity carried into the bin")

	restored, err := m.Restore(ctx, user("bob"), "report.txt")
	require.NoError(t, err)
	assert.Equal(t, original, restored)
	assert.Equal(t, []models.FileEntry{original}, m.List())
	assert.Empty(t, m.ListTrash())
}

func TestRestoreByTrashedName(t *testing.T) {
	server := newFakeServer(report())
	m := newTestManager(t, server)
	ctx := context.Background()

	require.NoError(t, m.Delete(ctx, user("bob"), "report.txt"))
	restored, err := m.Restore(ctx, user("bob"), "20240501_101500_report.txt")
	require.NoError(t, err)
	assert.Equal(t, "report.txt", restored.Name)
}

func TestPurgedEntryCannotBeRestored(t *testing.T) {
	server := newFakeServer(report())
	m := newTestManager(t, server)
	ctx := context.Background()

	require.NoError(t, m.Delete(ctx, user("bob"), "report.txt"))
	server.purgeAll()
	require.NoError(t, m.Refresh(ctx))

	purged := m.Purged()
	require.Len(t, purged, 1)
	assert.Equal(t, models.FileStatePurged, purged[0].State)

	_, err := m.Restore(ctx, user("bob"), "report.txt")
	require.Error(t, err)
	assert.Equal(t, client.KindConflict, client.KindOf(err))
}

func TestRestoreUnknown(t *testing.T) {
	m := newTestManager(t, newFakeServer())
	_, err := m.Restore(context.Background(), user("bob"), "ghost.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteFailureKeepsActive(t *testing.T) {
	server := newFakeServer(report())
	m := newTestManager(t, server)

	err := m.Delete(context.Background(), user("bob"), "missing.txt")
	require.Error(t, err)
	assert.Equal(t, client.KindServer, client.KindOf(err))
	assert.Len(t, m.List(), 1)
	assert.Empty(t, m.ListTrash())
}

func TestSaveRejectsDownloadOnlyFiles(t *testing.T) {
	server := newFakeServer(models.FileEntry{Name: "budget.xlsx"}, models.FileEntry{Name: "policy.pdf"})
	m := newTestManager(t, server)

	for _, name := range []string{"budget.xlsx", "policy.pdf", "letter.docx"} {
		err := m.Save(context.Background(), user("bob"), name, "new text")
		require.Error(t, err, name)
		assert.Equal(t, client.KindNotEditable, client.KindOf(err), name)
	}
	err := m.Save(context.Background(), user("bob"), "notes.txt", "%PDF-1.4 binary")
	assert.Equal(t, client.KindNotEditable, client.KindOf(err))
	assert.Zero(t, server.edits)
}

func TestSaveUpdatesSize(t *testing.T) {
	server := newFakeServer(report())
	m := newTestManager(t, server)

	require.NoError(t, m.Save(context.Background(), user("bob"), "report.txt", "short"))
	assert.Equal(t, int64(5), m.List()[0].SizeBytes)
	require.Len(t, server.events, 1)
	assert.Equal(t, models.FileActionWrite, server.events[0].Action)
}

func TestAuditFailureDoesNotBlockOperations(t *testing.T) {
	server := newFakeServer(report())
	server.auditErr = errors.New("audit service down")
	m := newTestManager(t, server)
	ctx := context.Background()

	content, err := m.Open(ctx, user("bob"), "report.txt")
	require.NoError(t, err)
	assert.Equal(t, "content of report.txt", content.Content)

	require.NoError(t, m.Save(ctx, user("bob"), "report.txt", "v2"))
	require.NoError(t, m.Delete(ctx, user("bob"), "report.txt"))
}

func TestOperationsEmitEvents(t *testing.T) {
	server := newFakeServer(report())
	m := newTestManager(t, server)
	ctx := context.Background()

	_, err := m.Open(ctx, user("bob"), "report.txt")
	require.NoError(t, err)
	require.NoError(t, m.Save(ctx, user("bob"), "report.txt", "v2"))
	require.NoError(t, m.Delete(ctx, user("bob"), "report.txt"))

	var actions []models.FileAction
	for _, ev := range server.events {
		assert.Equal(t, "bob", ev.User)
		assert.Equal(t, "report.txt", ev.File)
		actions = append(actions, ev.Action)
	}
	assert.Equal(t, []models.FileAction{models.FileActionRead, models.FileActionWrite, models.FileActionDelete}, actions)
}

func TestRefreshFailureKeepsLists(t *testing.T) {
	server := newFakeServer(report())
	m := newTestManager(t, server)

	server.listErr = &client.Error{Kind: client.KindNetwork, Op: "list_files"}
	require.Error(t, m.Refresh(context.Background()))
	assert.Len(t, m.List(), 1)
}

func TestDownload(t *testing.T) {
	server := newFakeServer(models.FileEntry{Name: "policy.pdf"})
	server.content["policy.pdf"] = "%PDF-1.4 body"
	sink := &memorySink{objects: map[string][]byte{}, types: map[string]string{}}
	m := NewManager(server, sink, zerolog.Nop())

	location, err := m.Download(context.Background(), user("bob"), "policy.pdf")
	require.NoError(t, err)
	assert.Contains(t, location, "downloads/bob/")
	require.Len(t, sink.objects, 1)
	for key, ct := range sink.types {
		assert.Equal(t, "application/pdf", ct)
		assert.Equal(t, []byte("%PDF-1.4 body"), sink.objects[key])
	}
	require.Len(t, server.events, 1)
	assert.Equal(t, models.FileActionDownload, server.events[0].Action)
}

func TestRequiresActor(t *testing.T) {
	m := newTestManager(t, newFakeServer(report()))
	_, err := m.Open(context.Background(), user(""), "report.txt")
	assert.ErrorIs(t, err, ErrNoActor)
}

// stallingServer snapshots both lists, then parks the listing until
// released, so a refresh can observe state from before a later mutation.
type stallingServer struct {
	*fakeServer
	listed  chan struct{}
	release chan struct{}
}

func stall(server *fakeServer) *stallingServer {
	return &stallingServer{fakeServer: server}
}

func (s *stallingServer) arm() {
	s.listed = make(chan struct{})
	s.release = make(chan struct{})
}

func (s *stallingServer) ListFiles(ctx context.Context) ([]models.FileEntry, error) {
	out, err := s.fakeServer.ListFiles(ctx)
	if s.release != nil {
		close(s.listed)
		<-s.release
	}
	return out, err
}

func (s *stallingServer) ListRecycleBin(ctx context.Context) ([]models.FileEntry, error) {
	if s.release != nil {
		<-s.listed
	}
	return s.fakeServer.ListRecycleBin(ctx)
}

func names(entries []models.FileEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func startStaleRefresh(t *testing.T, m *Manager, server *stallingServer) chan error {
	t.Helper()
	server.arm()
	done := make(chan error, 1)
	go func() { done <- m.Refresh(context.Background()) }()
	select {
	case <-server.listed:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh never listed files")
	}
	return done
}

func TestStaleRefreshKeepsConfirmedDelete(t *testing.T) {
	server := stall(newFakeServer(report(), models.FileEntry{Name: "notes.txt"}))
	m := NewManager(server, nil, zerolog.Nop())
	require.NoError(t, m.Refresh(context.Background()))

	done := startStaleRefresh(t, m, server)
	require.NoError(t, m.Delete(context.Background(), user("alice"), "report.txt"))
	close(server.release)
	require.NoError(t, <-done)
	server.release = nil

	assert.Equal(t, []string{"notes.txt"}, names(m.List()))
	trash := m.ListTrash()
	require.Len(t, trash, 1)
	assert.Equal(t, "report.txt", trash[0].OriginalName)
	assert.Empty(t, m.Purged(), "entry trashed after the fetch began is not purged")

	// A refresh started after the delete is authoritative again.
	require.NoError(t, m.Refresh(context.Background()))
	assert.Equal(t, []string{"notes.txt"}, names(m.List()))
	assert.Len(t, m.ListTrash(), 1)
	assert.Empty(t, m.mutations)
}

func TestStaleRefreshKeepsConfirmedRestore(t *testing.T) {
	server := stall(newFakeServer(report()))
	m := NewManager(server, nil, zerolog.Nop())
	ctx := context.Background()
	require.NoError(t, m.Refresh(ctx))
	require.NoError(t, m.Delete(ctx, user("alice"), "report.txt"))
	require.NoError(t, m.Refresh(ctx))

	done := startStaleRefresh(t, m, server)
	_, err := m.Restore(ctx, user("alice"), "report.txt")
	require.NoError(t, err)
	close(server.release)
	require.NoError(t, <-done)
	server.release = nil

	assert.Equal(t, []string{"report.txt"}, names(m.List()))
	assert.Empty(t, m.ListTrash())
	assert.Empty(t, m.Purged())
}

func TestStaleRefreshKeepsSavedSize(t *testing.T) {
	server := stall(newFakeServer(report()))
	m := NewManager(server, nil, zerolog.Nop())
	require.NoError(t, m.Refresh(context.Background()))

	done := startStaleRefresh(t, m, server)
	require.NoError(t, m.Save(context.Background(), user("alice"), "report.txt", "short"))
	close(server.release)
	require.NoError(t, <-done)

	require.Len(t, m.List(), 1)
	assert.Equal(t, int64(5), m.List()[0].SizeBytes)
}

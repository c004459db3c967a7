package stream

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BHARGAVSAI558/final-zero-trust/internal/models"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/store"
)

type staticIdentity models.AuthState

func (s staticIdentity) State() models.AuthState { return models.AuthState(s) }

type frame struct {
	Type     string `json:"type"`
	Revision uint64 `json:"revision"`
	View     struct {
		Role       string `json:"role"`
		Status     string `json:"status"`
		Principals []struct {
			Username string `json:"username"`
		} `json:"principals"`
	} `json:"view"`
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestStreamPushesOnChange(t *testing.T) {
	st := store.New(10*time.Second, zerolog.Nop())
	identity := staticIdentity{Username: "root", Role: models.RoleAdmin, Authenticated: true}
	srv := httptest.NewServer(http.HandlerFunc(New(st, identity, nil, zerolog.Nop()).Serve))
	defer srv.Close()

	conn := dial(t, srv)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first frame
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "view", first.Type)
	assert.Equal(t, "admin", first.View.Role)
	assert.Equal(t, "loading", first.View.Status)

	score := 72
	st.Apply(store.Snapshot{Principals: []models.Principal{{Username: "alice", RiskScore: &score, RiskLevel: models.RiskLevelCritical}}})

	var second frame
	require.NoError(t, conn.ReadJSON(&second))
	assert.Positive(t, second.Revision)
	assert.Equal(t, "ready", second.View.Status)
	require.Len(t, second.View.Principals, 1)
	assert.Equal(t, "alice", second.View.Principals[0].Username)
}

func TestStreamRequiresLogin(t *testing.T) {
	st := store.New(10*time.Second, zerolog.Nop())
	srv := httptest.NewServer(http.HandlerFunc(New(st, staticIdentity{}, nil, zerolog.Nop()).Serve))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:3000"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, check(req))
	req.Header.Set("Origin", "http://localhost:3000")
	assert.True(t, check(req))
	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, check(req))
}

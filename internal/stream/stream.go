package stream

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/BHARGAVSAI558/final-zero-trust/internal/models"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/views"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Source is a view reader that can announce changes.
type Source interface {
	views.Reader
	Watch() (<-chan uint64, func())
}

type Identity interface {
	State() models.AuthState
}

// Message is one pushed frame: the rebuilt view for the session's role.
type Message struct {
	Type     string    `json:"type"`
	Revision uint64    `json:"revision"`
	SentAt   time.Time `json:"sent_at"`
	View     any       `json:"view"`
}

// Streamer pushes the logged-in role's view over a websocket every time the
// session store changes.
type Streamer struct {
	source   Source
	identity Identity
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

func New(source Source, identity Identity, allowedOrigins []string, logger zerolog.Logger) *Streamer {
	return &Streamer{
		source:   source,
		identity: identity,
		upgrader: websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)},
		logger:   logger.With().Str("component", "stream").Logger(),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

func (s *Streamer) Serve(w http.ResponseWriter, r *http.Request) {
	state := s.identity.State()
	if !state.Authenticated {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}
	build, err := views.For(state.Role)
	if err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go s.readPump(conn, cancel)

	updates, unsubscribe := s.source.Watch()
	defer unsubscribe()

	logger := s.logger.With().Str("username", state.Username).Logger()
	logger.Debug().Msg("stream connected")

	params := views.Params{Username: state.Username}
	send := func(revision uint64) error {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(Message{Type: "view", Revision: revision, SentAt: time.Now().UTC(), View: build(s.source, params)})
	}
	if err := send(0); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("stream closed")
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case revision, ok := <-updates:
			if !ok {
				return
			}
			if current := s.identity.State(); current.Username != state.Username || !current.Authenticated {
				conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session ended"), time.Now().Add(writeWait))
				return
			}
			if err := send(revision); err != nil {
				logger.Debug().Err(err).Msg("stream write failed")
				return
			}
		}
	}
}

// readPump drains client frames so pongs and close frames are processed.
func (s *Streamer) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug().Err(err).Msg("stream read failed")
			}
			return
		}
	}
}

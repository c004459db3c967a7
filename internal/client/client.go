package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/BHARGAVSAI558/final-zero-trust/internal/ids"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/metrics"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/models"
)

const maxResponseBytes = 16 << 20

// Client is a typed wrapper over the authorization service. Every method
// returns either a value or a *Error; nothing panics into callers.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	logger  zerolog.Logger
}

func New(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http:    &http.Client{},
		logger:  logger.With().Str("component", "client").Logger(),
	}
}

type Registration struct {
	Username   string
	Password   string
	Email      string
	Department string
}

func (c *Client) FetchPrincipals(ctx context.Context) ([]models.Principal, error) {
	var out principalsWire
	if err := c.get(ctx, "fetch_principals", "/security/analyze/admin", &out); err != nil {
		return nil, err
	}
	principals := make([]models.Principal, 0, len(out.Users))
	for _, u := range out.Users {
		p := u.toModel()
		if p.Username == "" {
			continue
		}
		principals = append(principals, p)
	}
	return principals, nil
}

func (c *Client) FetchPrincipal(ctx context.Context, username string) (models.Principal, error) {
	var out principalWire
	if err := c.get(ctx, "fetch_principal", "/security/analyze/user/"+url.PathEscape(username), &out); err != nil {
		return models.Principal{}, err
	}
	p := out.toModel()
	if p.Username == "" {
		p.Username = username
	}
	return p, nil
}

func (c *Client) FetchPendingRegistrations(ctx context.Context) ([]models.PendingRegistration, error) {
	var out pendingWire
	if err := c.get(ctx, "fetch_pending", "/admin/pending-users", &out); err != nil {
		return nil, err
	}
	pending := make([]models.PendingRegistration, 0, len(out.PendingUsers))
	for _, p := range out.PendingUsers {
		pending = append(pending, models.PendingRegistration{
			Username:   p.Username,
			Email:      present(p.Email),
			Department: present(p.Department),
			CreatedAt:  p.CreatedAt.t,
		})
	}
	return pending, nil
}

func (c *Client) FetchAuditChain(ctx context.Context) (models.AuditChain, error) {
	var out auditWire
	if err := c.get(ctx, "fetch_audit_chain", "/audit/chain", &out); err != nil {
		return models.AuditChain{}, err
	}
	chain := models.AuditChain{
		Length: int(out.Length),
		Valid:  bool(out.Valid),
		Blocks: make([]models.AuditBlock, 0, len(out.Blockchain)),
	}
	for _, b := range out.Blockchain {
		var index int64
		switch {
		case b.BlockIndex != nil:
			index = int64(*b.BlockIndex)
		case b.Index != nil:
			index = int64(*b.Index)
		}
		chain.Blocks = append(chain.Blocks, models.AuditBlock{
			Index:        index,
			Timestamp:    b.Timestamp.t,
			EventType:    b.EventType,
			EventData:    b.EventData,
			CurrentHash:  b.CurrentHash,
			PreviousHash: b.PreviousHash,
			MerkleRoot:   b.MerkleRoot,
		})
	}
	return chain, nil
}

// ApprovePrincipal approves or rejects a pending registration. The service
// calls a rejection "deny".
func (c *Client) ApprovePrincipal(ctx context.Context, username, admin string, action models.ApprovalAction) error {
	wireAction := "approve"
	switch action {
	case models.ApprovalApprove:
	case models.ApprovalReject:
		wireAction = "deny"
	default:
		return NewError(KindDecode, "approve_principal", fmt.Errorf("unknown action %q", action))
	}
	form := url.Values{}
	form.Set("username", username)
	form.Set("admin", admin)
	form.Set("action", wireAction)
	return c.postForm(ctx, "approve_principal", "/admin/approve-user", form, nil)
}

func (c *Client) RevokePrincipal(ctx context.Context, username, admin string) error {
	form := url.Values{}
	form.Set("username", username)
	form.Set("admin", admin)
	return c.postForm(ctx, "revoke_principal", "/admin/revoke-access", form, nil)
}

func (c *Client) FetchUserSessions(ctx context.Context, username string) (models.SessionHistory, error) {
	var out sessionsWire
	if err := c.get(ctx, "fetch_sessions", "/admin/user-sessions/"+url.PathEscape(username), &out); err != nil {
		return models.SessionHistory{}, err
	}
	return out.toModel(username), nil
}

// FetchNetworkActivity lists network connections, for every principal when
// username is empty.
func (c *Client) FetchNetworkActivity(ctx context.Context, username string) ([]models.NetworkActivity, error) {
	path := "/admin/network-activity"
	if username != "" {
		path += "?user=" + url.QueryEscape(username)
	}
	var out networkWire
	if err := c.get(ctx, "fetch_network_activity", path, &out); err != nil {
		return nil, err
	}
	activity := make([]models.NetworkActivity, 0, len(out.NetworkLogs))
	for _, n := range out.NetworkLogs {
		activity = append(activity, models.NetworkActivity{
			User:        n.UserID,
			Connection:  n.Connection,
			Destination: present(n.Destination),
			Protocol:    present(n.Protocol),
			Port:        int(n.Port),
			External:    bool(n.External),
			Timestamp:   n.Timestamp.t,
		})
	}
	return activity, nil
}

func (c *Client) FetchFileAccess(ctx context.Context) ([]models.FileAccessEvent, error) {
	var out fileAccessWire
	if err := c.get(ctx, "fetch_file_access", "/admin/file-access", &out); err != nil {
		return nil, err
	}
	events := make([]models.FileAccessEvent, 0, len(out.FileLogs))
	for _, l := range out.FileLogs {
		ev := models.FileAccessEvent{
			User:      l.UserID,
			File:      l.FileName,
			Action:    models.FileAction(strings.ToUpper(l.Action)),
			IPAddress: present(l.IPAddress),
		}
		if l.AccessTime.t != nil {
			ev.Timestamp = *l.AccessTime.t
		}
		events = append(events, ev)
	}
	return events, nil
}

func (c *Client) FetchRealtimeStats(ctx context.Context) (models.RealtimeStats, error) {
	var out statsWire
	if err := c.get(ctx, "fetch_realtime_stats", "/realtime/stats", &out); err != nil {
		return models.RealtimeStats{}, err
	}
	return models.RealtimeStats{ActiveNow: int(out.ActiveNow), TotalUsers: int(out.TotalUsers)}, nil
}

// Login submits credentials plus an optional browser geolocation. A FAIL
// status comes back as a SERVER error carrying the service's message.
func (c *Client) Login(ctx context.Context, username, password string, geo *models.Geo) (models.LoginResult, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	if geo != nil {
		form.Set("latitude", strconv.FormatFloat(geo.Lat, 'f', -1, 64))
		form.Set("longitude", strconv.FormatFloat(geo.Lon, 'f', -1, 64))
	}
	var out loginWire
	if err := c.postForm(ctx, "login", "/auth/login", form, &out); err != nil {
		return models.LoginResult{}, err
	}
	role, ok := models.ParseRole(out.Role)
	if !ok {
		return models.LoginResult{}, NewError(KindDecode, "login", fmt.Errorf("unknown role %q", out.Role))
	}
	user := out.User
	if user == "" {
		user = username
	}
	score := int(out.RiskScore)
	level := models.RiskLevel(strings.ToUpper(out.RiskLevel))
	if !level.Valid() {
		level = models.LevelForScore(score)
	}
	return models.LoginResult{
		Username:  user,
		Role:      role,
		Token:     out.Token,
		RiskScore: score,
		RiskLevel: level,
		Decision:  parseDecision(out.Decision),
		Signals:   normalizeSignals(out.Signals),
	}, nil
}

func (c *Client) Register(ctx context.Context, r Registration) error {
	form := url.Values{}
	form.Set("username", r.Username)
	form.Set("password", r.Password)
	if r.Email != "" {
		form.Set("email", r.Email)
	}
	if r.Department != "" {
		form.Set("department", r.Department)
	}
	return c.postForm(ctx, "register", "/auth/register", form, nil)
}

func (c *Client) ListFiles(ctx context.Context) ([]models.FileEntry, error) {
	var out fileListWire
	if err := c.get(ctx, "list_files", "/files/list", &out); err != nil {
		return nil, err
	}
	return out.toModel(models.FileStateActive), nil
}

func (c *Client) ListRecycleBin(ctx context.Context) ([]models.FileEntry, error) {
	var out fileListWire
	if err := c.get(ctx, "list_recycle_bin", "/files/recycle-bin", &out); err != nil {
		return nil, err
	}
	return out.toModel(models.FileStateTrashed), nil
}

func (c *Client) ReadFile(ctx context.Context, name, user string, action models.FileAction) (models.FileContent, error) {
	q := url.Values{}
	q.Set("user", user)
	if action != "" {
		q.Set("action", string(action))
	}
	var out fileContentWire
	if err := c.get(ctx, "read_file", "/files/read/"+url.PathEscape(name)+"?"+q.Encode(), &out); err != nil {
		return models.FileContent{}, err
	}
	content := models.FileContent{Name: out.Filename, Content: out.Content, Size: int64(out.Size)}
	if content.Name == "" {
		content.Name = name
	}
	return content, nil
}

func (c *Client) EditFile(ctx context.Context, name, content, user string) error {
	return c.postJSON(ctx, "edit_file", "/files/edit", fileOperation{Filename: name, Content: content, User: user}, nil)
}

func (c *Client) DeleteFile(ctx context.Context, name, user string) error {
	return c.postJSON(ctx, "delete_file", "/files/delete", fileOperation{Filename: name, User: user}, nil)
}

// RestoreFile restores a recycle-bin entry by its trashed name.
func (c *Client) RestoreFile(ctx context.Context, trashedName, user string) error {
	return c.postJSON(ctx, "restore_file", "/files/restore", fileOperation{Filename: trashedName, User: user}, nil)
}

func (c *Client) RecordFileAccess(ctx context.Context, ev models.FileAccessEvent) error {
	return c.postJSON(ctx, "record_file_access", "/files/access", fileAccessRequest{
		UserID:   ev.User,
		FileName: ev.File,
		Action:   string(ev.Action),
	}, nil)
}

func (c *Client) get(ctx context.Context, op, path string, out any) error {
	return c.do(ctx, op, http.MethodGet, path, nil, "", out)
}

func (c *Client) postForm(ctx context.Context, op, path string, form url.Values, out any) error {
	return c.do(ctx, op, http.MethodPost, path, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", out)
}

func (c *Client) postJSON(ctx context.Context, op, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return NewError(KindDecode, op, fmt.Errorf("encode request: %w", err))
	}
	return c.do(ctx, op, http.MethodPost, path, bytes.NewReader(raw), "application/json", out)
}

func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, out any) (err error) {
	start := time.Now()
	defer func() {
		kind := "ok"
		if err != nil {
			kind = string(KindOf(err))
			c.logger.Debug().Err(err).Str("op", op).Str("path", path).Msg("api request failed")
		}
		metrics.APIRequests.WithLabelValues(op, kind).Inc()
		metrics.APIRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return NewError(KindNetwork, op, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	requestID, ok := ids.RequestID(ctx)
	if !ok {
		requestID = uuid.NewString()
	}
	req.Header.Set("X-Request-Id", requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(op, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return classifyTransport(op, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return &Error{Kind: KindServer, Status: resp.StatusCode, Op: op, Err: errors.New(serverMessage(payload, resp.Status))}
	}

	if !json.Valid(payload) {
		return NewError(KindDecode, op, errors.New("response is not valid JSON"))
	}
	if msg, failed := inBandFailure(payload); failed {
		return &Error{Kind: KindServer, Status: resp.StatusCode, Op: op, Err: errors.New(msg)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return NewError(KindDecode, op, err)
	}
	return nil
}

type envelope struct {
	Status  json.RawMessage `json:"status"`
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
	Detail  json.RawMessage `json:"detail"`
}

// inBandFailure reports failures the service returns with HTTP 200: a
// non-null "error" field or a FAIL status.
func inBandFailure(payload []byte) (string, bool) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return "", false
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return "", false
	}
	if len(env.Error) > 0 && !bytes.Equal(env.Error, []byte("null")) {
		return rawText(env.Error), true
	}
	var status string
	if err := json.Unmarshal(env.Status, &status); err == nil {
		switch strings.ToUpper(status) {
		case "FAIL", "FAILED", "ERROR":
			if env.Message != "" {
				return env.Message, true
			}
			return "request failed", true
		}
	}
	return "", false
}

func serverMessage(payload []byte, fallback string) string {
	var env envelope
	if err := json.Unmarshal(payload, &env); err == nil {
		if len(env.Detail) > 0 && !bytes.Equal(env.Detail, []byte("null")) {
			return rawText(env.Detail)
		}
		if len(env.Error) > 0 && !bytes.Equal(env.Error, []byte("null")) {
			return rawText(env.Error)
		}
		if env.Message != "" {
			return env.Message
		}
	}
	return fallback
}

func rawText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

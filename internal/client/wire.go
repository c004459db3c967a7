package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BHARGAVSAI558/final-zero-trust/internal/models"
)

// The authorization service serializes database rows directly, so numbers
// arrive as ints, floats or strings, booleans as 0/1, and timestamps in
// whatever format the driver produced. The flex types absorb that drift.

type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" || s == "N/A" {
			*f = 0
			return nil
		}
		data = []byte(s)
	}
	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", data)
	}
	*f = flexInt(math.Round(n))
	return nil
}

type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "null", "0", "false", `"0"`, `"false"`, `""`:
		*f = false
		return nil
	case "1", "true", `"1"`, `"true"`:
		*f = true
		return nil
	}
	return fmt.Errorf("invalid boolean %s", data)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"Mon, 02 Jan 2006 15:04:05 GMT",
	"2006-01-02",
}

// flexTime is nil for null and for placeholders such as "N/A" or "Never".
type flexTime struct {
	t *time.Time
}

func (f *flexTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	f.t = nil
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] != '"' {
		secs, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("invalid timestamp %s", data)
		}
		t := time.Unix(0, int64(secs*float64(time.Second))).UTC()
		f.t = &t
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			f.t = &t
			return nil
		}
	}
	return nil
}

// flexStrings accepts a JSON array or a single comma separated string.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		var out []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*f = out
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*f = list
	return nil
}

func present(s string) string {
	s = strings.TrimSpace(s)
	switch s {
	case "N/A", "Unknown", "None", "null":
		return ""
	}
	return s
}

func normalizeSignals(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func parseStatus(raw string) models.PrincipalStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending", "pending_approval":
		return models.StatusPendingApproval
	case "revoked", "denied", "disabled":
		return models.StatusRevoked
	}
	return models.StatusActive
}

func parseDecision(raw string) models.Decision {
	return models.Decision(strings.ToUpper(strings.TrimSpace(raw)))
}

func parseSensitivity(raw string) models.Sensitivity {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "public":
		return models.SensitivityPublic
	case "sensitive":
		return models.SensitivitySensitive
	case "critical":
		return models.SensitivityCritical
	}
	return models.SensitivityInternal
}

func deviceOf(id, mac, hostname, os, ssid string) *models.Device {
	d := models.Device{
		DeviceID:   present(id),
		MACAddress: present(mac),
		Hostname:   present(hostname),
		OS:         present(os),
		WifiSSID:   present(ssid),
	}
	if d == (models.Device{}) {
		return nil
	}
	return &d
}

type principalWire struct {
	Username        string      `json:"username"`
	User            string      `json:"user"`
	Role            string      `json:"role"`
	Status          string      `json:"status"`
	RiskScore       *flexInt    `json:"risk_score"`
	RiskLevel       string      `json:"risk_level"`
	Decision        string      `json:"decision"`
	Signals         flexStrings `json:"signals"`
	LoginCount      *flexInt    `json:"login_count"`
	TotalLogins     *flexInt    `json:"total_logins"`
	ActiveSessions  flexInt     `json:"active_sessions"`
	SessionDuration flexInt     `json:"session_duration"`
	LastLogin       flexTime    `json:"last_login"`
	MACAddress      string      `json:"mac_address"`
	WifiSSID        string      `json:"wifi_ssid"`
	Hostname        string      `json:"hostname"`
	OS              string      `json:"os"`
	IPAddress       string      `json:"ip_address"`
	City            string      `json:"city"`
	Country         string      `json:"country"`
}

// toModel converts a wire row. The server's risk level is kept when it is
// one of the four buckets; only a missing or unknown level is derived from
// the score.
func (w principalWire) toModel() models.Principal {
	username := w.Username
	if username == "" {
		username = w.User
	}
	role, _ := models.ParseRole(w.Role)

	p := models.Principal{
		Username:               username,
		Role:                   role,
		Status:                 parseStatus(w.Status),
		Decision:               parseDecision(w.Decision),
		Signals:                normalizeSignals(w.Signals),
		LastSeen:               w.LastLogin.t,
		IPAddress:              present(w.IPAddress),
		City:                   present(w.City),
		Country:                present(w.Country),
		Device:                 deviceOf("", w.MACAddress, w.Hostname, w.OS, w.WifiSSID),
		ActiveSessions:         int(w.ActiveSessions),
		SessionDurationSeconds: int64(w.SessionDuration),
	}
	switch {
	case w.LoginCount != nil:
		p.LoginCount = int(*w.LoginCount)
	case w.TotalLogins != nil:
		p.LoginCount = int(*w.TotalLogins)
	}
	if p.LoginCount < 0 {
		p.LoginCount = 0
	}

	if p.Status == models.StatusPendingApproval || w.RiskScore == nil {
		return p
	}
	score := int(*w.RiskScore)
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	p.RiskScore = &score
	level := models.RiskLevel(strings.ToUpper(strings.TrimSpace(w.RiskLevel)))
	if !level.Valid() {
		level = models.LevelForScore(score)
	}
	p.RiskLevel = level
	return p
}

type principalsWire struct {
	Users []principalWire `json:"users"`
}

type pendingWire struct {
	PendingUsers []struct {
		Username   string   `json:"username"`
		Email      string   `json:"email"`
		Department string   `json:"department"`
		CreatedAt  flexTime `json:"created_at"`
	} `json:"pending_users"`
}

type sessionWire struct {
	LoginID         flexInt  `json:"login_id"`
	LoginTime       flexTime `json:"login_time"`
	IPAddress       string   `json:"ip_address"`
	City            string   `json:"city"`
	Country         string   `json:"country"`
	DeviceID        string   `json:"device_id"`
	MACAddress      string   `json:"mac_address"`
	WifiSSID        string   `json:"wifi_ssid"`
	Hostname        string   `json:"hostname"`
	OS              string   `json:"os"`
	SessionID       *string  `json:"session_id"`
	IsActive        flexBool `json:"is_active"`
	DurationSeconds flexInt  `json:"session_duration_seconds"`
}

type sessionsWire struct {
	Username        string        `json:"username"`
	Sessions        []sessionWire `json:"sessions"`
	TotalSessions   flexInt       `json:"total_sessions"`
	ActiveSessions  flexInt       `json:"active_sessions"`
	CurrentDuration flexInt       `json:"current_session_duration"`
}

func (w sessionsWire) toModel(username string) models.SessionHistory {
	h := models.SessionHistory{
		Username:               username,
		TotalSessions:          int(w.TotalSessions),
		ActiveSessions:         int(w.ActiveSessions),
		CurrentDurationSeconds: int64(w.CurrentDuration),
	}
	for _, s := range w.Sessions {
		id := ""
		if s.SessionID != nil {
			id = *s.SessionID
		}
		if id == "" {
			id = "login-" + strconv.FormatInt(int64(s.LoginID), 10)
		}
		sess := models.Session{
			SessionID:       id,
			Principal:       username,
			IPAddress:       present(s.IPAddress),
			Device:          deviceOf(s.DeviceID, s.MACAddress, s.Hostname, s.OS, s.WifiSSID),
			IsActive:        bool(s.IsActive),
			DurationSeconds: int64(s.DurationSeconds),
		}
		if s.LoginTime.t != nil {
			sess.LoginTime = *s.LoginTime.t
		}
		if city, country := present(s.City), present(s.Country); city != "" || country != "" {
			sess.Geo = &models.Geo{City: city, Country: country}
		}
		if sess.DurationSeconds < 0 {
			sess.DurationSeconds = 0
		}
		h.Sessions = append(h.Sessions, sess)
	}
	return h
}

type fileAccessWire struct {
	FileLogs []struct {
		UserID     string   `json:"user_id"`
		FileName   string   `json:"file_name"`
		Action     string   `json:"action"`
		AccessTime flexTime `json:"access_time"`
		IPAddress  string   `json:"ip_address"`
	} `json:"file_logs"`
}

type networkWire struct {
	NetworkLogs []struct {
		UserID      string   `json:"user_id"`
		Connection  string   `json:"connection"`
		Destination string   `json:"destination"`
		Protocol    string   `json:"protocol"`
		Port        flexInt  `json:"port"`
		External    flexBool `json:"external"`
		Timestamp   flexTime `json:"timestamp"`
	} `json:"network_logs"`
}

type auditWire struct {
	Blockchain []struct {
		BlockIndex   *flexInt        `json:"block_index"`
		Index        *flexInt        `json:"index"`
		Timestamp    flexTime        `json:"timestamp"`
		EventType    string          `json:"event_type"`
		EventData    json.RawMessage `json:"event_data"`
		CurrentHash  string          `json:"current_hash"`
		PreviousHash string          `json:"previous_hash"`
		MerkleRoot   string          `json:"merkle_root"`
	} `json:"blockchain"`
	Length flexInt  `json:"length"`
	Valid  flexBool `json:"valid"`
}

type statsWire struct {
	ActiveNow  flexInt `json:"active_now"`
	TotalUsers flexInt `json:"total_users"`
}

type loginWire struct {
	Status    string      `json:"status"`
	Token     string      `json:"token"`
	User      string      `json:"user"`
	Role      string      `json:"role"`
	RiskScore flexInt     `json:"risk_score"`
	RiskLevel string      `json:"risk_level"`
	Decision  string      `json:"decision"`
	Signals   flexStrings `json:"signals"`
}

type fileListWire struct {
	Files []struct {
		Name         string   `json:"name"`
		OriginalName string   `json:"original_name"`
		Sensitivity  string   `json:"sensitivity"`
		Size         flexInt  `json:"size"`
		Modified     flexTime `json:"modified"`
		Deleted      flexTime `json:"deleted"`
	} `json:"files"`
}

func (w fileListWire) toModel(state models.FileState) []models.FileEntry {
	out := make([]models.FileEntry, 0, len(w.Files))
	for _, f := range w.Files {
		entry := models.FileEntry{
			Name:        f.Name,
			SizeBytes:   int64(f.Size),
			ModifiedAt:  f.Modified.t,
			Sensitivity: parseSensitivity(f.Sensitivity),
			State:       state,
		}
		if state == models.FileStateTrashed {
			entry.DeletedAt = f.Deleted.t
			entry.OriginalName = f.OriginalName
			if entry.OriginalName == "" {
				entry.OriginalName = TrashOriginalName(f.Name)
			}
		}
		out = append(out, entry)
	}
	return out
}

// TrashOriginalName strips the YYYYMMDD_HHMMSS_ prefix the service adds
// when it moves a file into the recycle bin.
func TrashOriginalName(name string) string {
	parts := strings.SplitN(name, "_", 3)
	if len(parts) != 3 || len(parts[0]) != 8 || len(parts[1]) != 6 {
		return name
	}
	if _, err := strconv.Atoi(parts[0]); err != nil {
		return name
	}
	if _, err := strconv.Atoi(parts[1]); err != nil {
		return name
	}
	return parts[2]
}

type fileContentWire struct {
	Filename string  `json:"filename"`
	Content  string  `json:"content"`
	Size     flexInt `json:"size"`
}

type fileOperation struct {
	Filename string `json:"filename"`
	Content  string `json:"content,omitempty"`
	User     string `json:"user"`
}

type fileAccessRequest struct {
	UserID   string `json:"user_id"`
	FileName string `json:"file_name"`
	Action   string `json:"action"`
}

package views

import (
	"errors"
	"time"

	"github.com/BHARGAVSAI558/final-zero-trust/internal/client"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/models"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/store"
)

var ErrUnknownRole = errors.New("no view for role")

// Reader is the read side of the session store. Views never write.
type Reader interface {
	State() (store.State, time.Time)
	Loaded() (bool, error)
	UpdatedAt() time.Time
	AuditChain() models.AuditChain
	FileEvents() []models.FileAccessEvent
	RealtimeStats() (models.RealtimeStats, bool)
	NetworkActivity(username string) []models.NetworkActivity
}

// Params narrows what a view shows.
type Params struct {
	Username string
	Level    models.RiskLevel
}

type Builder func(r Reader, p Params) any

var dispatch = map[models.Role]Builder{
	models.RoleAdmin:    func(r Reader, p Params) any { return Admin(r, p) },
	models.RoleHR:       func(r Reader, p Params) any { return HR(r, p) },
	models.RoleEmployee: func(r Reader, p Params) any { return Employee(r, p) },
	models.RoleSOC:      func(r Reader, p Params) any { return SOC(r, p) },
}

// For returns the view builder for role.
func For(role models.Role) (Builder, error) {
	b, ok := dispatch[role]
	if !ok {
		return nil, ErrUnknownRole
	}
	return b, nil
}

type Status string

const (
	StatusLoading Status = "loading"
	StatusError   Status = "error"
	StatusReady   Status = "ready"
)

// Header is common to every view. Error is only set while nothing has ever
// been fetched; afterwards stale data is shown instead.
type Header struct {
	Status    Status     `json:"status"`
	Error     string     `json:"error,omitempty"`
	ErrorKind string     `json:"error_kind,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func header(r Reader) Header {
	loaded, err := r.Loaded()
	switch {
	case loaded:
		at := r.UpdatedAt()
		return Header{Status: StatusReady, UpdatedAt: &at}
	case err != nil:
		return Header{Status: StatusError, Error: err.Error(), ErrorKind: string(client.KindOf(err))}
	default:
		return Header{Status: StatusLoading}
	}
}

type Counts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Total    int `json:"total"`
}

func countsOf(c store.LevelCounts) Counts {
	return Counts{Critical: c.Critical, High: c.High, Medium: c.Medium, Low: c.Low, Total: c.Total}
}

type DeviceRow struct {
	DeviceID   string `json:"device_id,omitempty"`
	MACAddress string `json:"mac_address,omitempty"`
	Hostname   string `json:"hostname,omitempty"`
	OS         string `json:"os,omitempty"`
	WifiSSID   string `json:"wifi_ssid,omitempty"`
}

func deviceRow(d *models.Device) *DeviceRow {
	if d == nil {
		return nil
	}
	return &DeviceRow{DeviceID: d.DeviceID, MACAddress: d.MACAddress, Hostname: d.Hostname, OS: d.OS, WifiSSID: d.WifiSSID}
}

type PrincipalRow struct {
	Username   string     `json:"username"`
	Role       string     `json:"role"`
	RiskScore  *int       `json:"risk_score"`
	RiskLevel  string     `json:"risk_level,omitempty"`
	Decision   string     `json:"decision,omitempty"`
	Status     string     `json:"status"`
	Signals    []string   `json:"signals"`
	LastSeen   *time.Time `json:"last_seen,omitempty"`
	LoginCount int        `json:"login_count"`
	// Intent is the live optimistic admin action masking this row, if any.
	Intent string `json:"intent,omitempty"`

	IPAddress              string     `json:"ip_address,omitempty"`
	City                   string     `json:"city,omitempty"`
	Country                string     `json:"country,omitempty"`
	Device                 *DeviceRow `json:"device,omitempty"`
	ActiveSessions         int        `json:"active_sessions"`
	SessionDurationSeconds int64      `json:"session_duration_seconds"`
}

func principalRow(p models.Principal, st store.State, now time.Time, withDevice bool) PrincipalRow {
	row := PrincipalRow{
		Username:   p.Username,
		Role:       string(p.Role),
		RiskScore:  p.RiskScore,
		Decision:   string(p.Decision),
		Status:     string(p.Status),
		Signals:    p.Signals,
		LastSeen:   p.LastSeen,
		LoginCount: p.LoginCount,
	}
	if p.RiskScore != nil {
		row.RiskLevel = string(p.RiskLevel)
	}
	if row.Signals == nil {
		row.Signals = []string{}
	}
	if intent, ok := st.Intent(p.Username); ok && intent.Live(now) {
		row.Intent = string(intent.Kind)
	}
	if withDevice {
		row.IPAddress = p.IPAddress
		row.City = p.City
		row.Country = p.Country
		row.Device = deviceRow(p.Device)
		row.ActiveSessions = p.ActiveSessions
		row.SessionDurationSeconds = p.SessionDurationSeconds
	}
	return row
}

func principalRows(r Reader, level models.RiskLevel, withDevice bool) ([]PrincipalRow, Counts) {
	st, now := r.State()
	all := st.Principals(now)
	rows := make([]PrincipalRow, 0, len(all))
	for _, p := range store.FilterByLevel(all, level) {
		rows = append(rows, principalRow(p, st, now, withDevice))
	}
	return rows, countsOf(st.Counts(now))
}

type PendingRow struct {
	Username   string     `json:"username"`
	Email      string     `json:"email,omitempty"`
	Department string     `json:"department,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
}

func pendingRows(r Reader) []PendingRow {
	st, now := r.State()
	pending := st.Pending(now)
	out := make([]PendingRow, 0, len(pending))
	for _, reg := range pending {
		out = append(out, PendingRow{Username: reg.Username, Email: reg.Email, Department: reg.Department, CreatedAt: reg.CreatedAt})
	}
	return out
}

type FileEventRow struct {
	User      string    `json:"user"`
	File      string    `json:"file"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	IPAddress string    `json:"ip_address,omitempty"`
}

func fileEventRows(r Reader) []FileEventRow {
	events := r.FileEvents()
	out := make([]FileEventRow, 0, len(events))
	for _, ev := range events {
		out = append(out, FileEventRow{User: ev.User, File: ev.File, Action: string(ev.Action), Timestamp: ev.Timestamp, IPAddress: ev.IPAddress})
	}
	return out
}

type AuditSummary struct {
	Length int `json:"length"`
	// ServerValid is the service's own verdict, Breaks what the console
	// found checking linkage itself.
	ServerValid bool               `json:"server_valid"`
	Breaks      []store.ChainBreak `json:"breaks"`
	Latest      *AuditBlockRow     `json:"latest,omitempty"`
}

type AuditBlockRow struct {
	Index        int64      `json:"index"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
	EventType    string     `json:"event_type"`
	CurrentHash  string     `json:"current_hash"`
	PreviousHash string     `json:"previous_hash"`
}

func auditSummary(r Reader) AuditSummary {
	chain := r.AuditChain()
	summary := AuditSummary{Length: chain.Length, ServerValid: chain.Valid, Breaks: store.VerifyChain(chain.Blocks)}
	if summary.Breaks == nil {
		summary.Breaks = []store.ChainBreak{}
	}
	if summary.Length == 0 {
		summary.Length = len(chain.Blocks)
	}
	var latest *models.AuditBlock
	for i := range chain.Blocks {
		if latest == nil || chain.Blocks[i].Index > latest.Index {
			latest = &chain.Blocks[i]
		}
	}
	if latest != nil {
		summary.Latest = &AuditBlockRow{
			Index:        latest.Index,
			Timestamp:    latest.Timestamp,
			EventType:    latest.EventType,
			CurrentHash:  latest.CurrentHash,
			PreviousHash: latest.PreviousHash,
		}
	}
	return summary
}

type StatsRow struct {
	ActiveNow  int `json:"active_now"`
	TotalUsers int `json:"total_users"`
}

func statsRow(r Reader) *StatsRow {
	s, ok := r.RealtimeStats()
	if !ok {
		return nil
	}
	return &StatsRow{ActiveNow: s.ActiveNow, TotalUsers: s.TotalUsers}
}

type NetworkRow struct {
	User        string     `json:"user"`
	Connection  string     `json:"connection"`
	Destination string     `json:"destination"`
	Protocol    string     `json:"protocol"`
	Port        int        `json:"port"`
	External    bool       `json:"external"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

func networkRows(r Reader, username string) []NetworkRow {
	activity := r.NetworkActivity(username)
	out := make([]NetworkRow, 0, len(activity))
	for _, a := range activity {
		out = append(out, NetworkRow{
			User:        a.User,
			Connection:  a.Connection,
			Destination: a.Destination,
			Protocol:    a.Protocol,
			Port:        a.Port,
			External:    a.External,
			Timestamp:   a.Timestamp,
		})
	}
	return out
}

type SessionRow struct {
	SessionID       string     `json:"session_id"`
	LoginTime       time.Time  `json:"login_time"`
	IPAddress       string     `json:"ip_address,omitempty"`
	City            string     `json:"city,omitempty"`
	Country         string     `json:"country,omitempty"`
	Device          *DeviceRow `json:"device,omitempty"`
	IsActive        bool       `json:"is_active"`
	DurationSeconds int64      `json:"duration_seconds"`
}

// SessionRows renders a principal's reconciled sessions, newest first.
func SessionRows(r Reader, username string) []SessionRow {
	st, _ := r.State()
	sessions := st.Sessions(username)
	out := make([]SessionRow, 0, len(sessions))
	for _, s := range sessions {
		row := SessionRow{
			SessionID:       s.SessionID,
			LoginTime:       s.LoginTime,
			IPAddress:       s.IPAddress,
			Device:          deviceRow(s.Device),
			IsActive:        s.IsActive,
			DurationSeconds: s.DurationSeconds,
		}
		if s.Geo != nil {
			row.City = s.Geo.City
			row.Country = s.Geo.Country
		}
		out = append(out, row)
	}
	return out
}

package models

import "time"

type Geo struct {
	City    string
	Country string
	Lat     float64
	Lon     float64
}

type Device struct {
	DeviceID   string
	MACAddress string
	Hostname   string
	OS         string
	WifiSSID   string
}

type Session struct {
	SessionID       string
	Principal       string
	LoginTime       time.Time
	IPAddress       string
	Geo             *Geo
	Device          *Device
	IsActive        bool
	DurationSeconds int64
}

type SessionHistory struct {
	Username               string
	Sessions               []Session
	TotalSessions          int
	ActiveSessions         int
	CurrentDurationSeconds int64
}

type NetworkActivity struct {
	User        string
	Connection  string
	Destination string
	Protocol    string
	Port        int
	External    bool
	Timestamp   *time.Time
}

type RealtimeStats struct {
	ActiveNow  int
	TotalUsers int
}

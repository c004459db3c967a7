package models

import "time"

type Sensitivity string

const (
	SensitivityPublic    Sensitivity = "PUBLIC"
	SensitivityInternal  Sensitivity = "INTERNAL"
	SensitivitySensitive Sensitivity = "SENSITIVE"
	SensitivityCritical  Sensitivity = "CRITICAL"
)

type FileState string

const (
	FileStateActive  FileState = "ACTIVE"
	FileStateTrashed FileState = "TRASHED"
	FileStatePurged  FileState = "PURGED"
)

type FileEntry struct {
	Name         string
	OriginalName string
	SizeBytes    int64
	ModifiedAt   *time.Time
	DeletedAt    *time.Time
	Sensitivity  Sensitivity
	State        FileState
}

type FileAction string

const (
	FileActionRead     FileAction = "READ"
	FileActionWrite    FileAction = "WRITE"
	FileActionDelete   FileAction = "DELETE"
	FileActionDownload FileAction = "DOWNLOAD"
	FileActionEdit     FileAction = "EDIT"
)

// FileAccessEvent is an append-only audit record. The client never mutates
// or deletes one.
type FileAccessEvent struct {
	User      string
	File      string
	Action    FileAction
	Timestamp time.Time
	IPAddress string
}

type FileContent struct {
	Name    string
	Content string
	Size    int64
}

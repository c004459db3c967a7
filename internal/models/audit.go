package models

import (
	"encoding/json"
	"time"
)

type AuditBlock struct {
	Index        int64
	Timestamp    *time.Time
	EventType    string
	EventData    json.RawMessage
	CurrentHash  string
	PreviousHash string
	MerkleRoot   string
}

// AuditChain is the hash-linked audit log as served. Valid is the server's
// own verdict; the client checks linkage separately.
type AuditChain struct {
	Blocks []AuditBlock
	Length int
	Valid  bool
}

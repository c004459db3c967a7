package models

import "time"

type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelMedium   RiskLevel = "MEDIUM"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelCritical RiskLevel = "CRITICAL"
)

// LevelForScore buckets a risk score with the same fixed thresholds the
// authorization service uses.
func LevelForScore(score int) RiskLevel {
	switch {
	case score < 30:
		return RiskLevelLow
	case score < 50:
		return RiskLevelMedium
	case score < 70:
		return RiskLevelHigh
	default:
		return RiskLevelCritical
	}
}

func (l RiskLevel) Valid() bool {
	switch l {
	case RiskLevelLow, RiskLevelMedium, RiskLevelHigh, RiskLevelCritical:
		return true
	}
	return false
}

type Decision string

const (
	DecisionAllow    Decision = "ALLOW"
	DecisionRestrict Decision = "RESTRICT"
	DecisionDeny     Decision = "DENY"
)

type PrincipalStatus string

const (
	StatusPendingApproval PrincipalStatus = "PENDING_APPROVAL"
	StatusActive          PrincipalStatus = "ACTIVE"
	StatusRevoked         PrincipalStatus = "REVOKED"
)

type ApprovalAction string

const (
	ApprovalApprove ApprovalAction = "APPROVE"
	ApprovalReject  ApprovalAction = "REJECT"
)

type Principal struct {
	Username   string
	Role       Role
	RiskScore  *int
	RiskLevel  RiskLevel
	Decision   Decision
	Status     PrincipalStatus
	Signals    []string
	LastSeen   *time.Time
	LoginCount int

	IPAddress              string
	City                   string
	Country                string
	Device                 *Device
	ActiveSessions         int
	SessionDurationSeconds int64
}

// Score returns the risk score, or -1 for principals that have none yet.
func (p Principal) Score() int {
	if p.RiskScore == nil {
		return -1
	}
	return *p.RiskScore
}

type PendingRegistration struct {
	Username   string
	Email      string
	Department string
	CreatedAt  *time.Time
}

type LoginResult struct {
	Username  string
	Role      Role
	Token     string
	RiskScore int
	RiskLevel RiskLevel
	Decision  Decision
	Signals   []string
}

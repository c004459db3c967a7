package models

import "strings"

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleHR       Role = "hr"
	RoleEmployee Role = "employee"
	RoleSOC      Role = "soc"
)

// ParseRole maps the role strings issued by the authorization service onto
// the four dashboard roles. Plain "user" accounts are employees.
func ParseRole(raw string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin", "administrator":
		return RoleAdmin, true
	case "hr":
		return RoleHR, true
	case "user", "employee":
		return RoleEmployee, true
	case "soc", "analyst":
		return RoleSOC, true
	}
	return "", false
}

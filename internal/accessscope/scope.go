// Package accessscope turns "who is this user" into safe, reusable data-filter
// predicates. One algebra — admin sees everything, a manager sees own plus
// direct reports, a rep sees own — bound to a different rep-code column per
// protected entity.
package accessscope

import "fmt"

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleManager  Role = "MANAGER"
	RoleSalesRep Role = "SALES_REP"
)

// Scope is derived per request, never persisted. When IsAdmin is true the
// rep-code fields are ignored by every predicate builder.
type Scope struct {
	UserID       string
	TenantID     string
	Role         Role
	IsAdmin      bool
	OwnRepCode   *int
	TeamRepCodes []int
}

// VisibleRepCodes is {own} ∪ team for non-admins; nil for admins (unrestricted).
func (s Scope) VisibleRepCodes() []int {
	if s.IsAdmin || s.OwnRepCode == nil {
		return nil
	}
	codes := make([]int, 0, 1+len(s.TeamRepCodes))
	codes = append(codes, *s.OwnRepCode)
	codes = append(codes, s.TeamRepCodes...)
	return codes
}

// UserNotFoundError means the user has no active sales-linkage row for the
// tenant. Distinct from ERP authentication failures.
type UserNotFoundError struct {
	UserID   string
	TenantID string
}

func (e *UserNotFoundError) Error() string {
	return fmt.Sprintf("user %s has no active linkage for tenant %s", e.UserID, e.TenantID)
}

// ScopeViolationError means a specifically named record falls outside the
// resolved scope. Surfaced as permission denied (403), uniformly across call
// sites, never as a generic 404.
type ScopeViolationError struct {
	UserID  string
	RepCode int
}

func (e *ScopeViolationError) Error() string {
	return fmt.Sprintf("rep code %d is outside the visible scope of user %s", e.RepCode, e.UserID)
}

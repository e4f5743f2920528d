// Package access implements role-based access decisions.
//
// Roles form a flat enumeration with no hierarchy: admin has no implicit
// grant over editor- or viewer-gated operations. An operation is allowed
// iff the caller's role is a member of the operation's declared role set.
package access

import "github.com/bissquit/identity-garden/internal/domain"

// Operation names for the account API. Each protected route is gated by
// exactly one of these via the policy table.
const (
	OpAccountList    = "accounts.list"
	OpAccountGet     = "accounts.get"
	OpAccountCreate  = "accounts.create"
	OpAccountUpdate  = "accounts.update"
	OpAccountDelete  = "accounts.delete"
	OpAccountProfile = "accounts.profile"
)

// Policy maps operation names to their acceptable role sets.
type Policy map[string][]domain.Role

// DefaultPolicy is the role table for the account API. Account
// administration is admin-only; the profile operation is open to every
// authenticated role.
var DefaultPolicy = Policy{
	OpAccountList:    {domain.RoleAdmin},
	OpAccountGet:     {domain.RoleAdmin},
	OpAccountCreate:  {domain.RoleAdmin},
	OpAccountUpdate:  {domain.RoleAdmin},
	OpAccountDelete:  {domain.RoleAdmin},
	OpAccountProfile: {domain.RoleAdmin, domain.RoleEditor, domain.RoleViewer},
}

// Allowed reports whether role is a member of the acceptable set. It is a
// pure, total function: every (role, set) pair yields a decision.
func Allowed(role domain.Role, acceptable ...domain.Role) bool {
	for _, a := range acceptable {
		if role == a {
			return true
		}
	}
	return false
}

// Decide reports whether role may perform the named operation. Operations
// missing from the policy are denied.
func (p Policy) Decide(operation string, role domain.Role) bool {
	return Allowed(role, p[operation]...)
}

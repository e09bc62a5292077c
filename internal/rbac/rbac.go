// Package rbac encodes the role model for the two membership scopes:
// workspaces (owner > admin > member) and boards (editor > viewer).
// Besides the capability gate it implements the membership-mutation
// authority: who may change or remove whom inside a scope.
package rbac

import "errors"

type Role string
type Action string

// Workspace-scope roles.
const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Board-scope roles.
const (
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

const (
	ActionRead          Action = "read"
	ActionWrite         Action = "write"
	ActionManageMembers Action = "manage_members"
	ActionDeleteScope   Action = "delete_scope"
)

// Authority violations. The service layer maps these onto the HTTP
// error taxonomy.
var (
	ErrNoAuthority    = errors.New("role holds no membership-mutation rights")
	ErrTargetIsOwner  = errors.New("an owner can never be retargeted")
	ErrPeerProtection = errors.New("cannot act on a member of the same tier")
	ErrSelfTarget     = errors.New("cannot act on self")
)

// Can reports whether a role grants an action within its own scope.
func Can(role Role, action Action) bool {
	switch role {
	case RoleOwner:
		return true
	case RoleAdmin:
		return action == ActionRead || action == ActionWrite || action == ActionManageMembers
	case RoleEditor:
		return action == ActionRead || action == ActionWrite
	case RoleMember, RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

// Tier ranks a role inside its scope's role set. Higher outranks lower;
// equal means peers. Unknown roles rank below everything.
func Tier(role Role) int {
	switch role {
	case RoleOwner:
		return 3
	case RoleAdmin, RoleEditor:
		return 2
	case RoleMember, RoleViewer:
		return 1
	default:
		return 0
	}
}

// NormalizeWorkspaceRole clamps an arbitrary string to a valid
// workspace role, defaulting to member.
func NormalizeWorkspaceRole(role string) Role {
	switch Role(role) {
	case RoleOwner, RoleAdmin, RoleMember:
		return Role(role)
	default:
		return RoleMember
	}
}

// NormalizeBoardRole clamps an arbitrary string to a valid board role,
// defaulting to viewer.
func NormalizeBoardRole(role string) Role {
	switch Role(role) {
	case RoleEditor, RoleViewer:
		return Role(role)
	default:
		return RoleViewer
	}
}

// CheckMutate decides whether an actor may mutate (role-change, kick)
// a target inside the same scope. The rules, in evaluation order:
//
//  1. the bottom tier holds no mutation rights over anyone,
//  2. a target holding owner is untouchable, even by another owner,
//  3. self-targeting is always rejected (leave is the only self-removal),
//  4. peers of the same tier cannot act on each other.
func CheckMutate(actor, target Role, actingOnSelf bool) error {
	if Tier(actor) <= 1 {
		return ErrNoAuthority
	}
	if target == RoleOwner {
		return ErrTargetIsOwner
	}
	if actingOnSelf {
		return ErrSelfTarget
	}
	if Tier(actor) == Tier(target) {
		return ErrPeerProtection
	}
	return nil
}

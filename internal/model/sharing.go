package model

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
)

// ResourceKind tags the two shareable resource kinds. Permissions never cross kinds.
type ResourceKind string

const (
	KindAccount   ResourceKind = "account"
	KindWorkspace ResourceKind = "workspace"
)

// Valid reports whether k is a known kind.
func (k ResourceKind) Valid() bool { return k == KindAccount || k == KindWorkspace }

// RoleAccess is a role grantable per resource per member. It doubles as an activity verb.
type RoleAccess string

const (
	RoleRead   RoleAccess = "READ"
	RoleCreate RoleAccess = "CREATE"
	RoleUpdate RoleAccess = "UPDATE"
	RoleDelete RoleAccess = "DELETE"
	RoleManage RoleAccess = "MANAGE"
)

// Roles lists every RoleAccess in increasing power.
var Roles = []RoleAccess{RoleRead, RoleCreate, RoleUpdate, RoleDelete, RoleManage}

// Valid reports whether r is a known role.
func (r RoleAccess) Valid() bool { return r.Rank() > 0 }

// Rank orders roles: READ < CREATE|UPDATE|DELETE < MANAGE. Unknown roles rank 0.
func (r RoleAccess) Rank() int {
	switch r {
	case RoleRead:
		return 1
	case RoleCreate, RoleUpdate, RoleDelete:
		return 2
	case RoleManage:
		return 3
	default:
		return 0
	}
}

// SharingMember is a (resource, member, role) grant distinct from ownership.
type SharingMember struct {
	Kind       ResourceKind
	ResourceID uuid.UUID
	MemberID   uuid.UUID
	Role       RoleAccess
	Email      string // member email, filled by reads that join users
	CreatedAt  time.Time
}

// MemberRole is one entry of a desired membership list.
type MemberRole struct {
	MemberID uuid.UUID
	Role     RoleAccess
}

// Invitee is one entry of an invitation request.
type Invitee struct {
	Email string     `validate:"required,email"`
	Role  RoleAccess `validate:"required,oneof=READ CREATE UPDATE DELETE MANAGE"`
}

// InvitationStatus is the state of an invitation.
type InvitationStatus string

const (
	StatusPending  InvitationStatus = "PENDING"
	StatusAccepted InvitationStatus = "ACCEPTED"
	StatusDecline  InvitationStatus = "DECLINE"
	StatusExpired  InvitationStatus = "EXPIRED"
)

// CanTransition reports whether s may move to next. Only PENDING moves, and only to ACCEPTED or DECLINE.
func (s InvitationStatus) CanTransition(next InvitationStatus) bool {
	return s == StatusPending && (next == StatusAccepted || next == StatusDecline)
}

// Invitation is a pending offer of a sharing-member row, keyed by invitee email.
type Invitation struct {
	ID         uuid.UUID
	Kind       ResourceKind
	ResourceID uuid.UUID
	OwnerID    uuid.UUID // inviter
	Email      string
	Role       RoleAccess
	Status     InvitationStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Transition moves the invitation to next or fails.
func (i *Invitation) Transition(next InvitationStatus) error {
	if !i.Status.CanTransition(next) {
		return fmt.Errorf("invitation %s: %s -> %s not allowed", i.ID, i.Status, next)
	}
	i.Status = next
	return nil
}

// Resource is the ownership view of an account or workspace that the sharing core needs.
type Resource struct {
	Kind    ResourceKind
	ID      uuid.UUID
	OwnerID uuid.UUID
	Name    string // workspace name or account username, used in mails
}

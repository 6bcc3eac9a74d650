// Package ability resolves a member's grants into a per-resource capability set.
package ability

import (
	"github.com/gofrs/uuid/v5"

	"github.com/and161185/goph-share/internal/model"
)

// rolePermissions is the fixed role-to-action expansion table.
var rolePermissions = map[model.RoleAccess][]model.RoleAccess{
	model.RoleRead:   {model.RoleRead},
	model.RoleCreate: {model.RoleRead, model.RoleCreate},
	model.RoleUpdate: {model.RoleRead, model.RoleUpdate},
	model.RoleDelete: {model.RoleRead, model.RoleDelete},
	model.RoleManage: {model.RoleRead, model.RoleUpdate, model.RoleManage},
}

// Permissions returns the actions a role grants. Unknown roles grant nothing.
func Permissions(role model.RoleAccess) []model.RoleAccess {
	return append([]model.RoleAccess(nil), rolePermissions[role]...)
}

// Set is an immutable capability set for one resource kind.
type Set struct {
	kind   model.ResourceKind
	grants map[uuid.UUID]map[model.RoleAccess]struct{}
}

// New builds the capability set of kind from membership rows. Rows of another kind are ignored.
func New(kind model.ResourceKind, rows []model.SharingMember) *Set {
	s := &Set{kind: kind, grants: make(map[uuid.UUID]map[model.RoleAccess]struct{}, len(rows))}
	for _, r := range rows {
		if r.Kind != kind {
			continue
		}
		acts, ok := s.grants[r.ResourceID]
		if !ok {
			acts = make(map[model.RoleAccess]struct{}, 3)
			s.grants[r.ResourceID] = acts
		}
		for _, a := range rolePermissions[r.Role] {
			acts[a] = struct{}{}
		}
	}
	return s
}

// Kind returns the resource kind the set answers for.
func (s *Set) Kind() model.ResourceKind { return s.kind }

// Can reports whether some grant on resourceID of kind allows action.
func (s *Set) Can(action model.RoleAccess, kind model.ResourceKind, resourceID uuid.UUID) bool {
	if s == nil || kind != s.kind {
		return false
	}
	_, ok := s.grants[resourceID][action]
	return ok
}

// CanAny reports whether any of actions is allowed on resourceID.
func (s *Set) CanAny(kind model.ResourceKind, resourceID uuid.UUID, actions ...model.RoleAccess) bool {
	for _, a := range actions {
		if s.Can(a, kind, resourceID) {
			return true
		}
	}
	return false
}

// Has reports whether the set holds any grant on resourceID.
func (s *Set) Has(resourceID uuid.UUID) bool {
	if s == nil {
		return false
	}
	_, ok := s.grants[resourceID]
	return ok
}

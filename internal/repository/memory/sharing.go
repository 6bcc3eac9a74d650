package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/goph-share/internal/errs"
	"github.com/and161185/goph-share/internal/model"
)

// MemberRepo implements MemberRepository.
type MemberRepo struct{ s *Store }

// Lock is a no-op: transactions on the store are already serialized.
func (r *MemberRepo) Lock(ctx context.Context, _ model.ResourceKind, _ uuid.UUID) error {
	return ctx.Err()
}

// Insert adds a row unless the pair exists.
func (r *MemberRepo) Insert(ctx context.Context, m model.SharingMember) error {
	return r.s.write(ctx, func(st *state) error {
		k := memberKey{m.Kind, m.ResourceID, m.MemberID}
		if _, ok := st.members[k]; ok {
			return nil
		}
		m.Email = ""
		m.CreatedAt = time.Now()
		st.members[k] = m
		return nil
	})
}

// Upsert adds a row or overwrites the role of the existing one.
func (r *MemberRepo) Upsert(ctx context.Context, m model.SharingMember) error {
	return r.s.write(ctx, func(st *state) error {
		k := memberKey{m.Kind, m.ResourceID, m.MemberID}
		if cur, ok := st.members[k]; ok {
			cur.Role = m.Role
			st.members[k] = cur
			return nil
		}
		m.Email = ""
		m.CreatedAt = time.Now()
		st.members[k] = m
		return nil
	})
}

// UpdateRole sets the role of an existing row whose member is not ownerID.
func (r *MemberRepo) UpdateRole(
	ctx context.Context, kind model.ResourceKind, resourceID, memberID, ownerID uuid.UUID, role model.RoleAccess,
) (bool, error) {
	var changed bool
	err := r.s.write(ctx, func(st *state) error {
		if memberID == ownerID {
			return nil
		}
		k := memberKey{kind, resourceID, memberID}
		cur, ok := st.members[k]
		if !ok {
			return nil
		}
		cur.Role = role
		st.members[k] = cur
		changed = true
		return nil
	})
	return changed, err
}

// ListByResource lists rows of a resource with member emails.
func (r *MemberRepo) ListByResource(ctx context.Context, kind model.ResourceKind, resourceID uuid.UUID) ([]model.SharingMember, error) {
	return r.list(ctx, func(m model.SharingMember) bool { return m.Kind == kind && m.ResourceID == resourceID })
}

// ListByMember lists rows held by a member.
func (r *MemberRepo) ListByMember(ctx context.Context, kind model.ResourceKind, memberID uuid.UUID) ([]model.SharingMember, error) {
	return r.list(ctx, func(m model.SharingMember) bool { return m.Kind == kind && m.MemberID == memberID })
}

func (r *MemberRepo) list(ctx context.Context, match func(model.SharingMember) bool) ([]model.SharingMember, error) {
	var out []model.SharingMember
	err := r.s.read(ctx, func(st *state) error {
		for _, m := range st.members {
			if !match(m) {
				continue
			}
			if u, ok := st.users[m.MemberID]; ok {
				m.Email = u.Email
			}
			out = append(out, m)
		}
		return nil
	})
	slices.SortFunc(out, func(a, b model.SharingMember) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if c := strings.Compare(a.ResourceID.String(), b.ResourceID.String()); c != 0 {
			return c
		}
		return strings.Compare(a.MemberID.String(), b.MemberID.String())
	})
	return out, err
}

// Delete removes rows whose resource is in resourceIDs and member in memberIDs.
func (r *MemberRepo) Delete(ctx context.Context, kind model.ResourceKind, resourceIDs, memberIDs []uuid.UUID) (int64, error) {
	var n int64
	err := r.s.write(ctx, func(st *state) error {
		for _, res := range resourceIDs {
			for _, mem := range memberIDs {
				k := memberKey{kind, res, mem}
				if _, ok := st.members[k]; ok {
					delete(st.members, k)
					n++
				}
			}
		}
		return nil
	})
	return n, err
}

// DeleteByResource removes every row of a resource.
func (r *MemberRepo) DeleteByResource(ctx context.Context, kind model.ResourceKind, resourceID uuid.UUID) (int64, error) {
	var n int64
	err := r.s.write(ctx, func(st *state) error {
		for k := range st.members {
			if k.kind == kind && k.resource == resourceID {
				delete(st.members, k)
				n++
			}
		}
		return nil
	})
	return n, err
}

// InvitationRepo implements InvitationRepository.
type InvitationRepo struct{ s *Store }

// CreateBatch inserts invitations.
func (r *InvitationRepo) CreateBatch(ctx context.Context, invs []*model.Invitation) error {
	return r.s.write(ctx, func(st *state) error {
		now := time.Now()
		for _, inv := range invs {
			if inv.ID == uuid.Nil {
				inv.ID = newID()
			}
			if inv.Status == "" {
				inv.Status = model.StatusPending
			}
			inv.Email = strings.ToLower(inv.Email)
			inv.CreatedAt, inv.UpdatedAt = now, now
			st.invitations[inv.ID] = *inv
		}
		return nil
	})
}

// Get returns an invitation of kind.
func (r *InvitationRepo) Get(ctx context.Context, kind model.ResourceKind, id uuid.UUID) (*model.Invitation, error) {
	var out *model.Invitation
	err := r.s.read(ctx, func(st *state) error {
		inv, ok := st.invitations[id]
		if !ok || inv.Kind != kind {
			return errs.ErrNotFound
		}
		out = &inv
		return nil
	})
	return out, err
}

// SetStatus moves an invitation from one status to another.
func (r *InvitationRepo) SetStatus(ctx context.Context, kind model.ResourceKind, id uuid.UUID, from, to model.InvitationStatus) (bool, error) {
	var ok bool
	err := r.s.write(ctx, func(st *state) error {
		inv, found := st.invitations[id]
		if !found || inv.Kind != kind || inv.Status != from {
			return nil
		}
		inv.Status = to
		inv.UpdatedAt = time.Now()
		st.invitations[id] = inv
		ok = true
		return nil
	})
	return ok, err
}

// ListPending lists PENDING invitations addressed to email, newest first.
func (r *InvitationRepo) ListPending(ctx context.Context, kind model.ResourceKind, email string) ([]model.Invitation, error) {
	var out []model.Invitation
	err := r.s.read(ctx, func(st *state) error {
		for _, inv := range st.invitations {
			if inv.Kind == kind && inv.Status == model.StatusPending && strings.EqualFold(inv.Email, email) {
				out = append(out, inv)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b model.Invitation) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, err
}

// ListPendingByResource lists PENDING invitations to resourceID, newest first.
func (r *InvitationRepo) ListPendingByResource(ctx context.Context, kind model.ResourceKind, resourceID uuid.UUID) ([]model.Invitation, error) {
	var out []model.Invitation
	err := r.s.read(ctx, func(st *state) error {
		for _, inv := range st.invitations {
			if inv.Kind == kind && inv.Status == model.StatusPending && inv.ResourceID == resourceID {
				out = append(out, inv)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b model.Invitation) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, err
}

// SetRole changes the role of a PENDING invitation.
func (r *InvitationRepo) SetRole(ctx context.Context, kind model.ResourceKind, id uuid.UUID, role model.RoleAccess) error {
	return r.s.write(ctx, func(st *state) error {
		inv, ok := st.invitations[id]
		if !ok || inv.Kind != kind || inv.Status != model.StatusPending {
			return errs.ErrNotFound
		}
		inv.Role, inv.UpdatedAt = role, time.Now()
		st.invitations[id] = inv
		return nil
	})
}

// Package convert maps domain values to and from the google.protobuf.Struct
// payloads of the Vault RPC service.
package convert

import (
	"fmt"
	"strings"
	"time"

	u "github.com/gofrs/uuid/v5"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/goph-share/internal/errs"
	model "github.com/and161185/goph-share/internal/model"
)

// --- helpers ---

func ts(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func tsPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return ts(*t)
}

func idPtr(id *u.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func idList(ids []u.UUID) []any {
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

// --- requests (client -> server) ---

// Args reads typed fields of a request struct. A nil struct reads as empty.
type Args struct{ s *structpb.Struct }

// NewArgs wraps a request payload.
func NewArgs(s *structpb.Struct) Args { return Args{s: s} }

func (a Args) value(key string) (*structpb.Value, bool) {
	if a.s == nil {
		return nil, false
	}
	v, ok := a.s.GetFields()[key]
	if !ok {
		return nil, false
	}
	if _, null := v.GetKind().(*structpb.Value_NullValue); null {
		return nil, false
	}
	return v, true
}

// String returns a string field, or "" when absent.
func (a Args) String(key string) string {
	v, ok := a.value(key)
	if !ok {
		return ""
	}
	return v.GetStringValue()
}

// Int returns a numeric field truncated to int, or def when absent.
func (a Args) Int(key string, def int) int {
	v, ok := a.value(key)
	if !ok {
		return def
	}
	if _, num := v.GetKind().(*structpb.Value_NumberValue); !num {
		return def
	}
	return int(v.GetNumberValue())
}

// UUID parses a required id field.
func (a Args) UUID(key string) (u.UUID, error) {
	s := a.String(key)
	if s == "" {
		return u.Nil, errs.Invalid(key + " is required")
	}
	id, err := u.FromString(s)
	if err != nil {
		return u.Nil, errs.Invalid(fmt.Sprintf("%s: invalid id %q", key, s))
	}
	return id, nil
}

// UUIDs parses an optional list of ids.
func (a Args) UUIDs(key string) ([]u.UUID, error) {
	v, ok := a.value(key)
	if !ok {
		return nil, nil
	}
	vals := v.GetListValue().GetValues()
	out := make([]u.UUID, 0, len(vals))
	for i, item := range vals {
		id, err := u.FromString(item.GetStringValue())
		if err != nil {
			return nil, errs.Invalid(fmt.Sprintf("%s[%d]: invalid id", key, i))
		}
		out = append(out, id)
	}
	return out, nil
}

// Kind parses a resource kind field.
func (a Args) Kind(key string) (model.ResourceKind, error) {
	k := model.ResourceKind(strings.ToLower(a.String(key)))
	if !k.Valid() {
		return "", errs.Invalid(fmt.Sprintf("%s: unknown resource kind %q", key, a.String(key)))
	}
	return k, nil
}

// Page reads page, limit and keyword with list defaults.
func (a Args) Page() model.Page {
	return model.Page{Page: a.Int("page", 1), Limit: a.Int("limit", 20), Keyword: a.String("keyword")}
}

// objects returns the struct entries of a list field.
func (a Args) objects(key string) ([]*structpb.Struct, error) {
	v, ok := a.value(key)
	if !ok {
		return nil, nil
	}
	vals := v.GetListValue().GetValues()
	out := make([]*structpb.Struct, 0, len(vals))
	for i, item := range vals {
		s := item.GetStructValue()
		if s == nil {
			return nil, errs.Invalid(fmt.Sprintf("%s[%d]: object expected", key, i))
		}
		out = append(out, s)
	}
	return out, nil
}

// Invitees reads a list of {email, role} entries.
func (a Args) Invitees(key string) ([]model.Invitee, error) {
	objs, err := a.objects(key)
	if err != nil {
		return nil, err
	}
	out := make([]model.Invitee, 0, len(objs))
	for _, o := range objs {
		e := NewArgs(o)
		out = append(out, model.Invitee{
			Email: strings.TrimSpace(e.String("email")),
			Role:  model.RoleAccess(strings.ToUpper(e.String("role"))),
		})
	}
	return out, nil
}

// MemberRoles reads a list of {memberId, role} entries.
func (a Args) MemberRoles(key string) ([]model.MemberRole, error) {
	objs, err := a.objects(key)
	if err != nil {
		return nil, err
	}
	out := make([]model.MemberRole, 0, len(objs))
	for i, o := range objs {
		id, err := NewArgs(o).UUID("memberId")
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", key, i, err)
		}
		out = append(out, model.MemberRole{MemberID: id, Role: model.RoleAccess(strings.ToUpper(NewArgs(o).String("role")))})
	}
	return out, nil
}

// --- responses (server -> client) ---

// ToStruct builds a response payload.
func ToStruct(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return s, nil
}

// Members converts sharing rows.
func Members(ms []model.SharingMember) []any {
	out := make([]any, 0, len(ms))
	for _, m := range ms {
		out = append(out, map[string]any{
			"memberId": m.MemberID.String(),
			"email":    m.Email,
			"role":     string(m.Role),
		})
	}
	return out
}

// Account converts an account. The sealed password never leaves the server.
func Account(a model.Account, members []model.SharingMember) map[string]any {
	return map[string]any{
		"id":        a.ID.String(),
		"ownerId":   a.OwnerID.String(),
		"domain":    a.Domain,
		"username":  a.Username,
		"createdAt": ts(a.CreatedAt),
		"updatedAt": ts(a.UpdatedAt),
		"deletedAt": tsPtr(a.DeletedAt),
		"members":   Members(members),
	}
}

// AccountVersion converts an account snapshot.
func AccountVersion(v model.AccountVersion) map[string]any {
	return map[string]any{
		"id":        v.ID.String(),
		"accountId": v.AccountID.String(),
		"actorId":   v.ActorID.String(),
		"domain":    v.Domain,
		"username":  v.Username,
		"createdAt": ts(v.CreatedAt),
	}
}

// Workspace converts a workspace.
func Workspace(w model.Workspace, members []model.SharingMember) map[string]any {
	return map[string]any{
		"id":         w.ID.String(),
		"ownerId":    w.OwnerID.String(),
		"name":       w.Name,
		"accountIds": idList(w.AccountIDs),
		"createdAt":  ts(w.CreatedAt),
		"updatedAt":  ts(w.UpdatedAt),
		"deletedAt":  tsPtr(w.DeletedAt),
		"members":    Members(members),
	}
}

// Invitation converts an invitation.
func Invitation(inv model.Invitation) map[string]any {
	return map[string]any{
		"id":         inv.ID.String(),
		"kind":       string(inv.Kind),
		"resourceId": inv.ResourceID.String(),
		"ownerId":    inv.OwnerID.String(),
		"email":      inv.Email,
		"role":       string(inv.Role),
		"status":     string(inv.Status),
		"createdAt":  ts(inv.CreatedAt),
	}
}

// Notification converts a notification.
func Notification(n model.Notification) map[string]any {
	return map[string]any{
		"id":           n.ID.String(),
		"recipient":    n.Recipient,
		"senderId":     n.SenderID.String(),
		"activityType": string(n.ActivityType),
		"isRead":       n.IsRead,
		"createdAt":    ts(n.CreatedAt),
		"detail": map[string]any{
			"accountInvitationId":   idPtr(n.Detail.AccountInvitationID),
			"workspaceInvitationId": idPtr(n.Detail.WorkspaceInvitationID),
			"activityLogId":         idPtr(n.Detail.ActivityLogID),
		},
	}
}

// ContactInfo converts a contact card.
func ContactInfo(c model.ContactInfo) map[string]any {
	return map[string]any{
		"id":          c.ID.String(),
		"ownerId":     c.OwnerID.String(),
		"title":       c.Title,
		"firstName":   c.FirstName,
		"midName":     c.MidName,
		"lastName":    c.LastName,
		"street":      c.Street,
		"city":        c.City,
		"postalCode":  c.PostalCode,
		"country":     c.Country,
		"email":       c.Email,
		"phoneNumber": c.PhoneNumber,
		"createdAt":   ts(c.CreatedAt),
		"updatedAt":   ts(c.UpdatedAt),
	}
}

// List converts a slice with fn.
func List[T any](in []T, fn func(T) map[string]any) []any {
	out := make([]any, 0, len(in))
	for _, v := range in {
		out = append(out, fn(v))
	}
	return out
}

package service

import (
	"context"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/goph-share/internal/errs"
	"github.com/and161185/goph-share/internal/model"
	"github.com/and161185/goph-share/internal/repository/memory"
)

func TestHighLevelPassword_Lifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewHighLevelPasswordService(memory.New().HighLevelPasswords(), zaptest.NewLogger(t))
	uid := uuid.Must(uuid.NewV4())

	st, err := s.Status(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, model.SecureNotRegistered, st)
	require.NoError(t, s.Gate(ctx, uid, ""), "no password set")
	require.ErrorIs(t, s.Verify(ctx, uid, "x"), errs.ErrHighLevelPasswordNotFound)
	_, err = s.Toggle(ctx, uid, "x")
	require.ErrorIs(t, err, errs.ErrHighLevelPasswordNotFound)

	err = s.Set(ctx, uid, HighLevelPasswordInput{Password: "123"})
	require.Equal(t, errs.CodeMissingInput, errs.CodeOf(err))

	require.NoError(t, s.Set(ctx, uid, HighLevelPasswordInput{Password: "open-sesame"}))
	require.NoError(t, s.Verify(ctx, uid, "open-sesame"))
	require.ErrorIs(t, s.Verify(ctx, uid, "wrong"), errs.ErrIncorrectPassword)
	require.ErrorIs(t, s.Gate(ctx, uid, ""), errs.ErrIncorrectPassword)
	require.NoError(t, s.Gate(ctx, uid, "open-sesame"))

	require.ErrorIs(t, s.Set(ctx, uid, HighLevelPasswordInput{Password: "next-secret"}), errs.ErrIncorrectPassword)
	require.NoError(t, s.Set(ctx, uid, HighLevelPasswordInput{Password: "next-secret", Current: "open-sesame"}))
	require.ErrorIs(t, s.Verify(ctx, uid, "open-sesame"), errs.ErrIncorrectPassword)

	_, err = s.Toggle(ctx, uid, "open-sesame")
	require.ErrorIs(t, err, errs.ErrIncorrectPassword)
	st, err = s.Toggle(ctx, uid, "next-secret")
	require.NoError(t, err)
	require.Equal(t, model.SecureDisabled, st)
	require.NoError(t, s.Gate(ctx, uid, ""), "disabled password does not gate")

	// a disabled password can be replaced without the current one
	require.NoError(t, s.Set(ctx, uid, HighLevelPasswordInput{Password: "third-one"}))
	st, err = s.Status(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, model.SecureEnabled, st)
}

func TestContactInfo_OwnerScopedCRUD(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewContactInfoService(memory.New().ContactInfos())
	ann, bob := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())

	_, err := s.Create(ctx, ann, ContactInput{})
	require.Equal(t, errs.CodeMissingInput, errs.CodeOf(err))
	_, err = s.Create(ctx, ann, ContactInput{Title: "Home", Email: "nope"})
	require.Equal(t, errs.CodeMissingInput, errs.CodeOf(err))
	_, err = s.Create(ctx, ann, ContactInput{Title: "Home", PhoneNumber: "123"})
	require.Equal(t, errs.CodeMissingInput, errs.CodeOf(err))

	c, err := s.Create(ctx, ann, ContactInput{Title: " Home ", City: "Oslo", Email: "Ann@Example.com", PhoneNumber: "4712345678"})
	require.NoError(t, err)
	require.Equal(t, "Home", c.Title)
	require.Equal(t, "ann@example.com", c.Email)

	_, err = s.Get(ctx, bob, c.ID)
	require.ErrorIs(t, err, errs.ErrContactInfoNotFound)
	list, err := s.List(ctx, bob)
	require.NoError(t, err)
	require.Empty(t, list)

	_, err = s.Update(ctx, bob, c.ID, ContactInput{Title: "Stolen"})
	require.ErrorIs(t, err, errs.ErrContactInfoNotFound)
	up, err := s.Update(ctx, ann, c.ID, ContactInput{Title: "Work", City: "Bergen"})
	require.NoError(t, err)
	require.Equal(t, "Bergen", up.City)

	require.ErrorIs(t, s.SoftDelete(ctx, bob, c.ID), errs.ErrContactInfoNotFound)
	require.NoError(t, s.SoftDelete(ctx, ann, c.ID))
	_, err = s.Get(ctx, ann, c.ID)
	require.ErrorIs(t, err, errs.ErrContactInfoNotFound)
	require.ErrorIs(t, s.SoftDelete(ctx, ann, c.ID), errs.ErrContactInfoNotFound)

	require.NoError(t, s.Restore(ctx, ann, c.ID))
	require.ErrorIs(t, s.Restore(ctx, ann, c.ID), errs.ErrContactInfoNotFound)
	list, err = s.List(ctx, ann)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Work", list[0].Title)
}

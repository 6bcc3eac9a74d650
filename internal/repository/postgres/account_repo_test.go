package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/goph-share/internal/errs"
	"github.com/and161185/goph-share/internal/model"
)

var accountColNames = []string{"id", "owner_id", "domain", "username", "password_enc", "created_at", "updated_at"}

func TestAccountRepo_CreateAndGet(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)
	ctx := context.Background()
	owner := uuid.Must(uuid.NewV4())
	now := time.Now()

	a := &model.Account{OwnerID: owner, Domain: "github.com", Username: "ann", PasswordEnc: "sealed"}
	mock.ExpectQuery(`INSERT INTO accounts \(id, owner_id, domain, username, password_enc\)`).
		WithArgs(pgxmock.AnyArg(), owner, "github.com", "ann", "sealed").
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	require.NoError(t, r.Create(ctx, a))
	require.NotEqual(t, uuid.Nil, a.ID)

	mock.ExpectQuery(`FROM accounts a WHERE a.id=\$1 AND a.deleted_at IS NULL`).
		WithArgs(a.ID).
		WillReturnRows(pgxmock.NewRows(accountColNames).AddRow(a.ID, owner, "github.com", "ann", "sealed", now, now))
	got, err := r.Get(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, "ann", got.Username)

	mock.ExpectQuery(`FROM accounts a WHERE a.id=\$1`).
		WithArgs(a.ID).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.Get(ctx, a.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_Update_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)
	id := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`UPDATE accounts SET domain=\$2, username=\$3, password_enc=\$4`).
		WithArgs(id, "d", "u", "p").
		WillReturnError(pgx.ErrNoRows)
	err := r.Update(context.Background(), &model.Account{ID: id, Domain: "d", Username: "u", PasswordEnc: "p"})
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestAccountRepo_SoftDeleteAndRestore(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	owner := uuid.Must(uuid.NewV4())

	mock.ExpectExec(`UPDATE accounts SET deleted_at=now\(\) WHERE id=\$1 AND deleted_at IS NULL`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.SoftDelete(ctx, id))

	mock.ExpectExec(`UPDATE accounts SET deleted_at=now\(\)`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.SoftDelete(ctx, id), errs.ErrNotFound)

	mock.ExpectExec(`UPDATE accounts SET deleted_at=NULL WHERE id=\$1 AND owner_id=\$2`).
		WithArgs(id, owner).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.Restore(ctx, id, owner))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_ListForUser_DefaultLimitAndTotal(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)
	user := uuid.Must(uuid.NewV4())
	now := time.Now()

	cols := append(append([]string{}, accountColNames...), "count")
	mock.ExpectQuery(`FROM accounts a`).
		WithArgs(user, "git", defaultPageLimit, 0).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(uuid.Must(uuid.NewV4()), user, "github.com", "ann", "x", now, now, 2).
			AddRow(uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4()), "gitlab.com", "ann", "y", now, now, 2))
	list, total, err := r.ListForUser(context.Background(), user, model.Page{Keyword: "git"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, 2, total)
}

func TestAccountRepo_GetVersion_ScopedToOwner(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)
	vid := uuid.Must(uuid.NewV4())
	owner := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`FROM account_versions v JOIN accounts a ON a.id = v.account_id`).
		WithArgs(vid, owner).
		WillReturnError(pgx.ErrNoRows)
	_, err := r.GetVersion(context.Background(), vid, owner)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/goph-share/internal/errs"
	"github.com/and161185/goph-share/internal/model"
)

// TwoFARepo implements TwoFARepository using PostgreSQL.
type TwoFARepo struct{ db *DB }

// NewTwoFARepo constructs a 2FA repository.
func NewTwoFARepo(db *DB) *TwoFARepo { return &TwoFARepo{db: db} }

// Get returns the enrollment of userID.
func (r *TwoFARepo) Get(ctx context.Context, userID uuid.UUID) (*model.TwoFA, error) {
	const q = `SELECT user_id, secret_enc, status, updated_at FROM user_two_fa WHERE user_id=$1`
	var (
		t      model.TwoFA
		status string
	)
	err := r.db.q(ctx).QueryRow(ctx, q, userID).Scan(&t.UserID, &t.SecretEnc, &status, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	t.Status = model.SecureStatus(status)
	return &t, nil
}

// Upsert writes the enrollment of t.UserID.
func (r *TwoFARepo) Upsert(ctx context.Context, t *model.TwoFA) error {
	const q = `
INSERT INTO user_two_fa (user_id, secret_enc, status)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE SET secret_enc=EXCLUDED.secret_enc, status=EXCLUDED.status, updated_at=now()
RETURNING updated_at`
	return r.db.q(ctx).QueryRow(ctx, q, t.UserID, t.SecretEnc, string(t.Status)).Scan(&t.UpdatedAt)
}

// HighLevelPasswordRepo implements HighLevelPasswordRepository using PostgreSQL.
type HighLevelPasswordRepo struct{ db *DB }

// NewHighLevelPasswordRepo constructs a high-level password repository.
func NewHighLevelPasswordRepo(db *DB) *HighLevelPasswordRepo { return &HighLevelPasswordRepo{db: db} }

// Get returns the high-level password of userID.
func (r *HighLevelPasswordRepo) Get(ctx context.Context, userID uuid.UUID) (*model.HighLevelPassword, error) {
	const q = `
SELECT id, user_id, hash, salt, type, status, created_at, updated_at
FROM high_level_passwords WHERE user_id=$1`
	var (
		p           model.HighLevelPassword
		typ, status string
	)
	err := r.db.q(ctx).QueryRow(ctx, q, userID).
		Scan(&p.ID, &p.UserID, &p.Hash, &p.Salt, &typ, &status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	p.Type, p.Status = model.HighLevelPasswordType(typ), model.SecureStatus(status)
	return &p, nil
}

// Upsert replaces the high-level password of p.UserID, keeping its id.
func (r *HighLevelPasswordRepo) Upsert(ctx context.Context, p *model.HighLevelPassword) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.Must(uuid.NewV4())
	}
	const q = `
INSERT INTO high_level_passwords (id, user_id, hash, salt, type, status)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id) DO UPDATE
   SET hash=EXCLUDED.hash, salt=EXCLUDED.salt, type=EXCLUDED.type, status=EXCLUDED.status, updated_at=now()
RETURNING id, created_at, updated_at`
	return r.db.q(ctx).QueryRow(ctx, q, p.ID, p.UserID, p.Hash, p.Salt, string(p.Type), string(p.Status)).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// SetStatus changes the status of the user's high-level password.
func (r *HighLevelPasswordRepo) SetStatus(ctx context.Context, userID uuid.UUID, status model.SecureStatus) error {
	const q = `UPDATE high_level_passwords SET status=$2, updated_at=now() WHERE user_id=$1`
	tag, err := r.db.q(ctx).Exec(ctx, q, userID, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// ContactInfoRepo implements ContactInfoRepository using PostgreSQL.
type ContactInfoRepo struct{ db *DB }

// NewContactInfoRepo constructs a contact info repository.
func NewContactInfoRepo(db *DB) *ContactInfoRepo { return &ContactInfoRepo{db: db} }

const contactCols = `id, owner_id, title, first_name, mid_name, last_name, street, city, postal_code, country,
       email, phone_number, created_at, updated_at`

func scanContact(row pgx.Row) (*model.ContactInfo, error) {
	var c model.ContactInfo
	err := row.Scan(&c.ID, &c.OwnerID, &c.Title, &c.FirstName, &c.MidName, &c.LastName, &c.Street, &c.City,
		&c.PostalCode, &c.Country, &c.Email, &c.PhoneNumber, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Create inserts a card.
func (r *ContactInfoRepo) Create(ctx context.Context, c *model.ContactInfo) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.Must(uuid.NewV4())
	}
	const q = `
INSERT INTO contact_infos (id, owner_id, title, first_name, mid_name, last_name, street, city, postal_code,
                           country, email, phone_number)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING created_at, updated_at`
	return r.db.q(ctx).QueryRow(ctx, q, c.ID, c.OwnerID, c.Title, c.FirstName, c.MidName, c.LastName, c.Street,
		c.City, c.PostalCode, c.Country, c.Email, c.PhoneNumber).Scan(&c.CreatedAt, &c.UpdatedAt)
}

// Get returns a live card of ownerID.
func (r *ContactInfoRepo) Get(ctx context.Context, ownerID, id uuid.UUID) (*model.ContactInfo, error) {
	const q = `SELECT ` + contactCols + ` FROM contact_infos WHERE id=$1 AND owner_id=$2 AND deleted_at IS NULL`
	return scanContact(r.db.q(ctx).QueryRow(ctx, q, id, ownerID))
}

// List returns live cards of ownerID, newest first.
func (r *ContactInfoRepo) List(ctx context.Context, ownerID uuid.UUID) ([]model.ContactInfo, error) {
	const q = `SELECT ` + contactCols + ` FROM contact_infos WHERE owner_id=$1 AND deleted_at IS NULL ORDER BY created_at DESC`
	rows, err := r.db.q(ctx).Query(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ContactInfo
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Update overwrites the mutable fields of a live card.
func (r *ContactInfoRepo) Update(ctx context.Context, c *model.ContactInfo) error {
	const q = `
UPDATE contact_infos
   SET title=$3, first_name=$4, mid_name=$5, last_name=$6, street=$7, city=$8, postal_code=$9, country=$10,
       email=$11, phone_number=$12, updated_at=now()
 WHERE id=$1 AND owner_id=$2 AND deleted_at IS NULL
RETURNING updated_at`
	err := r.db.q(ctx).QueryRow(ctx, q, c.ID, c.OwnerID, c.Title, c.FirstName, c.MidName, c.LastName, c.Street,
		c.City, c.PostalCode, c.Country, c.Email, c.PhoneNumber).Scan(&c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return errs.ErrNotFound
	}
	return err
}

// SoftDelete marks a live card deleted.
func (r *ContactInfoRepo) SoftDelete(ctx context.Context, ownerID, id uuid.UUID) error {
	const q = `UPDATE contact_infos SET deleted_at=now() WHERE id=$1 AND owner_id=$2 AND deleted_at IS NULL`
	return r.exec(ctx, q, id, ownerID)
}

// Restore clears the deletion mark of a card of ownerID.
func (r *ContactInfoRepo) Restore(ctx context.Context, ownerID, id uuid.UUID) error {
	const q = `UPDATE contact_infos SET deleted_at=NULL WHERE id=$1 AND owner_id=$2 AND deleted_at IS NOT NULL`
	return r.exec(ctx, q, id, ownerID)
}

func (r *ContactInfoRepo) exec(ctx context.Context, q string, args ...any) error {
	tag, err := r.db.q(ctx).Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

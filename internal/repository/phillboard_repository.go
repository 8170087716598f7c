package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/phillboard/internal/economy"
	"github.com/iliyamo/phillboard/internal/model"
)

// PhillboardRepo persists phillboards in MySQL and implements
// economy.PhillboardStore.
type PhillboardRepo struct{ db *sql.DB }

// NewPhillboardRepo creates a new PhillboardRepo.
func NewPhillboardRepo(db *sql.DB) *PhillboardRepo { return &PhillboardRepo{db: db} }

var _ economy.PhillboardStore = (*PhillboardRepo)(nil)

const phillboardColumns = `id, title, username, user_id, latitude, longitude, placement_type, content, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPhillboard(s rowScanner) (model.Phillboard, error) {
	var (
		p       model.Phillboard
		userID  sql.NullInt64
		content sql.NullString
		ptype   string
	)
	if err := s.Scan(&p.ID, &p.Title, &p.Username, &userID, &p.Latitude, &p.Longitude,
		&ptype, &content, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return model.Phillboard{}, err
	}
	if userID.Valid {
		p.UserID = uint64(userID.Int64)
	}
	if content.Valid {
		p.Content = &content.String
	}
	p.PlacementType = model.PlacementType(ptype)
	return p, nil
}

// Near returns the phillboards inside the square of side 2*tolerance
// centred on (lat, lng), newest first.  The bounding box uses the
// (latitude, longitude) index; a box crossing the antimeridian is queried
// as two longitude ranges.
func (r *PhillboardRepo) Near(ctx context.Context, lat, lng, tolerance float64) ([]model.Phillboard, error) {
	spans := economy.LongitudeSpans(lng, tolerance)
	ranges := make([]string, 0, len(spans))
	args := []any{lat - tolerance, lat + tolerance}
	for _, sp := range spans {
		ranges = append(ranges, "longitude BETWEEN ? AND ?")
		args = append(args, sp.Min, sp.Max)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+phillboardColumns+` FROM phillboards
		 WHERE latitude BETWEEN ? AND ? AND (`+strings.Join(ranges, " OR ")+`)
		 ORDER BY created_at DESC, id DESC`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Phillboard
	for rows.Next() {
		p, err := scanPhillboard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetByID loads one phillboard or returns economy.ErrNotFound.
func (r *PhillboardRepo) GetByID(ctx context.Context, id string) (model.Phillboard, error) {
	p, err := scanPhillboard(r.db.QueryRowContext(ctx,
		`SELECT `+phillboardColumns+` FROM phillboards WHERE id = ? LIMIT 1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Phillboard{}, economy.ErrNotFound
	}
	return p, err
}

// getByIDTx reloads a row inside tx, locking it when forUpdate is set.
func (r *PhillboardRepo) getByIDTx(ctx context.Context, tx *sql.Tx, id string, forUpdate bool) (model.Phillboard, error) {
	q := `SELECT ` + phillboardColumns + ` FROM phillboards WHERE id = ?`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	p, err := scanPhillboard(tx.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Phillboard{}, economy.ErrNotFound
	}
	return p, err
}

// Insert stores a new phillboard.  UserID 0 and a nil Content are
// written as NULL.
func (r *PhillboardRepo) Insert(ctx context.Context, p *model.Phillboard) error {
	var userID sql.NullInt64
	if p.UserID != 0 {
		userID = sql.NullInt64{Int64: int64(p.UserID), Valid: true}
	}
	var content sql.NullString
	if p.Content != nil {
		content = sql.NullString{String: *p.Content, Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO phillboards (`+phillboardColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Title, p.Username, userID, p.Latitude, p.Longitude,
		string(p.PlacementType), content, p.CreatedAt, p.UpdatedAt)
	return err
}

// Update applies the non-nil fields of upd and returns the stored row.
// The row is locked first so a missing id is reported as
// economy.ErrNotFound rather than as zero affected rows, which MySQL
// also returns when the new values equal the old ones.
func (r *PhillboardRepo) Update(ctx context.Context, id string, upd model.PhillboardUpdate) (p model.Phillboard, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Phillboard{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = r.getByIDTx(ctx, tx, id, true); err != nil {
		return model.Phillboard{}, err
	}

	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}
	if upd.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *upd.Title)
	}
	if upd.PlacementType != nil {
		sets = append(sets, "placement_type = ?")
		args = append(args, string(*upd.PlacementType))
	}
	args = append(args, id)
	if _, err = tx.ExecContext(ctx,
		`UPDATE phillboards SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
		return model.Phillboard{}, err
	}

	if p, err = r.getByIDTx(ctx, tx, id, false); err != nil {
		return model.Phillboard{}, err
	}
	if err = tx.Commit(); err != nil {
		return model.Phillboard{}, err
	}
	return p, nil
}

// Delete hard-deletes a phillboard.  History rows are left in place.
func (r *PhillboardRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM phillboards WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return economy.ErrNotFound
	}
	return nil
}

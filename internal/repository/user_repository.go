package repository

import (
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/techtwins/user-api/internal/apperr"
	"github.com/techtwins/user-api/internal/models"
)

const uniqueViolation = "23505"

// UserRepository performs all SQL against the users table. Mutations run in
// a transaction so a failure after a partial write never leaves a visible
// change behind.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(user *models.User) error {
	tx, err := r.db.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}

	query := `
		INSERT INTO users (name, email, age, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err = tx.QueryRow(query,
		user.Name, user.Email, nullInt(user.Age), user.CreatedAt, user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		tx.Rollback()
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return apperr.ErrConflict
		}
		return errors.Wrap(err, "failed to create user")
	}
	return errors.Wrap(tx.Commit(), "failed to commit create")
}

func (r *UserRepository) GetByID(id int64) (*models.User, error) {
	query := `
		SELECT id, name, email, age, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return r.scanUser(r.db.QueryRow(query, id))
}

// GetByEmail is the uniqueness pre-check used before create and update. The
// unique index on email remains the authority when two requests race.
func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	query := `
		SELECT id, name, email, age, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	return r.scanUser(r.db.QueryRow(query, email))
}

// List returns one page of users in primary-key order plus the total row
// count. An out-of-range page yields an empty slice, not an error.
func (r *UserRepository) List(page, perPage int) ([]models.User, int, error) {
	var total int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count users")
	}

	query := `
		SELECT id, name, email, age, created_at, updated_at
		FROM users
		ORDER BY id
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Query(query, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list users")
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var user models.User
		var age sql.NullInt64
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &age, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan user")
		}
		if age.Valid {
			a := int(age.Int64)
			user.Age = &a
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, "failed to read users")
	}
	return users, total, nil
}

func (r *UserRepository) Update(user *models.User) error {
	tx, err := r.db.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}

	query := `
		UPDATE users
		SET name = $2, email = $3, age = $4, updated_at = $5
		WHERE id = $1
	`
	result, err := tx.Exec(query, user.ID, user.Name, user.Email, nullInt(user.Age), user.UpdatedAt)
	if err != nil {
		tx.Rollback()
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return apperr.ErrConflict
		}
		return errors.Wrap(err, "failed to update user")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "failed to check rows affected")
	}
	if rows == 0 {
		tx.Rollback()
		return apperr.ErrNotFound
	}
	return errors.Wrap(tx.Commit(), "failed to commit update")
}

func (r *UserRepository) Delete(id int64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}

	result, err := tx.Exec(`DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "failed to delete user")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "failed to check rows affected")
	}
	if rows == 0 {
		tx.Rollback()
		return apperr.ErrNotFound
	}
	return errors.Wrap(tx.Commit(), "failed to commit delete")
}

// Ping runs a trivial query to confirm the store is reachable.
func (r *UserRepository) Ping() error {
	var one int
	if err := r.db.QueryRow(`SELECT 1`).Scan(&one); err != nil {
		return errors.Wrap(err, "store unreachable")
	}
	return nil
}

func (r *UserRepository) scanUser(row *sql.Row) (*models.User, error) {
	var user models.User
	var age sql.NullInt64

	err := row.Scan(&user.ID, &user.Name, &user.Email, &age, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user")
	}

	if age.Valid {
		a := int(age.Int64)
		user.Age = &a
	}
	return &user, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

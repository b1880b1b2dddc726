package remote

import (
	"context"

	"github.com/eventsx/backend/internal/models"
	"github.com/eventsx/backend/internal/store"
	"github.com/eventsx/backend/pkg/utils"
)

const userColumns = `id, email, password_hash, role,
	COALESCE(contact,''), COALESCE(first_name,''), COALESCE(last_name,''),
	is_active, email_verified, last_login, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role,
		&u.Contact, &u.FirstName, &u.LastName,
		&u.IsActive, &u.EmailVerified, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// RegisterUser inserts a new user with a bcrypt-hashed password.
func (s *Store) RegisterUser(ctx context.Context, p store.RegisterUserParams) (*models.User, error) {
	hash, err := utils.HashPassword(p.Password)
	if err != nil {
		return nil, err
	}
	role := p.Role
	if role == "" {
		role = models.RoleUser
	}

	const q = `INSERT INTO users (email, password_hash, role, contact, first_name, last_name)
		VALUES ($1, $2, $3, NULLIF($4,''), NULLIF($5,''), NULLIF($6,''))
		RETURNING ` + userColumns

	var u *models.User
	err = s.withRetry(ctx, "register user", func() error {
		var scanErr error
		u, scanErr = scanUser(s.pool.QueryRow(ctx, q, p.Email, hash, string(role), p.Contact, p.FirstName, p.LastName))
		if scanErr != nil && isUniqueViolation(scanErr) {
			return store.ErrDuplicateEmail
		}
		return scanErr
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// ImportUser inserts a user preserving the stored credential hash and
// profile flags. Migration support: migrated users keep their passwords.
func (s *Store) ImportUser(ctx context.Context, u models.User) (*models.User, error) {
	const q = `INSERT INTO users (email, password_hash, role, contact, first_name, last_name, is_active, email_verified, last_login)
		VALUES ($1, $2, $3, NULLIF($4,''), NULLIF($5,''), NULLIF($6,''), $7, $8, $9)
		RETURNING ` + userColumns

	var created *models.User
	err := s.withRetry(ctx, "import user", func() error {
		var scanErr error
		created, scanErr = scanUser(s.pool.QueryRow(ctx, q,
			u.Email, u.PasswordHash, string(u.Role), u.Contact, u.FirstName, u.LastName,
			u.IsActive, u.EmailVerified, u.LastLogin))
		if scanErr != nil && isUniqueViolation(scanErr) {
			return store.ErrDuplicateEmail
		}
		return scanErr
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// LoginUser verifies credentials against the stored hash and stamps last_login.
func (s *Store) LoginUser(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !utils.CheckPassword(password, u.PasswordHash) {
		return nil, store.ErrBadCredential
	}

	const q = `UPDATE users SET last_login = NOW() WHERE id = $1 RETURNING last_login`
	err = s.withRetry(ctx, "update last login", func() error {
		return s.pool.QueryRow(ctx, q, u.ID).Scan(&u.LastLogin)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetUserByEmail returns an active user by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND is_active = true`

	var u *models.User
	err := s.withRetry(ctx, "get user by email", func() error {
		var scanErr error
		u, scanErr = scanUser(s.pool.QueryRow(ctx, q, email))
		if scanErr != nil && noRows(scanErr) {
			return store.ErrUserNotFound
		}
		return scanErr
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetAllUsers returns every active user, newest first.
func (s *Store) GetAllUsers(ctx context.Context) ([]models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE is_active = true ORDER BY created_at DESC`

	var list []models.User
	err := s.withRetry(ctx, "get all users", func() error {
		rows, qErr := s.pool.Query(ctx, q)
		if qErr != nil {
			return qErr
		}
		defer rows.Close()
		list = list[:0]
		for rows.Next() {
			u, scanErr := scanUser(rows)
			if scanErr != nil {
				return scanErr
			}
			list = append(list, *u)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

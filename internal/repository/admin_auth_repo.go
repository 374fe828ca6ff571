package repository

import (
	"database/sql"
	"fmt"

	"parkgrid/internal/db"
)

type AdminAuthRepository struct {
	DB *sql.DB
}

func NewAdminAuthRepository(database *sql.DB) *AdminAuthRepository {
	return &AdminAuthRepository{DB: database}
}

func (r *AdminAuthRepository) GetByEmail(email string) (*db.Admin, error) {
	var admin db.Admin
	query := `SELECT id, email, password_hash, created_at FROM admins WHERE email = $1`
	err := r.DB.QueryRow(query, email).Scan(&admin.ID, &admin.Email, &admin.PasswordHash, &admin.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("error querying admin by email: %w", err)
	}
	return &admin, nil
}

func (r *AdminAuthRepository) Create(email, passwordHash string) error {
	query := `INSERT INTO admins (email, password_hash, created_at) VALUES ($1, $2, NOW())`
	if _, err := r.DB.Exec(query, email, passwordHash); err != nil {
		return fmt.Errorf("error creating admin: %w", err)
	}
	return nil
}

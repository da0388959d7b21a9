package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"platformBrain/business/dispatcher"

	"gorm.io/gorm"
)

// RecipientRepository resolves e-mail recipients from the "users" table.
type RecipientRepository struct {
	DB *gorm.DB
}

var _ dispatcher.RecipientLookup = (*RecipientRepository)(nil)

func NewRecipientRepository(db *gorm.DB) *RecipientRepository {
	return &RecipientRepository{DB: db}
}

func (r *RecipientRepository) Recipient(ctx context.Context, tenantID, userID uint) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", fmt.Errorf("context error: %w", err)
	}

	var row struct {
		FullName sql.NullString `gorm:"column:full_name"`
		Email    sql.NullString `gorm:"column:email"`
	}

	err := r.DB.WithContext(ctx).
		Table("users").
		Select("full_name, email").
		Where("id = ? AND tenant_id = ?", userID, tenantID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", "", fmt.Errorf("user %d not found in tenant %d", userID, tenantID)
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to query users: %w", err)
	}
	if !row.Email.Valid || row.Email.String == "" {
		return "", "", fmt.Errorf("user %d has no email", userID)
	}

	return row.FullName.String, row.Email.String, nil
}

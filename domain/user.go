package domain

import "time"

// User is the host account row. The brain only reads it to address e-mail
// notifications and to resolve a tenant for authenticated requests.
type User struct {
	ID        uint   `gorm:"primaryKey"`
	TenantID  uint   `gorm:"column:tenant_id;not null"`
	FullName  string `gorm:"column:full_name;not null"`
	Email     string `gorm:"column:email;not null"`
	Role      string `gorm:"column:role;default:customer"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (User) TableName() string {
	return "users"
}

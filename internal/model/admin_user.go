package model

// AdminUser represents an admin account for the status/listing endpoints
type AdminUser struct {
	BaseModel
	Username     string `gorm:"type:varchar(128);uniqueIndex;not null" json:"username"`
	PasswordHash string `gorm:"type:varchar(255);not null" json:"-"`
	Role         string `gorm:"type:varchar(32);default:'admin'" json:"role"`
}

// TableName specifies the table name for AdminUser model
func (AdminUser) TableName() string {
	return "admin_users"
}

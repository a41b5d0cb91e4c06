package models

import (
	"time"

	"gorm.io/gorm"
)

// User is a staff member (officer, technician or admin). Citizens are not stored here.
type User struct {
	ID        uint           `json:"-" gorm:"primaryKey"`
	StaffID   string         `json:"id" gorm:"uniqueIndex;not null"`
	Email     string         `json:"email" gorm:"uniqueIndex;not null"`
	Password  string         `json:"-" gorm:"not null"`
	Name      string         `json:"name" gorm:"not null"`
	Phone     string         `json:"phone"`
	Role      ActorRole      `json:"role" gorm:"not null;default:'officer'"`
	Specialty string         `json:"specialty"`
	Active    bool           `json:"active" gorm:"default:true"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (User) TableName() string {
	return "staff_users"
}

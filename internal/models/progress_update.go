package models

import (
	"time"

	"gorm.io/datatypes"
)

// ProgressUpdate is a technician's work log against a complaint. Corrections are new rows.
type ProgressUpdate struct {
	ID           uint                        `json:"-" gorm:"primaryKey"`
	ComplaintID  string                      `json:"-" gorm:"not null;index"`
	Notes        string                      `json:"notes" gorm:"type:text;not null"`
	TimeSpent    float64                     `json:"timeSpent" gorm:"not null;default:0"`
	Technician   string                      `json:"technician"`
	Photos       datatypes.JSONSlice[string] `json:"photos,omitempty" gorm:"type:jsonb"`
	IsCompletion bool                        `json:"isCompletion,omitempty" gorm:"default:false"`
	Date         time.Time                   `json:"date" gorm:"not null"`
}

func (ProgressUpdate) TableName() string {
	return "complaint_progress_updates"
}

func (p ProgressUpdate) Clone() ProgressUpdate {
	out := p
	if p.Photos != nil {
		out.Photos = append(datatypes.JSONSlice[string]{}, p.Photos...)
	}
	return out
}

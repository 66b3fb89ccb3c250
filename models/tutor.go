package models

import "time"

// Tutor is a tutor profile. Timestamps are assigned by the service layer,
// so gorm's automatic time tracking is switched off on both columns.
type Tutor struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:255;not null;uniqueIndex:idx_tutors_email" json:"email"`
	Phone     string    `gorm:"size:15" json:"phone"`
	Subject   string    `gorm:"size:50;index:idx_tutors_subject" json:"subject"`
	Bio       string    `gorm:"type:text" json:"bio"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:false" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:false" json:"updated_at"`
}

func (Tutor) TableName() string { return "tutors" }

package models

import "time"

// User is created by the identity provider on first login and carries the
// gamification counters. Level always equals xp/300+1.
type User struct {
	ID               string     `gorm:"primaryKey;size:255" json:"id"`
	Email            *string    `gorm:"size:255;uniqueIndex" json:"email"`
	FirstName        *string    `gorm:"size:255" json:"firstName"`
	LastName         *string    `gorm:"size:255" json:"lastName"`
	ProfileImageURL  *string    `gorm:"type:text" json:"profileImageUrl"`
	Level            int        `gorm:"not null;default:1" json:"level"`
	XP               int        `gorm:"not null;default:0" json:"xp"`
	TotalInjections  int        `gorm:"not null;default:0" json:"totalInjections"`
	TotalCourses     int        `gorm:"not null;default:0" json:"totalCourses"`
	TotalBloodTests  int        `gorm:"not null;default:0" json:"totalBloodTests"`
	CurrentStreak    int        `gorm:"not null;default:0" json:"currentStreak"`
	LongestStreak    int        `gorm:"not null;default:0" json:"longestStreak"`
	LastActivityDate *time.Time `json:"lastActivityDate"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

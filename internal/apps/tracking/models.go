package tracking

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/models"
	"gorm.io/datatypes"
)

const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusPaused    = "paused"

	DefaultInjectionXP = 15
	DefaultBloodTestXP = 25
	DefaultPhotoXP     = 10

	DefaultInjectionLimit = 50
)

// Course is a treatment cycle. CurrentWeek is set at creation and never
// advanced automatically.
type Course struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      string          `gorm:"size:255;not null;index" json:"userId"`
	User        *models.User    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Name        string          `gorm:"size:255;not null" json:"name"`
	Description *string         `gorm:"type:text" json:"description"`
	StartDate   datatypes.Date  `gorm:"not null" json:"startDate"`
	EndDate     *datatypes.Date `json:"endDate"`
	Status      string          `gorm:"size:20;not null;default:active;index" json:"status"`
	CourseType  string          `gorm:"size:100;not null" json:"courseType"`
	TotalWeeks  *int            `json:"totalWeeks"`
	CurrentWeek int             `gorm:"not null;default:1" json:"currentWeek"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type CourseCompound struct {
	ID             uint                        `gorm:"primaryKey" json:"id"`
	CourseID       uint                        `gorm:"not null;index" json:"courseId"`
	Course         *Course                     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CompoundName   string                      `gorm:"size:255;not null" json:"compoundName"`
	DosageAmount   float64                     `gorm:"type:numeric(8,2);not null" json:"dosageAmount"`
	DosageUnit     string                      `gorm:"size:50;not null" json:"dosageUnit"`
	Frequency      int                         `gorm:"not null" json:"frequency"`
	InjectionSites datatypes.JSONSlice[string] `json:"injectionSites"`
	StartWeek      int                         `gorm:"not null;default:1" json:"startWeek"`
	EndWeek        *int                        `json:"endWeek"`
	CreatedAt      time.Time                   `json:"createdAt"`
}

// CourseDetail is a course with its compounds nested.
type CourseDetail struct {
	Course
	Compounds []CourseCompound `json:"compounds"`
}

type Injection struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	UserID        string       `gorm:"size:255;not null;index:idx_injections_user_date,priority:1" json:"userId"`
	User          *models.User `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CourseID      *uint        `gorm:"index" json:"courseId"`
	Course        *Course      `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	CompoundName  string       `gorm:"size:255;not null" json:"compoundName"`
	DosageAmount  float64      `gorm:"type:numeric(8,2);not null" json:"dosageAmount"`
	DosageUnit    string       `gorm:"size:50;not null" json:"dosageUnit"`
	InjectionSite string       `gorm:"size:255;not null" json:"injectionSite"`
	InjectionDate time.Time    `gorm:"not null;index:idx_injections_user_date,priority:2" json:"injectionDate"`
	Notes         *string      `gorm:"type:text" json:"notes"`
	PainLevel     *int         `json:"painLevel"`
	PhotoURL      *string      `gorm:"type:text" json:"photoUrl"`
	XPEarned      int          `gorm:"not null;default:15" json:"xpEarned"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// BloodTest keeps lab results as an open marker→value map. AlertFlags are
// computed once at submission and never recomputed.
type BloodTest struct {
	ID          uint                        `gorm:"primaryKey" json:"id"`
	UserID      string                      `gorm:"size:255;not null;index" json:"userId"`
	User        *models.User                `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CourseID    *uint                       `gorm:"index" json:"courseId"`
	Course      *Course                     `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	TestDate    datatypes.Date              `gorm:"not null" json:"testDate"`
	TestType    string                      `gorm:"size:100;not null" json:"testType"`
	Results     datatypes.JSONMap           `gorm:"not null" json:"results"`
	DoctorNotes *string                     `gorm:"type:text" json:"doctorNotes"`
	AlertFlags  datatypes.JSONSlice[string] `json:"alertFlags"`
	XPEarned    int                         `gorm:"not null;default:25" json:"xpEarned"`
	CreatedAt   time.Time                   `json:"createdAt"`
}

type ProgressPhoto struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	UserID    string       `gorm:"size:255;not null;index" json:"userId"`
	User      *models.User `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CourseID  *uint        `gorm:"index" json:"courseId"`
	Course    *Course      `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	PhotoURL  string       `gorm:"type:text;not null" json:"photoUrl"`
	BodyPart  string       `gorm:"size:100;not null" json:"bodyPart"`
	Weight    *float64     `gorm:"type:numeric(5,2)" json:"weight"`
	BodyFat   *float64     `gorm:"type:numeric(4,2)" json:"bodyFat"`
	Notes     *string      `gorm:"type:text" json:"notes"`
	XPEarned  int          `gorm:"not null;default:10" json:"xpEarned"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Stats mixes live counts (ActiveCourses, TotalPhotos) with the denormalized
// counters on the user row.
type Stats struct {
	ActiveCourses   int `json:"activeCourses"`
	TotalInjections int `json:"totalInjections"`
	TotalBloodTests int `json:"totalBloodTests"`
	TotalPhotos     int `json:"totalPhotos"`
	CurrentStreak   int `json:"currentStreak"`
	Level           int `json:"level"`
	XP              int `json:"xp"`
}

type ActivityItem struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	XP          int       `json:"xp"`
	Icon        string    `json:"icon"`
	Color       string    `json:"color"`
}

package gamification

import (
	"fmt"
	"time"

	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/models"
)

// Achievement is an immutable award. Level-up achievements are synthesized by
// AddXP and always carry a zero reward.
type Achievement struct {
	ID              uint         `gorm:"primaryKey" json:"id"`
	UserID          string       `gorm:"size:255;not null;index" json:"userId"`
	User            *models.User `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	AchievementType string       `gorm:"size:100;not null" json:"achievementType"`
	AchievementName string       `gorm:"size:255;not null" json:"achievementName"`
	Description     *string      `gorm:"type:text" json:"description"`
	IconURL         *string      `gorm:"type:text" json:"iconUrl"`
	XPReward        int          `gorm:"not null;default:0" json:"xpReward"`
	UnlockedAt      time.Time    `gorm:"autoCreateTime;index" json:"unlockedAt"`
}

const (
	XPPerLevel = 300

	TypeLevelUp = "level_up"
)

// LevelForXP returns floor(xp/300)+1.
func LevelForXP(xp int) int {
	if xp < 0 {
		return 1
	}
	return xp/XPPerLevel + 1
}

func levelUpAchievement(userID string, level int) Achievement {
	desc := fmt.Sprintf("Congratulations on reaching level %d!", level)
	icon := "🎉"
	return Achievement{
		UserID:          userID,
		AchievementType: TypeLevelUp,
		AchievementName: fmt.Sprintf("Level %d Reached!", level),
		Description:     &desc,
		IconURL:         &icon,
		XPReward:        0,
	}
}

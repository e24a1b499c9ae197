package models

import "gorm.io/gorm"

// TikuUsage accumulates how many practice sessions were started against a
// bank. Counts are advisory: they are batched in memory and flushed
// periodically, so the row may briefly lag the live counter.
type TikuUsage struct {
	gorm.Model
	TikuID    uint  `json:"tiku_id" gorm:"uniqueIndex;not null"`
	UsedCount int64 `json:"used_count" gorm:"default:0"`
}

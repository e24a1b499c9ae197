package models

import "gorm.io/gorm"

// Tiku is a question bank ("tiku"), scoped to a subject
type Tiku struct {
	gorm.Model
	SubjectID    uint    `json:"subject_id" gorm:"index;not null"`
	Subject      Subject `json:"-"`
	TikuName     string  `json:"tiku_name" gorm:"not null"`
	TikuPosition string  `json:"tiku_position" gorm:"uniqueIndex;not null"` // stable key derived from the source file
	TikuNums     int     `json:"tiku_nums" gorm:"default:0"`                // cached aggregate question count
	FileSize     int64   `json:"file_size" gorm:"default:0"`
	IsActive     bool    `json:"is_active" gorm:"default:true"`
	IsDeleted    bool    `gorm:"default:false"`
}

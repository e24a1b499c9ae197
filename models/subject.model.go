package models

import (
	"time"

	"gorm.io/gorm"
)

// Subject groups question banks under one exam subject
type Subject struct {
	gorm.Model
	SubjectName string     `json:"subject_name" gorm:"unique;not null"`
	ExamTime    *time.Time `json:"exam_time"`
	IsDeleted   bool       `gorm:"default:false"`
}

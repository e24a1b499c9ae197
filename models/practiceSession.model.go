package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Session lifecycle statuses
const (
	SessionActive    = "active"
	SessionCompleted = "completed"
	SessionAbandoned = "abandoned"
)

// Per-question statuses within a round
const (
	StatusUnanswered = "unanswered"
	StatusCorrect    = "correct"
	StatusWrong      = "wrong"
)

// PracticeSession is the durable record of one drill over a bank. The
// in-memory session state is authoritative while the process lives; this row
// is the best-effort reconciliation target and the resume source after a
// restart. Array-shaped state (working set, statuses, wrong queue, history)
// lives in JSON columns.
type PracticeSession struct {
	gorm.Model
	SessionKey      string         `json:"session_key" gorm:"uniqueIndex;not null"`
	UserID          uint           `json:"user_id" gorm:"index;not null"`
	TikuID          uint           `json:"tiku_id" gorm:"index;not null"`
	SelectedTypes   datatypes.JSON `json:"selected_types"` // null = all types
	ShuffleEnabled  bool           `json:"shuffle_enabled" gorm:"default:true"`
	QuestionIDs     datatypes.JSON `json:"question_ids"` // working set of the current round
	CurrentIndex    int            `json:"current_index" gorm:"default:0"`
	RoundNumber     int            `json:"round_number" gorm:"default:1"`
	WrongIDs        datatypes.JSON `json:"wrong_ids"`
	Statuses        datatypes.JSON `json:"statuses"`
	History         datatypes.JSON `json:"history"`
	InitialTotal    int            `json:"initial_total" gorm:"default:0"`
	CorrectFirstTry int            `json:"correct_first_try" gorm:"default:0"`
	Status          string         `json:"status" gorm:"index;default:'active'"`
	LastActivity    time.Time      `json:"last_activity" gorm:"index"`
}

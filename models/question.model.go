package models

import (
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Question types
const (
	TypeSingleChoice   = "single_choice"
	TypeMultipleChoice = "multiple_choice"
	TypeJudgment       = "judgment"
	TypeOther          = "other"
)

// Question is one bank-scoped question. Immutable once loaded; cached
// read-only copies may exist in both cache tiers at the same time.
type Question struct {
	gorm.Model
	TikuID           uint           `json:"tiku_id" gorm:"index;not null"`
	Type             string         `json:"type" gorm:"index;not null"`
	Question         string         `json:"question" gorm:"type:text;not null"`
	Options          datatypes.JSON `json:"options_for_practice"` // letter -> text, null for judgment
	Answer           string         `json:"answer" gorm:"not null"` // canonical letter(s), or T/F for judgment
	IsMultipleChoice bool           `json:"is_multiple_choice" gorm:"default:false"`
	Explanation      string         `json:"analysis" gorm:"type:text"`
	IsDeleted        bool           `json:"-" gorm:"default:false"`
}

// OptionsMap decodes the stored options into letter -> text form.
// Judgment questions have no options and return nil.
func (q *Question) OptionsMap() map[string]string {
	if len(q.Options) == 0 {
		return nil
	}
	var opts map[string]string
	if err := json.Unmarshal(q.Options, &opts); err != nil {
		return nil
	}
	return opts
}

// ClassifyType normalizes a raw type string into one of the four buckets
func ClassifyType(raw string, isMultipleChoice bool) string {
	if isMultipleChoice {
		return TypeMultipleChoice
	}
	switch raw {
	case TypeSingleChoice, TypeMultipleChoice, TypeJudgment:
		return raw
	default:
		return TypeOther
	}
}

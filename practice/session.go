package practice

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"qbank/models"
)

var (
	ErrInvalidSessionState = errors.New("invalid session state")
	ErrNoActiveSession     = errors.New("no active practice session")
	ErrEmptyQuestionSet    = errors.New("no questions match the selected types")

	// ErrIndexOutOfRange is a flavor of ErrInvalidSessionState so callers
	// matching the broad class catch it too
	ErrIndexOutOfRange = fmt.Errorf("%w: question index out of range", ErrInvalidSessionState)
)

// AnswerRecord is one history entry, keyed by the working-set index it
// was answered at
type AnswerRecord struct {
	QuestionID uint   `json:"question_id"`
	UserAnswer string `json:"user_answer"`
	IsCorrect  bool   `json:"is_correct"`
	Peeked     bool   `json:"peeked"`
}

// Session is the in-memory authoritative state of one drill. A session
// belongs to exactly one user and is mutated only through its Manager,
// which serializes access per session key. Durable reconciliation is
// asynchronous and last-write-wins.
type Session struct {
	Key             string
	UserID          uint
	TikuID          uint
	SelectedTypes   []string // nil = all types
	Shuffle         bool
	WorkingSet      []uint
	CurrentIndex    int
	RoundNumber     int
	WrongQueue      []uint
	Statuses        []string
	History         map[int]AnswerRecord
	InitialTotal    int
	CorrectFirstTry int
	Status          string
	LastActivity    time.Time
}

// Progress summarizes where a session stands within its current round
type Progress struct {
	CurrentIndex    int    `json:"current_index"`
	RoundTotal      int    `json:"round_total"`
	RoundNumber     int    `json:"round_number"`
	InitialTotal    int    `json:"initial_total"`
	CorrectFirstTry int    `json:"correct_first_try"`
	WrongCount      int    `json:"wrong_count"`
	Status          string `json:"status"`
}

func (s *Session) progress() Progress {
	return Progress{
		CurrentIndex:    s.CurrentIndex,
		RoundTotal:      len(s.WorkingSet),
		RoundNumber:     s.RoundNumber,
		InitialTotal:    s.InitialTotal,
		CorrectFirstTry: s.CorrectFirstTry,
		WrongCount:      len(s.WrongQueue),
		Status:          s.Status,
	}
}

// roundExhausted reports whether the cursor has moved past the working set
func (s *Session) roundExhausted() bool {
	return s.CurrentIndex >= len(s.WorkingSet)
}

// recordAnswer applies one submission at the current cursor position and
// advances it. Peeked submissions always count as wrong. The wrong queue
// holds each question id at most once per round, and first-try credit is
// only earned in round one.
func (s *Session) recordAnswer(questionID uint, userAnswer string, isCorrect, peeked bool) {
	counted := isCorrect && !peeked

	if counted {
		s.Statuses[s.CurrentIndex] = models.StatusCorrect
		if s.RoundNumber == 1 {
			s.CorrectFirstTry++
		}
	} else {
		s.Statuses[s.CurrentIndex] = models.StatusWrong
		if !containsID(s.WrongQueue, questionID) {
			s.WrongQueue = append(s.WrongQueue, questionID)
		}
	}

	s.History[s.CurrentIndex] = AnswerRecord{
		QuestionID: questionID,
		UserAnswer: userAnswer,
		IsCorrect:  counted,
		Peeked:     peeked,
	}
	s.CurrentIndex++
	s.LastActivity = time.Now()
}

// startNextRound rebuilds the working set from the wrong queue. The
// caller has already checked the queue is non-empty.
func (s *Session) startNextRound(gen *Generator) {
	next := make([]uint, len(s.WrongQueue))
	copy(next, s.WrongQueue)
	if s.Shuffle {
		gen.ShuffleIDs(next)
	}

	s.WorkingSet = next
	s.WrongQueue = nil
	s.CurrentIndex = 0
	s.RoundNumber++
	s.Statuses = freshStatuses(len(next))
	s.History = make(map[int]AnswerRecord)
	s.LastActivity = time.Now()
}

// jump moves the cursor to an arbitrary position in the current round
func (s *Session) jump(index int) error {
	if index < 0 || index >= len(s.WorkingSet) {
		return ErrIndexOutOfRange
	}
	s.CurrentIndex = index
	s.LastActivity = time.Now()
	return nil
}

func freshStatuses(n int) []string {
	statuses := make([]string, n)
	for i := range statuses {
		statuses[i] = models.StatusUnanswered
	}
	return statuses
}

func containsID(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// toRecord serializes the session into its durable row shape
func (s *Session) toRecord() *models.PracticeSession {
	rec := &models.PracticeSession{
		SessionKey:      s.Key,
		UserID:          s.UserID,
		TikuID:          s.TikuID,
		ShuffleEnabled:  s.Shuffle,
		CurrentIndex:    s.CurrentIndex,
		RoundNumber:     s.RoundNumber,
		InitialTotal:    s.InitialTotal,
		CorrectFirstTry: s.CorrectFirstTry,
		Status:          s.Status,
		LastActivity:    s.LastActivity,
	}
	if s.SelectedTypes != nil {
		rec.SelectedTypes, _ = json.Marshal(s.SelectedTypes)
	}
	rec.QuestionIDs, _ = json.Marshal(s.WorkingSet)
	rec.WrongIDs, _ = json.Marshal(s.WrongQueue)
	rec.Statuses, _ = json.Marshal(s.Statuses)
	rec.History, _ = json.Marshal(historyToJSON(s.History))
	return rec
}

// updateFields is the partial-update form of toRecord, used for the
// asynchronous reconciliation writes
func (s *Session) updateFields() map[string]any {
	questionIDs, _ := json.Marshal(s.WorkingSet)
	wrongIDs, _ := json.Marshal(s.WrongQueue)
	statuses, _ := json.Marshal(s.Statuses)
	history, _ := json.Marshal(historyToJSON(s.History))
	return map[string]any{
		"question_ids":      questionIDs,
		"current_index":     s.CurrentIndex,
		"round_number":      s.RoundNumber,
		"wrong_ids":         wrongIDs,
		"statuses":          statuses,
		"history":           history,
		"correct_first_try": s.CorrectFirstTry,
		"status":            s.Status,
		"last_activity":     s.LastActivity,
	}
}

// sessionFromRecord rebuilds the in-memory state from a durable row
func sessionFromRecord(rec *models.PracticeSession) (*Session, error) {
	s := &Session{
		Key:             rec.SessionKey,
		UserID:          rec.UserID,
		TikuID:          rec.TikuID,
		Shuffle:         rec.ShuffleEnabled,
		CurrentIndex:    rec.CurrentIndex,
		RoundNumber:     rec.RoundNumber,
		InitialTotal:    rec.InitialTotal,
		CorrectFirstTry: rec.CorrectFirstTry,
		Status:          rec.Status,
		LastActivity:    rec.LastActivity,
		History:         make(map[int]AnswerRecord),
	}
	if len(rec.SelectedTypes) > 0 {
		if err := json.Unmarshal(rec.SelectedTypes, &s.SelectedTypes); err != nil {
			return nil, err
		}
	}
	if len(rec.QuestionIDs) > 0 {
		if err := json.Unmarshal(rec.QuestionIDs, &s.WorkingSet); err != nil {
			return nil, err
		}
	}
	if len(rec.WrongIDs) > 0 {
		if err := json.Unmarshal(rec.WrongIDs, &s.WrongQueue); err != nil {
			return nil, err
		}
	}
	if len(rec.Statuses) > 0 {
		if err := json.Unmarshal(rec.Statuses, &s.Statuses); err != nil {
			return nil, err
		}
	}
	if len(rec.History) > 0 {
		var raw map[string]AnswerRecord
		if err := json.Unmarshal(rec.History, &raw); err != nil {
			return nil, err
		}
		for k, v := range raw {
			idx, err := strconv.Atoi(k)
			if err != nil {
				continue
			}
			s.History[idx] = v
		}
	}
	if len(s.Statuses) != len(s.WorkingSet) {
		s.Statuses = freshStatuses(len(s.WorkingSet))
	}
	return s, nil
}

// historyToJSON keys history entries by their stringified index so the
// column round-trips as a JSON object
func historyToJSON(history map[int]AnswerRecord) map[string]AnswerRecord {
	out := make(map[string]AnswerRecord, len(history))
	for idx, rec := range history {
		out[strconv.Itoa(idx)] = rec
	}
	return out
}

package practice

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"qbank/cache"
	"qbank/models"
	"qbank/stats"
)

// SessionStore is the durable side of session management
type SessionStore interface {
	CreateSession(ctx context.Context, session *models.PracticeSession) error
	UpdateSession(ctx context.Context, sessionKey string, fields map[string]any) error
	CompleteSession(ctx context.Context, sessionKey string, correctFirstTry, roundNumber int) error
	LoadActiveSession(ctx context.Context, userID, tikuID uint) (*models.PracticeSession, error)
}

// StartResult is what session creation (or resumption) hands back
type StartResult struct {
	Session *Session
	Resumed bool
}

// NextResult carries the question at the cursor, or the completion
// signal once every round is done
type NextResult struct {
	Question *models.Question
	Progress Progress
	NewRound bool
	Finished bool
}

// AnswerResult reports one graded submission
type AnswerResult struct {
	QuestionID           uint     `json:"question_id"`
	IsCorrect            bool     `json:"is_correct"`
	Peeked               bool     `json:"peeked"`
	UserAnswerDisplay    string   `json:"user_answer_display"`
	CorrectAnswerDisplay string   `json:"correct_answer_display"`
	Explanation          string   `json:"analysis"`
	Progress             Progress `json:"progress"`
}

// Manager owns every live session. Each user has at most one active
// session; starting a new drill over a different bank (or forcing a
// restart) abandons the previous one. All mutations funnel through the
// manager, which serializes them per session under one lock and hands
// snapshots to the reconciliation queue.
type Manager struct {
	cache   *cache.HybridCache
	store   SessionStore
	usage   *stats.Aggregator
	gen     *Generator
	persist *persistQueue

	mu       sync.Mutex
	sessions map[string]*Session // session key -> session
	byUser   map[uint]string     // user id -> active session key
}

func NewManager(hybrid *cache.HybridCache, store SessionStore, usage *stats.Aggregator, gen *Generator) *Manager {
	return &Manager{
		cache:    hybrid,
		store:    store,
		usage:    usage,
		gen:      gen,
		persist:  newPersistQueue(store),
		sessions: make(map[string]*Session),
		byUser:   make(map[uint]string),
	}
}

// Close flushes the reconciliation queue
func (m *Manager) Close() {
	m.persist.Close()
}

// Start begins a drill over a bank, or resumes the user's existing
// active session on the same bank. forceRestart abandons any prior
// session and always builds a fresh one.
func (m *Manager) Start(ctx context.Context, userID, tikuID uint, selectedTypes []string, shuffle, forceRestart bool) (*StartResult, error) {
	if _, err := m.cache.ValidateTiku(ctx, tikuID); err != nil {
		return nil, err
	}

	if !forceRestart {
		if sess := m.findActive(ctx, userID, tikuID); sess != nil {
			return &StartResult{Session: sess, Resumed: true}, nil
		}
	}

	questions, err := m.cache.GetQuestionBank(ctx, tikuID)
	if err != nil {
		return nil, err
	}
	ids := m.gen.Generate(questions, selectedTypes, shuffle)
	if len(ids) == 0 {
		return nil, ErrEmptyQuestionSet
	}

	sess := &Session{
		Key:           uuid.NewString(),
		UserID:        userID,
		TikuID:        tikuID,
		SelectedTypes: selectedTypes,
		Shuffle:       shuffle,
		WorkingSet:    ids,
		RoundNumber:   1,
		Statuses:      freshStatuses(len(ids)),
		History:       make(map[int]AnswerRecord),
		InitialTotal:  len(ids),
		Status:        models.SessionActive,
		LastActivity:  time.Now(),
	}

	// the birth record is written synchronously so a crash cannot lose
	// the session entirely
	if err := m.store.CreateSession(ctx, sess.toRecord()); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	m.mu.Lock()
	if oldKey, ok := m.byUser[userID]; ok {
		m.abandonLocked(oldKey)
	}
	m.sessions[sess.Key] = sess
	m.byUser[userID] = sess.Key
	m.mu.Unlock()

	m.usage.Increment(tikuID)
	log.Printf("[PRACTICE] user %d started session %s on bank %d (%d questions)", userID, sess.Key, tikuID, len(ids))
	return &StartResult{Session: sess}, nil
}

// findActive looks for a live session on the same bank, falling back to
// the durable record after a process restart
func (m *Manager) findActive(ctx context.Context, userID, tikuID uint) *Session {
	m.mu.Lock()
	if key, ok := m.byUser[userID]; ok {
		if sess := m.sessions[key]; sess != nil && sess.TikuID == tikuID && sess.Status == models.SessionActive {
			m.mu.Unlock()
			return sess
		}
	}
	m.mu.Unlock()

	rec, err := m.store.LoadActiveSession(ctx, userID, tikuID)
	if err != nil {
		log.Printf("[PRACTICE] resume lookup for user %d failed: %v", userID, err)
		return nil
	}
	if rec == nil {
		return nil
	}
	sess, err := sessionFromRecord(rec)
	if err != nil {
		log.Printf("[PRACTICE] session %s record is corrupt, ignoring: %v", rec.SessionKey, err)
		return nil
	}

	m.mu.Lock()
	m.sessions[sess.Key] = sess
	m.byUser[userID] = sess.Key
	m.mu.Unlock()
	log.Printf("[PRACTICE] user %d resumed session %s on bank %d", userID, sess.Key, tikuID)
	return sess
}

// Get returns the user's active session
func (m *Manager) Get(userID uint) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.byUser[userID]
	if !ok {
		return nil, ErrNoActiveSession
	}
	sess := m.sessions[key]
	if sess == nil || sess.Status != models.SessionActive {
		return nil, ErrNoActiveSession
	}
	return sess, nil
}

// Next serves the question at the cursor. Exhausting a round with
// wrong answers queued rolls the session into the next round; with an
// empty queue it completes the session.
func (m *Manager) Next(ctx context.Context, userID uint) (*NextResult, error) {
	sess, err := m.Get(userID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	newRound := false
	if sess.roundExhausted() {
		if len(sess.WrongQueue) == 0 {
			m.mu.Unlock()
			return m.finish(ctx, sess)
		}
		sess.startNextRound(m.gen)
		newRound = true
	}
	questionID := sess.WorkingSet[sess.CurrentIndex]
	progress := sess.progress()
	m.mu.Unlock()

	if newRound {
		m.persist.enqueue(sess.Key, sess.updateFields())
		log.Printf("[PRACTICE] session %s entered round %d (%d questions)", sess.Key, progress.RoundNumber, progress.RoundTotal)
	}

	q, err := m.cache.GetQuestionByID(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, fmt.Errorf("question %d missing from bank %d", questionID, sess.TikuID)
	}
	return &NextResult{Question: q, Progress: progress, NewRound: newRound}, nil
}

// Answer grades the submission against the question at the cursor.
// peeked marks an answer revealed before submitting; it always grades
// as wrong regardless of the submitted text.
func (m *Manager) Answer(ctx context.Context, userID uint, userAnswer string, peeked bool) (*AnswerResult, error) {
	sess, err := m.Get(userID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if sess.roundExhausted() {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: round already exhausted", ErrInvalidSessionState)
	}
	questionID := sess.WorkingSet[sess.CurrentIndex]
	m.mu.Unlock()

	q, err := m.cache.GetQuestionByID(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, fmt.Errorf("question %d missing from bank %d", questionID, sess.TikuID)
	}

	isCorrect := ValidateAnswer(userAnswer, q.Answer, q.IsMultipleChoice)

	m.mu.Lock()
	sess.recordAnswer(questionID, userAnswer, isCorrect, peeked)
	progress := sess.progress()
	m.mu.Unlock()

	m.persist.enqueue(sess.Key, sess.updateFields())

	opts := q.OptionsMap()
	userDisplay := FormatAnswerDisplay(userAnswer, opts, q.IsMultipleChoice)
	if peeked {
		userDisplay = PeekedAnswerDisplay
	}
	return &AnswerResult{
		QuestionID:           questionID,
		IsCorrect:            isCorrect && !peeked,
		Peeked:               peeked,
		UserAnswerDisplay:    userDisplay,
		CorrectAnswerDisplay: FormatAnswerDisplay(q.Answer, opts, q.IsMultipleChoice),
		Explanation:          q.Explanation,
		Progress:             progress,
	}, nil
}

// Jump moves the cursor within the current round
func (m *Manager) Jump(userID uint, index int) (Progress, error) {
	sess, err := m.Get(userID)
	if err != nil {
		return Progress{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := sess.jump(index); err != nil {
		return Progress{}, err
	}
	return sess.progress(), nil
}

// Statuses returns the per-question statuses of the current round
func (m *Manager) Statuses(userID uint) ([]string, Progress, error) {
	sess, err := m.Get(userID)
	if err != nil {
		return nil, Progress{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	statuses := make([]string, len(sess.Statuses))
	copy(statuses, sess.Statuses)
	return statuses, sess.progress(), nil
}

// HistoryAt returns the answer recorded at a working-set index, if any
func (m *Manager) HistoryAt(userID uint, index int) (*AnswerRecord, error) {
	sess, err := m.Get(userID)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(sess.WorkingSet) {
		return nil, ErrIndexOutOfRange
	}
	rec, ok := sess.History[index]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Complete ends the user's active session and writes the final
// statistics synchronously
func (m *Manager) Complete(ctx context.Context, userID uint) (*Session, error) {
	sess, err := m.Get(userID)
	if err != nil {
		return nil, err
	}
	return m.completeSession(ctx, sess)
}

// finish is the natural completion path reached from Next
func (m *Manager) finish(ctx context.Context, sess *Session) (*NextResult, error) {
	if _, err := m.completeSession(ctx, sess); err != nil {
		return nil, err
	}
	return &NextResult{Progress: sess.progress(), Finished: true}, nil
}

func (m *Manager) completeSession(ctx context.Context, sess *Session) (*Session, error) {
	m.mu.Lock()
	if sess.Status != models.SessionActive {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: session is %s", ErrInvalidSessionState, sess.Status)
	}
	sess.Status = models.SessionCompleted
	sess.LastActivity = time.Now()
	delete(m.sessions, sess.Key)
	if m.byUser[sess.UserID] == sess.Key {
		delete(m.byUser, sess.UserID)
	}
	m.mu.Unlock()

	if err := m.store.CompleteSession(ctx, sess.Key, sess.CorrectFirstTry, sess.RoundNumber); err != nil {
		return nil, fmt.Errorf("complete session: %w", err)
	}
	log.Printf("[PRACTICE] session %s completed after %d round(s), %d/%d first-try correct",
		sess.Key, sess.RoundNumber, sess.CorrectFirstTry, sess.InitialTotal)
	return sess, nil
}

// Abandon drops the user's active session without completing it
func (m *Manager) Abandon(userID uint) error {
	m.mu.Lock()
	key, ok := m.byUser[userID]
	if !ok {
		m.mu.Unlock()
		return ErrNoActiveSession
	}
	m.abandonLocked(key)
	m.mu.Unlock()
	return nil
}

// abandonLocked marks a session abandoned and drops it from the
// registry. Callers hold m.mu.
func (m *Manager) abandonLocked(key string) {
	sess := m.sessions[key]
	if sess == nil {
		return
	}
	sess.Status = models.SessionAbandoned
	sess.LastActivity = time.Now()
	delete(m.sessions, key)
	if m.byUser[sess.UserID] == key {
		delete(m.byUser, sess.UserID)
	}
	m.persist.enqueue(key, map[string]any{
		"status":        models.SessionAbandoned,
		"last_activity": sess.LastActivity,
	})
}

// ReapStale abandons in-memory sessions idle past the cutoff and
// returns how many it dropped
func (m *Manager) ReapStale(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stale []string
	for key, sess := range m.sessions {
		if sess.LastActivity.Before(cutoff) {
			stale = append(stale, key)
		}
	}
	for _, key := range stale {
		m.abandonLocked(key)
	}
	return len(stale)
}

// Live reports how many sessions the registry currently holds
func (m *Manager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

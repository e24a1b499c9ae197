package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"qbank/models"

	"gorm.io/gorm"
)

// ErrStoreUnavailable reports that the durable store stayed unreachable
// through the bounded retries. There is no further fallback: synchronous
// callers surface this as a hard failure.
var ErrStoreUnavailable = errors.New("durable store unavailable")

const callTimeout = 5 * time.Second

// Store is the narrow adapter over the relational store. Every call is
// bounded by a timeout and retried a fixed number of times before failing.
type Store struct {
	db      *gorm.DB
	retries int
}

// New wraps a gorm handle. retries is the attempts per call, minimum 1.
func New(db *gorm.DB, retries int) *Store {
	if retries < 1 {
		retries = 1
	}
	return &Store{db: db, retries: retries}
}

// withRetry runs fn up to s.retries times, backing off briefly between
// attempts, each attempt bounded by callTimeout. Record-not-found is a
// result, not a transient fault, so it is returned immediately.
func (s *Store) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= s.retries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, callTimeout)
		err = fn(attemptCtx)
		cancel()
		if err == nil || errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		log.Printf("[STORE] %s attempt %d/%d failed: %v", op, attempt, s.retries, err)
		time.Sleep(time.Duration(attempt) * 50 * time.Millisecond)
	}
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}

// LoadBank returns a bank's questions in stored order
func (s *Store) LoadBank(ctx context.Context, tikuID uint) ([]models.Question, error) {
	var questions []models.Question
	err := s.withRetry(ctx, "load bank", func(ctx context.Context) error {
		return s.db.WithContext(ctx).
			Where("tiku_id = ? AND is_deleted = ?", tikuID, false).
			Order("id").
			Find(&questions).Error
	})
	if err != nil {
		return nil, err
	}
	return questions, nil
}

// LoadQuestion returns one question, or (nil, nil) when absent
func (s *Store) LoadQuestion(ctx context.Context, questionID uint) (*models.Question, error) {
	var question models.Question
	err := s.withRetry(ctx, "load question", func(ctx context.Context) error {
		return s.db.WithContext(ctx).
			Where("id = ? AND is_deleted = ?", questionID, false).
			First(&question).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &question, nil
}

// LoadBankList returns all banks with their subjects preloaded
func (s *Store) LoadBankList(ctx context.Context) ([]models.Tiku, error) {
	var banks []models.Tiku
	err := s.withRetry(ctx, "load bank list", func(ctx context.Context) error {
		return s.db.WithContext(ctx).
			Preload("Subject").
			Where("is_deleted = ?", false).
			Order("tiku_name").
			Find(&banks).Error
	})
	if err != nil {
		return nil, err
	}
	return banks, nil
}

// LoadSubjects returns all subjects
func (s *Store) LoadSubjects(ctx context.Context) ([]models.Subject, error) {
	var subjects []models.Subject
	err := s.withRetry(ctx, "load subjects", func(ctx context.Context) error {
		return s.db.WithContext(ctx).
			Where("is_deleted = ?", false).
			Order("subject_name").
			Find(&subjects).Error
	})
	if err != nil {
		return nil, err
	}
	return subjects, nil
}

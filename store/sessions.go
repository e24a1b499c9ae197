package store

import (
	"context"
	"errors"
	"time"

	"qbank/models"

	"gorm.io/gorm"
)

// CreateSession persists a new session record
func (s *Store) CreateSession(ctx context.Context, session *models.PracticeSession) error {
	return s.withRetry(ctx, "create session", func(ctx context.Context) error {
		return s.db.WithContext(ctx).Create(session).Error
	})
}

// UpdateSession applies a partial update to the session record
func (s *Store) UpdateSession(ctx context.Context, sessionKey string, fields map[string]any) error {
	return s.withRetry(ctx, "update session", func(ctx context.Context) error {
		return s.db.WithContext(ctx).
			Model(&models.PracticeSession{}).
			Where("session_key = ?", sessionKey).
			Updates(fields).Error
	})
}

// CompleteSession marks the session completed with its final statistics and
// releases the active claim, so a later start for the same user and bank
// creates a fresh session instead of resuming this one.
func (s *Store) CompleteSession(ctx context.Context, sessionKey string, correctFirstTry int, roundNumber int) error {
	return s.withRetry(ctx, "complete session", func(ctx context.Context) error {
		return s.db.WithContext(ctx).
			Model(&models.PracticeSession{}).
			Where("session_key = ? AND status = ?", sessionKey, models.SessionActive).
			Updates(map[string]any{
				"status":            models.SessionCompleted,
				"correct_first_try": correctFirstTry,
				"round_number":      roundNumber,
				"last_activity":     time.Now(),
			}).Error
	})
}

// LoadActiveSession returns the user's most recent active session, filtered
// to one bank when tikuID is non-zero. Returns (nil, nil) when absent.
func (s *Store) LoadActiveSession(ctx context.Context, userID, tikuID uint) (*models.PracticeSession, error) {
	var session models.PracticeSession
	err := s.withRetry(ctx, "load active session", func(ctx context.Context) error {
		query := s.db.WithContext(ctx).
			Where("user_id = ? AND status = ?", userID, models.SessionActive)
		if tikuID != 0 {
			query = query.Where("tiku_id = ?", tikuID)
		}
		return query.Order("last_activity DESC").First(&session).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// AbandonStaleSessions flips active sessions untouched since cutoff to
// abandoned, returning how many were reaped.
func (s *Store) AbandonStaleSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	var reaped int64
	err := s.withRetry(ctx, "abandon stale sessions", func(ctx context.Context) error {
		result := s.db.WithContext(ctx).
			Model(&models.PracticeSession{}).
			Where("status = ? AND last_activity < ?", models.SessionActive, cutoff).
			Update("status", models.SessionAbandoned)
		reaped = result.RowsAffected
		return result.Error
	})
	return reaped, err
}

// FlushUsageCounters folds a drained counter snapshot into the usage rows
// inside one transaction, creating rows for first-seen banks.
func (s *Store) FlushUsageCounters(ctx context.Context, counts map[uint]int64) error {
	if len(counts) == 0 {
		return nil
	}
	return s.withRetry(ctx, "flush usage counters", func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for tikuID, count := range counts {
				result := tx.Model(&models.TikuUsage{}).
					Where("tiku_id = ?", tikuID).
					UpdateColumn("used_count", gorm.Expr("used_count + ?", count))
				if result.Error != nil {
					return result.Error
				}
				if result.RowsAffected == 0 {
					if err := tx.Create(&models.TikuUsage{TikuID: tikuID, UsedCount: count}).Error; err != nil {
						return err
					}
				}
			}
			return nil
		})
	})
}

// UsageTotals returns the persisted usage rows, most used first
func (s *Store) UsageTotals(ctx context.Context) ([]models.TikuUsage, error) {
	var totals []models.TikuUsage
	err := s.withRetry(ctx, "load usage totals", func(ctx context.Context) error {
		return s.db.WithContext(ctx).
			Order("used_count DESC").
			Find(&totals).Error
	})
	if err != nil {
		return nil, err
	}
	return totals, nil
}

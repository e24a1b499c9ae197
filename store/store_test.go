package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"qbank/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Subject{},
		&models.Tiku{},
		&models.Question{},
		&models.PracticeSession{},
		&models.TikuUsage{},
	))
	return New(db, 1)
}

func seedBank(t *testing.T, s *Store) {
	t.Helper()
	subject := models.Subject{SubjectName: "math"}
	require.NoError(t, s.db.Create(&subject).Error)
	bank := models.Tiku{SubjectID: subject.ID, TikuName: "alpha", TikuPosition: "math/alpha", TikuNums: 3, IsActive: true}
	require.NoError(t, s.db.Create(&bank).Error)

	questions := []models.Question{
		{TikuID: bank.ID, Type: models.TypeSingleChoice, Question: "q1", Answer: "A"},
		{TikuID: bank.ID, Type: models.TypeJudgment, Question: "q2", Answer: "T"},
		{TikuID: bank.ID, Type: models.TypeSingleChoice, Question: "q3", Answer: "B", IsDeleted: true},
	}
	require.NoError(t, s.db.Create(&questions).Error)
}

func TestLoadBankSkipsDeleted(t *testing.T) {
	s := newTestStore(t)
	seedBank(t, s)

	questions, err := s.LoadBank(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, "q1", questions[0].Question)
	assert.Equal(t, "q2", questions[1].Question)
}

func TestLoadQuestionAbsent(t *testing.T) {
	s := newTestStore(t)
	seedBank(t, s)

	q, err := s.LoadQuestion(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, q)

	q, err = s.LoadQuestion(context.Background(), 3) // soft-deleted
	require.NoError(t, err)
	assert.Nil(t, q)

	q, err = s.LoadQuestion(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, q)
}

func TestLoadBankListPreloadsSubjects(t *testing.T) {
	s := newTestStore(t)
	seedBank(t, s)

	banks, err := s.LoadBankList(context.Background())
	require.NoError(t, err)
	require.Len(t, banks, 1)
	assert.Equal(t, "math", banks[0].Subject.SubjectName)
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess := &models.PracticeSession{
		SessionKey:   "abc",
		UserID:       7,
		TikuID:       1,
		RoundNumber:  1,
		InitialTotal: 4,
		Status:       models.SessionActive,
		LastActivity: time.Now(),
	}
	require.NoError(t, s.CreateSession(ctx, sess))

	require.NoError(t, s.UpdateSession(ctx, "abc", map[string]any{
		"current_index": 2,
	}))

	loaded, err := s.LoadActiveSession(ctx, 7, 1)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 2, loaded.CurrentIndex)

	// other users and banks see nothing
	loaded, err = s.LoadActiveSession(ctx, 8, 1)
	require.NoError(t, err)
	assert.Nil(t, loaded)
	loaded, err = s.LoadActiveSession(ctx, 7, 2)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	require.NoError(t, s.CompleteSession(ctx, "abc", 3, 2))
	loaded, err = s.LoadActiveSession(ctx, 7, 1)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	var final models.PracticeSession
	require.NoError(t, s.db.Where("session_key = ?", "abc").First(&final).Error)
	assert.Equal(t, models.SessionCompleted, final.Status)
	assert.Equal(t, 3, final.CorrectFirstTry)
	assert.Equal(t, 2, final.RoundNumber)

	// completing twice is a no-op, not an error
	require.NoError(t, s.CompleteSession(ctx, "abc", 9, 9))
	require.NoError(t, s.db.Where("session_key = ?", "abc").First(&final).Error)
	assert.Equal(t, 3, final.CorrectFirstTry)
}

func TestAbandonStaleSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stale := &models.PracticeSession{SessionKey: "old", UserID: 1, TikuID: 1, Status: models.SessionActive, LastActivity: time.Now().Add(-48 * time.Hour)}
	fresh := &models.PracticeSession{SessionKey: "new", UserID: 2, TikuID: 1, Status: models.SessionActive, LastActivity: time.Now()}
	require.NoError(t, s.CreateSession(ctx, stale))
	require.NoError(t, s.CreateSession(ctx, fresh))

	reaped, err := s.AbandonStaleSessions(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), reaped)

	loaded, err := s.LoadActiveSession(ctx, 1, 1)
	require.NoError(t, err)
	assert.Nil(t, loaded)
	loaded, err = s.LoadActiveSession(ctx, 2, 1)
	require.NoError(t, err)
	require.NotNil(t, loaded)
}

func TestFlushUsageCounters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.FlushUsageCounters(ctx, map[uint]int64{1: 3, 2: 1}))
	require.NoError(t, s.FlushUsageCounters(ctx, map[uint]int64{1: 2}))

	totals, err := s.UsageTotals(ctx)
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, uint(1), totals[0].TikuID)
	assert.Equal(t, int64(5), totals[0].UsedCount)
	assert.Equal(t, int64(1), totals[1].UsedCount)
}

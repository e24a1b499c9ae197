package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"qbank/models"
)

type countingLoader struct {
	mu            sync.Mutex
	banks         map[uint][]models.Question
	tikus         []models.Tiku
	subjects      []models.Subject
	bankLoads     int
	questionLoads int
	listLoads     int
}

func (l *countingLoader) LoadBank(_ context.Context, tikuID uint) ([]models.Question, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bankLoads++
	return l.banks[tikuID], nil
}

func (l *countingLoader) LoadQuestion(_ context.Context, questionID uint) (*models.Question, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.questionLoads++
	for _, questions := range l.banks {
		for i := range questions {
			if questions[i].ID == questionID {
				return &questions[i], nil
			}
		}
	}
	return nil, nil
}

func (l *countingLoader) LoadBankList(_ context.Context) ([]models.Tiku, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listLoads++
	return l.tikus, nil
}

func (l *countingLoader) LoadSubjects(_ context.Context) ([]models.Subject, error) {
	return l.subjects, nil
}

type staticRanker struct{ ids []uint }

func (r staticRanker) TopBanks(n int) []uint {
	if len(r.ids) > n {
		return r.ids[:n]
	}
	return r.ids
}

func sampleQuestions(tikuID uint, ids ...uint) []models.Question {
	questions := make([]models.Question, len(ids))
	for i, id := range ids {
		questions[i] = models.Question{
			Model:    gorm.Model{ID: id},
			TikuID:   tikuID,
			Type:     models.TypeSingleChoice,
			Question: "q",
			Answer:   "A",
		}
	}
	return questions
}

func newTestHybrid(t *testing.T, loader BankLoader, ranker HotRanker) (*HybridCache, *MemoryCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	codec := &Codec{Threshold: 1024}
	local := NewMemoryCache(100, time.Minute)
	remote := NewRedisCache(NewRedisPool(mr.Addr(), "", 0, time.Second), codec)
	ttl := TTLPolicy{TikuList: 30 * time.Minute, BankIndex: time.Hour, Question: 2 * time.Hour}
	return NewHybridCache(local, remote, codec, loader, ranker, ttl, 10), local, mr
}

func exam(t time.Time) *time.Time { return &t }

func defaultLoader() *countingLoader {
	return &countingLoader{
		banks: map[uint][]models.Question{
			1: sampleQuestions(1, 101, 102, 103),
			2: sampleQuestions(2, 201),
		},
		tikus: []models.Tiku{
			{Model: gorm.Model{ID: 1}, SubjectID: 1, TikuName: "alpha", TikuPosition: "s1/alpha", TikuNums: 3, IsActive: true,
				Subject: models.Subject{Model: gorm.Model{ID: 1}, SubjectName: "math"}},
			{Model: gorm.Model{ID: 2}, SubjectID: 1, TikuName: "beta", TikuPosition: "s1/beta", TikuNums: 1, IsActive: true,
				Subject: models.Subject{Model: gorm.Model{ID: 1}, SubjectName: "math"}},
			{Model: gorm.Model{ID: 3}, SubjectID: 2, TikuName: "gamma", TikuPosition: "s2/gamma", TikuNums: 5, IsActive: false,
				Subject: models.Subject{Model: gorm.Model{ID: 2}, SubjectName: "physics"}},
		},
		subjects: []models.Subject{
			{Model: gorm.Model{ID: 1}, SubjectName: "math", ExamTime: exam(time.Date(2026, 6, 7, 9, 0, 0, 0, time.UTC))},
			{Model: gorm.Model{ID: 2}, SubjectName: "physics"},
		},
	}
}

func TestHybridGetPopulatesLocalFromRemote(t *testing.T) {
	h, local, _ := newTestHybrid(t, defaultLoader(), nil)

	require.True(t, h.Set("k", "value", time.Minute))
	local.Purge()

	var out string
	require.True(t, h.Get("k", &out))
	assert.Equal(t, "value", out)

	// the read-through repopulated the local tier
	assert.True(t, local.Contains("k"))
}

func TestHybridDegradesToLocalWhenRedisDown(t *testing.T) {
	loader := defaultLoader()
	h, _, mr := newTestHybrid(t, loader, nil)
	ctx := context.Background()

	_, err := h.GetQuestionBank(ctx, 1)
	require.NoError(t, err)
	mr.Close()

	// local tier still serves the bank with no extra store loads
	questions, err := h.GetQuestionBank(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, questions, 3)
	assert.Equal(t, 1, loader.bankLoads)
	assert.Equal(t, 0, loader.questionLoads)
}

func TestHybridColdTiersFallThroughToStore(t *testing.T) {
	loader := defaultLoader()
	h, _, mr := newTestHybrid(t, loader, nil)
	mr.Close()

	// both cache tiers empty and redis down: the bank still loads
	questions, err := h.GetQuestionBank(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, questions, 3)
	assert.Equal(t, 1, loader.bankLoads)
}

func TestHybridQuestionBankWarmIndexColdQuestions(t *testing.T) {
	loader := defaultLoader()
	h, local, _ := newTestHybrid(t, loader, nil)
	ctx := context.Background()

	_, err := h.GetQuestionBank(ctx, 1)
	require.NoError(t, err)

	// drop the local question copies; the id index stays warm and the
	// questions come back through one batched MGET
	local.Purge()
	questions, err := h.GetQuestionBank(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint{101, 102, 103}, []uint{questions[0].ID, questions[1].ID, questions[2].ID})
	assert.Equal(t, 1, loader.bankLoads)
	assert.Equal(t, 0, loader.questionLoads)
}

func TestHybridQuestionByID(t *testing.T) {
	loader := defaultLoader()
	h, _, _ := newTestHybrid(t, loader, nil)
	ctx := context.Background()

	q, err := h.GetQuestionByID(ctx, 201)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, uint(201), q.ID)
	assert.Equal(t, 1, loader.questionLoads)

	// second read is cache-served
	_, err = h.GetQuestionByID(ctx, 201)
	require.NoError(t, err)
	assert.Equal(t, 1, loader.questionLoads)

	q, err = h.GetQuestionByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, q)
}

func TestHybridTikuListCached(t *testing.T) {
	loader := defaultLoader()
	h, _, _ := newTestHybrid(t, loader, nil)
	ctx := context.Background()

	data, err := h.GetTikuList(ctx)
	require.NoError(t, err)
	assert.Len(t, data.TikuList, 3)
	require.NotNil(t, data.SubjectsExamTime["math"])
	assert.Nil(t, data.SubjectsExamTime["physics"])

	_, err = h.GetTikuList(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, loader.listLoads)
}

func TestHybridFileOptions(t *testing.T) {
	h, _, _ := newTestHybrid(t, defaultLoader(), nil)

	options, err := h.GetFileOptions(context.Background())
	require.NoError(t, err)

	// inactive banks are filtered out, so physics has no entry at all
	require.Contains(t, options, "math")
	assert.NotContains(t, options, "physics")

	math := options["math"]
	require.Len(t, math.Files, 2)
	assert.Equal(t, "alpha", math.Files[0].Display)
	assert.Equal(t, "beta", math.Files[1].Display)
	assert.Equal(t, uint(1), math.Files[0].TikuID)
	require.NotNil(t, math.ExamTime)
}

func TestHybridValidateTiku(t *testing.T) {
	h, _, _ := newTestHybrid(t, defaultLoader(), nil)
	ctx := context.Background()

	tiku, err := h.ValidateTiku(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "alpha", tiku.TikuName)

	_, err = h.ValidateTiku(ctx, 3)
	assert.ErrorIs(t, err, ErrTikuDisabled)

	_, err = h.ValidateTiku(ctx, 42)
	assert.ErrorIs(t, err, ErrTikuNotFound)
}

func TestHybridDeleteByPattern(t *testing.T) {
	h, local, mr := newTestHybrid(t, defaultLoader(), nil)
	ctx := context.Background()

	_, err := h.GetQuestionBank(ctx, 1)
	require.NoError(t, err)

	removed := h.DeleteByPattern("question_")
	assert.Equal(t, 3, removed)
	assert.False(t, local.Contains("question_101"))
	assert.False(t, mr.Exists("cache:question_101"))
}

func TestHybridKeyInfo(t *testing.T) {
	h, local, _ := newTestHybrid(t, defaultLoader(), nil)

	require.True(t, h.Set("question_7", "x", 90*time.Second))

	info := h.KeyInfo("question_7")
	assert.Equal(t, true, info["local"])
	assert.Equal(t, true, info["remote"])
	assert.Equal(t, 90.0, info["remote_ttl_seconds"])

	local.Purge()
	info = h.KeyInfo("question_7")
	assert.Equal(t, false, info["local"])
	assert.Equal(t, true, info["remote"])

	info = h.KeyInfo("absent")
	assert.Equal(t, false, info["remote"])
	assert.NotContains(t, info, "remote_ttl_seconds")
}

func TestHybridRefreshAllWarmsHotBanks(t *testing.T) {
	loader := defaultLoader()
	h, _, _ := newTestHybrid(t, loader, staticRanker{ids: []uint{1, 2}})
	ctx := context.Background()

	_, err := h.GetQuestionBank(ctx, 1)
	require.NoError(t, err)
	_, err = h.GetTikuList(ctx)
	require.NoError(t, err)

	h.RefreshAll(ctx)

	// aggregates and both hot banks were reloaded eagerly
	assert.Equal(t, 2, loader.listLoads)
	assert.Equal(t, 3, loader.bankLoads)

	// and a follow-up read is warm again
	before := loader.bankLoads
	_, err = h.GetQuestionBank(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, before, loader.bankLoads)
}

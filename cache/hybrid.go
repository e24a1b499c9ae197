package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"qbank/models"
)

// Validation failures surfaced to callers starting a practice
var (
	ErrTikuNotFound = errors.New("tiku not found")
	ErrTikuDisabled = errors.New("tiku is disabled")
)

// Logical cache keys. A bank's id list and its member questions are cached
// separately so single-question fetches never reload the whole bank.
const (
	keyTikuList    = "tiku_list"
	keyFileOptions = "file_options"

	bankIndexPrefix = "bank_index_"
	questionPrefix  = "question_"
)

func bankIndexKey(tikuID uint) string {
	return fmt.Sprintf("%s%d", bankIndexPrefix, tikuID)
}

func questionKey(questionID uint) string {
	return fmt.Sprintf("%s%d", questionPrefix, questionID)
}

// BankLoader is the narrow durable-store read contract the hybrid tier falls
// back to for its business keys.
type BankLoader interface {
	LoadBank(ctx context.Context, tikuID uint) ([]models.Question, error)
	LoadQuestion(ctx context.Context, questionID uint) (*models.Question, error)
	LoadBankList(ctx context.Context) ([]models.Tiku, error)
	LoadSubjects(ctx context.Context) ([]models.Subject, error)
}

// HotRanker supplies the most-used bank ids so RefreshAll can warm them
// eagerly instead of letting every reader reload synchronously.
type HotRanker interface {
	TopBanks(n int) []uint
}

// TTLPolicy holds the per-entity TTL tiers
type TTLPolicy struct {
	TikuList  time.Duration // bank list and filter-option aggregates
	BankIndex time.Duration // a bank's question id list
	Question  time.Duration // individual question records
}

// HybridCache composes the local and distributed tiers over a durable-store
// fallback. Generic keys never touch the store; the bank-specific helpers do
// orchestrate the fallback because they are the manager's primary use cases.
// The local tier holds the same encoded envelopes as the distributed tier,
// so a value round-trips through the codec on every read path identically.
type HybridCache struct {
	local       *MemoryCache
	remote      *RedisCache
	codec       *Codec
	loader      BankLoader
	ranker      HotRanker
	ttl         TTLPolicy
	warmupLimit int
}

// NewHybridCache builds the two-tier manager. ranker may be nil, in which
// case RefreshAll skips the hot-bank warmup.
func NewHybridCache(local *MemoryCache, remote *RedisCache, codec *Codec, loader BankLoader, ranker HotRanker, ttl TTLPolicy, warmupLimit int) *HybridCache {
	return &HybridCache{
		local:       local,
		remote:      remote,
		codec:       codec,
		loader:      loader,
		ranker:      ranker,
		ttl:         ttl,
		warmupLimit: warmupLimit,
	}
}

// Get reads key through the tiers: local first, then the distributed tier,
// populating the local tier on a distributed hit. Misses at both tiers leave
// loading to the caller.
func (h *HybridCache) Get(key string, out any) bool {
	if raw, ok := h.local.Get(key); ok {
		if err := h.codec.Decode(raw.([]byte), out); err == nil {
			return true
		}
		h.local.Delete(key)
	}

	raw, ok := h.remote.GetRaw(key)
	if !ok {
		return false
	}
	if err := h.codec.Decode(raw, out); err != nil {
		log.Printf("[CACHE] dropping corrupt entry %s: %v", key, err)
		h.remote.Delete(key)
		return false
	}

	h.local.Set(key, raw, h.ttlForKey(key))
	return true
}

// Set encodes value once and writes it to both tiers
func (h *HybridCache) Set(key string, value any, ttl time.Duration) bool {
	data, err := h.codec.Encode(value)
	if err != nil {
		log.Printf("[CACHE] set %s failed to encode: %v", key, err)
		return false
	}
	h.local.Set(key, data, ttl)
	return h.remote.SetRaw(key, data, ttl)
}

// Delete removes key from both tiers
func (h *HybridCache) Delete(key string) bool {
	localHit := h.local.Delete(key)
	return h.remote.Delete(key) || localHit
}

// DeleteByPattern removes every key starting with prefix from both tiers.
// The distributed count is returned as it is the cross-process truth; the
// local count stands in only when the distributed tier is down.
func (h *HybridCache) DeleteByPattern(prefix string) int {
	localCount := h.local.DeleteByPrefix(prefix)
	if !h.remote.Available() {
		return localCount
	}
	return h.remote.DeleteByPattern(prefix)
}

// KeyInfo reports one logical key's presence per tier and its remaining
// distributed TTL
func (h *HybridCache) KeyInfo(key string) map[string]any {
	info := map[string]any{
		"key":    key,
		"local":  h.local.Contains(key),
		"remote": h.remote.Exists(key),
	}
	if ttl, ok := h.remote.TTL(key); ok {
		info["remote_ttl_seconds"] = ttl.Seconds()
	}
	return info
}

// SweepLocal drops expired local entries that were never read again
func (h *HybridCache) SweepLocal() int {
	return h.local.Sweep()
}

// ttlForKey maps a logical key onto its entity TTL tier
func (h *HybridCache) ttlForKey(key string) time.Duration {
	switch {
	case strings.HasPrefix(key, questionPrefix):
		return h.ttl.Question
	case strings.HasPrefix(key, bankIndexPrefix):
		return h.ttl.BankIndex
	default:
		return h.ttl.TikuList
	}
}

// TikuListData is the cached bank-list aggregate
type TikuListData struct {
	TikuList         []models.Tiku         `json:"tiku_list"`
	SubjectsExamTime map[string]*time.Time `json:"subjects_exam_time"`
}

// FileOption is one bank entry in the per-subject file options view
type FileOption struct {
	Key       string    `json:"key"`
	Display   string    `json:"display"`
	Count     int       `json:"count"`
	FileSize  int64     `json:"file_size"`
	UpdatedAt time.Time `json:"updated_at"`
	TikuID    uint      `json:"tiku_id"`
}

// SubjectFiles groups a subject's active banks with its exam time
type SubjectFiles struct {
	Files    []FileOption `json:"files"`
	ExamTime *time.Time   `json:"exam_time"`
}

// GetTikuList returns the bank list aggregate, loading from the durable
// store and repopulating the cache on a full miss.
func (h *HybridCache) GetTikuList(ctx context.Context) (*TikuListData, error) {
	var data TikuListData
	if h.Get(keyTikuList, &data) {
		return &data, nil
	}

	banks, err := h.loader.LoadBankList(ctx)
	if err != nil {
		return nil, err
	}
	subjects, err := h.loader.LoadSubjects(ctx)
	if err != nil {
		return nil, err
	}

	data = TikuListData{
		TikuList:         banks,
		SubjectsExamTime: make(map[string]*time.Time, len(subjects)),
	}
	for _, s := range subjects {
		data.SubjectsExamTime[s.SubjectName] = s.ExamTime
	}

	h.Set(keyTikuList, &data, h.ttl.TikuList)
	return &data, nil
}

// GetFileOptions returns the per-subject view of active banks, sorted by
// subject then display name, built from the bank list aggregate.
func (h *HybridCache) GetFileOptions(ctx context.Context) (map[string]SubjectFiles, error) {
	options := make(map[string]SubjectFiles)
	if h.Get(keyFileOptions, &options) {
		return options, nil
	}

	data, err := h.GetTikuList(ctx)
	if err != nil {
		return nil, err
	}

	subjectNames := make(map[uint]string)
	for _, bank := range data.TikuList {
		if bank.Subject.SubjectName != "" {
			subjectNames[bank.SubjectID] = bank.Subject.SubjectName
		}
	}

	for _, bank := range data.TikuList {
		if !bank.IsActive {
			continue
		}
		name := subjectNames[bank.SubjectID]
		if name == "" {
			name = fmt.Sprintf("subject_%d", bank.SubjectID)
		}
		entry := options[name]
		if entry.ExamTime == nil {
			entry.ExamTime = data.SubjectsExamTime[name]
		}
		entry.Files = append(entry.Files, FileOption{
			Key:       bank.TikuPosition,
			Display:   bank.TikuName,
			Count:     bank.TikuNums,
			FileSize:  bank.FileSize,
			UpdatedAt: bank.UpdatedAt,
			TikuID:    bank.ID,
		})
		options[name] = entry
	}

	for name, entry := range options {
		sort.Slice(entry.Files, func(i, j int) bool {
			return entry.Files[i].Display < entry.Files[j].Display
		})
		options[name] = entry
	}

	h.Set(keyFileOptions, options, h.ttl.TikuList)
	return options, nil
}

// ValidateTiku confirms a bank exists and is active before a session starts
func (h *HybridCache) ValidateTiku(ctx context.Context, tikuID uint) (*models.Tiku, error) {
	data, err := h.GetTikuList(ctx)
	if err != nil {
		return nil, err
	}
	for i := range data.TikuList {
		if data.TikuList[i].ID == tikuID {
			if !data.TikuList[i].IsActive {
				return nil, fmt.Errorf("%w: %s", ErrTikuDisabled, data.TikuList[i].TikuName)
			}
			return &data.TikuList[i], nil
		}
	}
	return nil, fmt.Errorf("%w: id %d", ErrTikuNotFound, tikuID)
}

// GetQuestionBank returns every question of a bank in stored order. The id
// list and the question records are cached as separate entries: a warm index
// turns into one batched fetch plus single-question fills for any holes; a
// cold index reloads the bank once and repopulates everything.
func (h *HybridCache) GetQuestionBank(ctx context.Context, tikuID uint) ([]models.Question, error) {
	var ids []uint
	if h.Get(bankIndexKey(tikuID), &ids) {
		return h.fetchQuestions(ctx, ids)
	}

	questions, err := h.loader.LoadBank(ctx, tikuID)
	if err != nil {
		return nil, err
	}

	ids = make([]uint, len(questions))
	entries := make(map[string][]byte, len(questions))
	for i := range questions {
		ids[i] = questions[i].ID
		data, err := h.codec.Encode(&questions[i])
		if err != nil {
			log.Printf("[CACHE] skipping question %d: %v", questions[i].ID, err)
			continue
		}
		entries[questionKey(questions[i].ID)] = data
		h.local.Set(questionKey(questions[i].ID), data, h.ttl.Question)
	}

	h.Set(bankIndexKey(tikuID), ids, h.ttl.BankIndex)
	h.remote.MSet(entries, h.ttl.Question)
	return questions, nil
}

// fetchQuestions resolves a warm id list into question records: local tier,
// then one MGET, then the durable store for whatever is still missing.
func (h *HybridCache) fetchQuestions(ctx context.Context, ids []uint) ([]models.Question, error) {
	found := make(map[uint]models.Question, len(ids))
	var missing []uint

	for _, id := range ids {
		if raw, ok := h.local.Get(questionKey(id)); ok {
			var q models.Question
			if err := h.codec.Decode(raw.([]byte), &q); err == nil {
				found[id] = q
				continue
			}
			h.local.Delete(questionKey(id))
		}
		missing = append(missing, id)
	}

	if len(missing) > 0 {
		keys := make([]string, len(missing))
		for i, id := range missing {
			keys[i] = questionKey(id)
		}
		envelopes := h.remote.MGet(keys)

		var stillMissing []uint
		for _, id := range missing {
			raw, ok := envelopes[questionKey(id)]
			if !ok {
				stillMissing = append(stillMissing, id)
				continue
			}
			var q models.Question
			if err := h.codec.Decode(raw, &q); err != nil {
				h.remote.Delete(questionKey(id))
				stillMissing = append(stillMissing, id)
				continue
			}
			h.local.Set(questionKey(id), raw, h.ttl.Question)
			found[id] = q
		}
		missing = stillMissing
	}

	for _, id := range missing {
		q, err := h.loader.LoadQuestion(ctx, id)
		if err != nil {
			return nil, err
		}
		if q == nil {
			continue // deleted since the index was cached; drop from this view
		}
		h.Set(questionKey(id), q, h.ttl.Question)
		found[id] = *q
	}

	questions := make([]models.Question, 0, len(found))
	for _, id := range ids {
		if q, ok := found[id]; ok {
			questions = append(questions, q)
		}
	}
	return questions, nil
}

// GetQuestionByID returns one question record, cache first then store.
// Returns (nil, nil) when the question does not exist.
func (h *HybridCache) GetQuestionByID(ctx context.Context, questionID uint) (*models.Question, error) {
	var q models.Question
	if h.Get(questionKey(questionID), &q) {
		return &q, nil
	}

	qp, err := h.loader.LoadQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if qp == nil {
		return nil, nil
	}

	h.Set(questionKey(questionID), qp, h.ttl.Question)
	return qp, nil
}

// RefreshAll drops the aggregate keys and every bank/question entry, then
// eagerly reloads the aggregates plus a bounded set of hot banks so a mass
// invalidation does not stampede the durable store. Returns how many
// distributed entries were removed.
func (h *HybridCache) RefreshAll(ctx context.Context) int {
	deleted := 0
	if h.Delete(keyTikuList) {
		deleted++
	}
	if h.Delete(keyFileOptions) {
		deleted++
	}
	deleted += h.DeleteByPattern(bankIndexPrefix)
	deleted += h.DeleteByPattern(questionPrefix)

	if _, err := h.GetTikuList(ctx); err != nil {
		log.Printf("[CACHE] refresh: tiku list reload failed: %v", err)
	}
	if _, err := h.GetFileOptions(ctx); err != nil {
		log.Printf("[CACHE] refresh: file options reload failed: %v", err)
	}

	if h.ranker != nil && h.warmupLimit > 0 {
		for _, tikuID := range h.ranker.TopBanks(h.warmupLimit) {
			if _, err := h.GetQuestionBank(ctx, tikuID); err != nil {
				log.Printf("[CACHE] refresh: warmup of bank %d failed: %v", tikuID, err)
			}
		}
	}

	log.Printf("[CACHE] refresh complete, %d distributed entries cleared", deleted)
	return deleted
}

// Info reports both tiers' state for the admin surface
func (h *HybridCache) Info() map[string]any {
	return map[string]any{
		"redis": map[string]any{
			"available":  h.remote.Available(),
			"metrics":    h.remote.Metrics.Snapshot(),
			"keys_count": h.remote.KeyCount(),
		},
		"local": h.local.Stats(),
		"configuration": map[string]any{
			"tiku_list_ttl":  h.ttl.TikuList.Seconds(),
			"bank_index_ttl": h.ttl.BankIndex.Seconds(),
			"question_ttl":   h.ttl.Question.Seconds(),
			"warmup_limit":   h.warmupLimit,
		},
	}
}

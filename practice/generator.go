package practice

import (
	"math/rand"
	"sync"
	"time"

	"qbank/models"
)

// typeOrder fixes the bucket order questions are served in
var typeOrder = []string{
	models.TypeSingleChoice,
	models.TypeMultipleChoice,
	models.TypeJudgment,
	models.TypeOther,
}

// Generator builds the ordered question-id list a session works through.
// Questions are grouped into type buckets served in a fixed order; when
// shuffling is enabled each bucket is shuffled independently so types
// never interleave.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewGenerator() *Generator {
	return &Generator{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewSeededGenerator returns a generator with a deterministic sequence
func NewSeededGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Generate selects and orders question ids from a bank. A nil
// selectedTypes means every type; an empty slice selects nothing.
func (g *Generator) Generate(questions []models.Question, selectedTypes []string, shuffle bool) []uint {
	wanted := make(map[string]bool)
	if selectedTypes == nil {
		for _, t := range typeOrder {
			wanted[t] = true
		}
	} else {
		for _, t := range selectedTypes {
			wanted[t] = true
		}
	}

	buckets := make(map[string][]uint)
	for _, q := range questions {
		if wanted[q.Type] {
			buckets[q.Type] = append(buckets[q.Type], q.ID)
		}
	}

	var ids []uint
	for _, t := range typeOrder {
		bucket := buckets[t]
		if shuffle {
			g.ShuffleIDs(bucket)
		}
		ids = append(ids, bucket...)
	}
	return ids
}

// ShuffleIDs shuffles a slice of question ids in place
func (g *Generator) ShuffleIDs(ids []uint) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rng.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
}

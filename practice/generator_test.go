package practice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qbank/models"
)

func mixedBank() []models.Question {
	return []models.Question{
		makeQuestion(10, 1, models.TypeJudgment, "T", false),
		makeQuestion(11, 1, models.TypeSingleChoice, "A", false),
		makeQuestion(12, 1, models.TypeMultipleChoice, "AB", true),
		makeQuestion(13, 1, models.TypeSingleChoice, "B", false),
		makeQuestion(14, 1, models.TypeOther, "42", false),
		makeQuestion(15, 1, models.TypeJudgment, "F", false),
	}
}

func TestGenerateFixedBucketOrder(t *testing.T) {
	gen := NewSeededGenerator(1)

	ids := gen.Generate(mixedBank(), nil, false)
	assert.Equal(t, []uint{11, 13, 12, 10, 15, 14}, ids)
}

func TestGenerateTypeFilter(t *testing.T) {
	gen := NewSeededGenerator(1)

	ids := gen.Generate(mixedBank(), []string{models.TypeJudgment}, false)
	assert.Equal(t, []uint{10, 15}, ids)

	ids = gen.Generate(mixedBank(), []string{models.TypeSingleChoice, models.TypeOther}, false)
	assert.Equal(t, []uint{11, 13, 14}, ids)
}

func TestGenerateEmptySelectionMeansNothing(t *testing.T) {
	gen := NewSeededGenerator(1)

	assert.Empty(t, gen.Generate(mixedBank(), []string{}, false))
}

func TestGenerateShuffleKeepsBucketsSeparated(t *testing.T) {
	gen := NewSeededGenerator(7)
	questions := mixedBank()

	position := make(map[uint]int)
	for i, q := range questions {
		position[q.ID] = i
	}
	typeOf := func(id uint) string { return questions[position[id]].Type }

	ids := gen.Generate(questions, nil, true)
	require.Len(t, ids, len(questions))

	// same members, and every bucket still occupies one contiguous block
	// in the fixed type order
	assert.ElementsMatch(t, []uint{10, 11, 12, 13, 14, 15}, ids)
	assert.Equal(t,
		[]string{
			models.TypeSingleChoice, models.TypeSingleChoice,
			models.TypeMultipleChoice,
			models.TypeJudgment, models.TypeJudgment,
			models.TypeOther,
		},
		[]string{typeOf(ids[0]), typeOf(ids[1]), typeOf(ids[2]), typeOf(ids[3]), typeOf(ids[4]), typeOf(ids[5])})
}

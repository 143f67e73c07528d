package aggregate

import (
	"math/rand"
	"testing"

	"github.com/Veraticus/motorsense/internal/common"
	"github.com/Veraticus/motorsense/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// record builds a 4-class prediction for class c with confidence p, the rest
// spread evenly over the other classes.
func record(window, c int, p float64) model.PredictionRecord {
	probs := make([]float64, 4)
	for i := range probs {
		probs[i] = (1 - p) / 3
	}
	probs[c] = p
	return model.PredictionRecord{Window: window, PredictedClass: c, Probabilities: probs}
}

func TestAggregate_ConfidenceBeatsAverage(t *testing.T) {
	classes := model.DefaultClassSet()
	records := []model.PredictionRecord{
		record(0, 0, 0.9),
		record(1, 0, 0.8),
		record(2, 0, 0.7),
		record(3, 1, 0.95),
		record(4, 1, 0.9),
	}

	v, err := Aggregate(classes, records)
	require.NoError(t, err)

	assert.Equal(t, 0, v.FinalClass)
	assert.Equal(t, model.ClassMotorOff, v.ClassName)
	assert.InDelta(t, 2.4, v.WeightedScores[0], 1e-9)
	assert.InDelta(t, 1.85, v.WeightedScores[1], 1e-9)
	assert.Zero(t, v.WeightedScores[2])
	assert.Zero(t, v.WeightedScores[3])
	assert.Equal(t, []int{3, 2, 0, 0}, v.Votes)
	assert.Equal(t, 5, v.WindowCount)
}

func TestAggregate_UnanimousFullConfidence(t *testing.T) {
	classes := model.DefaultClassSet()

	for n := 1; n <= 6; n++ {
		records := make([]model.PredictionRecord, n)
		for i := range records {
			records[i] = model.PredictionRecord{Window: i, PredictedClass: 2, Probabilities: []float64{0, 0, 1, 0}}
		}

		v, err := Aggregate(classes, records)
		require.NoError(t, err)
		assert.Equal(t, 2, v.FinalClass)
		assert.Equal(t, model.ClassMotorOnNoFan, v.ClassName)
		assert.Equal(t, []float64{0, 0, float64(n), 0}, v.WeightedScores)
		assert.Equal(t, n, v.WindowCount)
	}
}

func TestAggregate_EmptyIsInsufficientData(t *testing.T) {
	v, err := Aggregate(model.DefaultClassSet(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInsufficientData)
	assert.Zero(t, v.WindowCount)
	assert.Empty(t, v.ClassName)
}

func TestAggregate_TieGoesToLowestClassIndex(t *testing.T) {
	classes := model.DefaultClassSet()
	records := []model.PredictionRecord{
		record(0, 3, 0.5),
		record(1, 1, 0.5),
	}

	v, err := Aggregate(classes, records)
	require.NoError(t, err)
	assert.Equal(t, 1, v.FinalClass)
	assert.Equal(t, model.ClassMotorOn, v.ClassName)
}

func TestAggregate_VolumeCanBeatCertainty(t *testing.T) {
	classes := model.DefaultClassSet()
	records := []model.PredictionRecord{
		record(0, 3, 0.99),
		record(1, 1, 0.45),
		record(2, 1, 0.45),
		record(3, 1, 0.45),
	}

	v, err := Aggregate(classes, records)
	require.NoError(t, err)
	assert.Equal(t, 1, v.FinalClass)
	assert.InDelta(t, 1.35, v.WeightedScores[1], 1e-9)
}

func TestAggregate_OrderInvariant(t *testing.T) {
	classes := model.DefaultClassSet()
	rng := rand.New(rand.NewSource(42))

	records := make([]model.PredictionRecord, 200)
	for i := range records {
		records[i] = record(i, rng.Intn(4), 0.3+0.7*rng.Float64())
	}

	want, err := Aggregate(classes, records)
	require.NoError(t, err)

	for trial := 0; trial < 20; trial++ {
		shuffled := append([]model.PredictionRecord(nil), records...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		got, err := Aggregate(classes, shuffled)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestAggregate_RejectsMismatchedRecords(t *testing.T) {
	classes := model.DefaultClassSet()

	_, err := Aggregate(classes, []model.PredictionRecord{
		{Window: 0, PredictedClass: 0, Probabilities: []float64{1, 0}},
	})
	assert.ErrorIs(t, err, common.ErrConfiguration)

	_, err = Aggregate(classes, []model.PredictionRecord{
		{Window: 0, PredictedClass: 5, Probabilities: []float64{0.25, 0.25, 0.25, 0.25}},
	})
	assert.ErrorIs(t, err, common.ErrConfiguration)
}

func TestRank(t *testing.T) {
	classes := model.DefaultClassSet()
	v := model.AggregateVerdict{
		WeightedScores: []float64{0.5, 2.0, 0.5, 0},
		Votes:          []int{1, 3, 1, 0},
	}

	ranking := Rank(classes, v)
	require.Len(t, ranking, 4)
	assert.Equal(t, model.ClassMotorOn, ranking[0].Name)
	assert.Equal(t, 3, ranking[0].Votes)
	assert.Equal(t, 0, ranking[1].Index)
	assert.Equal(t, 2, ranking[2].Index)
	assert.Equal(t, 3, ranking[3].Index)
}

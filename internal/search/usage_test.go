package search

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestUsageBoost(t *testing.T) {
	assert.Equal(t, 1.0, UsageBoost(0.1, 0))
	assert.Equal(t, 1.0, UsageBoost(0, 10))
	assert.InDelta(t, 1+0.1*math.Log(11), UsageBoost(0.1, 10), 1e-12)
	assert.Greater(t, UsageBoost(0.1, 100), UsageBoost(0.1, 10))
}

func TestApplyUsageBoost_UsedBeatsUnusedAtEqualScore(t *testing.T) {
	// Given: two results with identical fused scores
	results := fused("cold", "hot")
	results[1].Score = results[0].Score

	// When: "hot" was used ten times
	out := ApplyUsageBoost(results, map[string]int{"hot": 10}, DefaultUsageBoost)

	// Then: "hot" ranks strictly above "cold"
	assert.Equal(t, []string{"hot", "cold"}, docIDs(out))
	assert.Greater(t, out[0].Score, out[1].Score)
	assert.Equal(t, 10, out[0].UseCount)
	assert.Equal(t, 0, out[1].UseCount)
}

func TestApplyUsageBoost_StableForEqualScores(t *testing.T) {
	results := fused("a", "b", "c")
	for _, r := range results {
		r.Score = 0.5
	}

	out := ApplyUsageBoost(results, map[string]int{"zzz": 3}, DefaultUsageBoost)

	assert.Equal(t, []string{"a", "b", "c"}, docIDs(out))
}

func TestBoostByUsage_ReadErrorKeepsOrder(t *testing.T) {
	src := new(mockUsage)
	src.On("UseCounts", mock.Anything, []string{"a", "b"}).Return(nil, errors.New("locked"))

	out := boostByUsage(context.Background(), src, fused("a", "b"), DefaultUsageBoost)

	assert.Equal(t, []string{"a", "b"}, docIDs(out))
	src.AssertExpectations(t)
}

package matching_test

import (
	"testing"

	"talent-match-go/internal/matching"

	"github.com/stretchr/testify/assert"
)

// TestHybridScore_Bounds 任意合法输入下综合分都落在 [0,1]
func TestHybridScore_Bounds(t *testing.T) {
	inputs := []struct {
		semantic float64
		overlap  float64
		category bool
	}{
		{0.0, 0.0, false},
		{1.0, 1.0, true},
		{0.5, 0.5, false},
		{1.0, 1.0, false},
		// 语义项越界时依赖钳制兜底
		{1.2, 1.0, true},
		{-0.3, 0.0, false},
	}

	for _, in := range inputs {
		score := matching.HybridScore(in.semantic, in.overlap, in.category)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}

// TestHybridScore_Weights 按 0.60/0.30/0.10 加权组合
func TestHybridScore_Weights(t *testing.T) {
	// 0.60*0.8 + 0.30*0.5 + 0.10*1.0 = 0.73
	assert.InDelta(t, 0.73, matching.HybridScore(0.8, 0.5, true), 1e-9)

	// 类别不匹配时取中性地板0.5而不是0: 0.60*0.8 + 0.30*0.5 + 0.10*0.5 = 0.68
	assert.InDelta(t, 0.68, matching.HybridScore(0.8, 0.5, false), 1e-9)
}

// TestHybridScore_CategoryNeverZero 类别项从不清零跨类别候选
func TestHybridScore_CategoryNeverZero(t *testing.T) {
	// 语义与重合度全为0时，类别中性分仍贡献 0.10*0.5
	assert.InDelta(t, 0.05, matching.HybridScore(0, 0, false), 1e-9)
}

// TestExperienceScore 岗位数量越多经验分越高，封顶1.0
func TestExperienceScore(t *testing.T) {
	assert.Equal(t, 0.3, matching.ExperienceScore(0))
	assert.Equal(t, 0.6, matching.ExperienceScore(1))
	assert.Equal(t, 0.8, matching.ExperienceScore(2))
	assert.Equal(t, 1.0, matching.ExperienceScore(3))
	assert.Equal(t, 1.0, matching.ExperienceScore(7))
}

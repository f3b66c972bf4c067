package matching_test

import (
	"testing"

	"talent-match-go/internal/matching"

	"github.com/stretchr/testify/assert"
)

// TestCosineSimilarity_Symmetry 测试余弦相似度的对称性
func TestCosineSimilarity_Symmetry(t *testing.T) {
	a := []float64{0.3, -0.7, 1.2, 0.05}
	b := []float64{1.1, 0.4, -0.2, 0.9}

	assert.Equal(t, matching.CosineSimilarity(a, b), matching.CosineSimilarity(b, a), "余弦相似度应满足对称性")
}

// TestCosineSimilarity_ZeroVector 零范数向量恒返回0，不允许出现除零
func TestCosineSimilarity_ZeroVector(t *testing.T) {
	a := []float64{1.0, 2.0, 3.0}
	zero := []float64{0.0, 0.0, 0.0}

	assert.Equal(t, 0.0, matching.CosineSimilarity(a, zero))
	assert.Equal(t, 0.0, matching.CosineSimilarity(zero, a))
	assert.Equal(t, 0.0, matching.CosineSimilarity(nil, a), "空向量同样返回0")
	assert.Equal(t, 0.0, matching.CosineSimilarity(a, []float64{1.0, 2.0}), "维度不一致返回0")
}

// TestCosineSimilarity_Identical 同向向量相似度为1
func TestCosineSimilarity_Identical(t *testing.T) {
	a := []float64{0.5, 0.5, 0.5}

	assert.InDelta(t, 1.0, matching.CosineSimilarity(a, a), 1e-9)

	// 同向但模长不同，相似度仍为1
	b := []float64{1.0, 1.0, 1.0}
	assert.InDelta(t, 1.0, matching.CosineSimilarity(a, b), 1e-9)
}

// TestCosineSimilarity_Orthogonal 正交向量相似度为0，反向为-1
func TestCosineSimilarity_Orthogonal(t *testing.T) {
	assert.InDelta(t, 0.0, matching.CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, matching.CosineSimilarity([]float64{1, 0}, []float64{-1, 0}), 1e-9)
}

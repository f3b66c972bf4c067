package vectorization

import (
	"math"

	"talent-match-go/internal/types"
)

// StructuredFeatureDim 结构化特征向量的维度：两族技能各取 count/mean/max/min
const StructuredFeatureDim = 8

// StructuredFeatures 从技能列表计算8维结构化数值特征并归一化为单位长度。
// 默认不拼接进语义向量，仅作为扩展点保留（见 Service 的 fuse 模式）。
func StructuredFeatures(hardSkills, softSkills []types.Skill) []float64 {
	features := make([]float64, 0, StructuredFeatureDim)
	features = append(features, familyStats(hardSkills)...)
	features = append(features, familyStats(softSkills)...)
	return normalizeUnit(features)
}

func familyStats(skills []types.Skill) []float64 {
	if len(skills) == 0 {
		return []float64{0, 0, 0, 0}
	}

	var sum float64
	maxLevel := skills[0].Level
	minLevel := skills[0].Level
	for _, s := range skills {
		sum += s.Level
		if s.Level > maxLevel {
			maxLevel = s.Level
		}
		if s.Level < minLevel {
			minLevel = s.Level
		}
	}
	return []float64{
		float64(len(skills)),
		sum / float64(len(skills)),
		maxLevel,
		minLevel,
	}
}

// normalizeUnit 归一化为单位向量；全零向量原样返回
func normalizeUnit(v []float64) []float64 {
	var sumSq float64
	for _, x := range v {
		sumSq += x * x
	}
	if sumSq == 0 {
		return v
	}
	norm := math.Sqrt(sumSq)
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

package matching

import "talent-match-go/internal/constants"

// HybridScore 融合语义相似度、结构化技能重合度与类别经验得出综合匹配分。
// 组合权重为 0.60/0.30/0.10；类别经验匹配记1.0，否则记中性底分0.5，
// 避免跨类别候选被直接清零。结果截断到 [0,1]。
func HybridScore(semanticSimilarity, skillOverlap float64, categoryMatch bool) float64 {
	categoryScore := constants.CategoryNeutral
	if categoryMatch {
		categoryScore = 1.0
	}

	score := constants.SemanticWeight*semanticSimilarity +
		constants.OverlapWeight*skillOverlap +
		constants.CategoryWeight*categoryScore
	return clamp01(score)
}

// ExperienceScore 依据历史任职数量给出经验启发分，用于结果明细展示。
func ExperienceScore(positionCount int) float64 {
	switch {
	case positionCount <= 0:
		return 0.3
	case positionCount == 1:
		return 0.6
	case positionCount == 2:
		return 0.8
	default:
		return 1.0
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

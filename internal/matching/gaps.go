package matching

import (
	"fmt"
	"math"

	"talent-match-go/internal/constants"
	"talent-match-go/internal/types"
)

// NewSkillGapDetail 构造单项技能差距明细。
// Gap = RequiredLevel - CurrentLevel，Status 由 Gap 唯一确定。
func NewSkillGapDetail(skillName string, requiredLevel, currentLevel float64) types.SkillGapDetail {
	gap := requiredLevel - currentLevel
	return types.SkillGapDetail{
		SkillName:     skillName,
		RequiredLevel: requiredLevel,
		CurrentLevel:  currentLevel,
		Gap:           gap,
		Status:        classifyGap(gap),
	}
}

// classifyGap 差距分级，按序首个命中生效。
func classifyGap(gap float64) types.GapStatus {
	switch {
	case gap <= 0 && math.Abs(gap) > 1.0:
		return types.GapStatusExceeded
	case gap <= 0:
		return types.GapStatusMet
	case gap <= 0.5:
		return types.GapStatusMinor
	case gap <= 1.5:
		return types.GapStatusModerate
	default:
		return types.GapStatusCritical
	}
}

// AnalyzeRequirementSet 针对一组技能要求生成人员的差距报告。
// 要求为空时就绪度为100，不产生任何扣分项。
func AnalyzeRequirementSet(person *types.Person, profileID, profileName string, requiredHard, requiredSoft []types.Skill) types.SkillGapReport {
	hardLevels := levelIndex(person.HardSkills)
	softLevels := levelIndex(person.SoftSkills)

	hardGaps := familyGaps(requiredHard, hardLevels)
	softGaps := familyGaps(requiredSoft, softLevels)

	summary := types.GapSummary{
		TotalSkillsRequired: len(hardGaps) + len(softGaps),
	}
	var criticalSkills, moderateSkills []string
	for _, g := range append(append([]types.SkillGapDetail{}, hardGaps...), softGaps...) {
		switch g.Status {
		case types.GapStatusCritical:
			summary.CriticalGaps++
			criticalSkills = append(criticalSkills, g.SkillName)
		case types.GapStatusModerate:
			summary.ModerateGaps++
			moderateSkills = append(moderateSkills, g.SkillName)
		case types.GapStatusMinor:
			summary.MinorGaps++
		default:
			summary.SkillsMet++
		}
	}

	readiness := 100.0
	if summary.TotalSkillsRequired > 0 {
		penalty := float64(summary.CriticalGaps)*constants.CriticalGapPenalty +
			float64(summary.ModerateGaps)*constants.ModerateGapPenalty +
			float64(summary.MinorGaps)*constants.MinorGapPenalty
		readiness = math.Max(0, 100-penalty)
	}

	return types.SkillGapReport{
		ProfileID:       profileID,
		ProfileName:     profileName,
		ReadinessScore:  readiness,
		Summary:         summary,
		HardSkillGaps:   hardGaps,
		SoftSkillGaps:   softGaps,
		Recommendations: buildRecommendations(readiness, criticalSkills, moderateSkills),
	}
}

// AnalyzePositionGaps 针对岗位的每个画像各生成一份报告，绝不跨画像合并。
// 岗位没有画像时返回一份基于空要求集的报告，保证调用方始终拿到结果。
func AnalyzePositionGaps(person *types.Person, position *types.Position) []types.SkillGapReport {
	if len(position.Profiles) == 0 {
		return []types.SkillGapReport{
			AnalyzeRequirementSet(person, "", position.Name, nil, nil),
		}
	}

	reports := make([]types.SkillGapReport, 0, len(position.Profiles))
	for _, profile := range position.Profiles {
		reports = append(reports, AnalyzeRequirementSet(person, profile.ProfileID, profile.Name, profile.HardSkills, profile.SoftSkills))
	}
	return reports
}

// familyGaps 按要求顺序逐项生成差距明细，人员缺失该技能时当前等级记0。
func familyGaps(required []types.Skill, levels map[string]float64) []types.SkillGapDetail {
	gaps := make([]types.SkillGapDetail, 0, len(required))
	for _, req := range required {
		current := levels[normalizeSkillName(req.Name)]
		gaps = append(gaps, NewSkillGapDetail(req.Name, req.Level, current))
	}
	return gaps
}

func levelIndex(skills []types.Skill) map[string]float64 {
	index := make(map[string]float64, len(skills))
	for _, s := range skills {
		index[normalizeSkillName(s.Name)] = s.Level
	}
	return index
}

// buildRecommendations 依据差距计数确定性生成建议，每条最多列出前3项技能。
func buildRecommendations(readiness float64, criticalSkills, moderateSkills []string) []types.Recommendation {
	recommendations := make([]types.Recommendation, 0, 3)

	if len(criticalSkills) > 0 {
		recommendations = append(recommendations, types.Recommendation{
			Priority: "high",
			Message:  fmt.Sprintf("Focus on developing %d critical skill(s)", len(criticalSkills)),
			Skills:   topSkills(criticalSkills),
		})
	}
	if len(moderateSkills) > 0 {
		recommendations = append(recommendations, types.Recommendation{
			Priority: "medium",
			Message:  fmt.Sprintf("Improve %d skill(s) to meet requirements", len(moderateSkills)),
			Skills:   topSkills(moderateSkills),
		})
	}
	if readiness >= constants.StrongMatchReadiness {
		recommendations = append(recommendations, types.Recommendation{
			Priority: "info",
			Message:  "Strong match! Consider applying for this position.",
		})
	}
	return recommendations
}

func topSkills(skills []string) []string {
	if len(skills) > constants.RecommendationSkillLimit {
		return skills[:constants.RecommendationSkillLimit]
	}
	return skills
}

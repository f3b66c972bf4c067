package matching

import (
	"sort"
	"strings"

	"talent-match-go/internal/constants"
	"talent-match-go/internal/types"
)

// CalculateSkillOverlap 计算候选人技能与岗位要求的结构化重合度。
// 每项要求按二值计分：候选人对应技能等级达到要求的 SkillMatchThreshold
// 倍（80%）即记满足。硬技能与软技能分别计算，再按 0.7/0.3 加权合成。
// 某一族要求为空时该族重合度记为 1.0（空要求恒满足）。
func CalculateSkillOverlap(candidateHard, candidateSoft, requiredHard, requiredSoft []types.Skill) types.SkillOverlap {
	hardMatch := familyOverlap(candidateHard, requiredHard)
	softMatch := familyOverlap(candidateSoft, requiredSoft)

	return types.SkillOverlap{
		HardMatch:    hardMatch,
		SoftMatch:    softMatch,
		OverallMatch: constants.HardSkillWeight*hardMatch + constants.SoftSkillWeight*softMatch,
	}
}

// familyOverlap 计算单一技能族的满足比例，要求为空时返回1.0。
func familyOverlap(candidate, required []types.Skill) float64 {
	if len(required) == 0 {
		return 1.0
	}

	levels := make(map[string]float64, len(candidate))
	for _, s := range candidate {
		levels[normalizeSkillName(s.Name)] = s.Level
	}

	satisfied := 0
	for _, req := range required {
		level, ok := levels[normalizeSkillName(req.Name)]
		if ok && level >= req.Level*constants.SkillMatchThreshold {
			satisfied++
		}
	}
	return float64(satisfied) / float64(len(required))
}

// normalizeSkillName 技能名匹配不区分大小写与首尾空白。
func normalizeSkillName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// CommonSkillNames 返回两个技能集合中名称相同的技能原始名，按字典序排列。
// 用于相似实体查询结果的明细展示。
func CommonSkillNames(a, b []types.Skill) []string {
	seen := make(map[string]string, len(a))
	for _, s := range a {
		seen[normalizeSkillName(s.Name)] = s.Name
	}

	common := make([]string, 0)
	added := make(map[string]bool)
	for _, s := range b {
		key := normalizeSkillName(s.Name)
		if name, ok := seen[key]; ok && !added[key] {
			common = append(common, name)
			added[key] = true
		}
	}
	sort.Strings(common)
	return common
}

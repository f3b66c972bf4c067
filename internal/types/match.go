package types

// MatchResult 一次匹配查询返回的单条结果。按请求即时计算，不持久化。
type MatchResult struct {
	SubjectID          string                 `json:"subject_id"`
	Name               string                 `json:"name"`
	Score              float64                `json:"score"`
	SemanticSimilarity float64                `json:"semantic_similarity"`
	SkillMatch         float64                `json:"skill_match"`
	Details            map[string]interface{} `json:"details,omitempty"`
}

// SkillOverlap 技能重合度，三项均落在 [0,1]
type SkillOverlap struct {
	HardMatch    float64 `json:"hard_match"`
	SoftMatch    float64 `json:"soft_match"`
	OverallMatch float64 `json:"overall_match"`
}

// GapStatus 单项技能差距的严重程度分类
type GapStatus string

const (
	GapStatusExceeded GapStatus = "exceeded"
	GapStatusMet      GapStatus = "met"
	GapStatusMinor    GapStatus = "minor_gap"
	GapStatusModerate GapStatus = "moderate_gap"
	GapStatusCritical GapStatus = "critical_gap"
)

// SkillGapDetail 人与要求之间单项技能的差距明细。
// Gap 恒等于 RequiredLevel - CurrentLevel；Status 只由 Gap 决定，不可独立设置。
// 通过 matching.NewSkillGapDetail 构造。
type SkillGapDetail struct {
	SkillName     string    `json:"skill_name"`
	RequiredLevel float64   `json:"required_level"`
	CurrentLevel  float64   `json:"current_level"`
	Gap           float64   `json:"gap"`
	Status        GapStatus `json:"status"`
}

// GapSummary 差距分析的汇总计数
type GapSummary struct {
	TotalSkillsRequired int `json:"total_skills_required"`
	SkillsMet           int `json:"skills_met"`
	CriticalGaps        int `json:"critical_gaps"`
	ModerateGaps        int `json:"moderate_gaps"`
	MinorGaps           int `json:"minor_gaps"`
}

// Recommendation 由差距计数确定性生成的提升建议。
// 仅作展示用途，不再反馈进任何评分。
type Recommendation struct {
	Priority string   `json:"priority"`
	Message  string   `json:"message"`
	Skills   []string `json:"skills,omitempty"`
}

// SkillGapReport 人员针对岗位单个画像的完整差距报告。
// 岗位有多个画像时返回多份报告，绝不做跨画像平均。
type SkillGapReport struct {
	ProfileID       string           `json:"profile_id"`
	ProfileName     string           `json:"profile_name,omitempty"`
	ReadinessScore  float64          `json:"readiness_score"`
	Summary         GapSummary       `json:"summary"`
	HardSkillGaps   []SkillGapDetail `json:"hard_skill_gaps"`
	SoftSkillGaps   []SkillGapDetail `json:"soft_skill_gaps"`
	Recommendations []Recommendation `json:"recommendations"`
}

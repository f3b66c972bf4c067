package constants

import "time"

const (
	// SkillMatchThreshold 技能重合判定阈值：人员等级达到要求等级的80%即记一次命中。
	// 二值判定，不累积部分分数。固定常量，不提供配置项。
	SkillMatchThreshold = 0.8

	// 重合度内部的族别权重：硬技能主导
	HardSkillWeight = 0.7
	SoftSkillWeight = 0.3

	// 混合评分的固定权重
	SemanticWeight = 0.60
	OverlapWeight  = 0.30
	CategoryWeight = 0.10

	// CategoryNeutral 类别不匹配时的中性地板值（不是惩罚项，从不取0）
	CategoryNeutral = 0.5

	// 就绪度评分的扣分系数
	CriticalGapPenalty = 25
	ModerateGapPenalty = 10
	MinorGapPenalty    = 3

	// RecommendationSkillLimit 每条建议最多列出的技能数
	RecommendationSkillLimit = 3
	// StrongMatchReadiness 达到该就绪度后追加鼓励性建议
	StrongMatchReadiness = 80.0
)

const (
	// Qdrant 集合名
	PeopleCollection    = "people"
	PositionsCollection = "positions"

	// DefaultVectorDimension 默认嵌入维度，与 text-embedding-v3 一致
	DefaultVectorDimension = 1024
)

const (
	// Redis 键前缀与TTL
	MatchCachePrefix   = "match:results:"
	MatchCacheDuration = 10 * time.Minute
	EmbedTextMD5SetKey = "embeddings:text_md5s"
	SearchLockPrefix   = "match_lock:"
)

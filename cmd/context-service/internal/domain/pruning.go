package domain

import "time"

// PruningStrategy 裁剪策略标识
type PruningStrategy string

const (
	StrategyDynamic  PruningStrategy = "dynamic"  // 多因子动态评分
	StrategyFallback PruningStrategy = "fallback" // 纯最近窗口兜底
)

// ImportanceScore 单条消息的重要性评分明细（每次裁剪重新计算，不持久化）
type ImportanceScore struct {
	MessageID         string  `json:"message_id"`
	BaseWeight        float64 `json:"base_weight"`        // 角色先验
	TypeWeight        float64 `json:"type_weight"`        // 可配置的角色类型权重
	TimeWeight        float64 `json:"time_weight"`        // 时间衰减权重
	LengthWeight      float64 `json:"length_weight"`      // 长度分桶权重
	MentionWeight     float64 `json:"mention_weight"`     // 角色提及权重
	EmotionWeight     float64 `json:"emotion_weight"`     // 情感强度权重
	TopicWeight       float64 `json:"topic_weight"`       // 话题相关性
	PersonalityWeight float64 `json:"personality_weight"` // 角色归属相关性
	FinalScore        float64 `json:"final_score"`
	TokenCount        int     `json:"token_count"`
}

// PruningMetadata 裁剪过程的诊断元数据
type PruningMetadata struct {
	Strategy      PruningStrategy `json:"strategy"`
	TopicKeywords []string        `json:"topic_keywords,omitempty"`
	CacheHits     int             `json:"cache_hits"`
}

// PruningResult 裁剪结果
type PruningResult struct {
	KeptMessages    []*Message         `json:"kept_messages"`
	RemovedMessages []*Message         `json:"removed_messages"`
	TotalTokens     int                `json:"total_tokens"`
	RetainedTokens  int                `json:"retained_tokens"`
	RetainRatio     float64            `json:"retain_ratio"`
	Elapsed         time.Duration      `json:"elapsed"`
	Scores          []*ImportanceScore `json:"scores,omitempty"`
	Metadata        PruningMetadata    `json:"metadata"`
}

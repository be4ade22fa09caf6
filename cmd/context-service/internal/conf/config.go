package conf

import (
	"time"

	"github.com/spf13/viper"
)

// 配置默认值（见 PruningConfig 字段说明）
const (
	DefaultMaxTokens               = 4000
	DefaultMinRetainRatio          = 0.3
	DefaultSystemMessageWeight     = 1.0
	DefaultUserMessageWeight       = 0.8
	DefaultAIMessageWeight         = 0.6
	DefaultTimeDecayFactor         = 0.95
	DefaultRecentMessageBonus      = 1.2
	DefaultTopicRelevanceThreshold = 0.3
	DefaultPersonalityWeight       = 0.4
	DefaultMaxCacheSize            = 1000
	DefaultProcessingTimeout       = 5000 * time.Millisecond
	DefaultSystemMessagePriority   = 100
)

// PruningConfig 上下文裁剪配置。所有越界取值在 Normalize 时被钳制到
// 最近的合法值，而不是在使用处逐个判断。
type PruningConfig struct {
	MaxTokens               int           `mapstructure:"max_tokens"`                // Token 预算
	MinRetainRatio          float64       `mapstructure:"min_retain_ratio"`          // 最小保留比例 [0,1]
	SystemMessageWeight     float64       `mapstructure:"system_message_weight"`     // 系统消息权重
	UserMessageWeight       float64       `mapstructure:"user_message_weight"`       // 用户消息权重
	AIMessageWeight         float64       `mapstructure:"ai_message_weight"`         // 助手消息权重
	TimeDecayFactor         float64       `mapstructure:"time_decay_factor"`         // 每小时时间衰减
	RecentMessageBonus      float64       `mapstructure:"recent_message_bonus"`      // 最近消息加成
	TopicRelevanceThreshold float64       `mapstructure:"topic_relevance_threshold"` // 话题聚类阈值
	PersonalityWeight       float64       `mapstructure:"personality_weight"`        // 角色相关性权重
	EnableCaching           bool          `mapstructure:"enable_caching"`
	MaxCacheSize            int           `mapstructure:"max_cache_size"`
	ProcessingTimeout       time.Duration `mapstructure:"processing_timeout"` // 建议性超时
	SystemMessagePriority   int           `mapstructure:"system_message_priority"`
}

// DefaultPruningConfig 创建默认配置
func DefaultPruningConfig() *PruningConfig {
	return &PruningConfig{
		MaxTokens:               DefaultMaxTokens,
		MinRetainRatio:          DefaultMinRetainRatio,
		SystemMessageWeight:     DefaultSystemMessageWeight,
		UserMessageWeight:       DefaultUserMessageWeight,
		AIMessageWeight:         DefaultAIMessageWeight,
		TimeDecayFactor:         DefaultTimeDecayFactor,
		RecentMessageBonus:      DefaultRecentMessageBonus,
		TopicRelevanceThreshold: DefaultTopicRelevanceThreshold,
		PersonalityWeight:       DefaultPersonalityWeight,
		EnableCaching:           true,
		MaxCacheSize:            DefaultMaxCacheSize,
		ProcessingTimeout:       DefaultProcessingTimeout,
		SystemMessagePriority:   DefaultSystemMessagePriority,
	}
}

// Normalize 将非法取值钳制到最近的合法值
func (c *PruningConfig) Normalize() *PruningConfig {
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.MinRetainRatio < 0 {
		c.MinRetainRatio = 0
	}
	if c.MinRetainRatio > 1 {
		c.MinRetainRatio = 1
	}
	if c.SystemMessageWeight <= 0 {
		c.SystemMessageWeight = DefaultSystemMessageWeight
	}
	if c.UserMessageWeight <= 0 {
		c.UserMessageWeight = DefaultUserMessageWeight
	}
	if c.AIMessageWeight <= 0 {
		c.AIMessageWeight = DefaultAIMessageWeight
	}
	if c.TimeDecayFactor <= 0 || c.TimeDecayFactor > 1 {
		c.TimeDecayFactor = DefaultTimeDecayFactor
	}
	if c.RecentMessageBonus < 1 {
		c.RecentMessageBonus = DefaultRecentMessageBonus
	}
	if c.TopicRelevanceThreshold < 0 || c.TopicRelevanceThreshold > 1 {
		c.TopicRelevanceThreshold = DefaultTopicRelevanceThreshold
	}
	if c.PersonalityWeight < 0 || c.PersonalityWeight > 1 {
		c.PersonalityWeight = DefaultPersonalityWeight
	}
	if c.MaxCacheSize <= 0 {
		c.MaxCacheSize = DefaultMaxCacheSize
	}
	if c.ProcessingTimeout <= 0 {
		c.ProcessingTimeout = DefaultProcessingTimeout
	}
	if c.SystemMessagePriority <= 0 {
		c.SystemMessagePriority = DefaultSystemMessagePriority
	}
	return c
}

// LoadPruningConfig 从 viper 的 pruning 段加载配置，缺省项取默认值
func LoadPruningConfig(v *viper.Viper) (*PruningConfig, error) {
	cfg := DefaultPruningConfig()
	if v == nil {
		return cfg, nil
	}
	if sub := v.Sub("pruning"); sub != nil {
		if err := sub.Unmarshal(cfg); err != nil {
			return nil, err
		}
		// viper 以毫秒整数表达超时
		if ms := sub.GetInt("processing_timeout_ms"); ms > 0 {
			cfg.ProcessingTimeout = time.Duration(ms) * time.Millisecond
		}
	}
	return cfg.Normalize(), nil
}

package domain

import "time"

// Topic 话题描述符（仅由话题分析器修改）
type Topic struct {
	ID         string
	Keywords   []string
	Weight     float64 // 衰减的显著性权重
	MessageIDs []string
	Coherence  float64 // 簇内平均两两相似度
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RelevanceScore 单条消息的相关性评分
type RelevanceScore struct {
	MessageID          string
	TopicRelevance     float64
	CharacterRelevance float64
	HistoryRelevance   float64
	FinalScore         float64
	MatchedKeywords    []string
	Explanation        string
}

// TopicTransition 话题切换检测结果
type TopicTransition struct {
	Detected   bool
	FromTopic  *Topic
	ToTopic    *Topic
	Confidence float64
}

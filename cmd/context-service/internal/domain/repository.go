package domain

import (
	"context"
	"time"
)

// MessageRepository 追加式消息存储（外部协作者，提供有序历史）
type MessageRepository interface {
	CreateMessage(ctx context.Context, message *Message) error
	GetMessage(ctx context.Context, id string) (*Message, error)
	// ListMessages 按创建时间升序返回会话消息
	ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]*Message, int64, error)
	// ListAllMessages 返回会话的完整有序历史
	ListAllMessages(ctx context.Context, conversationID string) ([]*Message, error)
}

// ConversationRepository 会话存储（外部协作者）
type ConversationRepository interface {
	CreateConversation(ctx context.Context, conversation *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
}

// CharacterRepository 角色档案提供方（外部协作者）
type CharacterRepository interface {
	GetCharacter(ctx context.Context, id string) (*CharacterProfile, error)
	SaveCharacter(ctx context.Context, character *CharacterProfile) error
}

// EmotionSignalProvider 可选的情感信号提供方；核心不依赖其内部逻辑，
// 仅把信号折算进角色归属相关性分量
type EmotionSignalProvider interface {
	EmotionIntensity(ctx context.Context, messageID string) (float64, bool)
}

// ResultCache 裁剪结果缓存；缓存永不作为权威数据，未命中即重算
type ResultCache interface {
	Get(ctx context.Context, key string) (*PruningResult, bool)
	Set(ctx context.Context, key string, result *PruningResult, ttl time.Duration) error
}

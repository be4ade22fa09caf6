package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message 消息实体（上游追加写入，核心只读消费）
type Message struct {
	ID             string
	ConversationID string
	Role           MessageRole
	Content        string
	CharacterID    string   // 所属角色ID（可选）
	Mentions       []string // 被提及的角色名（可选）
	Tokens         int
	Metadata       map[string]string
	CreatedAt      time.Time
}

// MessageRole 消息角色
type MessageRole string

const (
	RoleUser      MessageRole = "user"      // 用户
	RoleAssistant MessageRole = "assistant" // 助手
	RoleSystem    MessageRole = "system"    // 系统
)

// ValidRole 校验消息角色是否合法
func ValidRole(role MessageRole) bool {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

// NewMessage 创建消息
func NewMessage(conversationID string, role MessageRole, content string) *Message {
	return &Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Metadata:       make(map[string]string),
		CreatedAt:      time.Now(),
	}
}

// IsSystem 是否为系统消息
func (m *Message) IsSystem() bool {
	return m.Role == RoleSystem
}

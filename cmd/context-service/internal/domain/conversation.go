package domain

import (
	"time"

	"github.com/google/uuid"
)

// Conversation 会话实体
type Conversation struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewConversation 创建会话
func NewConversation(title string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

package data

import (
	"context"
	"time"

	"tavernchat/cmd/context-service/internal/domain"

	"gorm.io/gorm"
)

// ConversationDO 会话数据对象
type ConversationDO struct {
	ID        string `gorm:"primaryKey"`
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定表名
func (ConversationDO) TableName() string {
	return "tavern.conversations"
}

// ConversationRepository 会话仓储实现
type ConversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository 创建会话仓储
func NewConversationRepository(db *gorm.DB) domain.ConversationRepository {
	return &ConversationRepository{db: db}
}

// CreateConversation 创建会话
func (r *ConversationRepository) CreateConversation(ctx context.Context, conversation *domain.Conversation) error {
	do := &ConversationDO{
		ID:        conversation.ID,
		Title:     conversation.Title,
		CreatedAt: conversation.CreatedAt,
		UpdatedAt: conversation.UpdatedAt,
	}
	return r.db.WithContext(ctx).Create(do).Error
}

// GetConversation 查询会话
func (r *ConversationRepository) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	var do ConversationDO
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&do).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	return &domain.Conversation{
		ID:        do.ID,
		Title:     do.Title,
		CreatedAt: do.CreatedAt,
		UpdatedAt: do.UpdatedAt,
	}, nil
}

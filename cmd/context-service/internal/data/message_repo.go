package data

import (
	"context"
	"encoding/json"
	"time"

	"tavernchat/cmd/context-service/internal/domain"

	"gorm.io/gorm"
)

// MessageDO 消息数据对象
type MessageDO struct {
	ID             string `gorm:"primaryKey"`
	ConversationID string `gorm:"index"`
	Role           string
	Content        string `gorm:"type:text"`
	CharacterID    string `gorm:"index"`
	MentionsJSON   string `gorm:"type:text"`
	Tokens         int
	MetadataJSON   string `gorm:"type:text"`
	CreatedAt      time.Time
}

// TableName 指定表名
func (MessageDO) TableName() string {
	return "tavern.messages"
}

// MessageRepository 消息仓储实现（追加写入）
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建消息仓储
func NewMessageRepository(db *gorm.DB) domain.MessageRepository {
	return &MessageRepository{db: db}
}

// CreateMessage 创建消息
func (r *MessageRepository) CreateMessage(ctx context.Context, message *domain.Message) error {
	do := r.toDataObject(message)
	return r.db.WithContext(ctx).Create(do).Error
}

// GetMessage 获取消息
func (r *MessageRepository) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	var do MessageDO
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&do).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	return r.toDomain(&do), nil
}

// ListMessages 按创建时间升序分页查询
func (r *MessageRepository) ListMessages(
	ctx context.Context,
	conversationID string,
	limit, offset int,
) ([]*domain.Message, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&MessageDO{}).
		Where("conversation_id = ?", conversationID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var dos []MessageDO
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&dos).Error; err != nil {
		return nil, 0, err
	}

	messages := make([]*domain.Message, 0, len(dos))
	for i := range dos {
		messages = append(messages, r.toDomain(&dos[i]))
	}
	return messages, total, nil
}

// ListAllMessages 返回会话的完整有序历史
func (r *MessageRepository) ListAllMessages(ctx context.Context, conversationID string) ([]*domain.Message, error) {
	var dos []MessageDO
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&dos).Error; err != nil {
		return nil, err
	}

	messages := make([]*domain.Message, 0, len(dos))
	for i := range dos {
		messages = append(messages, r.toDomain(&dos[i]))
	}
	return messages, nil
}

// toDataObject 领域对象转数据对象
func (r *MessageRepository) toDataObject(m *domain.Message) *MessageDO {
	mentions, _ := json.Marshal(m.Mentions)
	metadata, _ := json.Marshal(m.Metadata)
	return &MessageDO{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           string(m.Role),
		Content:        m.Content,
		CharacterID:    m.CharacterID,
		MentionsJSON:   string(mentions),
		Tokens:         m.Tokens,
		MetadataJSON:   string(metadata),
		CreatedAt:      m.CreatedAt,
	}
}

// toDomain 数据对象转领域对象
func (r *MessageRepository) toDomain(do *MessageDO) *domain.Message {
	var mentions []string
	_ = json.Unmarshal([]byte(do.MentionsJSON), &mentions)
	metadata := make(map[string]string)
	_ = json.Unmarshal([]byte(do.MetadataJSON), &metadata)
	return &domain.Message{
		ID:             do.ID,
		ConversationID: do.ConversationID,
		Role:           domain.MessageRole(do.Role),
		Content:        do.Content,
		CharacterID:    do.CharacterID,
		Mentions:       mentions,
		Tokens:         do.Tokens,
		Metadata:       metadata,
		CreatedAt:      do.CreatedAt,
	}
}

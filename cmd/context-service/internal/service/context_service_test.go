package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"tavernchat/cmd/context-service/internal/conf"
	"tavernchat/cmd/context-service/internal/domain"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
)

// MockMessageRepository 模拟消息仓储
type MockMessageRepository struct {
	CreateMessageFunc   func(ctx context.Context, message *domain.Message) error
	GetMessageFunc      func(ctx context.Context, id string) (*domain.Message, error)
	ListMessagesFunc    func(ctx context.Context, conversationID string, limit, offset int) ([]*domain.Message, int64, error)
	ListAllMessagesFunc func(ctx context.Context, conversationID string) ([]*domain.Message, error)
}

func (m *MockMessageRepository) CreateMessage(ctx context.Context, message *domain.Message) error {
	if m.CreateMessageFunc != nil {
		return m.CreateMessageFunc(ctx, message)
	}
	return nil
}

func (m *MockMessageRepository) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	if m.GetMessageFunc != nil {
		return m.GetMessageFunc(ctx, id)
	}
	return nil, domain.ErrMessageNotFound
}

func (m *MockMessageRepository) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]*domain.Message, int64, error) {
	if m.ListMessagesFunc != nil {
		return m.ListMessagesFunc(ctx, conversationID, limit, offset)
	}
	return nil, 0, nil
}

func (m *MockMessageRepository) ListAllMessages(ctx context.Context, conversationID string) ([]*domain.Message, error) {
	if m.ListAllMessagesFunc != nil {
		return m.ListAllMessagesFunc(ctx, conversationID)
	}
	return nil, nil
}

// MockConversationRepository 模拟会话仓储
type MockConversationRepository struct {
	CreateConversationFunc func(ctx context.Context, conversation *domain.Conversation) error
	GetConversationFunc    func(ctx context.Context, id string) (*domain.Conversation, error)
}

func (m *MockConversationRepository) CreateConversation(ctx context.Context, conversation *domain.Conversation) error {
	if m.CreateConversationFunc != nil {
		return m.CreateConversationFunc(ctx, conversation)
	}
	return nil
}

func (m *MockConversationRepository) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	if m.GetConversationFunc != nil {
		return m.GetConversationFunc(ctx, id)
	}
	return nil, domain.ErrConversationNotFound
}

// MockCharacterRepository 模拟角色仓储
type MockCharacterRepository struct {
	GetCharacterFunc  func(ctx context.Context, id string) (*domain.CharacterProfile, error)
	SaveCharacterFunc func(ctx context.Context, character *domain.CharacterProfile) error
}

func (m *MockCharacterRepository) GetCharacter(ctx context.Context, id string) (*domain.CharacterProfile, error) {
	if m.GetCharacterFunc != nil {
		return m.GetCharacterFunc(ctx, id)
	}
	return nil, domain.ErrCharacterNotFound
}

func (m *MockCharacterRepository) SaveCharacter(ctx context.Context, character *domain.CharacterProfile) error {
	if m.SaveCharacterFunc != nil {
		return m.SaveCharacterFunc(ctx, character)
	}
	return nil
}

// MockResultCache 内存结果缓存
type MockResultCache struct {
	store map[string]*domain.PruningResult
	sets  int
}

func NewMockResultCache() *MockResultCache {
	return &MockResultCache{store: make(map[string]*domain.PruningResult)}
}

func (m *MockResultCache) Get(ctx context.Context, key string) (*domain.PruningResult, bool) {
	r, ok := m.store[key]
	return r, ok
}

func (m *MockResultCache) Set(ctx context.Context, key string, result *domain.PruningResult, ttl time.Duration) error {
	m.store[key] = result
	m.sets++
	return nil
}

func historyOf(n int) []*domain.Message {
	messages := make([]*domain.Message, 0, n)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < n; i++ {
		messages = append(messages, &domain.Message{
			ID:             fmt.Sprintf("msg-%d", i),
			ConversationID: "conv-1",
			Role:           domain.RoleUser,
			Content:        "hello world",
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		})
	}
	return messages
}

func newTestService(msgRepo *MockMessageRepository, charRepo *MockCharacterRepository, cache domain.ResultCache) *ContextService {
	cfg := conf.DefaultPruningConfig()
	cfg.MaxTokens = 9
	cfg.MinRetainRatio = 0.1
	return NewContextService(msgRepo, &MockConversationRepository{}, charRepo, cache, cfg, log.DefaultLogger)
}

func TestContextService_PruneContext(t *testing.T) {
	msgRepo := &MockMessageRepository{
		ListAllMessagesFunc: func(ctx context.Context, conversationID string) ([]*domain.Message, error) {
			return historyOf(10), nil
		},
	}
	svc := newTestService(msgRepo, &MockCharacterRepository{}, nil)

	result, err := svc.PruneContext(context.Background(), "conv-1", nil)

	assert.NoError(t, err)
	assert.Equal(t, 20, result.TotalTokens)
	assert.LessOrEqual(t, result.RetainedTokens, 9)
	assert.NotEmpty(t, result.KeptMessages)
}

func TestContextService_PruneContextRepositoryError(t *testing.T) {
	msgRepo := &MockMessageRepository{
		ListAllMessagesFunc: func(ctx context.Context, conversationID string) ([]*domain.Message, error) {
			return nil, errors.New("db down")
		},
	}
	svc := newTestService(msgRepo, &MockCharacterRepository{}, nil)

	_, err := svc.PruneContext(context.Background(), "conv-1", nil)
	assert.Error(t, err)
}

func TestContextService_PruneContextMissingCharacter(t *testing.T) {
	// 角色缺失不是错误，按无角色档案继续评分
	msgRepo := &MockMessageRepository{
		ListAllMessagesFunc: func(ctx context.Context, conversationID string) ([]*domain.Message, error) {
			return historyOf(3), nil
		},
	}
	charRepo := &MockCharacterRepository{
		GetCharacterFunc: func(ctx context.Context, id string) (*domain.CharacterProfile, error) {
			return nil, domain.ErrCharacterNotFound
		},
	}
	svc := newTestService(msgRepo, charRepo, nil)

	result, err := svc.PruneContext(context.Background(), "conv-1", &PruneOptions{CharacterID: "ghost"})
	assert.NoError(t, err)
	assert.NotNil(t, result)
}

func TestContextService_PruneContextUsesResultCache(t *testing.T) {
	calls := 0
	msgRepo := &MockMessageRepository{
		ListAllMessagesFunc: func(ctx context.Context, conversationID string) ([]*domain.Message, error) {
			calls++
			return historyOf(10), nil
		},
	}
	cache := NewMockResultCache()
	svc := newTestService(msgRepo, &MockCharacterRepository{}, cache)

	first, err := svc.PruneContext(context.Background(), "conv-1", nil)
	assert.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	// 历史未变化时第二次请求命中缓存
	second, err := svc.PruneContext(context.Background(), "conv-1", nil)
	assert.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, 2, calls)
}

func TestContextService_PruneContextCacheKeyedByTopicHint(t *testing.T) {
	msgRepo := &MockMessageRepository{
		ListAllMessagesFunc: func(ctx context.Context, conversationID string) ([]*domain.Message, error) {
			return historyOf(10), nil
		},
	}
	cache := NewMockResultCache()
	svc := newTestService(msgRepo, &MockCharacterRepository{}, cache)

	// 同一历史、不同话题提示：评分输入不同，不得命中同一条缓存
	first, err := svc.PruneContext(context.Background(), "conv-1", &PruneOptions{TopicHint: "魔法 冒险"})
	assert.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	second, err := svc.PruneContext(context.Background(), "conv-1", &PruneOptions{TopicHint: "任务 委托"})
	assert.NoError(t, err)
	assert.Equal(t, 2, cache.sets)
	assert.NotSame(t, first, second)

	// 相同提示的重复请求仍命中各自的缓存条目
	again, err := svc.PruneContext(context.Background(), "conv-1", &PruneOptions{TopicHint: "魔法 冒险"})
	assert.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, 2, cache.sets)
}

func TestContextService_PruneContextMaxTokensOverride(t *testing.T) {
	msgRepo := &MockMessageRepository{
		ListAllMessagesFunc: func(ctx context.Context, conversationID string) ([]*domain.Message, error) {
			return historyOf(10), nil
		},
	}
	svc := newTestService(msgRepo, &MockCharacterRepository{}, nil)

	// 覆盖预算大到能容纳全部历史
	result, err := svc.PruneContext(context.Background(), "conv-1", &PruneOptions{MaxTokens: 1000})
	assert.NoError(t, err)
	assert.Len(t, result.KeptMessages, 10)
	assert.InDelta(t, 1.0, result.RetainRatio, 1e-9)
}

func TestContextService_AppendMessage(t *testing.T) {
	var created *domain.Message
	msgRepo := &MockMessageRepository{
		CreateMessageFunc: func(ctx context.Context, message *domain.Message) error {
			created = message
			return nil
		},
	}
	svc := newTestService(msgRepo, &MockCharacterRepository{}, nil)

	msg, err := svc.AppendMessage(context.Background(), "conv-1", domain.RoleUser, "你好", "char-1", []string{"艾拉"})

	assert.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "conv-1", msg.ConversationID)
	assert.Equal(t, "char-1", msg.CharacterID)
	assert.Equal(t, created, msg)
}

func TestContextService_AppendMessageInvalidRole(t *testing.T) {
	svc := newTestService(&MockMessageRepository{}, &MockCharacterRepository{}, nil)

	_, err := svc.AppendMessage(context.Background(), "conv-1", "robot", "你好", "", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidMessageRole)
}

func TestContextService_ListMessagesClampsPaging(t *testing.T) {
	var gotLimit, gotOffset int
	msgRepo := &MockMessageRepository{
		ListMessagesFunc: func(ctx context.Context, conversationID string, limit, offset int) ([]*domain.Message, int64, error) {
			gotLimit, gotOffset = limit, offset
			return nil, 0, nil
		},
	}
	svc := newTestService(msgRepo, &MockCharacterRepository{}, nil)

	_, _, err := svc.ListMessages(context.Background(), "conv-1", -5, -3)
	assert.NoError(t, err)
	assert.Equal(t, 50, gotLimit)
	assert.Equal(t, 0, gotOffset)

	_, _, err = svc.ListMessages(context.Background(), "conv-1", 500, 10)
	assert.NoError(t, err)
	assert.Equal(t, 50, gotLimit)
	assert.Equal(t, 10, gotOffset)
}

func TestContextService_CreateAndGetConversation(t *testing.T) {
	store := map[string]*domain.Conversation{}
	convRepo := &MockConversationRepository{
		CreateConversationFunc: func(ctx context.Context, conversation *domain.Conversation) error {
			store[conversation.ID] = conversation
			return nil
		},
		GetConversationFunc: func(ctx context.Context, id string) (*domain.Conversation, error) {
			if c, ok := store[id]; ok {
				return c, nil
			}
			return nil, domain.ErrConversationNotFound
		},
	}
	svc := NewContextService(
		&MockMessageRepository{}, convRepo, &MockCharacterRepository{},
		nil, conf.DefaultPruningConfig(), log.DefaultLogger,
	)

	created, err := svc.CreateConversation(context.Background(), "酒馆夜话")
	assert.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "酒馆夜话", created.Title)

	got, err := svc.GetConversation(context.Background(), created.ID)
	assert.NoError(t, err)
	assert.Equal(t, created, got)

	_, err = svc.GetConversation(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
}

func TestContextService_SaveCharacterValidation(t *testing.T) {
	svc := newTestService(&MockMessageRepository{}, &MockCharacterRepository{}, nil)

	err := svc.SaveCharacter(context.Background(), &domain.CharacterProfile{ID: "", Name: "艾拉"})
	assert.Error(t, err)

	err = svc.SaveCharacter(context.Background(), &domain.CharacterProfile{ID: "c1", Name: ""})
	assert.Error(t, err)

	err = svc.SaveCharacter(context.Background(), &domain.CharacterProfile{ID: "c1", Name: "艾拉"})
	assert.NoError(t, err)
}

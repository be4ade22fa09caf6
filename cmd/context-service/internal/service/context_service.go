package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"tavernchat/cmd/context-service/internal/biz"
	"tavernchat/cmd/context-service/internal/conf"
	"tavernchat/cmd/context-service/internal/domain"

	"github.com/go-kratos/kratos/v2/log"
)

// resultCacheTTL 裁剪结果缓存时长
const resultCacheTTL = 5 * time.Minute

// ContextService 上下文服务。每个会话独占一套引擎实例（分词器、
// 话题分析器、裁剪器），实例内部的缓存不加锁，由会话级互斥保证
// 串行访问。
type ContextService struct {
	messageRepo      domain.MessageRepository
	conversationRepo domain.ConversationRepository // 可为 nil，此时不校验会话存在性
	characterRepo    domain.CharacterRepository
	resultCache      domain.ResultCache // 可为 nil
	cfg              *conf.PruningConfig
	logger           log.Logger
	log              *log.Helper

	mu       sync.Mutex
	sessions map[string]*sessionEngines
}

// sessionEngines 单个会话独占的引擎实例
type sessionEngines struct {
	mu     sync.Mutex
	pruner *biz.ContextPruner
}

// NewContextService 创建上下文服务
func NewContextService(
	messageRepo domain.MessageRepository,
	conversationRepo domain.ConversationRepository,
	characterRepo domain.CharacterRepository,
	resultCache domain.ResultCache,
	cfg *conf.PruningConfig,
	logger log.Logger,
) *ContextService {
	if cfg == nil {
		cfg = conf.DefaultPruningConfig()
	}
	cfg.Normalize()
	return &ContextService{
		messageRepo:      messageRepo,
		conversationRepo: conversationRepo,
		characterRepo:    characterRepo,
		resultCache:      resultCache,
		cfg:              cfg,
		logger:           logger,
		log:              log.NewHelper(log.With(logger, "module", "context-service")),
		sessions:         make(map[string]*sessionEngines),
	}
}

// CreateConversation 创建会话
func (s *ContextService) CreateConversation(ctx context.Context, title string) (*domain.Conversation, error) {
	conversation := domain.NewConversation(title)
	if s.conversationRepo == nil {
		return conversation, nil
	}
	if err := s.conversationRepo.CreateConversation(ctx, conversation); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conversation, nil
}

// GetConversation 查询会话
func (s *ContextService) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	if s.conversationRepo == nil {
		return nil, domain.ErrConversationNotFound
	}
	return s.conversationRepo.GetConversation(ctx, id)
}

// PruneOptions 单次裁剪的可选覆盖项
type PruneOptions struct {
	MaxTokens   int    // >0 时覆盖配置预算
	CharacterID string // 目标角色
	TopicHint   string // 当前话题提示
}

// PruneContext 加载会话历史并执行预算裁剪。核心保证不向调用方抛出
// 算法错误；这里仅有的 error 来自消息存储本身。
func (s *ContextService) PruneContext(
	ctx context.Context,
	conversationID string,
	opts *PruneOptions,
) (*domain.PruningResult, error) {
	if opts == nil {
		opts = &PruneOptions{}
	}

	messages, err := s.messageRepo.ListAllMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	// 角色缺失按中性信号处理，不视为错误
	var character *domain.CharacterProfile
	if opts.CharacterID != "" {
		character, err = s.characterRepo.GetCharacter(ctx, opts.CharacterID)
		if err != nil {
			s.log.WithContext(ctx).Warnf("character %s unavailable, scoring without profile: %v",
				opts.CharacterID, err)
			character = nil
		}
	}

	cacheKey := s.cacheKey(conversationID, messages, opts)
	if s.resultCache != nil && s.cfg.EnableCaching {
		if cached, ok := s.resultCache.Get(ctx, cacheKey); ok {
			biz.ResultCacheTotal.WithLabelValues("hit").Inc()
			return cached, nil
		}
		biz.ResultCacheTotal.WithLabelValues("miss").Inc()
	}

	session := s.session(conversationID, opts.MaxTokens)
	session.mu.Lock()
	result := session.pruner.Prune(ctx, messages, character, opts.TopicHint)
	session.mu.Unlock()

	if s.resultCache != nil && s.cfg.EnableCaching {
		if err := s.resultCache.Set(ctx, cacheKey, result, resultCacheTTL); err != nil {
			s.log.WithContext(ctx).Warnf("cache pruning result: %v", err)
		}
	}
	return result, nil
}

// session 取得（或创建）会话独占的引擎实例
func (s *ContextService) session(conversationID string, maxTokens int) *sessionEngines {
	key := conversationID
	if maxTokens > 0 {
		key = fmt.Sprintf("%s|%d", conversationID, maxTokens)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if engines, ok := s.sessions[key]; ok {
		return engines
	}

	cfg := *s.cfg
	if maxTokens > 0 {
		cfg.MaxTokens = maxTokens
	}
	cfg.Normalize()

	segmenter := biz.NewSegmenter(cfg.MaxCacheSize, s.logger)
	analyzerCfg := biz.DefaultTopicAnalyzerConfig()
	analyzerCfg.ClusterThreshold = cfg.TopicRelevanceThreshold
	analyzerCfg.CharacterWeight = cfg.PersonalityWeight
	analyzerCfg.MaxCacheSize = cfg.MaxCacheSize
	analyzer := biz.NewTopicAnalyzer(segmenter, analyzerCfg, s.logger)

	engines := &sessionEngines{
		pruner: biz.NewContextPruner(&cfg, analyzer, s.logger),
	}
	s.sessions[key] = engines
	return engines
}

// cacheKey 结果缓存键：会话 + 末条消息 + 预算 + 角色 + 话题提示签名。
// 话题提示改变评分，必须参与键
func (s *ContextService) cacheKey(conversationID string, messages []*domain.Message, opts *PruneOptions) string {
	head := ""
	if len(messages) > 0 {
		head = messages[len(messages)-1].ID
	}
	budget := s.cfg.MaxTokens
	if opts.MaxTokens > 0 {
		budget = opts.MaxTokens
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(opts.TopicHint))
	return fmt.Sprintf("prune:%s:%s:%d:%s:%x", conversationID, head, budget, opts.CharacterID, h.Sum64())
}

// AppendMessage 追加一条消息到会话历史
func (s *ContextService) AppendMessage(
	ctx context.Context,
	conversationID string,
	role domain.MessageRole,
	content string,
	characterID string,
	mentions []string,
) (*domain.Message, error) {
	if !domain.ValidRole(role) {
		return nil, domain.ErrInvalidMessageRole
	}

	msg := domain.NewMessage(conversationID, role, content)
	msg.CharacterID = characterID
	msg.Mentions = mentions

	if err := s.messageRepo.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return msg, nil
}

// ListMessages 分页返回会话消息
func (s *ContextService) ListMessages(
	ctx context.Context,
	conversationID string,
	limit, offset int,
) ([]*domain.Message, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.messageRepo.ListMessages(ctx, conversationID, limit, offset)
}

// GetCharacter 查询角色档案
func (s *ContextService) GetCharacter(ctx context.Context, id string) (*domain.CharacterProfile, error) {
	return s.characterRepo.GetCharacter(ctx, id)
}

// SaveCharacter 保存角色档案
func (s *ContextService) SaveCharacter(ctx context.Context, character *domain.CharacterProfile) error {
	if character.ID == "" || character.Name == "" {
		return fmt.Errorf("character id and name are required")
	}
	return s.characterRepo.SaveCharacter(ctx, character)
}

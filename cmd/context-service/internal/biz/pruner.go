package biz

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"tavernchat/cmd/context-service/internal/conf"
	"tavernchat/cmd/context-service/internal/domain"

	"github.com/go-kratos/kratos/v2/log"
)

// topicWindowSize 话题识别回看的消息窗口
const topicWindowSize = 20

// ContextPruner 上下文预算编排器。给定完整消息历史与 Token 预算，
// 产出一个按时间排序、满足预算与最小保留比例的子集；任何内部失败
// 都在这里统一兜底为纯最近窗口策略，绝不向调用方抛出错误。
type ContextPruner struct {
	cfg       *conf.PruningConfig
	analyzer  *TopicAnalyzer
	estimator *TokenEstimator
	emotion   domain.EmotionSignalProvider // 可选
	log       *log.Helper
}

// NewContextPruner 创建裁剪器
func NewContextPruner(cfg *conf.PruningConfig, analyzer *TopicAnalyzer, logger log.Logger) *ContextPruner {
	if cfg == nil {
		cfg = conf.DefaultPruningConfig()
	}
	cfg.Normalize()
	return &ContextPruner{
		cfg:       cfg,
		analyzer:  analyzer,
		estimator: NewTokenEstimator(),
		log:       log.NewHelper(log.With(logger, "module", "context-pruner")),
	}
}

// Prune 执行预算裁剪。计算本身是同步 CPU 工作；超时是建议性的——
// 动态路径与截止时间赛跑，超时即切换兜底窗口。
func (p *ContextPruner) Prune(
	ctx context.Context,
	messages []*domain.Message,
	character *domain.CharacterProfile,
	topicHint string,
) *domain.PruningResult {
	start := time.Now()

	tokens := make([]int, len(messages))
	total := 0
	for i, m := range messages {
		tokens[i] = p.estimator.Estimate(m.Content)
		total += tokens[i]
	}

	// 快速路径：未超预算，原样返回
	if total <= p.cfg.MaxTokens {
		result := &domain.PruningResult{
			KeptMessages:   messages,
			TotalTokens:    total,
			RetainedTokens: total,
			RetainRatio:    1.0,
			Elapsed:        time.Since(start),
			Metadata:       domain.PruningMetadata{Strategy: domain.StrategyDynamic},
		}
		p.observe(result)
		return result
	}

	resultCh := make(chan *domain.PruningResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.log.Warnf("dynamic pruning recovered: %v", r)
				resultCh <- nil
			}
		}()
		res, err := p.pruneDynamic(ctx, messages, tokens, total, character, topicHint, start)
		if err != nil {
			p.log.Warnf("dynamic pruning degraded to fallback: %v", err)
			resultCh <- nil
			return
		}
		resultCh <- res
	}()

	var result *domain.PruningResult
	select {
	case res := <-resultCh:
		if res == nil {
			result = p.pruneFallback(messages, tokens, total, start)
		} else {
			result = res
		}
	case <-time.After(p.cfg.ProcessingTimeout):
		p.log.Warnf("dynamic pruning timed out after %s, using fallback", p.cfg.ProcessingTimeout)
		result = p.pruneFallback(messages, tokens, total, start)
	case <-ctx.Done():
		result = p.pruneFallback(messages, tokens, total, start)
	}

	p.observe(result)
	return result
}

// WithEmotionProvider 注入可选的情感信号提供方，信号折算进情感分量
func (p *ContextPruner) WithEmotionProvider(provider domain.EmotionSignalProvider) *ContextPruner {
	p.emotion = provider
	return p
}

// pruneDynamic 多因子评分路径
func (p *ContextPruner) pruneDynamic(
	ctx context.Context,
	messages []*domain.Message,
	tokens []int,
	total int,
	character *domain.CharacterProfile,
	topicHint string,
	start time.Time,
) (*domain.PruningResult, error) {
	if p.analyzer == nil {
		return nil, fmt.Errorf("topic analyzer not configured")
	}

	// 1. 话题识别：优先使用调用方给定的话题提示
	cacheHitsBefore := p.analyzer.CacheHits()
	topicText := topicHint
	var topicKeywords []string
	window := messages
	if len(window) > topicWindowSize {
		window = window[len(window)-topicWindowSize:]
	}
	topics := p.analyzer.IdentifyTopics(window, 3)
	if len(topics) > 0 {
		topicKeywords = topics[0].Keywords
		if topicText == "" {
			topicText = strings.Join(topicKeywords, " ")
		}
	}

	// 2. 逐条计算重要性评分
	scores := make([]*domain.ImportanceScore, len(messages))
	newest := int64(0)
	for _, m := range messages {
		if ts := m.CreatedAt.Unix(); ts > newest {
			newest = ts
		}
	}
	for i, m := range messages {
		var history []*domain.Message
		if i > 0 {
			history = messages[:i]
		}
		relevance := p.analyzer.AnalyzeTopicRelevance(m, topicText, character, history)

		emotion := p.emotionScore(m)
		if p.emotion != nil {
			if intensity, ok := p.emotion.EmotionIntensity(ctx, m.ID); ok {
				emotion += 0.5 * intensity
				if emotion > emotionCap {
					emotion = emotionCap
				}
			}
		}

		s := &domain.ImportanceScore{
			MessageID:         m.ID,
			BaseWeight:        p.baseScore(m),
			TypeWeight:        p.typeScore(m),
			TimeWeight:        p.timeScore(m, i, len(messages), newest),
			LengthWeight:      p.lengthScore(tokens[i]),
			MentionWeight:     p.mentionScore(m, character),
			EmotionWeight:     emotion,
			TopicWeight:       relevance.FinalScore,
			PersonalityWeight: p.personalityScore(messages, i, character),
			TokenCount:        tokens[i],
		}
		s.FinalScore = weightBase*s.BaseWeight +
			weightType*s.TypeWeight +
			weightTime*s.TimeWeight +
			weightLength*s.LengthWeight +
			weightMention*s.MentionWeight +
			weightEmotion*s.EmotionWeight +
			weightTopic*s.TopicWeight +
			weightPersonality*s.PersonalityWeight
		// 系统消息不参加贪心排序，评分直接取配置的系统优先级
		if m.IsSystem() {
			s.FinalScore = float64(p.cfg.SystemMessagePriority)
		}
		scores[i] = s
	}

	// 3. 选择：系统消息无条件保留并扣减预算
	kept := make(map[int]bool, len(messages))
	remaining := p.cfg.MaxTokens
	for i, m := range messages {
		if m.IsSystem() {
			kept[i] = true
			remaining -= tokens[i]
		}
	}

	// 其余按重要性降序贪心装入，同分按原始顺序（保证确定性）
	order := make([]int, 0, len(messages))
	for i, m := range messages {
		if !m.IsSystem() {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]].FinalScore > scores[order[b]].FinalScore
	})
	for _, i := range order {
		if tokens[i] <= remaining {
			kept[i] = true
			remaining -= tokens[i]
		}
	}

	// 4. 保留下限：不足时从最新往前强制补齐，允许超出名义预算
	floor := int(math.Ceil(p.cfg.MinRetainRatio * float64(len(messages))))
	for i := len(messages) - 1; i >= 0 && len(kept) < floor; i-- {
		if !kept[i] {
			kept[i] = true
		}
	}

	// 5. 恢复时间顺序并汇总诊断
	result := &domain.PruningResult{
		TotalTokens: total,
		Scores:      scores,
		Metadata: domain.PruningMetadata{
			Strategy:      domain.StrategyDynamic,
			TopicKeywords: topicKeywords,
			CacheHits:     p.analyzer.CacheHits() - cacheHitsBefore,
		},
	}
	for i, m := range messages {
		if kept[i] {
			result.KeptMessages = append(result.KeptMessages, m)
			result.RetainedTokens += tokens[i]
		} else {
			result.RemovedMessages = append(result.RemovedMessages, m)
		}
	}
	if len(messages) > 0 {
		result.RetainRatio = float64(len(result.KeptMessages)) / float64(len(messages))
	}
	result.Elapsed = time.Since(start)

	p.log.Infof("context pruned: strategy=dynamic kept=%d removed=%d tokens=%d/%d elapsed=%s",
		len(result.KeptMessages), len(result.RemovedMessages),
		result.RetainedTokens, total, result.Elapsed)
	return result, nil
}

// pruneFallback 纯最近窗口兜底：保留最后 max(minRetainRatio×N,
// budget/平均token) 条消息。该路径保证不会再失败。
func (p *ContextPruner) pruneFallback(
	messages []*domain.Message,
	tokens []int,
	total int,
	start time.Time,
) *domain.PruningResult {
	n := len(messages)
	result := &domain.PruningResult{
		TotalTokens: total,
		Metadata:    domain.PruningMetadata{Strategy: domain.StrategyFallback},
	}
	if n == 0 {
		result.RetainRatio = 1.0
		result.Elapsed = time.Since(start)
		return result
	}

	keep := int(math.Ceil(p.cfg.MinRetainRatio * float64(n)))
	if avg := total / n; avg > 0 {
		if byBudget := p.cfg.MaxTokens / avg; byBudget > keep {
			keep = byBudget
		}
	}
	if keep < 1 {
		keep = 1
	}
	if keep > n {
		keep = n
	}

	cut := n - keep
	result.KeptMessages = messages[cut:]
	result.RemovedMessages = messages[:cut]
	for i := cut; i < n; i++ {
		result.RetainedTokens += tokens[i]
	}
	result.RetainRatio = float64(keep) / float64(n)
	result.Elapsed = time.Since(start)

	p.log.Infof("context pruned: strategy=fallback kept=%d removed=%d tokens=%d/%d",
		keep, cut, result.RetainedTokens, total)
	return result
}

// observe 上报裁剪指标
func (p *ContextPruner) observe(result *domain.PruningResult) {
	strategy := string(result.Metadata.Strategy)
	PruneTotal.WithLabelValues(strategy).Inc()
	PruneDuration.WithLabelValues(strategy).Observe(result.Elapsed.Seconds())
	PruneRetainedTokens.Observe(float64(result.RetainedTokens))
	PruneRetainRatio.Observe(result.RetainRatio)
}

// Config 当前生效的配置
func (p *ContextPruner) Config() *conf.PruningConfig {
	return p.cfg
}

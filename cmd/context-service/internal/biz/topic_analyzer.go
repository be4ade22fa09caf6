package biz

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"

	"tavernchat/cmd/context-service/internal/domain"

	"github.com/go-kratos/kratos/v2/log"
)

// TopicAnalyzerConfig 话题分析器配置
type TopicAnalyzerConfig struct {
	ClusterThreshold float64       // 关键词重叠聚类阈值
	DecayFactor      float64       // 每轮更新的话题权重衰减
	MaxTopicAge      time.Duration // 话题最大存活时长
	MinTopicWeight   float64       // 低于该权重的话题被淘汰
	MaxTrackedTopics int           // 同时跟踪的话题上限
	HistoryWindow    int           // 历史相关性回看条数
	TopicWeight      float64       // 话题分量权重
	CharacterWeight  float64       // 角色分量权重
	HistoryWeight    float64       // 近期分量权重
	KeywordBonus     float64       // 每命中一个话题关键词的加成
	MentionBonus     float64       // 角色被点名时的固定加成
	AtMentionBonus   float64       // 角色被 @ 提及时的固定加成
	TransitionThreshold float64    // 话题切换的置信度阈值
	MaxCacheSize     int
}

// DefaultTopicAnalyzerConfig 创建默认配置
func DefaultTopicAnalyzerConfig() *TopicAnalyzerConfig {
	return &TopicAnalyzerConfig{
		ClusterThreshold:    0.3,
		DecayFactor:         0.9,
		MaxTopicAge:         30 * time.Minute,
		MinTopicWeight:      0.1,
		MaxTrackedTopics:    10,
		HistoryWindow:       10,
		TopicWeight:         0.4,
		CharacterWeight:     0.4,
		HistoryWeight:       0.2,
		KeywordBonus:        0.1,
		MentionBonus:        0.2,
		AtMentionBonus:      0.3,
		TransitionThreshold: 0.6,
		MaxCacheSize:        512,
	}
}

// neutralRelevance 话题或角色数据缺失时按中性信号处理，不视为错误
const neutralRelevance = 0.5

// TopicAnalyzer 话题相关性分析器。跟踪最近消息窗口内的话题簇，
// 话题权重随更新轮次衰减，过老或过弱的话题被淘汰。
type TopicAnalyzer struct {
	segmenter *Segmenter
	cfg       *TopicAnalyzerConfig
	topics    map[string]*domain.Topic
	cache     *relevanceCache
	logger    log.Logger
	log       *log.Helper
}

// NewTopicAnalyzer 创建话题分析器
func NewTopicAnalyzer(segmenter *Segmenter, cfg *TopicAnalyzerConfig, logger log.Logger) *TopicAnalyzer {
	if cfg == nil {
		cfg = DefaultTopicAnalyzerConfig()
	}
	return &TopicAnalyzer{
		segmenter: segmenter,
		cfg:       cfg,
		topics:    make(map[string]*domain.Topic),
		cache:     newRelevanceCache(cfg.MaxCacheSize),
		logger:    logger,
		log:       log.NewHelper(log.With(logger, "module", "topic-analyzer")),
	}
}

// IdentifyTopics 对消息窗口聚类并合并进跟踪中的话题，返回权重最高的 topK 个
func (a *TopicAnalyzer) IdentifyTopics(messages []*domain.Message, topK int) []*domain.Topic {
	now := time.Now()

	// 先衰减既有话题
	for _, t := range a.topics {
		t.Weight *= a.cfg.DecayFactor
	}

	clusters := a.clusterMessages(messages)
	for _, c := range clusters {
		a.mergeCluster(c, now)
	}

	a.evictTopics(now)
	return a.topTopics(topK)
}

// messageCluster 关键词重叠形成的消息簇
type messageCluster struct {
	keywords  map[string]struct{}
	members   []*domain.Message
	coherence float64
}

// clusterMessages 贪心聚类：top 关键词集合 Jaccard 超过阈值即并入；
// 少于两条消息的簇被丢弃
func (a *TopicAnalyzer) clusterMessages(messages []*domain.Message) []*messageCluster {
	engine := NewTFIDFEngine(a.segmenter, a.logger)
	docs := make([]Document, 0, len(messages))
	for _, m := range messages {
		docs = append(docs, Document{ID: m.ID, Text: m.Content})
	}
	vectors, _ := engine.BuildCorpus(docs)

	clusters := make([]*messageCluster, 0, 4)
	for _, m := range messages {
		vec := vectors[m.ID]
		if vec == nil || len(vec.Keywords) == 0 {
			continue
		}
		kwSet := tokenSet(vec.Keywords)

		joined := false
		for _, c := range clusters {
			if jaccard(kwSet, c.keywords) >= a.cfg.ClusterThreshold {
				c.members = append(c.members, m)
				for kw := range kwSet {
					c.keywords[kw] = struct{}{}
				}
				joined = true
				break
			}
		}
		if !joined {
			clusters = append(clusters, &messageCluster{
				keywords: kwSet,
				members:  []*domain.Message{m},
			})
		}
	}

	kept := clusters[:0]
	for _, c := range clusters {
		if len(c.members) < 2 {
			continue
		}
		c.coherence = a.clusterCoherence(c.members)
		kept = append(kept, c)
	}
	return kept
}

// clusterCoherence 簇内成员文本的平均两两相似度
func (a *TopicAnalyzer) clusterCoherence(members []*domain.Message) float64 {
	if len(members) < 2 {
		return 0
	}
	sum, pairs := 0.0, 0
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			sum += a.segmenter.Similarity(members[i].Content, members[j].Content)
			pairs++
		}
	}
	return sum / float64(pairs)
}

// mergeCluster 将新簇并入既有话题或建立新话题。既有话题按创建时间序
// 扫描，新话题 ID 取关键词集合的哈希：相同输入始终产生相同结果
func (a *TopicAnalyzer) mergeCluster(c *messageCluster, now time.Time) {
	weight := float64(len(c.members)) * (0.5 + c.coherence/2)

	merge := func(t *domain.Topic) {
		t.Weight += weight
		t.Coherence = c.coherence
		t.UpdatedAt = now
		t.Keywords = mergeKeywords(t.Keywords, c.keywords)
		for _, m := range c.members {
			t.MessageIDs = appendUnique(t.MessageIDs, m.ID)
		}
	}

	for _, t := range a.orderedTopics() {
		if jaccard(c.keywords, tokenSet(t.Keywords)) >= a.cfg.ClusterThreshold {
			merge(t)
			return
		}
	}

	id := topicID(c.keywords)
	if existing, ok := a.topics[id]; ok {
		merge(existing)
		return
	}

	topic := &domain.Topic{
		ID:        id,
		Keywords:  sortedKeys(c.keywords),
		Weight:    weight,
		Coherence: c.coherence,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, m := range c.members {
		topic.MessageIDs = append(topic.MessageIDs, m.ID)
	}
	a.topics[topic.ID] = topic
}

// topicID 由排序后的关键词集合推导稳定 ID
func topicID(keywords map[string]struct{}) string {
	h := fnv.New64a()
	for _, kw := range sortedKeys(keywords) {
		_, _ = h.Write([]byte(kw))
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("topic-%x", h.Sum64())
}

// orderedTopics 按创建时间（同时间按 ID）返回话题，消除 map 遍历的随机性
func (a *TopicAnalyzer) orderedTopics() []*domain.Topic {
	list := make([]*domain.Topic, 0, len(a.topics))
	for _, t := range a.topics {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
	return list
}

// evictTopics 淘汰过老、过弱的话题，并把跟踪数量压到上限以内
// （先丢权重最低的）
func (a *TopicAnalyzer) evictTopics(now time.Time) {
	for id, t := range a.topics {
		if now.Sub(t.UpdatedAt) > a.cfg.MaxTopicAge || t.Weight < a.cfg.MinTopicWeight {
			delete(a.topics, id)
		}
	}
	for len(a.topics) > a.cfg.MaxTrackedTopics {
		var weakest string
		weakestWeight := 0.0
		first := true
		for id, t := range a.topics {
			if first || t.Weight < weakestWeight || (t.Weight == weakestWeight && id < weakest) {
				weakest = id
				weakestWeight = t.Weight
				first = false
			}
		}
		delete(a.topics, weakest)
	}
}

// topTopics 按权重取前 k 个话题
func (a *TopicAnalyzer) topTopics(k int) []*domain.Topic {
	list := make([]*domain.Topic, 0, len(a.topics))
	for _, t := range a.topics {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Weight != list[j].Weight {
			return list[i].Weight > list[j].Weight
		}
		return list[i].ID < list[j].ID
	})
	if k > 0 && len(list) > k {
		list = list[:k]
	}
	return list
}

// TrackedTopicCount 当前跟踪的话题数
func (a *TopicAnalyzer) TrackedTopicCount() int {
	return len(a.topics)
}

// AnalyzeTopicRelevance 计算消息对话题、角色与近期历史的综合相关性。
// 话题文本或角色缺失按中性 0.5 处理。
func (a *TopicAnalyzer) AnalyzeTopicRelevance(
	msg *domain.Message,
	topicText string,
	character *domain.CharacterProfile,
	history []*domain.Message,
) *domain.RelevanceScore {
	key := a.cacheKey(msg, topicText, character)
	if cached, ok := a.cache.Get(key); ok {
		return cached
	}

	msgTokens := tokenSet(a.segmenter.Segment(msg.Content))

	topicScore, matched := a.topicRelevance(msgTokens, topicText)
	charScore := a.characterRelevance(msg, msgTokens, character)
	histScore := a.historyRelevance(msg, history)

	final := a.cfg.TopicWeight*topicScore +
		a.cfg.CharacterWeight*charScore +
		a.cfg.HistoryWeight*histScore

	score := &domain.RelevanceScore{
		MessageID:          msg.ID,
		TopicRelevance:     topicScore,
		CharacterRelevance: charScore,
		HistoryRelevance:   histScore,
		FinalScore:         final,
		MatchedKeywords:    matched,
		Explanation: fmt.Sprintf("话题相关度 %.2f，角色相关度 %.2f，近期相关度 %.2f",
			topicScore, charScore, histScore),
	}

	a.cache.Put(key, score)
	return score
}

// topicRelevance 话题分量：token 集合 Jaccard 加每个命中关键词的加成，封顶 1.0
func (a *TopicAnalyzer) topicRelevance(msgTokens map[string]struct{}, topicText string) (float64, []string) {
	if strings.TrimSpace(topicText) == "" {
		return neutralRelevance, nil
	}

	topicTokens := tokenSet(a.segmenter.Segment(topicText))
	score := jaccard(msgTokens, topicTokens)

	matched := make([]string, 0, 4)
	for t := range msgTokens {
		if _, ok := topicTokens[t]; ok {
			matched = append(matched, t)
		}
	}
	sort.Strings(matched)

	score += float64(len(matched)) * a.cfg.KeywordBonus
	if score > 1 {
		score = 1
	}
	return score, matched
}

// characterRelevance 角色分量：与合成角色描述的文本相似度，
// 加点名/@提及与兴趣关键词加成，封顶 1.0
func (a *TopicAnalyzer) characterRelevance(
	msg *domain.Message,
	msgTokens map[string]struct{},
	character *domain.CharacterProfile,
) float64 {
	if character == nil || character.Name == "" {
		return neutralRelevance
	}

	score := a.segmenter.Similarity(msg.Content, character.Description())

	if strings.Contains(msg.Content, "@"+character.Name) {
		score += a.cfg.AtMentionBonus
	} else if strings.Contains(msg.Content, character.Name) || containsName(msg.Mentions, character.Name) {
		score += a.cfg.MentionBonus
	}

	for _, interest := range character.Interests {
		if _, ok := msgTokens[strings.ToLower(interest)]; ok {
			score += a.cfg.KeywordBonus
		}
	}

	if score > 1 {
		score = 1
	}
	return score
}

// historyRelevance 近期分量：与最近 N 条前文相似度的最大值与均值混合
func (a *TopicAnalyzer) historyRelevance(msg *domain.Message, history []*domain.Message) float64 {
	if len(history) == 0 {
		return neutralRelevance
	}

	window := history
	if len(window) > a.cfg.HistoryWindow {
		window = window[len(window)-a.cfg.HistoryWindow:]
	}

	maxSim, sum, count := 0.0, 0.0, 0
	for _, h := range window {
		if h.ID == msg.ID {
			continue
		}
		sim := a.segmenter.Similarity(msg.Content, h.Content)
		if sim > maxSim {
			maxSim = sim
		}
		sum += sim
		count++
	}
	if count == 0 {
		return neutralRelevance
	}
	return 0.6*maxSim + 0.4*(sum/float64(count))
}

// DetectTopicTransition 检测话题切换：两个最高权重话题关键词重叠低、
// 新话题权重占比高时判定为切换
func (a *TopicAnalyzer) DetectTopicTransition(messages []*domain.Message) *domain.TopicTransition {
	topics := a.IdentifyTopics(messages, a.cfg.MaxTrackedTopics)
	if len(topics) < 2 {
		return &domain.TopicTransition{Detected: false}
	}

	first, second := topics[0], topics[1]
	older, newer := first, second
	if second.UpdatedAt.Before(first.UpdatedAt) {
		older, newer = second, first
	}

	overlap := jaccard(tokenSet(older.Keywords), tokenSet(newer.Keywords))
	ratio := 0.0
	if older.Weight > 0 {
		ratio = newer.Weight / older.Weight
	}
	if ratio > 2 {
		ratio = 2
	}

	confidence := 0.5*(1-overlap) + 0.5*(ratio/2)

	return &domain.TopicTransition{
		Detected:   confidence >= a.cfg.TransitionThreshold,
		FromTopic:  older,
		ToTopic:    newer,
		Confidence: confidence,
	}
}

// CacheHits 相关性缓存命中次数
func (a *TopicAnalyzer) CacheHits() int {
	return a.cache.hits
}

// cacheKey 缓存键：消息ID + 话题签名 + 角色ID
func (a *TopicAnalyzer) cacheKey(msg *domain.Message, topicText string, character *domain.CharacterProfile) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(topicText))
	charID := ""
	if character != nil {
		charID = character.ID
	}
	return fmt.Sprintf("%s|%x|%s", msg.ID, h.Sum64(), charID)
}

// relevanceCache 有界相关性评分缓存，淘汰策略与分词缓存一致
type relevanceCache struct {
	entries map[string]*domain.RelevanceScore
	keys    []string
	maxSize int
	hits    int
}

func newRelevanceCache(maxSize int) *relevanceCache {
	if maxSize <= 0 {
		maxSize = 512
	}
	return &relevanceCache{
		entries: make(map[string]*domain.RelevanceScore, maxSize),
		keys:    make([]string, 0, maxSize),
		maxSize: maxSize,
	}
}

func (c *relevanceCache) Get(key string) (*domain.RelevanceScore, bool) {
	v, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return v, ok
}

func (c *relevanceCache) Put(key string, value *domain.RelevanceScore) {
	if _, exists := c.entries[key]; exists {
		c.entries[key] = value
		return
	}
	if len(c.keys) >= c.maxSize {
		half := (len(c.keys) + 1) / 2
		for _, k := range c.keys[:half] {
			delete(c.entries, k)
		}
		c.keys = append(c.keys[:0], c.keys[half:]...)
	}
	c.entries[key] = value
	c.keys = append(c.keys, key)
}

func mergeKeywords(existing []string, add map[string]struct{}) []string {
	set := tokenSet(existing)
	for kw := range add {
		set[kw] = struct{}{}
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func appendUnique(list []string, v string) []string {
	for _, item := range list {
		if item == v {
			return list
		}
	}
	return append(list, v)
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

package biz

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/go-kratos/kratos/v2/log"
)

// Tokenizer 分词能力接口，评分与选择逻辑只依赖该接口
type Tokenizer interface {
	Segment(text string) []string
}

// Keyword 关键词及其词频得分
type Keyword struct {
	Term      string
	Frequency int
	Score     float64
}

// Segmenter 轻量级分词器：按文种切分字符流，中文串做贪心词典匹配，
// 其余按空白切分，最后过滤停用词。分词永不失败——内部异常时退化为
// 把整段输入当作单个 token。
type Segmenter struct {
	dict      map[string]struct{}
	stopwords map[string]struct{}
	cache     *boundedCache
	log       *log.Helper
}

// NewSegmenter 创建分词器
func NewSegmenter(maxCacheSize int, logger log.Logger) *Segmenter {
	if maxCacheSize <= 0 {
		maxCacheSize = 512
	}
	return &Segmenter{
		dict:      newPhraseDict(),
		stopwords: newStopwordSet(),
		cache:     newBoundedCache(maxCacheSize),
		log:       log.NewHelper(log.With(logger, "module", "segmenter")),
	}
}

// Segment 将文本切分为有序 token 序列
func (s *Segmenter) Segment(text string) (tokens []string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Warnf("segmentation recovered: %v", r)
			tokens = []string{text}
		}
	}()

	if text == "" {
		return nil
	}
	if cached, ok := s.cache.Get(text); ok {
		out := make([]string, len(cached))
		copy(out, cached)
		return out
	}

	cleaned := stripPunctuation(text)
	tokens = make([]string, 0, len(cleaned)/2)

	for _, run := range splitScriptRuns(cleaned) {
		if run.han {
			tokens = append(tokens, s.segmentHanRun(run.text)...)
		} else {
			for _, w := range strings.Fields(run.text) {
				tokens = append(tokens, strings.ToLower(w))
			}
		}
	}

	filtered := tokens[:0]
	for _, t := range tokens {
		if t == "" {
			continue
		}
		if _, stop := s.stopwords[t]; stop {
			continue
		}
		filtered = append(filtered, t)
	}
	tokens = filtered

	stored := make([]string, len(tokens))
	copy(stored, tokens)
	s.cache.Put(text, stored)
	return tokens
}

// segmentHanRun 对连续中文串做贪心匹配：先试三字词，再试两字词，
// 都不命中时退化为单字
func (s *Segmenter) segmentHanRun(run string) []string {
	runes := []rune(run)
	tokens := make([]string, 0, len(runes))
	for i := 0; i < len(runes); {
		if i+3 <= len(runes) {
			if tri := string(runes[i : i+3]); s.inDict(tri) {
				tokens = append(tokens, tri)
				i += 3
				continue
			}
		}
		if i+2 <= len(runes) {
			if bi := string(runes[i : i+2]); s.inDict(bi) {
				tokens = append(tokens, bi)
				i += 2
				continue
			}
		}
		tokens = append(tokens, string(runes[i]))
		i++
	}
	return tokens
}

func (s *Segmenter) inDict(w string) bool {
	_, ok := s.dict[w]
	return ok
}

// ExtractKeywords 提取 top-k 关键词，score = freq × log(total/freq)，
// 同分按首次出现顺序
func (s *Segmenter) ExtractKeywords(text string, k int) []Keyword {
	tokens := s.Segment(text)
	if len(tokens) == 0 || k <= 0 {
		return nil
	}

	freq := make(map[string]int, len(tokens))
	order := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, seen := freq[t]; !seen {
			order = append(order, t)
		}
		freq[t]++
	}

	total := float64(len(tokens))
	keywords := make([]Keyword, 0, len(order))
	for _, term := range order {
		f := freq[term]
		keywords = append(keywords, Keyword{
			Term:      term,
			Frequency: f,
			Score:     float64(f) * math.Log(total/float64(f)),
		})
	}

	sort.SliceStable(keywords, func(i, j int) bool {
		return keywords[i].Score > keywords[j].Score
	})
	if len(keywords) > k {
		keywords = keywords[:k]
	}
	return keywords
}

// Similarity 两段文本 token 集合的 Jaccard 相似度
func (s *Segmenter) Similarity(a, b string) float64 {
	return jaccard(tokenSet(s.Segment(a)), tokenSet(s.Segment(b)))
}

// CacheSize 当前缓存条目数
func (s *Segmenter) CacheSize() int {
	return s.cache.Len()
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// stripPunctuation 去除中英文标点，替换为空格以保留边界
func stripPunctuation(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			sb.WriteRune(' ')
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// scriptRun 同一文种的连续字符串
type scriptRun struct {
	text string
	han  bool
}

// splitScriptRuns 按中文/非中文切分字符流
func splitScriptRuns(text string) []scriptRun {
	runs := make([]scriptRun, 0, 4)
	var sb strings.Builder
	current := false
	started := false

	flush := func() {
		if sb.Len() > 0 {
			runs = append(runs, scriptRun{text: sb.String(), han: current})
			sb.Reset()
		}
	}

	for _, r := range text {
		isHan := unicode.Is(unicode.Han, r)
		if started && isHan != current {
			flush()
		}
		current = isHan
		started = true
		sb.WriteRune(r)
	}
	flush()
	return runs
}

// boundedCache 插入序的有界缓存；写满时淘汰最旧的一半条目
// （廉价近似，不是严格 LRU）
type boundedCache struct {
	entries map[string][]string
	keys    []string
	maxSize int
}

func newBoundedCache(maxSize int) *boundedCache {
	return &boundedCache{
		entries: make(map[string][]string, maxSize),
		keys:    make([]string, 0, maxSize),
		maxSize: maxSize,
	}
}

func (c *boundedCache) Get(key string) ([]string, bool) {
	v, ok := c.entries[key]
	return v, ok
}

func (c *boundedCache) Put(key string, value []string) {
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

func (c *boundedCache) Len() int {
	return len(c.entries)
}

package biz

import (
	"math"
	"sort"

	"github.com/go-kratos/kratos/v2/log"
)

// Document 统计引擎的输入文档
type Document struct {
	ID   string
	Text string
}

// DocumentVector 稀疏加权向量快照
type DocumentVector struct {
	ID       string
	Weights  map[string]float64
	Norm     float64
	Keywords []string // 按权重排序的 top 关键词
}

// CorpusStats 语料统计
type CorpusStats struct {
	DocumentCount  int
	VocabularySize int
}

// SimilarDocument 相似文档及得分
type SimilarDocument struct {
	ID    string
	Score float64
}

// 相似度计算方式
const (
	SimilarityCosine  = "cosine"
	SimilarityJaccard = "jaccard"
)

const vectorKeywordCount = 10

// TFIDFEngine 文档统计引擎。内部只保存每篇文档的原始词频与全局
// 文档频率；IDF 和权重向量在查询时从当前 DF 即时推导，语料一旦
// 增删，相关性立即反映最新状态。
type TFIDFEngine struct {
	segmenter *Segmenter
	docTerms  map[string]map[string]int // docID -> term -> 原始词频
	docOrder  []string                  // 保持注册顺序，保证确定性
	df        map[string]int
	log       *log.Helper
}

// NewTFIDFEngine 创建统计引擎
func NewTFIDFEngine(segmenter *Segmenter, logger log.Logger) *TFIDFEngine {
	return &TFIDFEngine{
		segmenter: segmenter,
		docTerms:  make(map[string]map[string]int),
		docOrder:  make([]string, 0, 16),
		df:        make(map[string]int),
		log:       log.NewHelper(log.With(logger, "module", "tfidf")),
	}
}

// BuildCorpus 注册整批文档并返回各文档的向量快照与语料统计
func (e *TFIDFEngine) BuildCorpus(docs []Document) (map[string]*DocumentVector, *CorpusStats) {
	e.docTerms = make(map[string]map[string]int, len(docs))
	e.docOrder = e.docOrder[:0]
	e.df = make(map[string]int)

	for _, doc := range docs {
		e.register(doc.ID, doc.Text)
	}

	vectors := make(map[string]*DocumentVector, len(e.docOrder))
	for _, id := range e.docOrder {
		vectors[id] = e.Vector(id)
	}
	return vectors, e.Stats()
}

// AddDocument 增量添加一篇文档
func (e *TFIDFEngine) AddDocument(id, text string) {
	if _, exists := e.docTerms[id]; exists {
		e.RemoveDocument(id)
	}
	e.register(id, text)
}

// RemoveDocument 增量移除一篇文档；某词最后一次出现被移除时，
// 必须同时从词表与 DF 中删除
func (e *TFIDFEngine) RemoveDocument(id string) {
	terms, exists := e.docTerms[id]
	if !exists {
		return
	}
	for term := range terms {
		e.df[term]--
		if e.df[term] <= 0 {
			delete(e.df, term)
		}
	}
	delete(e.docTerms, id)
	for i, docID := range e.docOrder {
		if docID == id {
			e.docOrder = append(e.docOrder[:i], e.docOrder[i+1:]...)
			break
		}
	}
}

func (e *TFIDFEngine) register(id, text string) {
	counts := make(map[string]int)
	for _, token := range e.segmenter.Segment(text) {
		counts[token]++
	}
	e.docTerms[id] = counts
	e.docOrder = append(e.docOrder, id)
	for term := range counts {
		e.df[term]++
	}
}

// IDF 平滑逆文档频率：log(N/(DF+1)) + 1，恒为正
func (e *TFIDFEngine) IDF(term string) float64 {
	n := len(e.docTerms)
	if n == 0 {
		return 0
	}
	return math.Log(float64(n)/float64(e.df[term]+1)) + 1
}

// Vector 从当前 DF 即时推导文档向量：TF = log(1+count)，weight = TF×IDF
func (e *TFIDFEngine) Vector(id string) *DocumentVector {
	counts, exists := e.docTerms[id]
	if !exists {
		return nil
	}

	weights := make(map[string]float64, len(counts))
	sumSquares := 0.0
	for term, count := range counts {
		w := math.Log(1+float64(count)) * e.IDF(term)
		if w == 0 {
			continue
		}
		weights[term] = w
		sumSquares += w * w
	}

	return &DocumentVector{
		ID:       id,
		Weights:  weights,
		Norm:     math.Sqrt(sumSquares),
		Keywords: topKeywords(weights, vectorKeywordCount),
	}
}

// CosineSimilarity 两文档向量的余弦相似度；任一范数为 0 时返回 0
func (e *TFIDFEngine) CosineSimilarity(id1, id2 string) float64 {
	v1, v2 := e.Vector(id1), e.Vector(id2)
	if v1 == nil || v2 == nil || v1.Norm == 0 || v2.Norm == 0 {
		return 0
	}
	// 遍历较小的向量
	small, large := v1.Weights, v2.Weights
	if len(small) > len(large) {
		small, large = large, small
	}
	dot := 0.0
	for term, w := range small {
		if w2, ok := large[term]; ok {
			dot += w * w2
		}
	}
	return dot / (v1.Norm * v2.Norm)
}

// JaccardSimilarity 两文档词项集合的 Jaccard 相似度（忽略权重）
func (e *TFIDFEngine) JaccardSimilarity(id1, id2 string) float64 {
	t1, ok1 := e.docTerms[id1]
	t2, ok2 := e.docTerms[id2]
	if !ok1 || !ok2 {
		return 0
	}
	s1 := make(map[string]struct{}, len(t1))
	for term := range t1 {
		s1[term] = struct{}{}
	}
	s2 := make(map[string]struct{}, len(t2))
	for term := range t2 {
		s2[term] = struct{}{}
	}
	return jaccard(s1, s2)
}

// FindMostSimilar 返回与指定文档最相似的 k 篇其他文档
func (e *TFIDFEngine) FindMostSimilar(id string, k int, method string) []SimilarDocument {
	if _, exists := e.docTerms[id]; !exists || k <= 0 {
		return nil
	}

	results := make([]SimilarDocument, 0, len(e.docOrder)-1)
	for _, other := range e.docOrder {
		if other == id {
			continue
		}
		var score float64
		switch method {
		case SimilarityJaccard:
			score = e.JaccardSimilarity(id, other)
		default:
			score = e.CosineSimilarity(id, other)
		}
		results = append(results, SimilarDocument{ID: other, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// Stats 当前语料统计
func (e *TFIDFEngine) Stats() *CorpusStats {
	return &CorpusStats{
		DocumentCount:  len(e.docTerms),
		VocabularySize: len(e.df),
	}
}

// DocumentCount 已注册文档数
func (e *TFIDFEngine) DocumentCount() int {
	return len(e.docTerms)
}

// HasTerm 词项是否仍在词表中
func (e *TFIDFEngine) HasTerm(term string) bool {
	_, ok := e.df[term]
	return ok
}

// topKeywords 按权重取前 k 个词项，同权重按字典序保证确定性
func topKeywords(weights map[string]float64, k int) []string {
	terms := make([]string, 0, len(weights))
	for term := range weights {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		wi, wj := weights[terms[i]], weights[terms[j]]
		if wi != wj {
			return wi > wj
		}
		return terms[i] < terms[j]
	})
	if len(terms) > k {
		terms = terms[:k]
	}
	return terms
}

package biz

import (
	"math"
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
)

func newTestEngine() *TFIDFEngine {
	return NewTFIDFEngine(NewSegmenter(100, log.DefaultLogger), log.DefaultLogger)
}

func TestTFIDF_BuildCorpus(t *testing.T) {
	engine := newTestEngine()

	vectors, stats := engine.BuildCorpus([]Document{
		{ID: "d1", Text: "魔法 冒险"},
		{ID: "d2", Text: "魔法 酒馆"},
		{ID: "d3", Text: "任务 委托"},
	})

	assert.Equal(t, 3, stats.DocumentCount)
	assert.Equal(t, 5, stats.VocabularySize)
	assert.Len(t, vectors, 3)
	assert.Contains(t, vectors["d1"].Weights, "魔法")
	assert.Contains(t, vectors["d1"].Weights, "冒险")
	assert.Greater(t, vectors["d1"].Norm, 0.0)
}

func TestTFIDF_IDFSmoothing(t *testing.T) {
	engine := newTestEngine()
	engine.BuildCorpus([]Document{
		{ID: "d1", Text: "魔法 冒险"},
		{ID: "d2", Text: "魔法 酒馆"},
		{ID: "d3", Text: "任务 委托"},
	})

	// 全量出现的词 IDF 仍为正；稀有词 IDF 更高
	common := engine.IDF("魔法")
	rare := engine.IDF("任务")
	assert.Greater(t, common, 0.0)
	assert.Greater(t, rare, common)

	// 未登录词 DF 视为 0
	assert.Greater(t, engine.IDF("不存在"), rare)
}

func TestTFIDF_IDFOfUbiquitousTerm(t *testing.T) {
	engine := newTestEngine()
	engine.BuildCorpus([]Document{
		{ID: "d1", Text: "魔法 冒险"},
		{ID: "d2", Text: "魔法 酒馆"},
		{ID: "d3", Text: "魔法 委托"},
	})

	// 出现在全部 N 篇文档中的词取到最小 IDF：log(N/(N+1))+1，仍为正
	assert.InDelta(t, math.Log(3.0/4.0)+1, engine.IDF("魔法"), 1e-9)
	assert.Greater(t, engine.IDF("魔法"), 0.0)
}

func TestTFIDF_CosineSimilarity(t *testing.T) {
	engine := newTestEngine()
	engine.BuildCorpus([]Document{
		{ID: "d1", Text: "魔法 冒险"},
		{ID: "d2", Text: "魔法 酒馆"},
		{ID: "d3", Text: "任务 委托"},
	})

	// 与自身的余弦相似度为 1
	assert.InDelta(t, 1.0, engine.CosineSimilarity("d1", "d1"), 1e-9)

	// 有共同词项的文档相似度为正，无共同词项为 0
	assert.Greater(t, engine.CosineSimilarity("d1", "d2"), 0.0)
	assert.InDelta(t, 0.0, engine.CosineSimilarity("d1", "d3"), 1e-9)

	// 未注册文档为 0
	assert.InDelta(t, 0.0, engine.CosineSimilarity("d1", "missing"), 1e-9)
}

func TestTFIDF_JaccardSimilarity(t *testing.T) {
	engine := newTestEngine()
	engine.BuildCorpus([]Document{
		{ID: "d1", Text: "魔法 冒险"},
		{ID: "d2", Text: "魔法 冒险"},
		{ID: "d3", Text: "任务 委托"},
	})

	assert.InDelta(t, 1.0, engine.JaccardSimilarity("d1", "d2"), 1e-9)
	assert.InDelta(t, 0.0, engine.JaccardSimilarity("d1", "d3"), 1e-9)

	// 文本完全相同的两篇文档余弦相似度同样为 1
	assert.InDelta(t, 1.0, engine.CosineSimilarity("d1", "d2"), 1e-9)
}

func TestTFIDF_IncrementalAddRemove(t *testing.T) {
	engine := newTestEngine()
	engine.BuildCorpus([]Document{
		{ID: "d1", Text: "魔法 冒险"},
		{ID: "d2", Text: "任务 委托"},
	})

	idfBefore := engine.IDF("魔法")

	// 新文档不含"魔法"，语料变大而 DF 不变，IDF 上升
	engine.AddDocument("d3", "酒馆 旅店")
	assert.Equal(t, 3, engine.DocumentCount())
	assert.Greater(t, engine.IDF("魔法"), idfBefore)

	// 移除最后一篇包含某词的文档后，该词从词表中消失
	engine.RemoveDocument("d2")
	assert.Equal(t, 2, engine.DocumentCount())
	assert.False(t, engine.HasTerm("任务"))
	assert.False(t, engine.HasTerm("委托"))
	assert.True(t, engine.HasTerm("魔法"))

	// 移除不存在的文档是空操作
	engine.RemoveDocument("missing")
	assert.Equal(t, 2, engine.DocumentCount())
}

func TestTFIDF_AddReplacesExisting(t *testing.T) {
	engine := newTestEngine()
	engine.AddDocument("d1", "魔法 冒险")
	engine.AddDocument("d1", "任务 委托")

	assert.Equal(t, 1, engine.DocumentCount())
	assert.False(t, engine.HasTerm("魔法"))
	assert.True(t, engine.HasTerm("任务"))
}

func TestTFIDF_VectorReflectsCurrentCorpus(t *testing.T) {
	engine := newTestEngine()
	engine.BuildCorpus([]Document{
		{ID: "d1", Text: "魔法 冒险"},
		{ID: "d2", Text: "魔法 酒馆"},
	})

	before := engine.Vector("d1").Weights["魔法"]

	// 语料变化后，同一文档的向量即时反映最新 DF
	engine.AddDocument("d3", "魔法 任务")
	after := engine.Vector("d1").Weights["魔法"]
	assert.NotEqual(t, before, after)

	assert.Nil(t, engine.Vector("missing"))
}

func TestTFIDF_FindMostSimilar(t *testing.T) {
	engine := newTestEngine()
	engine.BuildCorpus([]Document{
		{ID: "d1", Text: "魔法 冒险 酒馆"},
		{ID: "d2", Text: "魔法 冒险 任务"},
		{ID: "d3", Text: "城市 村庄"},
	})

	results := engine.FindMostSimilar("d1", 2, SimilarityCosine)
	assert.Len(t, results, 2)
	assert.Equal(t, "d2", results[0].ID)
	assert.Greater(t, results[0].Score, results[1].Score)

	// Jaccard 方式同样以 d2 最相似
	results = engine.FindMostSimilar("d1", 1, SimilarityJaccard)
	assert.Len(t, results, 1)
	assert.Equal(t, "d2", results[0].ID)

	assert.Nil(t, engine.FindMostSimilar("missing", 2, SimilarityCosine))
	assert.Nil(t, engine.FindMostSimilar("d1", 0, SimilarityCosine))
}

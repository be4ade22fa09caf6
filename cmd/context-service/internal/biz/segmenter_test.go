package biz

import (
	"fmt"
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
)

func TestSegmenter_ChineseGreedyMatch(t *testing.T) {
	s := NewSegmenter(100, log.DefaultLogger)

	// "你好"在词典中，"世""界"退化为单字
	tokens := s.Segment("你好世界")
	assert.Equal(t, []string{"你好", "世", "界"}, tokens)
}

func TestSegmenter_MixedScript(t *testing.T) {
	s := NewSegmenter(100, log.DefaultLogger)

	tokens := s.Segment("你好 Hello World")
	assert.Equal(t, []string{"你好", "hello", "world"}, tokens)
}

func TestSegmenter_StopwordsFiltered(t *testing.T) {
	s := NewSegmenter(100, log.DefaultLogger)

	tokens := s.Segment("the cat is on the mat")
	assert.Equal(t, []string{"cat", "mat"}, tokens)

	// 中文停用词同样被过滤
	tokens = s.Segment("魔法的冒险")
	assert.Equal(t, []string{"魔法", "冒险"}, tokens)
}

func TestSegmenter_PunctuationAsBoundary(t *testing.T) {
	s := NewSegmenter(100, log.DefaultLogger)

	tokens := s.Segment("你好，朋友！hello?world")
	assert.Equal(t, []string{"你好", "朋友", "hello", "world"}, tokens)
}

func TestSegmenter_EmptyInput(t *testing.T) {
	s := NewSegmenter(100, log.DefaultLogger)

	assert.Nil(t, s.Segment(""))
	assert.Empty(t, s.Segment("，。！？"))
}

func TestSegmenter_Deterministic(t *testing.T) {
	s := NewSegmenter(100, log.DefaultLogger)
	text := "酒馆里的冒险家在聊聊天，讲故事"

	first := s.Segment(text)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, s.Segment(text))
	}
}

func TestSegmenter_CacheDoesNotAliasResult(t *testing.T) {
	s := NewSegmenter(100, log.DefaultLogger)
	text := "魔法冒险"

	first := s.Segment(text)
	first[0] = "mutated"

	// 调用方篡改返回值不应污染缓存
	second := s.Segment(text)
	assert.NotEqual(t, "mutated", second[0])
}

func TestSegmenter_ExtractKeywords(t *testing.T) {
	s := NewSegmenter(100, log.DefaultLogger)

	// 魔法×3 冒险×2 酒馆×1，total=6
	// score(魔法)=3·ln2≈2.08 score(冒险)=2·ln3≈2.20 score(酒馆)=ln6≈1.79
	keywords := s.ExtractKeywords("魔法 魔法 魔法 冒险 冒险 酒馆", 3)
	assert.Len(t, keywords, 3)
	assert.Equal(t, "冒险", keywords[0].Term)
	assert.Equal(t, "魔法", keywords[1].Term)
	assert.Equal(t, "酒馆", keywords[2].Term)
	assert.Equal(t, 2, keywords[0].Frequency)
}

func TestSegmenter_ExtractKeywordsTopK(t *testing.T) {
	s := NewSegmenter(100, log.DefaultLogger)

	keywords := s.ExtractKeywords("魔法 冒险 酒馆 任务 委托", 2)
	assert.Len(t, keywords, 2)

	assert.Nil(t, s.ExtractKeywords("魔法", 0))
	assert.Nil(t, s.ExtractKeywords("", 3))
}

func TestSegmenter_Similarity(t *testing.T) {
	s := NewSegmenter(100, log.DefaultLogger)

	// 自身相似度为 1
	assert.InDelta(t, 1.0, s.Similarity("魔法与冒险", "魔法与冒险"), 1e-9)

	// 无共同词项为 0
	assert.InDelta(t, 0.0, s.Similarity("魔法冒险", "任务委托"), 1e-9)

	// 部分重叠介于两者之间
	sim := s.Similarity("魔法冒险", "魔法酒馆")
	assert.Greater(t, sim, 0.0)
	assert.Less(t, sim, 1.0)
}

func TestBoundedCache_EvictsOldestHalf(t *testing.T) {
	c := newBoundedCache(4)

	for i := 0; i < 4; i++ {
		c.Put(fmt.Sprintf("k%d", i), []string{"v"})
	}
	assert.Equal(t, 4, c.Len())

	// 第五次写入触发淘汰最旧的一半
	c.Put("k4", []string{"v"})
	assert.LessOrEqual(t, c.Len(), 3)

	_, ok := c.Get("k0")
	assert.False(t, ok)
	_, ok = c.Get("k4")
	assert.True(t, ok)
}

func TestBoundedCache_SizeOne(t *testing.T) {
	c := newBoundedCache(1)

	c.Put("a", []string{"1"})
	c.Put("b", []string{"2"})
	c.Put("c", []string{"3"})
	assert.Equal(t, 1, c.Len())

	_, ok := c.Get("c")
	assert.True(t, ok)
}

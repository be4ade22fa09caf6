package biz

import (
	"math"
	"unicode"
)

// token 成本权重：中文字符 1.5，词状 token 1.0，其余符号 0.5
const (
	costHanRune  = 1.5
	costWordLike = 1.0
	costSymbol   = 0.5
)

// TokenEstimator 按字符类别估算消息的 token 成本
type TokenEstimator struct{}

// NewTokenEstimator 创建估算器
func NewTokenEstimator() *TokenEstimator {
	return &TokenEstimator{}
}

// Estimate 估算文本的 token 数，向上取整
func (e *TokenEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}

	cost := 0.0
	inWord := false
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			cost += costHanRune
			inWord = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			// 连续的字母数字算作一个词状 token
			if !inWord {
				cost += costWordLike
				inWord = true
			}
		case unicode.IsSpace(r):
			inWord = false
		default:
			cost += costSymbol
			inWord = false
		}
	}
	return int(math.Ceil(cost))
}

// EstimateMessages 估算消息列表的总 token 数
func (e *TokenEstimator) EstimateMessages(contents []string) int {
	total := 0
	for _, c := range contents {
		total += e.Estimate(c)
	}
	return total
}

package biz

import (
	"math"
	"strings"
	"unicode"

	"tavernchat/cmd/context-service/internal/domain"
)

// 八个重要性分量的固定权重
const (
	weightBase        = 0.15
	weightType        = 0.15
	weightTime        = 0.15
	weightLength      = 0.08
	weightMention     = 0.12
	weightEmotion     = 0.10
	weightTopic       = 0.15
	weightPersonality = 0.10
)

// 角色先验
var rolePrior = map[domain.MessageRole]float64{
	domain.RoleSystem:    1.0,
	domain.RoleUser:      0.8,
	domain.RoleAssistant: 0.6,
}

// 提及权重：@提及 2.0，点名 1.5，未提及 1.0
const (
	mentionAt   = 2.0
	mentionName = 1.5
	mentionNone = 1.0
)

const (
	emotionCap        = 2.5
	recentBonusWindow = 5
)

// emotionLexicon 情感词表（中英混合）
var emotionLexicon = []string{
	"开心", "高兴", "快乐", "兴奋", "激动", "难过", "伤心", "悲伤",
	"生气", "愤怒", "讨厌", "害怕", "恐惧", "紧张", "惊讶", "震惊",
	"喜欢", "爱", "恨", "担心", "委屈", "失望", "绝望", "幸福",
	"happy", "glad", "excited", "sad", "angry", "furious", "hate",
	"love", "afraid", "scared", "terrified", "surprised", "shocked",
	"worried", "disappointed", "amazing", "terrible", "wonderful",
}

// baseScore 角色先验分量
func (p *ContextPruner) baseScore(msg *domain.Message) float64 {
	if prior, ok := rolePrior[msg.Role]; ok {
		return prior
	}
	return rolePrior[domain.RoleAssistant]
}

// typeScore 可配置的角色类型权重分量
func (p *ContextPruner) typeScore(msg *domain.Message) float64 {
	switch msg.Role {
	case domain.RoleSystem:
		return p.cfg.SystemMessageWeight
	case domain.RoleUser:
		return p.cfg.UserMessageWeight
	default:
		return p.cfg.AIMessageWeight
	}
}

// timeScore 时间分量：窗口内位置占比 × 按小时的指数衰减 × 最近消息加成。
// 衰减基准取窗口内最新消息的时间，保证同一输入始终得到同一评分。
func (p *ContextPruner) timeScore(msg *domain.Message, index, total int, newest int64) float64 {
	position := float64(index+1) / float64(total)

	hours := float64(newest-msg.CreatedAt.Unix()) / 3600
	if hours < 0 {
		hours = 0
	}
	decay := math.Pow(p.cfg.TimeDecayFactor, hours)

	bonus := 1.0
	if total-index <= recentBonusWindow {
		bonus = p.cfg.RecentMessageBonus
	}
	return position * decay * bonus
}

// lengthScore 长度分量：偏好 20–200 token 的消息，过短或过长都降权
func (p *ContextPruner) lengthScore(tokens int) float64 {
	switch {
	case tokens < 5:
		return 0.3
	case tokens < 20:
		return 0.7
	case tokens <= 200:
		return 1.0
	case tokens <= 400:
		return 0.7
	default:
		return 0.4
	}
}

// mentionScore 提及分量：目标角色被 @ 提及 ×2.0，仅点名 ×1.5，否则 ×1.0
func (p *ContextPruner) mentionScore(msg *domain.Message, character *domain.CharacterProfile) float64 {
	if character == nil || character.Name == "" {
		return mentionNone
	}
	if strings.Contains(msg.Content, "@"+character.Name) {
		return mentionAt
	}
	if strings.Contains(msg.Content, character.Name) {
		return mentionName
	}
	for _, name := range msg.Mentions {
		if name == character.Name {
			return mentionName
		}
	}
	return mentionNone
}

// emotionScore 情感分量：词表、表情符号、标点强度与大写占比的启发式，
// 封顶 2.5
func (p *ContextPruner) emotionScore(msg *domain.Message) float64 {
	content := msg.Content
	lower := strings.ToLower(content)
	score := 1.0

	for _, word := range emotionLexicon {
		if strings.Contains(lower, word) {
			score += 0.3
		}
	}

	for _, r := range content {
		if isEmoji(r) {
			score += 0.2
		}
	}

	exclaims := strings.Count(content, "!") + strings.Count(content, "！")
	questions := strings.Count(content, "?") + strings.Count(content, "？")
	score += 0.1 * float64(exclaims)
	score += 0.05 * float64(questions)

	upper, letters := 0, 0
	for _, r := range content {
		if unicode.IsLetter(r) && r < unicode.MaxASCII {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters >= 4 && float64(upper)/float64(letters) > 0.5 {
		score += 0.3
	}

	if score > emotionCap {
		score = emotionCap
	}
	return score
}

// personalityScore 角色归属分量：消息属于目标角色得分最高，
// 与角色回合相邻次之
func (p *ContextPruner) personalityScore(messages []*domain.Message, index int, character *domain.CharacterProfile) float64 {
	if character == nil {
		return 0.5
	}
	if messages[index].CharacterID == character.ID {
		return 1.0
	}
	if index > 0 && messages[index-1].CharacterID == character.ID {
		return 0.8
	}
	if index < len(messages)-1 && messages[index+1].CharacterID == character.ID {
		return 0.8
	}
	return 0.5
}

// isEmoji 常见 emoji 码点区间
func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1F5FF: // 符号与象形
		return true
	case r >= 0x1F600 && r <= 0x1F64F: // 表情
		return true
	case r >= 0x1F680 && r <= 0x1F6FF: // 交通与地图
		return true
	case r >= 0x1F900 && r <= 0x1F9FF: // 补充符号
		return true
	case r >= 0x2600 && r <= 0x27BF: // 杂项符号
		return true
	default:
		return false
	}
}

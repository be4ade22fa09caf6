package domain

import "strings"

// CharacterProfile 角色档案（外部只读输入）
type CharacterProfile struct {
	ID          string
	Name        string
	Personality string
	Background  string
	Interests   []string
}

// Description 合成角色描述文本，用于相关性计算
func (c *CharacterProfile) Description() string {
	if c == nil {
		return ""
	}
	parts := make([]string, 0, 4)
	if c.Name != "" {
		parts = append(parts, c.Name)
	}
	if c.Personality != "" {
		parts = append(parts, c.Personality)
	}
	if c.Background != "" {
		parts = append(parts, c.Background)
	}
	if len(c.Interests) > 0 {
		parts = append(parts, strings.Join(c.Interests, " "))
	}
	return strings.Join(parts, " ")
}

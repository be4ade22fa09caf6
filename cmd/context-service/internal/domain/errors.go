package domain

import "errors"

var (
	// ErrConversationNotFound 会话不存在
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrMessageNotFound 消息不存在
	ErrMessageNotFound = errors.New("message not found")
	// ErrCharacterNotFound 角色不存在
	ErrCharacterNotFound = errors.New("character not found")
	// ErrInvalidMessageRole 非法的消息角色
	ErrInvalidMessageRole = errors.New("invalid message role")
)

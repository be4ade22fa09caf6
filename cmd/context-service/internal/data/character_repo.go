package data

import (
	"context"
	"encoding/json"
	"time"

	"tavernchat/cmd/context-service/internal/domain"

	"gorm.io/gorm"
)

// CharacterDO 角色档案数据对象
type CharacterDO struct {
	ID            string `gorm:"primaryKey"`
	Name          string `gorm:"index"`
	Personality   string `gorm:"type:text"`
	Background    string `gorm:"type:text"`
	InterestsJSON string `gorm:"type:text"`
	UpdatedAt     time.Time
}

// TableName 指定表名
func (CharacterDO) TableName() string {
	return "tavern.characters"
}

// CharacterRepository 角色档案仓储实现
type CharacterRepository struct {
	db *gorm.DB
}

// NewCharacterRepository 创建角色仓储
func NewCharacterRepository(db *gorm.DB) domain.CharacterRepository {
	return &CharacterRepository{db: db}
}

// GetCharacter 查询角色档案
func (r *CharacterRepository) GetCharacter(ctx context.Context, id string) (*domain.CharacterProfile, error) {
	var do CharacterDO
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&do).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrCharacterNotFound
		}
		return nil, err
	}

	var interests []string
	_ = json.Unmarshal([]byte(do.InterestsJSON), &interests)
	return &domain.CharacterProfile{
		ID:          do.ID,
		Name:        do.Name,
		Personality: do.Personality,
		Background:  do.Background,
		Interests:   interests,
	}, nil
}

// SaveCharacter 保存（插入或更新）角色档案
func (r *CharacterRepository) SaveCharacter(ctx context.Context, character *domain.CharacterProfile) error {
	interests, _ := json.Marshal(character.Interests)
	do := &CharacterDO{
		ID:            character.ID,
		Name:          character.Name,
		Personality:   character.Personality,
		Background:    character.Background,
		InterestsJSON: string(interests),
		UpdatedAt:     time.Now(),
	}
	return r.db.WithContext(ctx).Save(do).Error
}

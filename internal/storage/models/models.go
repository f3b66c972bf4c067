package models

import (
	"encoding/json"
	"fmt"
	"time"

	"talent-match-go/internal/types"

	"gorm.io/datatypes"
)

// PersonRecord 人员主表。技能与履历以JSON落库，匹配核心只消费规范实体。
type PersonRecord struct {
	PersonID            string         `gorm:"type:char(36);primaryKey"`
	Name                string         `gorm:"type:varchar(255);not null;index:idx_people_name"`
	CurrentPositionJSON datatypes.JSON `gorm:"type:json"`
	PastPositionsJSON   datatypes.JSON `gorm:"type:json"`
	HardSkillsJSON      datatypes.JSON `gorm:"type:json"`
	SoftSkillsJSON      datatypes.JSON `gorm:"type:json"`
	CreatedAt           time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt           time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (PersonRecord) TableName() string {
	return "people"
}

// PositionRecord 岗位主表
type PositionRecord struct {
	PositionID   string         `gorm:"type:char(36);primaryKey"`
	Name         string         `gorm:"type:varchar(255);not null;index:idx_positions_name"`
	Category     string         `gorm:"type:varchar(50);not null;index:idx_positions_category"`
	ProfilesJSON datatypes.JSON `gorm:"type:json"`
	CreatedAt    time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt    time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (PositionRecord) TableName() string {
	return "positions"
}

// EntityVector 实体语义向量表。
// 向量化工作者在写时重算后落库，匹配查询优先读这里而不是现场嵌入。
type EntityVector struct {
	ID           uint64         `gorm:"primaryKey;autoIncrement"`
	Collection   string         `gorm:"type:varchar(50);not null;uniqueIndex:idx_ev_collection_entity,priority:1"`
	EntityID     string         `gorm:"type:char(36);not null;uniqueIndex:idx_ev_collection_entity,priority:2"`
	VectorJSON   datatypes.JSON `gorm:"type:json;not null"`
	ModelVersion string         `gorm:"type:varchar(100)"`
	CreatedAt    time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt    time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (EntityVector) TableName() string {
	return "entity_vectors"
}

// NewPersonRecord 把规范人员实体转换为落库记录
func NewPersonRecord(person *types.Person) (*PersonRecord, error) {
	record := &PersonRecord{
		PersonID: person.PersonID,
		Name:     person.Name,
	}

	var err error
	if person.CurrentPosition != nil {
		if record.CurrentPositionJSON, err = json.Marshal(person.CurrentPosition); err != nil {
			return nil, fmt.Errorf("序列化当前岗位失败: %w", err)
		}
	}
	if record.PastPositionsJSON, err = json.Marshal(person.PastPositions); err != nil {
		return nil, fmt.Errorf("序列化历史岗位失败: %w", err)
	}
	if record.HardSkillsJSON, err = json.Marshal(person.HardSkills); err != nil {
		return nil, fmt.Errorf("序列化硬技能失败: %w", err)
	}
	if record.SoftSkillsJSON, err = json.Marshal(person.SoftSkills); err != nil {
		return nil, fmt.Errorf("序列化软技能失败: %w", err)
	}
	return record, nil
}

// ToPerson 把落库记录还原为规范人员实体
func (r *PersonRecord) ToPerson() (*types.Person, error) {
	person := &types.Person{
		PersonID: r.PersonID,
		Name:     r.Name,
	}

	if len(r.CurrentPositionJSON) > 0 {
		var current types.Position
		if err := json.Unmarshal(r.CurrentPositionJSON, &current); err != nil {
			return nil, fmt.Errorf("解析当前岗位失败: %w", err)
		}
		person.CurrentPosition = &current
	}
	if len(r.PastPositionsJSON) > 0 {
		if err := json.Unmarshal(r.PastPositionsJSON, &person.PastPositions); err != nil {
			return nil, fmt.Errorf("解析历史岗位失败: %w", err)
		}
	}
	if len(r.HardSkillsJSON) > 0 {
		if err := json.Unmarshal(r.HardSkillsJSON, &person.HardSkills); err != nil {
			return nil, fmt.Errorf("解析硬技能失败: %w", err)
		}
	}
	if len(r.SoftSkillsJSON) > 0 {
		if err := json.Unmarshal(r.SoftSkillsJSON, &person.SoftSkills); err != nil {
			return nil, fmt.Errorf("解析软技能失败: %w", err)
		}
	}
	return person, nil
}

// NewPositionRecord 把规范岗位实体转换为落库记录
func NewPositionRecord(position *types.Position) (*PositionRecord, error) {
	profilesJSON, err := json.Marshal(position.Profiles)
	if err != nil {
		return nil, fmt.Errorf("序列化画像失败: %w", err)
	}
	return &PositionRecord{
		PositionID:   position.PositionID,
		Name:         position.Name,
		Category:     string(position.Category),
		ProfilesJSON: profilesJSON,
	}, nil
}

// ToPosition 把落库记录还原为规范岗位实体
func (r *PositionRecord) ToPosition() (*types.Position, error) {
	position := &types.Position{
		PositionID: r.PositionID,
		Name:       r.Name,
		Category:   types.PositionCategory(r.Category),
	}
	if len(r.ProfilesJSON) > 0 {
		if err := json.Unmarshal(r.ProfilesJSON, &position.Profiles); err != nil {
			return nil, fmt.Errorf("解析画像失败: %w", err)
		}
	}
	return position, nil
}

// EncodeVector 把向量编码为JSON落库格式
func EncodeVector(vector []float64) (datatypes.JSON, error) {
	data, err := json.Marshal(vector)
	if err != nil {
		return nil, fmt.Errorf("序列化向量失败: %w", err)
	}
	return data, nil
}

// DecodeVector 从JSON落库格式还原向量
func (v *EntityVector) DecodeVector() ([]float64, error) {
	var vector []float64
	if err := json.Unmarshal(v.VectorJSON, &vector); err != nil {
		return nil, fmt.Errorf("解析向量失败: %w", err)
	}
	return vector, nil
}

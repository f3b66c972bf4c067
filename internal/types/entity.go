package types

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// PositionCategory 岗位所属的组织类别（封闭枚举）
type PositionCategory string

const (
	CategoryTech     PositionCategory = "Tech"
	CategoryHR       PositionCategory = "HR"
	CategoryBusiness PositionCategory = "Business"
	CategoryFinance  PositionCategory = "Finance"
	CategoryLaw      PositionCategory = "Law"
	CategoryOther    PositionCategory = "Other"
)

// ParsePositionCategory 解析并校验岗位类别字符串
func ParsePositionCategory(s string) (PositionCategory, error) {
	switch PositionCategory(s) {
	case CategoryTech, CategoryHR, CategoryBusiness, CategoryFinance, CategoryLaw, CategoryOther:
		return PositionCategory(s), nil
	}
	return "", fmt.Errorf("非法岗位类别: %q", s)
}

// Profile 一组命名的技能要求，挂在岗位下；一个岗位可以有多个画像（同一职位名下的不同变体）。
type Profile struct {
	ProfileID  string  `json:"profile_id"`
	Name       string  `json:"name,omitempty"`
	HardSkills []Skill `json:"hard_skills"`
	SoftSkills []Skill `json:"soft_skills"`
}

// Position 组织内的一个岗位
type Position struct {
	PositionID string           `json:"position_id"`
	Name       string           `json:"name"`
	Category   PositionCategory `json:"category"`
	Profiles   []Profile        `json:"profiles"`
}

// RequiredHardSkills 返回所有画像硬技能要求的并集（保留重复项，逐画像分析时按画像取用）。
// 未指定画像时，岗位的有效技能要求集是各画像要求的并集而非交集。
func (p *Position) RequiredHardSkills() []Skill {
	var out []Skill
	for _, prof := range p.Profiles {
		out = append(out, prof.HardSkills...)
	}
	return out
}

// RequiredSoftSkills 返回所有画像软技能要求的并集
func (p *Position) RequiredSoftSkills() []Skill {
	var out []Skill
	for _, prof := range p.Profiles {
		out = append(out, prof.SoftSkills...)
	}
	return out
}

// Validate 校验岗位字段及其全部画像中的技能
func (p *Position) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("岗位名称不能为空")
	}
	if _, err := ParsePositionCategory(string(p.Category)); err != nil {
		return err
	}
	for _, prof := range p.Profiles {
		for _, s := range prof.HardSkills {
			if err := s.Validate(); err != nil {
				return fmt.Errorf("画像 %q 硬技能非法: %w", prof.Name, err)
			}
		}
		for _, s := range prof.SoftSkills {
			if err := s.Validate(); err != nil {
				return fmt.Errorf("画像 %q 软技能非法: %w", prof.Name, err)
			}
		}
	}
	return nil
}

// Person 候选人/员工的统一实体。不同数据来源里的 Candidate 与 Employee
// 字段形态一致，这里收敛为一个规范类型。
type Person struct {
	PersonID        string    `json:"person_id"`
	Name            string    `json:"name"`
	CurrentPosition *Position `json:"current_position,omitempty"`
	PastPositions   []Position `json:"past_positions,omitempty"`
	HardSkills      []Skill    `json:"hard_skills"`
	SoftSkills      []Skill    `json:"soft_skills"`
}

// Validate 校验人员字段及技能等级
func (p *Person) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("人员姓名不能为空")
	}
	for _, s := range p.HardSkills {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("人员 %q 硬技能非法: %w", p.Name, err)
		}
	}
	for _, s := range p.SoftSkills {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("人员 %q 软技能非法: %w", p.Name, err)
		}
	}
	return nil
}

// HasCategoryExperience 判断此人当前或任一历史岗位是否属于给定类别
func (p *Person) HasCategoryExperience(cat PositionCategory) bool {
	if p.CurrentPosition != nil && p.CurrentPosition.Category == cat {
		return true
	}
	for i := range p.PastPositions {
		if p.PastPositions[i].Category == cat {
			return true
		}
	}
	return false
}

// PositionCount 此人职业生涯中的岗位总数（当前岗位计入）
func (p *Person) PositionCount() int {
	n := len(p.PastPositions)
	if p.CurrentPosition != nil {
		n++
	}
	return n
}

// NewEntityID 为人员/岗位/画像生成新的唯一标识
func NewEntityID() string {
	return uuid.NewString()
}

package types

import (
	"fmt"
	"strings"
)

// SkillFamily 技能所属的族别：硬技能(技术类)或软技能(行为类)
type SkillFamily string

const (
	SkillFamilyHard SkillFamily = "hard"
	SkillFamilySoft SkillFamily = "soft"
)

// 技能等级的合法区间。低于或超出该区间的等级在构造时直接拒绝，绝不静默截断。
const (
	SkillLevelMin = 1.0
	SkillLevelMax = 5.0
)

// Skill 一项带量化熟练度的技能。创建后不可变；
// 在同一个人或画像中，(family, name) 即技能的身份，level 不参与身份判定。
type Skill struct {
	Family SkillFamily `json:"family"`
	Name   string      `json:"name"`
	Level  float64     `json:"level"`
}

// NewSkill 创建一项技能并做边界校验。
// family 必须是 hard/soft 之一，name 不能为空，level 必须落在 [1.0, 5.0]。
func NewSkill(family SkillFamily, name string, level float64) (Skill, error) {
	if family != SkillFamilyHard && family != SkillFamilySoft {
		return Skill{}, fmt.Errorf("非法技能族别: %q", family)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Skill{}, fmt.Errorf("技能名称不能为空")
	}
	if level < SkillLevelMin || level > SkillLevelMax {
		return Skill{}, fmt.Errorf("技能 %q 的等级 %.2f 超出合法区间 [%.1f, %.1f]",
			name, level, SkillLevelMin, SkillLevelMax)
	}
	return Skill{Family: family, Name: name, Level: level}, nil
}

// Validate 校验技能字段（用于反序列化后的入口检查）
func (s Skill) Validate() error {
	_, err := NewSkill(s.Family, s.Name, s.Level)
	return err
}

// LevelLabel 将数值等级映射为描述性标签，用于构造嵌入文本。
// 阈值是一个固定的单调阶梯函数，按 [1,5] 等级区间标定。
func LevelLabel(level float64) string {
	switch {
	case level >= 4.5:
		return "Expert"
	case level >= 4.0:
		return "Advanced"
	case level >= 3.0:
		return "Intermediate"
	case level >= 2.0:
		return "Basic"
	default:
		return "Beginner"
	}
}

package vectorization

import (
	"fmt"
	"strings"

	"talent-match-go/internal/types"
)

// 文本格式化器：把人员/岗位确定性地渲染成自然语言描述，作为嵌入模型的输入。
// 同一实体字段必然产生同一文本，这是嵌入确定性的前提。

// FormatPersonText 将人员渲染为用于语义嵌入的文本描述
func FormatPersonText(person *types.Person) string {
	var b strings.Builder

	totalPositions := person.PositionCount()
	fmt.Fprintf(&b, "%s is a professional with %d position(s) in their career.\n\n", person.Name, totalPositions)

	b.WriteString("Technical Skills (Hard Skills):\n")
	writeSkillLines(&b, person.HardSkills, false)

	b.WriteString("\nProfessional Skills (Soft Skills):\n")
	writeSkillLines(&b, person.SoftSkills, false)

	b.WriteString("\nWork Experience:\n")
	if person.CurrentPosition != nil {
		fmt.Fprintf(&b, "- Current: %s in %s\n", person.CurrentPosition.Name, person.CurrentPosition.Category)
	}
	if len(person.PastPositions) > 0 {
		names := make([]string, 0, 3)
		for i, p := range person.PastPositions {
			if i >= 3 {
				break
			}
			names = append(names, p.Name)
		}
		fmt.Fprintf(&b, "- Previous roles: %s\n", strings.Join(names, ", "))
	}

	fmt.Fprintf(&b, "\nThis person has demonstrated expertise in %d technical areas and %d professional competencies.",
		len(person.HardSkills), len(person.SoftSkills))

	return strings.TrimSpace(b.String())
}

// FormatPositionText 将岗位渲染为用于语义嵌入的文本描述。
// 技能要求取所有画像的并集。
func FormatPositionText(position *types.Position) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Position: %s in the %s category.\n", position.Name, position.Category)

	var profileNames []string
	for _, prof := range position.Profiles {
		if prof.Name != "" {
			profileNames = append(profileNames, prof.Name)
		}
	}
	if len(profileNames) > 0 {
		fmt.Fprintf(&b, "Profiles: %s\n", strings.Join(profileNames, ", "))
	}

	hardSkills := position.RequiredHardSkills()
	softSkills := position.RequiredSoftSkills()

	b.WriteString("\nRequired Technical Skills (Hard Skills):\n")
	if len(hardSkills) == 0 {
		b.WriteString("- No specific hard skills required\n")
	} else {
		writeSkillLines(&b, hardSkills, true)
	}

	b.WriteString("\nRequired Professional Skills (Soft Skills):\n")
	if len(softSkills) == 0 {
		b.WriteString("- No specific soft skills required\n")
	} else {
		writeSkillLines(&b, softSkills, true)
	}

	fmt.Fprintf(&b, "\nThis position requires %d technical skills and %d professional skills.",
		len(hardSkills), len(softSkills))

	return strings.TrimSpace(b.String())
}

func writeSkillLines(b *strings.Builder, skills []types.Skill, required bool) {
	for _, s := range skills {
		if required {
			fmt.Fprintf(b, "- %s: %s level required (%.1f/%.1f)\n", s.Name, types.LevelLabel(s.Level), s.Level, types.SkillLevelMax)
		} else {
			fmt.Fprintf(b, "- %s: %s level (%.1f/%.1f)\n", s.Name, types.LevelLabel(s.Level), s.Level, types.SkillLevelMax)
		}
	}
}

package types_test

import (
	"testing"

	"talent-match-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePositionCategory(t *testing.T) {
	for _, valid := range []string{"Tech", "HR", "Business", "Finance", "Law", "Other"} {
		cat, err := types.ParsePositionCategory(valid)
		require.NoError(t, err, "类别 %q 应合法", valid)
		assert.Equal(t, types.PositionCategory(valid), cat)
	}

	_, err := types.ParsePositionCategory("tech")
	assert.Error(t, err, "类别区分大小写")

	_, err = types.ParsePositionCategory("")
	assert.Error(t, err)
}

func TestPosition_RequiredSkillsUnion(t *testing.T) {
	pos := &types.Position{
		PositionID: "pos-1",
		Name:       "后端工程师",
		Category:   types.CategoryTech,
		Profiles: []types.Profile{
			{
				ProfileID:  "prof-1",
				HardSkills: []types.Skill{{Family: types.SkillFamilyHard, Name: "Go", Level: 4.0}},
				SoftSkills: []types.Skill{{Family: types.SkillFamilySoft, Name: "沟通", Level: 3.0}},
			},
			{
				ProfileID: "prof-2",
				HardSkills: []types.Skill{
					{Family: types.SkillFamilyHard, Name: "Go", Level: 3.0},
					{Family: types.SkillFamilyHard, Name: "MySQL", Level: 3.5},
				},
			},
		},
	}

	// 并集保留重复项，逐画像分析时按画像取用
	hard := pos.RequiredHardSkills()
	require.Len(t, hard, 3)
	assert.Equal(t, "Go", hard[0].Name)
	assert.Equal(t, "MySQL", hard[2].Name)

	soft := pos.RequiredSoftSkills()
	require.Len(t, soft, 1)
	assert.Equal(t, "沟通", soft[0].Name)
}

func TestPosition_Validate(t *testing.T) {
	pos := &types.Position{
		Name:     "后端工程师",
		Category: types.CategoryTech,
		Profiles: []types.Profile{
			{HardSkills: []types.Skill{{Family: types.SkillFamilyHard, Name: "Go", Level: 4.0}}},
		},
	}
	assert.NoError(t, pos.Validate())

	pos.Name = "  "
	assert.Error(t, pos.Validate(), "岗位名称不能为空")

	pos.Name = "后端工程师"
	pos.Category = "Engineering"
	assert.Error(t, pos.Validate(), "非法类别应被拒绝")

	pos.Category = types.CategoryTech
	pos.Profiles[0].HardSkills[0].Level = 6.0
	assert.Error(t, pos.Validate(), "画像中的技能等级越界应被拒绝")
}

func TestPerson_Validate(t *testing.T) {
	person := &types.Person{
		Name:       "张三",
		HardSkills: []types.Skill{{Family: types.SkillFamilyHard, Name: "Go", Level: 4.0}},
		SoftSkills: []types.Skill{{Family: types.SkillFamilySoft, Name: "沟通", Level: 3.0}},
	}
	assert.NoError(t, person.Validate())

	person.SoftSkills[0].Level = 0.5
	assert.Error(t, person.Validate())

	person.SoftSkills[0].Level = 3.0
	person.Name = ""
	assert.Error(t, person.Validate())
}

func TestPerson_CategoryExperienceAndPositionCount(t *testing.T) {
	person := &types.Person{
		Name: "李四",
		CurrentPosition: &types.Position{
			Name: "产品经理", Category: types.CategoryBusiness,
		},
		PastPositions: []types.Position{
			{Name: "前端工程师", Category: types.CategoryTech},
			{Name: "全栈工程师", Category: types.CategoryTech},
		},
	}

	assert.True(t, person.HasCategoryExperience(types.CategoryBusiness), "当前岗位类别计入经验")
	assert.True(t, person.HasCategoryExperience(types.CategoryTech), "历史岗位类别计入经验")
	assert.False(t, person.HasCategoryExperience(types.CategoryFinance))
	assert.Equal(t, 3, person.PositionCount())

	// 无任何岗位经历
	empty := &types.Person{Name: "王五"}
	assert.False(t, empty.HasCategoryExperience(types.CategoryTech))
	assert.Equal(t, 0, empty.PositionCount())
}

func TestNewEntityID(t *testing.T) {
	id1 := types.NewEntityID()
	id2 := types.NewEntityID()
	assert.NotEmpty(t, id1)
	assert.NotEqual(t, id1, id2)
}

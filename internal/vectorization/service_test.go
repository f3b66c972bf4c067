package vectorization_test

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"talent-match-go/internal/types"
	"talent-match-go/internal/vectorization"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder 确定性的内存嵌入实现：对同一文本返回同一向量
type fakeEmbedder struct {
	dims  int
	calls []string
	err   error
}

func (f *fakeEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, 0, len(texts))
	for _, text := range texts {
		f.calls = append(f.calls, text)
		vec := make([]float64, f.dims)
		for i := range vec {
			vec[i] = float64(len(text)%7+i) * 0.1
		}
		out = append(out, vec)
	}
	return out, nil
}

func (f *fakeEmbedder) GetDimensions() int { return f.dims }

func testPerson() *types.Person {
	return &types.Person{
		PersonID: "cand-001",
		Name:     "张三",
		CurrentPosition: &types.Position{
			Name: "后端工程师", Category: types.CategoryTech,
		},
		PastPositions: []types.Position{
			{Name: "初级工程师", Category: types.CategoryTech},
		},
		HardSkills: []types.Skill{
			{Family: types.SkillFamilyHard, Name: "Go", Level: 4.5},
			{Family: types.SkillFamilyHard, Name: "MySQL", Level: 3.0},
		},
		SoftSkills: []types.Skill{
			{Family: types.SkillFamilySoft, Name: "Communication", Level: 2.0},
		},
	}
}

func testPosition() *types.Position {
	return &types.Position{
		PositionID: "pos-001",
		Name:       "资深后端工程师",
		Category:   types.CategoryTech,
		Profiles: []types.Profile{
			{
				ProfileID: "prof-1",
				Name:      "平台方向",
				HardSkills: []types.Skill{
					{Family: types.SkillFamilyHard, Name: "Go", Level: 4.0},
				},
				SoftSkills: []types.Skill{
					{Family: types.SkillFamilySoft, Name: "Leadership", Level: 3.5},
				},
			},
		},
	}
}

func TestFormatPersonText(t *testing.T) {
	text := vectorization.FormatPersonText(testPerson())

	assert.Contains(t, text, "张三 is a professional with 2 position(s)")
	// 等级标签按固定阶梯映射
	assert.Contains(t, text, "- Go: Expert level (4.5/5.0)")
	assert.Contains(t, text, "- MySQL: Intermediate level (3.0/5.0)")
	assert.Contains(t, text, "- Communication: Basic level (2.0/5.0)")
	assert.Contains(t, text, "Current: 后端工程师 in Tech")
	assert.Contains(t, text, "Previous roles: 初级工程师")
	assert.Contains(t, text, "expertise in 2 technical areas and 1 professional competencies")
}

func TestFormatPersonText_Deterministic(t *testing.T) {
	// 同一实体必须渲染出同一文本，这是嵌入确定性的前提
	assert.Equal(t, vectorization.FormatPersonText(testPerson()), vectorization.FormatPersonText(testPerson()))
}

func TestFormatPositionText(t *testing.T) {
	text := vectorization.FormatPositionText(testPosition())

	assert.Contains(t, text, "Position: 资深后端工程师 in the Tech category.")
	assert.Contains(t, text, "Profiles: 平台方向")
	assert.Contains(t, text, "- Go: Advanced level required (4.0/5.0)")
	assert.Contains(t, text, "- Leadership: Intermediate level required (3.5/5.0)")
	assert.Contains(t, text, "requires 1 technical skills and 1 professional skills")
}

func TestFormatPositionText_NoRequirements(t *testing.T) {
	pos := &types.Position{PositionID: "pos-empty", Name: "顾问", Category: types.CategoryOther}
	text := vectorization.FormatPositionText(pos)
	assert.Contains(t, text, "No specific hard skills required")
	assert.Contains(t, text, "No specific soft skills required")
}

func TestStructuredFeatures(t *testing.T) {
	hard := []types.Skill{
		{Family: types.SkillFamilyHard, Name: "Go", Level: 4.0},
		{Family: types.SkillFamilyHard, Name: "MySQL", Level: 2.0},
	}
	soft := []types.Skill{
		{Family: types.SkillFamilySoft, Name: "沟通", Level: 3.0},
	}

	features := vectorization.StructuredFeatures(hard, soft)
	require.Len(t, features, vectorization.StructuredFeatureDim)

	// 归一化为单位长度
	var sumSq float64
	for _, x := range features {
		sumSq += x * x
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSq), 1e-9)

	// 归一化前的原始统计量: hard = [2, 3, 4, 2], soft = [1, 3, 3, 3]
	// 各分量之间的比例在归一化后保持不变
	assert.InDelta(t, features[0]/features[3], 1.0, 1e-9, "count与min同为2")
	assert.InDelta(t, features[1]/features[5], 1.0, 1e-9, "hard均值与soft均值同为3")
}

func TestStructuredFeatures_Empty(t *testing.T) {
	features := vectorization.StructuredFeatures(nil, nil)
	require.Len(t, features, vectorization.StructuredFeatureDim)
	for i, x := range features {
		assert.Zero(t, x, "全零特征向量不做归一化, index=%d", i)
	}
}

func TestService_VectorizePerson(t *testing.T) {
	embedder := &fakeEmbedder{dims: 8}
	svc := vectorization.NewService(embedder)

	require.True(t, svc.Available())
	assert.Equal(t, 8, svc.Dimensions())

	vec, err := svc.VectorizePerson(context.Background(), testPerson())
	require.NoError(t, err)
	assert.Len(t, vec, 8)
	require.Len(t, embedder.calls, 1)
	assert.True(t, strings.Contains(embedder.calls[0], "Technical Skills"), "嵌入输入应为渲染后的描述文本")
}

func TestService_VectorizePerson_NoSkills(t *testing.T) {
	embedder := &fakeEmbedder{dims: 8}
	svc := vectorization.NewService(embedder)

	// 零技能实体没有语义向量，直接返回空而不调用嵌入模型
	vec, err := svc.VectorizePerson(context.Background(), &types.Person{PersonID: "cand-x", Name: "无技能"})
	require.NoError(t, err)
	assert.Empty(t, vec)
	assert.Empty(t, embedder.calls)
}

func TestService_NilEmbedder(t *testing.T) {
	svc := vectorization.NewService(nil)

	assert.False(t, svc.Available())
	assert.Zero(t, svc.Dimensions())

	vec, err := svc.VectorizePerson(context.Background(), testPerson())
	require.NoError(t, err, "模型不可用时降级为空向量而非报错")
	assert.Empty(t, vec)

	vec, err = svc.VectorizePosition(context.Background(), testPosition())
	require.NoError(t, err)
	assert.Empty(t, vec)
}

func TestService_VectorizePosition(t *testing.T) {
	embedder := &fakeEmbedder{dims: 8}
	svc := vectorization.NewService(embedder)

	vec, err := svc.VectorizePosition(context.Background(), testPosition())
	require.NoError(t, err)
	assert.Len(t, vec, 8)

	// 无任何画像要求的岗位同样没有语义向量
	vec, err = svc.VectorizePosition(context.Background(), &types.Position{PositionID: "pos-x", Name: "空岗位", Category: types.CategoryOther})
	require.NoError(t, err)
	assert.Empty(t, vec)
}

func TestService_VectorizePosition_EmbedderError(t *testing.T) {
	embedder := &fakeEmbedder{dims: 8, err: fmt.Errorf("上游限流")}
	svc := vectorization.NewService(embedder)

	_, err := svc.VectorizePosition(context.Background(), testPosition())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pos-001")
}

func TestService_FuseStructured(t *testing.T) {
	embedder := &fakeEmbedder{dims: 8}
	svc := vectorization.NewService(embedder, vectorization.WithFuseStructured(true))

	assert.Equal(t, 8+vectorization.StructuredFeatureDim, svc.Dimensions())

	vec, err := svc.VectorizePerson(context.Background(), testPerson())
	require.NoError(t, err)
	assert.Len(t, vec, 8+vectorization.StructuredFeatureDim, "开启融合后结构化特征拼接在语义向量之后")
}

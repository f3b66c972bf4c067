package matching_test

import (
	"context"
	"fmt"
	"testing"

	"talent-match-go/internal/matching"
	"talent-match-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCatalog 内存目录假实现
type fakeCatalog struct {
	people    map[string]*types.Person
	positions map[string]*types.Position
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		people:    make(map[string]*types.Person),
		positions: make(map[string]*types.Position),
	}
}

func (f *fakeCatalog) GetPerson(ctx context.Context, id string) (*types.Person, error) {
	p, ok := f.people[id]
	if !ok {
		return nil, fmt.Errorf("查询人员 %s: %w", id, matching.ErrPersonNotFound)
	}
	return p, nil
}

func (f *fakeCatalog) GetPosition(ctx context.Context, id string) (*types.Position, error) {
	p, ok := f.positions[id]
	if !ok {
		return nil, fmt.Errorf("查询岗位 %s: %w", id, matching.ErrPositionNotFound)
	}
	return p, nil
}

func (f *fakeCatalog) ListPeople(ctx context.Context) ([]*types.Person, error) {
	out := make([]*types.Person, 0, len(f.people))
	for _, p := range f.people {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeCatalog) ListPositions(ctx context.Context) ([]*types.Position, error) {
	out := make([]*types.Position, 0, len(f.positions))
	for _, p := range f.positions {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeCatalog) UpsertPerson(ctx context.Context, person *types.Person) error {
	f.people[person.PersonID] = person
	return nil
}

func (f *fakeCatalog) UpsertPosition(ctx context.Context, position *types.Position) error {
	f.positions[position.PositionID] = position
	return nil
}

// fakeVectorizer 按实体ID返回预置向量，未预置时返回空向量
type fakeVectorizer struct {
	vectors map[string][]float64
}

func (f *fakeVectorizer) VectorizePerson(ctx context.Context, person *types.Person) ([]float64, error) {
	return f.vectors[person.PersonID], nil
}

func (f *fakeVectorizer) VectorizePosition(ctx context.Context, position *types.Position) ([]float64, error) {
	return f.vectors[position.PositionID], nil
}

// failingSearcher 模拟ANN后端故障
type failingSearcher struct{}

func (failingSearcher) SearchSimilar(ctx context.Context, collection string, queryVector []float64, limit int) ([]matching.AnnHit, error) {
	return nil, fmt.Errorf("qdrant连接被拒绝")
}

// stubSearcher 返回固定命中列表
type stubSearcher struct {
	hits []matching.AnnHit
}

func (s stubSearcher) SearchSimilar(ctx context.Context, collection string, queryVector []float64, limit int) ([]matching.AnnHit, error) {
	if len(s.hits) > limit {
		return s.hits[:limit], nil
	}
	return s.hits, nil
}

func hardOnly(t *testing.T, pairs ...interface{}) []types.Skill {
	t.Helper()
	require.Equal(t, 0, len(pairs)%2)
	skills := make([]types.Skill, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		skills = append(skills, mustSkill(t, types.SkillFamilyHard, pairs[i].(string), pairs[i+1].(float64)))
	}
	return skills
}

// buildPool 构造5人候选池与一个技术岗位，向量设计成相似度严格递减
func buildPool(t *testing.T) (*fakeCatalog, *fakeVectorizer, *types.Position) {
	t.Helper()
	catalog := newFakeCatalog()

	position := &types.Position{
		PositionID: "pos-backend",
		Name:       "后端工程师",
		Category:   types.CategoryTech,
		Profiles: []types.Profile{{
			ProfileID:  "prof-1",
			Name:       "服务端",
			HardSkills: hardOnly(t, "Go", 4.0),
		}},
	}
	require.NoError(t, catalog.UpsertPosition(context.Background(), position))

	vectors := map[string][]float64{
		"pos-backend": {1.0, 0.0},
		"p1":          {1.0, 0.0},   // cos = 1.0
		"p2":          {1.0, 0.25},  // ≈ 0.970
		"p3":          {1.0, 0.6},   // ≈ 0.857
		"p4":          {0.4, 1.0},   // ≈ 0.371
		"p5":          {-1.0, 0.1},  // 负相关
	}

	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("p%d", i)
		require.NoError(t, catalog.UpsertPerson(context.Background(), &types.Person{
			PersonID:   id,
			Name:       fmt.Sprintf("候选人%d", i),
			HardSkills: hardOnly(t, "Go", 4.0),
		}))
	}

	return catalog, &fakeVectorizer{vectors: vectors}, position
}

// TestService_FallbackActivation ANN后端故障时仍通过暴力余弦给出正确排序
func TestService_FallbackActivation(t *testing.T) {
	catalog, vectorizer, position := buildPool(t)

	svc, err := matching.NewService(catalog, vectorizer,
		matching.WithVectorSearcher(failingSearcher{}))
	require.NoError(t, err)

	results, err := svc.GetTopCandidatesForPosition(context.Background(), position.PositionID, 3)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, "p1", results[0].SubjectID)
	assert.Equal(t, "p2", results[1].SubjectID)
	assert.Equal(t, "p3", results[2].SubjectID)
	assert.InDelta(t, 1.0, results[0].SemanticSimilarity, 1e-9)
}

// TestService_AnnPath ANN可用时直接采用其相似度结果
func TestService_AnnPath(t *testing.T) {
	catalog, vectorizer, position := buildPool(t)

	searcher := stubSearcher{hits: []matching.AnnHit{
		{ID: "p2", Similarity: 0.97},
		{ID: "p1", Similarity: 0.95},
	}}
	svc, err := matching.NewService(catalog, vectorizer, matching.WithVectorSearcher(searcher))
	require.NoError(t, err)

	results, err := svc.GetTopCandidatesForPosition(context.Background(), position.PositionID, 2)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "p2", results[0].SubjectID)
	assert.Equal(t, 0.97, results[0].SemanticSimilarity)
}

// TestService_SelfExclusion 自相似查询永不返回支点本身
func TestService_SelfExclusion(t *testing.T) {
	catalog, vectorizer, _ := buildPool(t)

	svc, err := matching.NewService(catalog, vectorizer)
	require.NoError(t, err)

	results, err := svc.GetSimilarPeople(context.Background(), "p1", 10)
	require.NoError(t, err)

	require.NotEmpty(t, results)
	for _, r := range results {
		assert.NotEqual(t, "p1", r.SubjectID)
	}
}

// TestService_SimilarPeople_CommonSkills 相似人员结果附带同名技能交集
func TestService_SimilarPeople_CommonSkills(t *testing.T) {
	catalog, vectorizer, _ := buildPool(t)

	svc, err := matching.NewService(catalog, vectorizer)
	require.NoError(t, err)

	results, err := svc.GetSimilarPeople(context.Background(), "p1", 2)
	require.NoError(t, err)

	require.NotEmpty(t, results)
	common, ok := results[0].Details["common_skills"].([]string)
	require.True(t, ok)
	assert.Contains(t, common, "Go")
}

// TestService_NotFound 支点实体不存在时返回可判定的哨兵错误
func TestService_NotFound(t *testing.T) {
	catalog, vectorizer, _ := buildPool(t)

	svc, err := matching.NewService(catalog, vectorizer)
	require.NoError(t, err)

	_, err = svc.GetTopCandidatesForPosition(context.Background(), "no-such-position", 3)
	assert.ErrorIs(t, err, matching.ErrPositionNotFound)

	_, err = svc.GetSimilarPeople(context.Background(), "no-such-person", 3)
	assert.ErrorIs(t, err, matching.ErrPersonNotFound)

	_, err = svc.GetSkillGaps(context.Background(), "p1", "no-such-position")
	assert.ErrorIs(t, err, matching.ErrPositionNotFound)
}

// TestService_TieBreak 同分结果按ID升序排列，保证可复现
func TestService_TieBreak(t *testing.T) {
	catalog := newFakeCatalog()
	position := &types.Position{
		PositionID: "pos-1",
		Name:       "顾问",
		Category:   types.CategoryBusiness,
	}
	require.NoError(t, catalog.UpsertPosition(context.Background(), position))

	// 三个无技能人员:语义与重合度都一致，分数必然相同
	for _, id := range []string{"pc", "pa", "pb"} {
		require.NoError(t, catalog.UpsertPerson(context.Background(), &types.Person{
			PersonID: id,
			Name:     "候选人" + id,
		}))
	}

	svc, err := matching.NewService(catalog, &fakeVectorizer{vectors: map[string][]float64{}})
	require.NoError(t, err)

	results, err := svc.GetTopCandidatesForPosition(context.Background(), "pos-1", 10)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, "pa", results[0].SubjectID)
	assert.Equal(t, "pb", results[1].SubjectID)
	assert.Equal(t, "pc", results[2].SubjectID)
}

// TestService_TopPositions 候选人视角的岗位匹配包含类别信息
func TestService_TopPositions(t *testing.T) {
	catalog, vectorizer, position := buildPool(t)
	vectorizer.vectors["pos-hr"] = []float64{0.0, 1.0}
	require.NoError(t, catalog.UpsertPosition(context.Background(), &types.Position{
		PositionID: "pos-hr",
		Name:       "人事专员",
		Category:   types.CategoryHR,
	}))

	svc, err := matching.NewService(catalog, vectorizer)
	require.NoError(t, err)

	results, err := svc.GetTopPositionsForCandidate(context.Background(), "p1", 10)
	require.NoError(t, err)

	require.Len(t, results, 2)
	// p1 与后端岗位同向量且技能全中，必然排第一
	assert.Equal(t, position.PositionID, results[0].SubjectID)
	assert.Equal(t, "Tech", results[0].Details["category"])
}

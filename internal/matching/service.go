package matching

import (
	"context"
	"fmt"
	"log"
	"sort"

	"talent-match-go/internal/constants"
	"talent-match-go/internal/types"
)

// CatalogStore 实体目录的抽象，由 MySQL 存储实现，测试中可替换为内存假实现。
// 取不到实体时返回包裹 ErrPersonNotFound / ErrPositionNotFound 的错误。
type CatalogStore interface {
	GetPerson(ctx context.Context, id string) (*types.Person, error)
	GetPosition(ctx context.Context, id string) (*types.Position, error)
	ListPeople(ctx context.Context) ([]*types.Person, error)
	ListPositions(ctx context.Context) ([]*types.Position, error)
	UpsertPerson(ctx context.Context, person *types.Person) error
	UpsertPosition(ctx context.Context, position *types.Position) error
}

// AnnHit ANN 检索返回的单条命中
type AnnHit struct {
	ID         string
	Similarity float64
	Metadata   map[string]interface{}
}

// VectorSearcher 向量近邻检索的抽象，由 Qdrant 存储实现
type VectorSearcher interface {
	SearchSimilar(ctx context.Context, collection string, queryVector []float64, limit int) ([]AnnHit, error)
}

// Vectorizer 实体向量化的抽象，由 vectorization.Service 实现
type Vectorizer interface {
	VectorizePerson(ctx context.Context, person *types.Person) ([]float64, error)
	VectorizePosition(ctx context.Context, position *types.Position) ([]float64, error)
}

// StoredVectorSource 已持久化实体向量的读取接口（可选依赖）。
// 未找到时返回空向量和 nil 错误，调用方转而现场计算。
type StoredVectorSource interface {
	GetEntityVector(ctx context.Context, collection, entityID string) ([]float64, error)
}

// annOutcome ANN 检索的显式结果类型：要么拿到命中，要么明确标记不可用。
// 不可用（出错或空结果）时由编排器显式走暴力兜底，不依赖异常控制流。
type annOutcome struct {
	hits        []AnnHit
	unavailable bool
	cause       error
}

// Service 相似检索编排器：四类查询的统一入口。
// 优先走 ANN 检索，失败或空结果时退化为目录全量暴力余弦排序。
type Service struct {
	catalog      CatalogStore
	vectorizer   Vectorizer
	searcher     VectorSearcher
	vectors      StoredVectorSource
	defaultLimit int
}

// Option Service 的可选配置项
type Option func(*Service)

// WithVectorSearcher 注入ANN检索后端；缺省时所有查询直接走暴力兜底
func WithVectorSearcher(searcher VectorSearcher) Option {
	return func(s *Service) { s.searcher = searcher }
}

// WithStoredVectors 注入已持久化向量来源，命中时省去现场嵌入调用
func WithStoredVectors(vectors StoredVectorSource) Option {
	return func(s *Service) { s.vectors = vectors }
}

// WithDefaultLimit 设置未指定limit时的默认返回条数
func WithDefaultLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.defaultLimit = limit
		}
	}
}

// NewService 创建匹配编排服务
func NewService(catalog CatalogStore, vectorizer Vectorizer, opts ...Option) (*Service, error) {
	if catalog == nil {
		return nil, fmt.Errorf("目录存储不能为空")
	}
	if vectorizer == nil {
		return nil, fmt.Errorf("向量化服务不能为空")
	}
	s := &Service{
		catalog:      catalog,
		vectorizer:   vectorizer,
		defaultLimit: 10,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GetTopCandidatesForPosition 为岗位找出匹配度最高的候选人。
// 语义相似度、技能重合度与类别经验按 0.60/0.30/0.10 融合排序。
func (s *Service) GetTopCandidatesForPosition(ctx context.Context, positionID string, limit int) ([]types.MatchResult, error) {
	limit = s.normalizeLimit(limit)

	position, err := s.catalog.GetPosition(ctx, positionID)
	if err != nil {
		return nil, err
	}

	pivotVector := s.resolvePositionVector(ctx, position)
	people, err := s.collectPeople(ctx, pivotVector, limit, "")
	if err != nil {
		return nil, err
	}

	requiredHard := position.RequiredHardSkills()
	requiredSoft := position.RequiredSoftSkills()

	results := make([]types.MatchResult, 0, len(people))
	for _, c := range people {
		overlap := CalculateSkillOverlap(c.person.HardSkills, c.person.SoftSkills, requiredHard, requiredSoft)
		categoryMatch := c.person.HasCategoryExperience(position.Category)
		results = append(results, types.MatchResult{
			SubjectID:          c.person.PersonID,
			Name:               c.person.Name,
			Score:              HybridScore(c.similarity, overlap.OverallMatch, categoryMatch),
			SemanticSimilarity: c.similarity,
			SkillMatch:         overlap.OverallMatch,
			Details: map[string]interface{}{
				"hard_match":       overlap.HardMatch,
				"soft_match":       overlap.SoftMatch,
				"category_match":   categoryMatch,
				"experience_match": ExperienceScore(c.person.PositionCount()),
			},
		})
	}

	return rankAndTruncate(results, limit), nil
}

// GetTopPositionsForCandidate 为候选人找出匹配度最高的岗位
func (s *Service) GetTopPositionsForCandidate(ctx context.Context, personID string, limit int) ([]types.MatchResult, error) {
	limit = s.normalizeLimit(limit)

	person, err := s.catalog.GetPerson(ctx, personID)
	if err != nil {
		return nil, err
	}

	pivotVector := s.resolvePersonVector(ctx, person)
	positions, err := s.collectPositions(ctx, pivotVector, limit, "")
	if err != nil {
		return nil, err
	}

	results := make([]types.MatchResult, 0, len(positions))
	for _, c := range positions {
		overlap := CalculateSkillOverlap(person.HardSkills, person.SoftSkills, c.position.RequiredHardSkills(), c.position.RequiredSoftSkills())
		categoryMatch := person.HasCategoryExperience(c.position.Category)
		results = append(results, types.MatchResult{
			SubjectID:          c.position.PositionID,
			Name:               c.position.Name,
			Score:              HybridScore(c.similarity, overlap.OverallMatch, categoryMatch),
			SemanticSimilarity: c.similarity,
			SkillMatch:         overlap.OverallMatch,
			Details: map[string]interface{}{
				"hard_match":     overlap.HardMatch,
				"soft_match":     overlap.SoftMatch,
				"category_match": categoryMatch,
				"category":       string(c.position.Category),
			},
		})
	}

	return rankAndTruncate(results, limit), nil
}

// GetSimilarPeople 找出与给定人员技能画像最接近的其他人员。
// 仅用语义相似度排序，附带精确同名技能交集作展示明细；永不包含本人。
func (s *Service) GetSimilarPeople(ctx context.Context, personID string, limit int) ([]types.MatchResult, error) {
	limit = s.normalizeLimit(limit)

	pivot, err := s.catalog.GetPerson(ctx, personID)
	if err != nil {
		return nil, err
	}

	pivotVector := s.resolvePersonVector(ctx, pivot)
	people, err := s.collectPeople(ctx, pivotVector, limit+1, personID)
	if err != nil {
		return nil, err
	}

	pivotSkills := append(append([]types.Skill{}, pivot.HardSkills...), pivot.SoftSkills...)

	results := make([]types.MatchResult, 0, len(people))
	for _, c := range people {
		otherSkills := append(append([]types.Skill{}, c.person.HardSkills...), c.person.SoftSkills...)
		results = append(results, types.MatchResult{
			SubjectID:          c.person.PersonID,
			Name:               c.person.Name,
			Score:              clamp01(c.similarity),
			SemanticSimilarity: c.similarity,
			Details: map[string]interface{}{
				"common_skills": CommonSkillNames(pivotSkills, otherSkills),
			},
		})
	}

	return rankAndTruncate(results, limit), nil
}

// GetSimilarPositions 找出与给定岗位要求最接近的其他岗位
func (s *Service) GetSimilarPositions(ctx context.Context, positionID string, limit int) ([]types.MatchResult, error) {
	limit = s.normalizeLimit(limit)

	pivot, err := s.catalog.GetPosition(ctx, positionID)
	if err != nil {
		return nil, err
	}

	pivotVector := s.resolvePositionVector(ctx, pivot)
	positions, err := s.collectPositions(ctx, pivotVector, limit+1, positionID)
	if err != nil {
		return nil, err
	}

	pivotSkills := append(append([]types.Skill{}, pivot.RequiredHardSkills()...), pivot.RequiredSoftSkills()...)

	results := make([]types.MatchResult, 0, len(positions))
	for _, c := range positions {
		otherSkills := append(append([]types.Skill{}, c.position.RequiredHardSkills()...), c.position.RequiredSoftSkills()...)
		results = append(results, types.MatchResult{
			SubjectID:          c.position.PositionID,
			Name:               c.position.Name,
			Score:              clamp01(c.similarity),
			SemanticSimilarity: c.similarity,
			Details: map[string]interface{}{
				"common_skills": CommonSkillNames(pivotSkills, otherSkills),
				"category":      string(c.position.Category),
			},
		})
	}

	return rankAndTruncate(results, limit), nil
}

// GetSkillGaps 生成人员针对岗位每个画像的差距报告
func (s *Service) GetSkillGaps(ctx context.Context, personID, positionID string) ([]types.SkillGapReport, error) {
	person, err := s.catalog.GetPerson(ctx, personID)
	if err != nil {
		return nil, err
	}
	position, err := s.catalog.GetPosition(ctx, positionID)
	if err != nil {
		return nil, err
	}
	return AnalyzePositionGaps(person, position), nil
}

// scoredPerson / scoredPosition 候选池中一条带语义相似度的条目
type scoredPerson struct {
	person     *types.Person
	similarity float64
}

type scoredPosition struct {
	position   *types.Position
	similarity float64
}

// collectPeople 汇集人员候选池：优先 ANN，不可用时暴力遍历目录。
// excludeID 非空时从结果中剔除对应实体（自相似查询剔除本人）。
func (s *Service) collectPeople(ctx context.Context, pivotVector []float64, limit int, excludeID string) ([]scoredPerson, error) {
	outcome := s.annSearch(ctx, constants.PeopleCollection, pivotVector, limit)
	if !outcome.unavailable {
		candidates := make([]scoredPerson, 0, len(outcome.hits))
		for _, hit := range outcome.hits {
			if hit.ID == excludeID {
				continue
			}
			person, err := s.catalog.GetPerson(ctx, hit.ID)
			if err != nil {
				// 向量库与目录之间可能短暂不一致，跳过孤儿命中
				log.Printf("warning: ANN命中的人员 %s 不在目录中，已跳过: %v", hit.ID, err)
				continue
			}
			candidates = append(candidates, scoredPerson{person: person, similarity: hit.Similarity})
		}
		return candidates, nil
	}

	if outcome.cause != nil {
		log.Printf("warning: ANN检索不可用，退化为暴力余弦排序: %v", outcome.cause)
	}

	people, err := s.catalog.ListPeople(ctx)
	if err != nil {
		return nil, fmt.Errorf("遍历人员目录失败: %w", err)
	}
	candidates := make([]scoredPerson, 0, len(people))
	for _, person := range people {
		if person.PersonID == excludeID {
			continue
		}
		candidates = append(candidates, scoredPerson{
			person:     person,
			similarity: s.bruteForceSimilarity(ctx, pivotVector, person, nil),
		})
	}
	return candidates, nil
}

// collectPositions 汇集岗位候选池，结构与 collectPeople 对称
func (s *Service) collectPositions(ctx context.Context, pivotVector []float64, limit int, excludeID string) ([]scoredPosition, error) {
	outcome := s.annSearch(ctx, constants.PositionsCollection, pivotVector, limit)
	if !outcome.unavailable {
		candidates := make([]scoredPosition, 0, len(outcome.hits))
		for _, hit := range outcome.hits {
			if hit.ID == excludeID {
				continue
			}
			position, err := s.catalog.GetPosition(ctx, hit.ID)
			if err != nil {
				log.Printf("warning: ANN命中的岗位 %s 不在目录中，已跳过: %v", hit.ID, err)
				continue
			}
			candidates = append(candidates, scoredPosition{position: position, similarity: hit.Similarity})
		}
		return candidates, nil
	}

	if outcome.cause != nil {
		log.Printf("warning: ANN检索不可用，退化为暴力余弦排序: %v", outcome.cause)
	}

	positions, err := s.catalog.ListPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("遍历岗位目录失败: %w", err)
	}
	candidates := make([]scoredPosition, 0, len(positions))
	for _, position := range positions {
		if position.PositionID == excludeID {
			continue
		}
		candidates = append(candidates, scoredPosition{
			position:   position,
			similarity: s.bruteForceSimilarity(ctx, pivotVector, nil, position),
		})
	}
	return candidates, nil
}

// annSearch 执行一次ANN检索并归一为显式结果。
// 检索器缺失、支点向量为空、出错或空结果都标记为不可用，由调用方走兜底。
func (s *Service) annSearch(ctx context.Context, collection string, pivotVector []float64, limit int) annOutcome {
	if s.searcher == nil || len(pivotVector) == 0 {
		return annOutcome{unavailable: true}
	}
	hits, err := s.searcher.SearchSimilar(ctx, collection, pivotVector, limit)
	if err != nil {
		return annOutcome{unavailable: true, cause: err}
	}
	if len(hits) == 0 {
		return annOutcome{unavailable: true}
	}
	return annOutcome{hits: hits}
}

// bruteForceSimilarity 现场计算一个候选实体与支点向量的余弦相似度。
// 支点向量为空、候选无法向量化或向量为空时返回0（无语义贡献，不报错）。
func (s *Service) bruteForceSimilarity(ctx context.Context, pivotVector []float64, person *types.Person, position *types.Position) float64 {
	if len(pivotVector) == 0 {
		return 0.0
	}

	var (
		vector []float64
		err    error
	)
	if person != nil {
		vector = s.lookupStoredVector(ctx, constants.PeopleCollection, person.PersonID)
		if len(vector) == 0 {
			vector, err = s.vectorizer.VectorizePerson(ctx, person)
		}
	} else {
		vector = s.lookupStoredVector(ctx, constants.PositionsCollection, position.PositionID)
		if len(vector) == 0 {
			vector, err = s.vectorizer.VectorizePosition(ctx, position)
		}
	}
	if err != nil || len(vector) == 0 {
		return 0.0
	}
	return CosineSimilarity(pivotVector, vector)
}

// resolvePersonVector 取人员向量：先查持久化存储，未命中再现场计算
func (s *Service) resolvePersonVector(ctx context.Context, person *types.Person) []float64 {
	if vector := s.lookupStoredVector(ctx, constants.PeopleCollection, person.PersonID); len(vector) > 0 {
		return vector
	}
	vector, err := s.vectorizer.VectorizePerson(ctx, person)
	if err != nil {
		log.Printf("warning: 人员 %s 向量化失败，语义项置零: %v", person.PersonID, err)
		return nil
	}
	return vector
}

// resolvePositionVector 取岗位向量，逻辑与 resolvePersonVector 对称
func (s *Service) resolvePositionVector(ctx context.Context, position *types.Position) []float64 {
	if vector := s.lookupStoredVector(ctx, constants.PositionsCollection, position.PositionID); len(vector) > 0 {
		return vector
	}
	vector, err := s.vectorizer.VectorizePosition(ctx, position)
	if err != nil {
		log.Printf("warning: 岗位 %s 向量化失败，语义项置零: %v", position.PositionID, err)
		return nil
	}
	return vector
}

func (s *Service) lookupStoredVector(ctx context.Context, collection, entityID string) []float64 {
	if s.vectors == nil {
		return nil
	}
	vector, err := s.vectors.GetEntityVector(ctx, collection, entityID)
	if err != nil {
		return nil
	}
	return vector
}

func (s *Service) normalizeLimit(limit int) int {
	if limit <= 0 {
		return s.defaultLimit
	}
	return limit
}

// rankAndTruncate 按分数降序排序，同分按ID升序保证结果可复现，再截断到limit
func rankAndTruncate(results []types.MatchResult, limit int) []types.MatchResult {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].SubjectID < results[j].SubjectID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

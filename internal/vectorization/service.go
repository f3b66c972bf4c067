package vectorization

import (
	"context"
	"fmt"
	"io"
	"log"

	"talent-match-go/internal/embedding"
	"talent-match-go/internal/types"
)

// Service 向量化服务：把人员/岗位渲染为文本并通过嵌入模型得到语义向量。
// 嵌入模型是进程内共享的昂贵资源，由调用方注入并在整个生命周期复用；
// Service 自身无可变状态，可被并发调用（前提是所注入嵌入实现的只读推理线程安全）。
type Service struct {
	embedder       embedding.TextEmbedder
	fuseStructured bool
	logger         *log.Logger
}

// Option Service构造选项
type Option func(*Service)

// WithFuseStructured 开启后把8维结构化特征拼接到语义向量尾部。
// 默认关闭：参考行为只返回语义向量，结构化特征仅作为扩展点。
func WithFuseStructured(fuse bool) Option {
	return func(s *Service) {
		s.fuseStructured = fuse
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService 创建向量化服务。embedder 允许为nil（嵌入模型不可用），
// 此时所有向量化调用都返回空向量而不报错。
func NewService(embedder embedding.TextEmbedder, opts ...Option) *Service {
	s := &Service{
		embedder: embedder,
		logger:   log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Available 嵌入模型是否可用
func (s *Service) Available() bool {
	return s.embedder != nil
}

// Dimensions 返回产出向量的维度；模型不可用时为0
func (s *Service) Dimensions() int {
	if s.embedder == nil {
		return 0
	}
	d := s.embedder.GetDimensions()
	if s.fuseStructured {
		d += StructuredFeatureDim
	}
	return d
}

// VectorizePerson 为人员生成语义向量。
// 无任何技能或嵌入模型不可用时返回空向量（调用方视作"无语义贡献"，跳过或降权，而非报错）。
func (s *Service) VectorizePerson(ctx context.Context, person *types.Person) ([]float64, error) {
	if s.embedder == nil || (len(person.HardSkills) == 0 && len(person.SoftSkills) == 0) {
		return []float64{}, nil
	}

	text := FormatPersonText(person)
	vec, err := s.embedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("人员 %s 向量化失败: %w", person.PersonID, err)
	}

	if s.fuseStructured {
		vec = append(vec, StructuredFeatures(person.HardSkills, person.SoftSkills)...)
	}
	return vec, nil
}

// VectorizePosition 为岗位生成语义向量，技能要求取所有画像的并集。
// 无任何要求技能或嵌入模型不可用时返回空向量。
func (s *Service) VectorizePosition(ctx context.Context, position *types.Position) ([]float64, error) {
	hardSkills := position.RequiredHardSkills()
	softSkills := position.RequiredSoftSkills()
	if s.embedder == nil || (len(hardSkills) == 0 && len(softSkills) == 0) {
		return []float64{}, nil
	}

	text := FormatPositionText(position)
	vec, err := s.embedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("岗位 %s 向量化失败: %w", position.PositionID, err)
	}

	if s.fuseStructured {
		vec = append(vec, StructuredFeatures(hardSkills, softSkills)...)
	}
	return vec, nil
}

func (s *Service) embedText(ctx context.Context, text string) ([]float64, error) {
	vectors, err := s.embedder.EmbedStrings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		s.logger.Printf("嵌入模型返回空结果")
		return []float64{}, nil
	}
	return vectors[0], nil
}

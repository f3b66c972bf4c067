package recommend

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"talent-match-go/internal/types"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
)

// LearningPlan 针对一次人岗差距分析生成的学习计划
type LearningPlan struct {
	PersonID    string   `json:"person_id"`
	PositionID  string   `json:"position_id"`
	GeneratedBy string   `json:"generated_by"` // "llm" 或 "deterministic"
	Plan        string   `json:"plan"`
	Courses     []Course `json:"courses,omitempty"`
}

// LearningPlanGenerator 基于差距报告生成自由文本学习计划。
// 未注入聊天模型或模型调用失败时退化为确定性模板计划，接口始终可用。
type LearningPlanGenerator struct {
	llmModel model.ToolCallingChatModel
	catalog  *CourseCatalog
	timeout  time.Duration
	logger   *log.Logger
}

// GeneratorOption 生成器的可选配置
type GeneratorOption func(*LearningPlanGenerator)

// WithChatModel 注入LLM聊天模型，缺省时只走确定性模板
func WithChatModel(m model.ToolCallingChatModel) GeneratorOption {
	return func(g *LearningPlanGenerator) { g.llmModel = m }
}

// WithPlanTimeout 设置单次LLM调用的超时
func WithPlanTimeout(d time.Duration) GeneratorOption {
	return func(g *LearningPlanGenerator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithGeneratorLogger 替换默认日志器
func WithGeneratorLogger(logger *log.Logger) GeneratorOption {
	return func(g *LearningPlanGenerator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewLearningPlanGenerator 创建学习计划生成器
func NewLearningPlanGenerator(catalog *CourseCatalog, opts ...GeneratorOption) *LearningPlanGenerator {
	if catalog == nil {
		catalog = defaultCatalog()
	}
	g := &LearningPlanGenerator{
		catalog: catalog,
		timeout: 30 * time.Second,
		logger:  log.New(os.Stderr, "[LearningPlan] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GeneratePlan 为人员针对岗位的差距报告生成学习计划。
// 多画像岗位取就绪度最低的报告作为计划依据（差距最大的画像最需要补齐）。
func (g *LearningPlanGenerator) GeneratePlan(ctx context.Context, person *types.Person, position *types.Position, reports []types.SkillGapReport) (*LearningPlan, error) {
	if len(reports) == 0 {
		return nil, fmt.Errorf("没有可用的差距报告")
	}

	report := reports[0]
	for _, r := range reports[1:] {
		if r.ReadinessScore < report.ReadinessScore {
			report = r
		}
	}

	gapSkills := collectGapSkills(report)
	courses := g.catalog.CoursesForAll(gapSkills)

	plan := &LearningPlan{
		PersonID:   person.PersonID,
		PositionID: position.PositionID,
		Courses:    courses,
	}

	if g.llmModel != nil {
		text, err := g.generateWithLLM(ctx, person, position, report, courses)
		if err == nil {
			plan.GeneratedBy = "llm"
			plan.Plan = text
			return plan, nil
		}
		g.logger.Printf("LLM生成学习计划失败，退化为确定性模板: %v", err)
	}

	plan.GeneratedBy = "deterministic"
	plan.Plan = deterministicPlan(person, position, report, courses)
	return plan, nil
}

// generateWithLLM 调用聊天模型生成计划文本
func (g *LearningPlanGenerator) generateWithLLM(ctx context.Context, person *types.Person, position *types.Position, report types.SkillGapReport, courses []Course) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	systemMsg := einoschema.SystemMessage("你是一位资深的职业发展顾问，擅长根据技能差距分析结果制定切实可行的学习计划。回答使用与输入技能名一致的语言，分点给出建议。")
	userMsg := einoschema.UserMessage(buildPrompt(person, position, report, courses))

	response, err := g.llmModel.Generate(ctx, []*einoschema.Message{systemMsg, userMsg})
	if err != nil {
		return "", fmt.Errorf("聊天模型调用失败: %w", err)
	}
	if response == nil || response.Content == "" {
		return "", fmt.Errorf("聊天模型返回空响应")
	}
	return strings.TrimPrefix(response.Content, "\uFEFF"), nil
}

// buildPrompt 将差距报告渲染为提示词
func buildPrompt(person *types.Person, position *types.Position, report types.SkillGapReport, courses []Course) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "候选人: %s\n目标岗位: %s (%s)\n就绪度: %.0f/100\n\n技能差距:\n", person.Name, position.Name, position.Category, report.ReadinessScore)
	for _, gap := range append(append([]types.SkillGapDetail{}, report.HardSkillGaps...), report.SoftSkillGaps...) {
		if gap.Status == types.GapStatusMet || gap.Status == types.GapStatusExceeded {
			continue
		}
		fmt.Fprintf(&sb, "- %s: 要求 %.1f，当前 %.1f (%s)\n", gap.SkillName, gap.RequiredLevel, gap.CurrentLevel, gap.Status)
	}
	if len(courses) > 0 {
		sb.WriteString("\n可选课程:\n")
		for _, c := range courses {
			fmt.Fprintf(&sb, "- %s（覆盖 %s）\n", c.Title, c.Skill)
		}
	}
	sb.WriteString("\n请给出一份分阶段的学习计划，优先补齐严重差距，并在合适的阶段引用上面的课程。")
	return sb.String()
}

// deterministicPlan 不依赖LLM的模板化学习计划
func deterministicPlan(person *types.Person, position *types.Position, report types.SkillGapReport, courses []Course) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s 面向岗位「%s」的学习计划（就绪度 %.0f/100）\n", person.Name, position.Name, report.ReadinessScore)

	stage := 1
	for _, section := range []struct {
		status types.GapStatus
		label  string
	}{
		{types.GapStatusCritical, "优先补齐严重差距"},
		{types.GapStatusModerate, "其次提升中等差距"},
		{types.GapStatusMinor, "最后打磨轻微差距"},
	} {
		skills := skillsWithStatus(report, section.status)
		if len(skills) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n阶段%d · %s:\n", stage, section.label)
		for _, name := range skills {
			fmt.Fprintf(&sb, "- %s", name)
			if cs := coursesCovering(courses, name); len(cs) > 0 {
				fmt.Fprintf(&sb, "（推荐课程: %s）", cs[0].Title)
			}
			sb.WriteString("\n")
		}
		stage++
	}

	if stage == 1 {
		sb.WriteString("\n当前技能已满足岗位要求，建议保持现有水平并关注岗位要求变化。\n")
	}
	return sb.String()
}

func collectGapSkills(report types.SkillGapReport) []string {
	var out []string
	for _, status := range []types.GapStatus{types.GapStatusCritical, types.GapStatusModerate, types.GapStatusMinor} {
		out = append(out, skillsWithStatus(report, status)...)
	}
	return out
}

func skillsWithStatus(report types.SkillGapReport, status types.GapStatus) []string {
	var out []string
	for _, gap := range append(append([]types.SkillGapDetail{}, report.HardSkillGaps...), report.SoftSkillGaps...) {
		if gap.Status == status {
			out = append(out, gap.SkillName)
		}
	}
	return out
}

func coursesCovering(courses []Course, skillName string) []Course {
	var out []Course
	for _, c := range courses {
		if strings.EqualFold(strings.TrimSpace(c.Skill), strings.TrimSpace(skillName)) {
			out = append(out, c)
		}
	}
	return out
}

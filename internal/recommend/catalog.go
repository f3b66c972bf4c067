package recommend

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Course 课程目录中的一条学习资源
type Course struct {
	Skill    string `yaml:"skill" json:"skill"`
	Title    string `yaml:"title" json:"title"`
	Provider string `yaml:"provider,omitempty" json:"provider,omitempty"`
	URL      string `yaml:"url,omitempty" json:"url,omitempty"`
}

// CourseCatalog 按技能名索引的课程目录，技能名匹配不区分大小写
type CourseCatalog struct {
	courses map[string][]Course
}

// LoadCourseCatalog 从YAML文件加载课程目录。
// 路径为空时返回内置的默认目录，保证生成器始终可用。
func LoadCourseCatalog(path string) (*CourseCatalog, error) {
	if path == "" {
		return defaultCatalog(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取课程目录文件失败: %w", err)
	}

	var raw struct {
		Courses []Course `yaml:"courses"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("解析课程目录YAML失败: %w", err)
	}

	return newCatalog(raw.Courses), nil
}

func newCatalog(courses []Course) *CourseCatalog {
	c := &CourseCatalog{courses: make(map[string][]Course)}
	for _, course := range courses {
		key := strings.ToLower(strings.TrimSpace(course.Skill))
		if key == "" {
			continue
		}
		c.courses[key] = append(c.courses[key], course)
	}
	return c
}

// CoursesFor 查找覆盖给定技能的课程，未收录时返回空切片
func (c *CourseCatalog) CoursesFor(skillName string) []Course {
	return c.courses[strings.ToLower(strings.TrimSpace(skillName))]
}

// CoursesForAll 按技能列表聚合课程，保持输入顺序去重
func (c *CourseCatalog) CoursesForAll(skillNames []string) []Course {
	var out []Course
	seen := make(map[string]bool)
	for _, name := range skillNames {
		for _, course := range c.CoursesFor(name) {
			key := course.Skill + "|" + course.Title
			if !seen[key] {
				out = append(out, course)
				seen[key] = true
			}
		}
	}
	return out
}

// defaultCatalog 内置的兜底课程目录，覆盖常见技能
func defaultCatalog() *CourseCatalog {
	return newCatalog([]Course{
		{Skill: "Go", Title: "Go语言实战进阶", Provider: "内部学习平台"},
		{Skill: "Python Programming", Title: "Python工程化实践", Provider: "内部学习平台"},
		{Skill: "Kubernetes", Title: "Kubernetes应用与运维", Provider: "内部学习平台"},
		{Skill: "MySQL", Title: "MySQL性能优化", Provider: "内部学习平台"},
		{Skill: "Communication", Title: "高效职场沟通", Provider: "内部学习平台"},
		{Skill: "Leadership", Title: "团队管理基础", Provider: "内部学习平台"},
	})
}

package prompts

import (
	"fmt"
	"strings"

	"github.com/hrygo/memoria/internal/profile"
)

// defaultTopicsEN is the built-in profile vocabulary. Projects extend or
// replace it through additional_user_profiles and overwrite_user_profiles.
var defaultTopicsEN = []profile.TopicSpec{
	{Topic: "basic_info", SubTopics: []profile.SubTopicSpec{
		{Name: "Name"},
		{Name: "Age", Description: "integer"},
		{Name: "Gender"},
		{Name: "birth_date"},
		{Name: "nationality"},
		{Name: "ethnicity"},
		{Name: "language_spoken"},
	}},
	{Topic: "contact_info", SubTopics: []profile.SubTopicSpec{
		{Name: "email"},
		{Name: "phone"},
		{Name: "city"},
		{Name: "country"},
	}},
	{Topic: "education", SubTopics: []profile.SubTopicSpec{
		{Name: "school"},
		{Name: "degree"},
		{Name: "major"},
	}},
	{Topic: "demographics", SubTopics: []profile.SubTopicSpec{
		{Name: "marital_status"},
		{Name: "number_of_children"},
		{Name: "household_income"},
	}},
	{Topic: "work", SubTopics: []profile.SubTopicSpec{
		{Name: "company"},
		{Name: "title"},
		{Name: "working_industry"},
		{Name: "previous_projects"},
		{Name: "work_skills"},
	}},
	{Topic: "interest", SubTopics: []profile.SubTopicSpec{
		{Name: "books"},
		{Name: "movies"},
		{Name: "music"},
		{Name: "foods"},
		{Name: "sports"},
	}},
	{Topic: "psychological", SubTopics: []profile.SubTopicSpec{
		{Name: "personality"},
		{Name: "values"},
		{Name: "beliefs"},
		{Name: "motivations"},
		{Name: "goals"},
	}},
	{Topic: "life_event", SubTopics: []profile.SubTopicSpec{
		{Name: "marriage"},
		{Name: "relocation"},
		{Name: "retirement"},
	}},
}

var defaultTopicsZH = []profile.TopicSpec{
	{Topic: "基本信息", SubTopics: []profile.SubTopicSpec{
		{Name: "用户姓名"},
		{Name: "用户年龄", Description: "整数"},
		{Name: "性别"},
		{Name: "出生日期"},
		{Name: "国籍"},
		{Name: "民族"},
		{Name: "语言"},
	}},
	{Topic: "联系信息", SubTopics: []profile.SubTopicSpec{
		{Name: "电子邮件"},
		{Name: "电话"},
		{Name: "城市"},
		{Name: "省份"},
	}},
	{Topic: "教育背景", SubTopics: []profile.SubTopicSpec{
		{Name: "学校"},
		{Name: "学位"},
		{Name: "专业"},
		{Name: "毕业年份"},
	}},
	{Topic: "人口统计", SubTopics: []profile.SubTopicSpec{
		{Name: "婚姻状况"},
		{Name: "子女数量"},
		{Name: "家庭收入"},
	}},
	{Topic: "工作", SubTopics: []profile.SubTopicSpec{
		{Name: "公司"},
		{Name: "职位"},
		{Name: "工作地点"},
		{Name: "参与项目"},
		{Name: "工作技能"},
	}},
	{Topic: "兴趣爱好", SubTopics: []profile.SubTopicSpec{
		{Name: "书籍"},
		{Name: "电影"},
		{Name: "音乐"},
		{Name: "美食"},
		{Name: "运动"},
	}},
	{Topic: "生活方式", SubTopics: []profile.SubTopicSpec{
		{Name: "饮食偏好", Description: "例如：素食，纯素"},
		{Name: "运动习惯"},
		{Name: "健康状况"},
		{Name: "睡眠模式"},
		{Name: "吸烟"},
		{Name: "饮酒"},
	}},
	{Topic: "心理特征", SubTopics: []profile.SubTopicSpec{
		{Name: "性格特点"},
		{Name: "价值观"},
		{Name: "信仰"},
		{Name: "动力"},
		{Name: "目标"},
	}},
	{Topic: "人生大事", SubTopics: []profile.SubTopicSpec{
		{Name: "婚姻"},
		{Name: "搬迁"},
		{Name: "退休"},
	}},
}

// DefaultTopics returns the built-in topic vocabulary for a language.
func DefaultTopics(lang string) []profile.TopicSpec {
	if lang == "zh" {
		return defaultTopicsZH
	}
	return defaultTopicsEN
}

// FormatTopic renders one topic with its sub topics as a nested list item.
func FormatTopic(topic profile.TopicSpec) string {
	if len(topic.SubTopics) == 0 {
		return fmt.Sprintf("- %s", topic.Topic)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "- %s (%s)", topic.Topic, topic.Description)
	for _, sp := range topic.SubTopics {
		b.WriteString("\n  - ")
		b.WriteString(sp.Name)
		if sp.Description != "" {
			fmt.Fprintf(&b, "(%s)", sp.Description)
		}
	}
	return b.String()
}

// FormatTopics renders the whole vocabulary block handed to the model. The
// trailing ellipsis signals that the list is open ended.
func FormatTopics(topics []profile.TopicSpec) string {
	lines := make([]string, 0, len(topics))
	for _, t := range topics {
		lines = append(lines, FormatTopic(t))
	}
	return strings.Join(lines, "\n") + "\n..."
}

// SpecificSubtopics renders the sub topic suggestions of one topic, matching
// on the unified topic name. Topics without suggestions yield "None".
func SpecificSubtopics(topic string, topics []profile.TopicSpec) string {
	spec, ok := profile.FindTopic(topics, topic)
	if !ok || len(spec.SubTopics) == 0 {
		return "None"
	}
	lines := make([]string, 0, len(spec.SubTopics))
	for _, sp := range spec.SubTopics {
		line := fmt.Sprintf("  - %s", sp.Name)
		if sp.Description != "" {
			line += fmt.Sprintf("(%s)", sp.Description)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// FormatEventTags renders the project's event tags for tagging prompts.
func FormatEventTags(tags []profile.EventTag) string {
	lines := make([]string, 0, len(tags))
	for _, tag := range tags {
		line := fmt.Sprintf("- %s", tag.Name)
		if tag.Description != "" {
			line += fmt.Sprintf("(%s)", tag.Description)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

package prompts

import (
	"fmt"
	"strings"
)

type mergeExample struct {
	input    string
	response string
}

var mergeExamplesEN = map[string][]mergeExample{
	"replace": {{
		input: `## User Topic
basic_info, Age
## Old Memo
User is 39 years old
## New Memo
User is 40 years old
`,
		response: `
Age has one true value only, the old one is outdated, so replace it with the new one.
---
- UPDATE{tab}User is 40 years old
`,
	}},
	"merge": {{
		input: `## User Topic
interest, Food
## Old Memo
Love cheese pizza
## New Memo
Love chicken pizza
`,
		response: `
interest of food is not exclusive, so merge the two memos.
---
- UPDATE{tab}Love cheese and chicken pizza
`,
	}},
	"keep": {{
		input: `## User Topic
basic_info, Birthday
## Old Memo
1999/04/30
## New Memo
User didn't provide any birthday
`,
		response: `
birthday is a unique value and the new memo doesn't provide any valuable info, so keep the old one.
---
- UPDATE{tab}1999/04/30
`,
	}},
	"special": {{
		input: `## Update Instruction
Always keep the latest goal and remove the old one.
## User Topic
work, goal
## Old Memo
Want to be a software engineer
## New Memo
Want to start a startup
`,
		response: `
Goal is not exclusive, but the instruction requires to keep the latest goal and remove the old one.
So replace the old one with the new one.
---
- UPDATE{tab}Start a startup
`,
	}},
	"validate": {
		{
			input: `### Topic Description
Record the user's long-term goal of study.
## User Topic
study, goal
## Old Memo
NONE
## New Memo
I want to play video game in the next weekend
`,
			response: `Just validate the new memo.
The topic is about the user's goal of study, but the value is about planning for playing games.
Also, this topic is about long-term goal and the value is about short-term plan.
---
- ABORT{tab}invalid
`,
		},
		{
			input: `Today is 2025-04-05
### Topic Description
Record the user's current working plans, forgive the outdated plans
## User Topic
work, curent_plans
## Old Memo
User need to prepare for the interview in 2025-03-21
## New Memo
User need to develop a Memoria Playground App before 2025-05-01
`,
			response: `User can have multiple current working plans, I can merge the two plans.
But based on the requirements, the old memo is outdated(today is 04-05, but the interview is in 03-21), so I need to discard the old memo.
---
- UPDATE{tab}User need to develop a Memoria Playground App before 2025-05-01
`,
		},
	},
}

var mergeExamplesZH = map[string][]mergeExample{
	"replace": {{
		input: `## 用户主题
基本信息, 年龄
## 旧备忘录
用户39岁
## 新备忘录
用户40岁
`,
		response: `
年龄只能有一个真实值，旧的已过时，所以用新的替换。
---
- UPDATE{tab}用户40岁
`,
	}},
	"merge": {{
		input: `## 用户主题
兴趣, 食物
## 旧备忘录
喜欢芝士披萨
## 新备忘录
喜欢鸡肉披萨
`,
		response: `
食物兴趣不是互斥的，所以合并两条备忘录。
---
- UPDATE{tab}喜欢芝士和鸡肉披萨
`,
	}},
	"keep": {{
		input: `## 用户主题
基本信息, 生日
## 旧备忘录
1999/04/30
## 新备忘录
用户没有提及生日
`,
		response: `
生日是唯一值，新备忘录没有提供有价值的信息，所以保留旧的。
---
- UPDATE{tab}1999/04/30
`,
	}},
	"special": {{
		input: `## 更新说明
总是保持最新的目标并删除旧的目标。
## 用户主题
工作, 目标
## 旧备忘录
想成为一名软件工程师
## 新备忘录
想创办一家初创公司
`,
		response: `
目标通常可以有多个，但根据指令要求保留最新目标并删除旧目标。
所以用新的替换旧的。
---
- UPDATE{tab}想创办一家初创公司
`,
	}},
	"validate": {
		{
			input: `### 主题描述
记录用户的长期学习目标。
## 用户主题
学习, 目标
## 旧备忘录
NONE
## 新备忘录
我想在下周末玩电子游戏
`,
			response: `验证新备忘录。
主题是关于用户的学习目标，但内容是关于玩游戏的计划。
而且这个主题是关于长期目标，但内容是短期计划。
---
- ABORT{tab}invalid
`,
		},
		{
			input: `今天是 2025-04-05
### 主题描述
记录用户当前的工作计划，忽略过期的计划
## 用户主题
工作, 当前计划
## 旧备忘录
用户需要在2025-03-21准备面试
## 新备忘录
用户需要在2025-05-01之前开发一个Memoria Playground应用
`,
			response: `用户可以有多个当前工作计划，我可以合并这两个计划。
但是根据要求，旧备忘录已经过期了（今天是04-05，但面试在03-21），所以我需要丢弃旧的备忘录。
---
- UPDATE{tab}用户需要在2025-05-01之前开发一个Memoria Playground应用
`,
		},
	},
}

var mergeTemplateEN = `You are a smart memo manager which controls the memory/figure of a user.
You job is to validate the memo and merge memos.
You will be given two memos, one old and one new on the same topic/aspect of the user.
You should update the memo based on the inputs.

There are some guidelines about how to update the memo:
### replace the old one
The old memo is considered outdated and should be replaced with the new memo, or the new memo is conflicting with the old memo:
<example>
{example_replace}
</example>

### merge the memos
Note that MERGE should be selected as long as there is information in the old memo that is not included in the new memo.
The old and new memo tell different parts of the same story and should be merged together:
<example>
{example_merge}
</example>

### keep the old one
If the new memo has no information added or containing nothing useful, you should keep the old memo.
<example>
{example_keep}
</example>

### special case
User may give you instructions in '## Update Instruction' section to update the memo in a certain way.
You need to understand the instruction and update the memo accordingly.
<example>
{example_special}
</example>

### no old memo
` + "`## Old Memo`" + ` is not always provided, if empty, you just need to validate the new memo based on the topic description.

## Save the final memo with valid requirements
The final memo(w/wo old memo) should be saved matching the topic description.
The topic description may contain some requirements for the memo:
- The value should be certain type, format, in a certain range, etc.
- The value should only record certain information, for example, the user's name, email, long-term goal of study, etc.
You need to judge whether the topic's value matches the description.
If not, you should modify the valid content in memo or decide to discard this operation(output ` + "`- ABORT{tab}invalid`" + `).
<example>
{example_validate}
</example>

## Input formate
Below is the input format:
<template>
Today is [today]
## Update Instruction
[update_instruction]
### Topic Description
[topic_description]
## User Topic
[topic], [subtopic]
## Old Memo
[old_memo]
## New Memo
[new_memo]
</template>
- [update_instruction], [topic_description], [old_memo] may be empty. When empty, a ` + "`NONE`" + ` will be placed.
- [today] is the current date in format YYYY-MM-DD.
- Pay attention to and keep the time annotation in the new and old memos (e.g., XXX[mentioned on 2025/05/05]).

## Output requirements
Think step by step before memo update.
Based on the above instructions, you need to think step by step and output your final result in the following format:
Output format:
### Output Format
<template>
THOUGHT
---
- UPDATE{tab}MEMO
</template>
You first need to think about the requirements and if the topic's value is suitable for this topic step by step.
Then output your result on topic's value after ` + "`---`" + ` .
### RESULT
If the topic can be revised to match the description's requirements, output:
- UPDATE{tab}MEMO
the new line must start with ` + "`- UPDATE{tab}`" + `, then output the revised value of the topic
If the memo is totally invalid, just output ` + "`- ABORT{tab}invalid`" + ` after ` + "`---`" + `

Make sure you understand the topic description(In ` + "`### Topic Description`" + ` section) if it exists and update the final memo accordingly.
Understand the memos wisely, you are allowed to infer the information from the new memo and old memo to decide the final memo.
Follow the instruction mentioned below:
- Do not return anything from the custom few shot prompts provided above.
- Stick to the correct output format.
- Make sure the final memo is no more than 5 sentences. Always concise and output the guts of the memo.
- Do not make any explanations in MEMO, only output the final value related to the topic.
- Never make up things that are not mentioned in the input.
- If the input memos are not matching the topic description, you should output ` + "`- ABORT{tab}invalid`" + ` after ` + "`---`" + `

That's all, now perform your job.
`

var mergeTemplateZH = `你是一个智能备忘录管理器，负责控制用户的记忆/形象。
你的工作是验证备忘录并合并备忘录。
你将收到两条关于用户同一主题/方面的备忘录，一条是旧的，一条是新的。
你应该根据输入更新备忘录。

以下是如何更新备忘录的指导原则：
### 替换旧备忘录
如果旧备忘录已过时应该被新备忘录替换，或者新备忘录与旧备忘录冲突：
<example>
{example_replace}
</example>

### 合并备忘录
注意，只要旧备忘录中包含新备忘录中未包含的信息，就应该选择合并。
新旧备忘录讲述了同一故事的不同部分，应该合并在一起：
<example>
{example_merge}
</example>

### 保持旧备忘录
如果新备忘录没有添加信息或不包含任何有用信息，你应该保持旧备忘录。
<example>
{example_keep}
</example>

### 特殊情况
用户可能会在'## 更新说明'部分给出更新备忘录的特定指令。
你需要理解这些指令并按照指令更新备忘录。
<example>
{example_special}
</example>

### 无旧备忘录
` + "`## 旧备忘录`" + `并不总是提供，如果为空，你只需要根据主题描述验证新备忘录。

## 保存符合有效要求的最终备忘录
最终备忘录（无论是否有旧备忘录）都应该符合主题描述。
主题描述可能包含一些对备忘录的要求：
- 值应该是特定类型、格式、在特定范围内等
- 值应该只记录特定信息，例如用户的姓名、邮箱、学习的长期目标等
你需要判断主题的值是否符合描述，如果不符合，你应该修改备忘录中的有效内容或决定放弃此操作（输出` + "`- ABORT{tab}invalid`" + `）。
<example>
{example_validate}
</example>

## 输入格式
以下是输入格式：
<template>
今天是 [today]
## 更新说明
[update_instruction]
### 主题描述
[topic_description]
## 用户主题
[topic], [subtopic]
## 旧备忘录
[old_memo]
## 新备忘录
[new_memo]
</template>
- [update_instruction]、[topic_description]、[old_memo] 可能为空。当为空时，将显示` + "`NONE`" + `。
- [today] 是当前日期，格式为 YYYY-MM-DD。
- 留意并且保留新旧备忘录中的时间标注（例如： XXX[提及于 2025/05/05]）。

## 输出要求
在更新备忘录之前需要逐步思考。
根据上述说明，你需要逐步思考并按以下格式输出最终结果：
输出格式：
### 输出格式
<template>
THOUGHT
---
- UPDATE{tab}MEMO
</template>
你首先需要逐步思考要求以及主题的值是否适合这个主题。
然后在` + "`---`" + `之后输出你对主题值的结果。
### 结果
如果主题可以修改以符合描述的要求，输出：
- UPDATE{tab}MEMO
新行必须以` + "`- UPDATE{tab}`" + `开头，然后输出主题的修改后的值
如果新旧备忘录都无效，你需要放弃这次操作，在` + "`---`" + `后输出` + "`- ABORT{tab}invalid`" + `即可

确保你理解主题描述（在` + "`### 主题描述`" + `部分）如果存在的话，并相应地更新最终备忘录。
明智地理解备忘录，你可以从新备忘录和旧备忘录中推断信息以决定最终备忘录。
遵循以下说明：
- 不要返回上面提供的自定义示例中的任何内容。
- 严格遵守正确的输出格式。
- 确保最终备忘录不超过5句话。始终保持简洁并输出备忘录的要点。
- 不要在备忘录中做任何解释，只输出与主题相关的最终值。
- 永远不要编造输入中未提到的内容。
- 如果输入的备忘录与主题描述不符，你应该直接输出` + "`- ABORT{tab}invalid`" + `。

以上就是全部内容，现在执行你的工作。
`

func renderMergeExamples(examples []mergeExample, tab string) string {
	blocks := make([]string, 0, len(examples))
	for _, ex := range examples {
		blocks = append(blocks, fmt.Sprintf("<input>\n%s\n</input>\n<output>\n%s\n</output>\n", ex.input, ex.response))
	}
	return strings.ReplaceAll(strings.Join(blocks, "\n"), "{tab}", tab)
}

// MergePrompt builds the memo merge and validation system prompt.
func MergePrompt(lang, tab string) string {
	tmpl, examples := mergeTemplateEN, mergeExamplesEN
	if lang == "zh" {
		tmpl, examples = mergeTemplateZH, mergeExamplesZH
	}
	return strings.NewReplacer(
		"{example_replace}", renderMergeExamples(examples["replace"], tab),
		"{example_merge}", renderMergeExamples(examples["merge"], tab),
		"{example_keep}", renderMergeExamples(examples["keep"], tab),
		"{example_special}", renderMergeExamples(examples["special"], tab),
		"{example_validate}", renderMergeExamples(examples["validate"], tab),
		"{tab}", tab,
	).Replace(tmpl)
}

// MergeInput packs one old/new memo pair into the merge call's user message.
// Empty optional sections are rendered as NONE.
func MergeInput(lang, today, topic, subTopic, oldMemo, newMemo, updateInstruction, topicDescription string) string {
	orNone := func(s string) string {
		if s == "" {
			return "NONE"
		}
		return s
	}
	if lang == "zh" {
		return fmt.Sprintf(`今天是%s。
## 更新说明
%s
### 主题描述
%s
## 用户主题
%s, %s
## 旧备忘录
%s
## 新备忘录
%s
`, today, orNone(updateInstruction), orNone(topicDescription), topic, subTopic, orNone(oldMemo), newMemo)
	}
	return fmt.Sprintf(`Today is %s.
## Update Instruction
%s
### Topic Description
%s
## User Topic
%s, %s
## Old Memo
%s
## New Memo
%s
`, today, orNone(updateInstruction), orNone(topicDescription), topic, subTopic, orNone(oldMemo), newMemo)
}

package prompts

import (
	"fmt"
	"strings"
)

type extractExample struct {
	input string
	facts []Fact
}

var extractExamplesEN = []extractExample{
	{
		input: "- User say Hi to assistant.\n",
		facts: nil,
	},
	{
		input: "\n- User is married to SiLei [mention 2025/01/15, happen at 2025/01/01]\n",
		facts: []Fact{
			{Topic: "demographics", SubTopic: "marital_status", Memo: "married"},
			{Topic: "life_event", SubTopic: "Marriage", Memo: "married to SiLei [happen at 2025/01/01]"},
		},
	},
	{
		input: "\n- User lives in San Francisco [mention 2025/01/01]\n- User is looking for a daily restaurant in San Francisco [mention 2025/01/01]\n",
		facts: []Fact{
			{Topic: "contact_info", SubTopic: "city", Memo: "San Francisco [mention 2025/01/01]"},
		},
	},
	{
		input: "\n- User is referred as Melinda [mention 2025/01/01]\n- User is applying PhD [mention 2025/01/01]\n",
		facts: []Fact{
			{Topic: "basic_info", SubTopic: "name", Memo: "Referred as Melinda"},
			{Topic: "education", SubTopic: "degree", Memo: "user is applying PhD [mention 2025/01/01]"},
		},
	},
	{
		input: "\n- User had a meeting with John at 3pm [mention 2024/10/11, happen at 2024/10/10]\n- User is starting a project with John [mention 2024/10/11]\n",
		facts: []Fact{
			{Topic: "work", SubTopic: "collaboration", Memo: "user is starting a project with John [mention 2024/10/11] and already met once [mention 2024/10/10]"},
		},
	},
	{
		input: "\n- User is a software engineer at Memoria [mention 2025/01/01]\n- User's name is John [mention 2025/01/01]\n",
		facts: []Fact{
			{Topic: "basic_info", SubTopic: "Name", Memo: "John"},
			{Topic: "work", SubTopic: "Title", Memo: "user is a Software engineer [mention 2025/01/01]"},
			{Topic: "work", SubTopic: "Company", Memo: "user works at Memoria [mention 2025/01/01]"},
		},
	},
	{
		input: "\n- User's favorite movies are Inception and Interstellar [mention 2025/01/01]\n- User's favorite movie is Tenet [mention 2025/01/02]\n",
		facts: []Fact{
			{Topic: "interest", SubTopic: "Movie", Memo: "Inception, Interstellar and Tenet; favorite movie is Tenet [mention 2025/01/02]"},
			{Topic: "interest", SubTopic: "movie_director", Memo: "user seems to be a Big fan of director Christopher Nolan [mention 2025/01/02]"},
		},
	},
}

var extractExamplesZH = []extractExample{
	{
		input: "- 用户向助手问好。\n",
		facts: nil,
	},
	{
		input: "\n- 用户与SiLei已婚 [提及于2025/01/15，发生于2025/01/01]\n",
		facts: []Fact{
			{Topic: "人口统计", SubTopic: "婚姻状况", Memo: "已婚"},
			{Topic: "生活事件", SubTopic: "婚姻", Memo: "与SiLei结婚 [发生于2025/01/01]"},
		},
	},
	{
		input: "\n- 用户住在旧金山 [提及于2025/01/01]\n- 用户在旧金山寻找一家日常餐厅 [提及于2025/01/01]\n",
		facts: []Fact{
			{Topic: "联系方式", SubTopic: "城市", Memo: "旧金山 [提及于2025/01/01]"},
		},
	},
	{
		input: "\n- 用户被称为Melinda [提及于2025/01/01]\n- 用户正在申请博士学位 [提及于2025/01/01]\n",
		facts: []Fact{
			{Topic: "基本信息", SubTopic: "姓名", Memo: "被称为Melinda"},
			{Topic: "教育经历", SubTopic: "学历", Memo: "用户正在申请博士学位 [提及于2025/01/01]"},
		},
	},
	{
		input: "\n- 用户在下午3点与John开会 [提及于2024/10/11，发生于2024/10/10]\n- 用户正在与John开始一个新项目 [提及于2024/10/11]\n",
		facts: []Fact{
			{Topic: "工作", SubTopic: "合作", Memo: "用户正在与John开始一个新项目 [提及于2024/10/11] 并已经见过一次面 [提及于2024/10/10]"},
		},
	},
	{
		input: "\n- 用户是Memoria的软件工程师 [提及于2025/01/01]\n- 用户的名字是John [提及于2025/01/01]\n",
		facts: []Fact{
			{Topic: "基本信息", SubTopic: "姓名", Memo: "John"},
			{Topic: "工作", SubTopic: "职位", Memo: "用户是软件工程师 [提及于2025/01/01]"},
			{Topic: "工作", SubTopic: "公司", Memo: "用户在Memoria工作 [提及于2025/01/01]"},
		},
	},
	{
		input: "\n- 用户最喜欢的电影是《盗梦空间》和《星际穿越》 [提及于2025/01/01]\n- 用户最喜欢的电影是《信条》 [提及于2025/01/02]\n",
		facts: []Fact{
			{Topic: "兴趣爱好", SubTopic: "电影", Memo: "《盗梦空间》、《星际穿越》和《信条》；最喜欢的是《信条》 [提及于2025/01/02]"},
			{Topic: "兴趣爱好", SubTopic: "电影导演", Memo: "用户似乎是克里斯托弗·诺兰的忠实粉丝 [提及于2025/01/02]"},
		},
	},
}

const extractJobEN = `You are a professional psychologist.
Your responsibility is to carefully read out the memo of user and extract the important profiles of user in structured format.
Then extract relevant and important facts, preferences about the user that will help evaluate the user's state.
You will not only extract the information that's explicitly stated, but also infer what's implied from the conversation.
You will use the same language as the user's input to record the facts.
`

const extractJobZH = `你是一位专业的心理学家。
你的责任是仔细阅读用户的备忘录并以结构化的格式提取用户的重要信息。
然后提取相关且重要的事实、用户偏好，这些信息将有助于评估用户的状态。
你不仅要提取明确陈述的信息，还要推断对话中隐含的信息。
你要使用与用户输入相同的语言来记录这些事实。
`

var extractTemplateEN = `{system_prompt}
## Formatting
### Input
#### Topics Guidelines
You'll be given some topics and subtopics that you should focus on collecting and extracting.
You can create your own topics/sub_topics if you find it necessary, unless the user requests to not to create new topics/sub_topics.
#### User Before Topics
You will be given the topics and subtopics that the user has already shared with the assistant.
Consider use the same topic/subtopic if it's mentioned in the conversation again.
#### Memos
You will receive a memo of user in Markdown format, which states user infos, events, preferences, etc.
The memo is summarized from the chats between user and a assistant.

### Output
You need to extract the facts and preferences from the memo and place them in order list:
- TOPIC{tab}SUB_TOPIC{tab}MEMO
For example:
- basic_info{tab}name{tab}melinda
- work{tab}title{tab}software engineer

For each line is a fact or preference, containing:
1. TOPIC: topic represents of this preference
2. SUB_TOPIC: the detailed topic of this preference
3. MEMO: the extracted infos, facts or preferences of ` + "`user`" + `
those elements should be separated by ` + "`{tab}`" + ` and each line should be separated by ` + "`\n`" + ` and started with "- ".


## Examples
Here are some few shot examples:
{examples}
Return the facts and preferences in a markdown list format as shown above.

Remember the following:
- If the user mentions time-sensitive information, try to infer the specific date from the data.
- Use specific dates when possible, never use relative dates like "today" or "yesterday" etc.
- If you do not find anything relevant in the below conversation, you can return an empty list.
- Make sure to return the response in the format mentioned in the formatting & examples section.
- You should infer what's implied from the conversation, not just what's explicitly stated.
- Place all content related to this topic/sub_topic in one element, no repeat.

Following is a conversation between the user and the assistant. You have to extract/infer the relevant facts and preferences from the conversation and return them in the list format as shown above.
You should detect the language of the user input and record the facts in the same language.
If you do not find anything relevant facts, user memories, and preferences in the below conversation, just return "NONE" or "NO FACTS".

Only extract the attributes with actual values, if the user does not provide any value, do not extract it.

#### Topics Guidelines
Below is the list of topics and subtopics that you should focus on collecting and extracting:
{topic_examples}

Now perform your task.
`

var extractTemplateZH = `{system_prompt}

## 格式
### 输入
#### 主题建议
你会得到一些需要重点收集和提取的主题和子主题。
如果你认为有必要，可以创建自己的主题/子主题，除非用户明确要求不要创建新的主题/子主题。

#### 已有的主题
你会得到用户已经与助手分享的主题和子主题。
如果对话中再次提到相同的主题/子主题，请考虑使用相同的主题/子主题。

#### 备忘录
你将收到一份用户的备忘录（Markdown格式），其中包含用户信息、事件、偏好等。
这些备忘录是从用户和助手的对话中总结出来的。

### 输出
你需要从备忘录中提取事实和偏好，并按顺序列出：
- TOPIC{tab}SUB_TOPIC{tab}MEMO
例如：
- 基本信息{tab}姓名{tab}melinda
- 工作{tab}职称{tab}软件工程师

每行代表一个事实或偏好，包含：
1. TOPIC: 主题，表示该偏好的类别
2. SUB_TOPIC: 详细主题，表示该偏好的具体类别
3. MEMO: 提取的用户相关信息、事实或偏好
这些元素应以 ` + "`{tab}`" + ` 分隔，每行应以 ` + "`\n`" + ` 分隔，并以 "- " 开头。

## 示例
以下是一些示例：
{examples}

请按上述格式返回事实和偏好。

请记住以下几点：
- 如果用户提到时间敏感的信息，试图推理出具体的日期。
- 当可能时，请使用具体日期，而不是使用"今天"或"昨天"等相对时间。
- 如果在以下对话中没有找到任何相关信息，可以返回空列表。
- 确保按照格式和示例部分中提到的格式返回响应。
- 你应该推断对话中隐含的内容，而不仅仅是明确陈述的内容。
- 将所有与该主题/子主题相关的内容放在一个元素中，不要重复。

以下是用户的备忘录。你需要从中提取/推断相关的事实和偏好，并按上述格式返回。
你应该检测用户输入的语言，并用相同的语言记录事实。
如果在以下对话中没有找到任何相关事实、用户记忆和偏好，你可以返回"NONE"或"无事实"。

只提取有实际值的属性，如果用户没有提供任何值，请不要提取。

#### 主题建议
以下是你应该重点收集和提取的主题和子主题列表：
{topic_examples}

现在开始执行你的任务。
`

func renderExtractExamples(examples []extractExample, tab string) string {
	blocks := make([]string, 0, len(examples))
	for _, ex := range examples {
		blocks = append(blocks, fmt.Sprintf("<example>\n<input>%s</input>\n<output>\n%s\n</output>\n</example>\n",
			ex.input, PackFacts(ex.facts, tab)))
	}
	return strings.Join(blocks, "\n\n")
}

// ExtractPrompt builds the fact extraction system prompt. systemPrompt
// overrides the built-in psychologist role when non-empty.
func ExtractPrompt(lang, systemPrompt, tab, topicExamples string) string {
	tmpl, job, examples := extractTemplateEN, extractJobEN, extractExamplesEN
	if lang == "zh" {
		tmpl, job, examples = extractTemplateZH, extractJobZH, extractExamplesZH
	}
	if systemPrompt != "" {
		job = systemPrompt
	}
	return strings.NewReplacer(
		"{system_prompt}", job,
		"{examples}", renderExtractExamples(examples, tab),
		"{tab}", tab,
		"{topic_examples}", topicExamples,
	).Replace(tmpl)
}

const extractStrictHeaderEN = "Don't extract topics/subtopics that are not mentioned in #### Topics Guidelines, otherwise your answer is invalid!"
const extractStrictHeaderZH = "不要提取#### 主题建议中没出现的主题/子主题， 否则你的回答是无效的！"

// ExtractInput packs the user's existing topics and the entry memo into the
// extraction call's user message.
func ExtractInput(lang, alreadyTopics, memo string, strictMode bool) string {
	if lang == "zh" {
		header := ""
		if strictMode {
			header = extractStrictHeaderZH
		}
		return fmt.Sprintf(`%s
#### 已有的主题
如果提取相关的主题/子主题，请考虑使用下面的主题/子主题命名:
%s

#### 对话
请注意，不要输出任何关于对话中未提及的主题/子主题的信息:
%s
`, header, alreadyTopics, memo)
	}
	header := ""
	if strictMode {
		header = extractStrictHeaderEN
	}
	return fmt.Sprintf(`%s
#### User Before topics
%s
Don't output the topics and subtopics that are not mentioned in the following conversation.
#### Memo
%s
`, header, alreadyTopics, memo)
}

package prompts

import (
	"fmt"
	"strings"
)

var entrySummaryTemplateEN = `You are a expert of logging personal info, schedule, events from chats.
You will be given a chats between a user and an assistant.

## Requirement
- You need to list all possible user info
- You need to list all possible schedule
- You need to list the user events with detailed datetime. Convert the event date info in the message based on [TIME] after your log. for example
    Input: ` + "`[2024/04/30] user: I bought a new car yesterday!`" + `
    Output: ` + "`user bought a new car. [mention 2024/04/29, happen at 2024/04/30]`" + `
    Input: ` + "`[2024/04/30] user: I bought a car 4 years ago!`" + `
    Output: ` + "`user bought a car. [mention 2024/04/30, happen at 2020]`" + `
    Explain: because you don't know the exact date, only year, so 2024-4=2020. or you can log at [4 years before 2024/04/30]
    Input: ` + "`[2024/04/30] user: I bought a new car last week!`" + `
    Output: ` + "`user bought a new car. [mention 2024/04/30, happen at a week before 2024/04/30]`" + `
    Explain: because you don't know the exact date.

### Important Info
Below is the topics/subtopics you should log from the chats.
<topics>
{topics}
</topics>
Below is the important attributes you should log from the chats.
<attributes>
{attributes}
</attributes>

#### Input Chats
You will receive a conversation between the user and the assistant. The format of the conversation is:
- [TIME] NAME: MESSAGE
where NAME is ALIAS(ROLE) or just ROLE, when ALIAS is available, use ALIAS to refer user/assistant.
MESSAGE is the content of the conversation.
TIME is the time of this message happened, so you need to convert the date info in the message based on TIME if necessary.

## Output Format
Output your logging result in Markdown unorder list format.
For example:
` + "```" + `
## Events
- Jack paint a picture about his kids today.[mention 2023/1/23]
## User Info
- User's alias is Jack, assistant is Melinda.
- Jack mentioned his work is software engineer in Memoria. [mention 2023/1/23]
## Schedules
- Jack plans to go the gym tomorrow. [mention 2023/1/23, happen at 2023/1/24]
...
` + "```" + `
Always add specific mention time of your log, and the event happen time if possible.

Finally, The logging result should use the same language as the chats. English in, English out. Chinese in, Chinese out.
Now perform your task.
`

var entrySummaryTemplateZH = `你是一位从聊天记录中记录个人信息、日程安排和事件的专家。
你将获得用户和助手之间的对话内容。

## 要求
- 你需要列出所有可能的用户信息
- 你需要列出所有可能的日程安排
- 你需要列出用户事件及其详细时间。根据消息后的[TIME]转换消息中的事件日期信息。例如：
    输入: ` + "`[2024/04/30] user: 我昨天买了一辆新车！`" + `
    输出: ` + "`用户买了一辆新车。[提及于 2024/04/29, 发生于 2024/04/30]`" + `
    输入: ` + "`[2024/04/30] user: 我4年前买了一辆车！`" + `
    输出: ` + "`用户买了一辆车。[提及于 2024/04/30, 发生于 2020]`" + `
    说明: 因为你只知道年份而不知道具体日期，所以 2024-4=2020。或者你可以记录为 [2024/04/30之前4年]
    输入: ` + "`[2024/04/30] user: 我上周买了一辆新车！`" + `
    输出: ` + "`用户买了一辆新车。[提及于 2024/04/30, 发生于 2024/04/30之前一周]`" + `
    说明: 因为你不知道具体日期。

### 重要信息
以下是你应该从聊天中记录的主题/子主题。
<topics>
{topics}
</topics>
以下是你应该从聊天中记录的重要属性。
<attributes>
{attributes}
</attributes>

#### 输入对话
你将收到用户和助手之间的对话。对话格式为：
- [TIME] NAME: MESSAGE
其中NAME是ALIAS(ROLE)或仅ROLE，当ALIAS可用时，使用ALIAS来指代用户/助手。
MESSAGE是对话内容。
TIME是此消息发生的时间，因此你需要根据TIME转换消息中的日期信息（如有必要）。

## 输出格式
请使用Markdown无序列表格式输出你的记录结果。
例如：
` + "```" + `
## 事件
- Jack今天画了一幅关于他孩子们的画。[提及于 2023/1/23]
## 用户信息
- 用户的昵称是Jack，助手是Melinda。
- Jack提到他在Memoria工作，是一名软件工程师。[提及于 2023/1/23]
## 日程安排
- Jack计划明天去健身房。[提及于 2023/1/23，发生于 2023/1/24]
...
` + "```" + `始终添加你记录的具体提及时间，如果可能的话也要添加事件发生时间。

最后，记录结果应使用与聊天相同的语言。英文输入则英文输出，中文输入则中文输出。
确保你不会重复记录信息。
现在请执行你的任务。
`

// EntrySummaryPrompt builds the chat logging system prompt, seeded with the
// project's topic vocabulary and event tags.
func EntrySummaryPrompt(lang, topics, attributes string) string {
	tmpl := entrySummaryTemplateEN
	if lang == "zh" {
		tmpl = entrySummaryTemplateZH
	}
	return strings.NewReplacer(
		"{topics}", topics,
		"{attributes}", attributes,
	).Replace(tmpl)
}

// EntrySummaryInput wraps the rendered transcript for the logging call.
func EntrySummaryInput(transcript string) string {
	return fmt.Sprintf("#### Chats\n%s\n", transcript)
}

package prompts

import (
	"fmt"
	"strconv"
	"strings"
)

var pickExampleMemos = `<memos>
0. basic_info, age, 25
1. basic_info, name, Lisa
2. health, allergies, peanuts and shellfish
3. dietary, restrictions, vegetarian
4. health, medication, antihistamines
5. dietary, preferences, spicy food
6. work, position, Graphic Designer
7. technology, devices, MacBook Pro and iPhone
8. work, company, Memoria
9. technology, software, Photoshop and Illustrator
10. education, university, Stanford
11. education, degree, Physics
</memos>`

var pickExampleCases = []struct {
	context string
	output  string
}{
	{
		context: "<context>\nQ: Hello!\n</context>",
		output:  `{"reason": "user is starting a new conversation, having some backgrounds is helpful for later", "ids": [0,1]}`,
	},
	{
		context: "<context>\nQ: What's your opinion on the latest AI tools?\n</context>",
		output:  `{"reason": "user work and education background is helpful when choosing AI tools", "ids": [9,6,7,11]}`,
	},
	{
		context: "<context>\nQ: How do I reset my password?\n</context>",
		output:  `{"reason": "user devices and platforms are helpful when resetting password", "ids": [7]}`,
	},
	{
		context: "<context>\nQ: What's the weather forecast for tomorrow?\n</context>",
		output:  `{"reason": "Location is needed for weather, working company and college can be used to guess the location", "ids": [9,10]}`,
	},
}

var pickTemplate = `You are a professional journalist, and your task is to select user's memos that are needed by the last user query.

## Input Template
Below is the input template:
` + "```input" + `
<memos>
1. TOPIC1, SUB_TOPIC1, MEMO_CONTENT1
2. TOPIC2, SUB_TOPIC2, MEMO_CONTENT2
...
</memos>

<context>
Q: ...
A: ...
...
Q: ... # last query
</context>
` + "```" + `
<memos> contains all the user's memos in markdown orderlist, the number bullet is the memo ID.
For each memo, it starts with a topic and subtopic indicating the category of the memo, then a truncated content of memo.
Jude the memo by mainly by its topic/subtopic, and use the truncated content as a reference.
Find the user'smemos that are needed by the last user query in <context>.

## Output
You need to think the helpful memos first, then output the memo ids in a plain JSON object.
### Format
` + "```output" + `
{"reason": "YOUR THINKING","ids": [NEED_ID_0,NEED_ID_1,...]}
` + "```" + `
where NEED_ID_I is the i-th needed memo id.
You should first think what kind of memos will help the future conversation, and then select the related memos if any.
You may select up to {max_num} memos, if no memo is needed, just return an empty list(i.e. ` + "`" + `{"reason": "...", "ids": []}` + "`" + `).


## Examples
{examples}
Above are mock examples, understand the logic and format of examples.
Then ignore their ids and focus on later <memos> and <context> that user gives to you in the input.

## Requirements
- Maximum number of memos to select is {max_num}, never exceed it.
- Deeply understand the current context, and try to select memos that will help to answer the user query in anyway.
- Just return an empty list when current context is a plain instruction or requirment without any personal info needed.
- No explanation or any other words, just return a plain JSON object with the format above ({"reason": str,"ids": list[int]})
- Don't select semantically duplicated memos, i.e. if a memo is already included in another memo, don't select it.
`

// PickRelatedPrompt builds the memo selection system prompt.
func PickRelatedPrompt(maxNum int) string {
	cases := make([]string, 0, len(pickExampleCases))
	for _, c := range pickExampleCases {
		cases = append(cases, fmt.Sprintf("<case>\n%s\nOutput: %s\n</case>\n", c.context, c.output))
	}
	examples := fmt.Sprintf("%s\n\nBelow are some cases of different current context to this memos:\n%s\n",
		pickExampleMemos, strings.Join(cases, "\n"))
	return strings.NewReplacer(
		"{max_num}", strconv.Itoa(maxNum),
		"{examples}", examples,
	).Replace(pickTemplate)
}

// ChatMessage is the minimal view of a conversation turn the selection
// prompts need.
type ChatMessage struct {
	Role    string
	Content string
}

// MemoRow is one numbered memo candidate shown to the selection model.
type MemoRow struct {
	Topic    string
	SubTopic string
	Content  string
}

// PickRelatedInput packs the memo candidates and the conversation tail into
// the selection call's user message.
func PickRelatedInput(messages []ChatMessage, rows []MemoRow) string {
	memoLines := make([]string, 0, len(rows))
	for i, row := range rows {
		memoLines = append(memoLines, fmt.Sprintf("%d. %s,%s,%s", i, row.Topic, row.SubTopic, row.Content))
	}
	contextLines := make([]string, 0, len(messages))
	for _, m := range messages {
		if m.Role == "user" {
			contextLines = append(contextLines, "Q: "+m.Content)
		} else {
			contextLines = append(contextLines, "A: "+m.Content)
		}
	}
	return fmt.Sprintf("<memos>\n%s\n</memos>\n\n<context>\n%s\n</context>\n",
		strings.Join(memoLines, "\n"), strings.Join(contextLines, "\n"))
}

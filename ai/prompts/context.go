package prompts

import "fmt"

// ContextPrompt renders the final memory block injected into a chat
// system prompt.
func ContextPrompt(lang, profileSection, eventSection string) string {
	if lang == "zh" {
		return fmt.Sprintf(`<memory>
# 以下是用户的用户画像：
%s

# 以下是用户的最近事件：
%s
</memory>
请在适当的时候使用<memory>标签中的信息。
`, profileSection, eventSection)
	}
	return fmt.Sprintf(`<memory>
# Below is the user profile:
%s

# Below is the latest events of the user:
%s
</memory>
Please provide your answer using the information within the <memory> tag at the appropriate time.
`, profileSection, eventSection)
}

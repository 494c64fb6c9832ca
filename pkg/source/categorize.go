package source

import "strings"

// Category labels assigned by keyword classification.
const (
	CategoryAI      = "AI"
	CategoryTech    = "Tech"
	CategoryDefault = "AI/Tech"
)

// DefaultAIKeywords is checked first; order matters, the first hit wins.
var DefaultAIKeywords = []string{
	"人工智能", "AI", "机器学习", "深度学习", "神经网络", "自然语言处理",
	"NLP", "计算机视觉", "语音识别", "强化学习", "大语言模型", "LLM",
	"GPT", "BERT", "transformer", "diffusion", "生成式AI", "生成式人工智能",
}

// DefaultTechKeywords is checked only when no AI keyword matched.
var DefaultTechKeywords = []string{
	"科技", "技术", "创新", "数字化", "量子计算", "区块链", "元宇宙",
	"VR", "AR", "XR", "机器人", "自动驾驶", "物联网", "IoT", "5G", "6G",
	"半导体", "芯片", "云计算", "边缘计算",
}

// Categorizer holds the ordered keyword lists used for classification.
type Categorizer struct {
	ai   []string
	tech []string
}

// NewCategorizer creates a categorizer with the default keyword lists plus extras.
// Extras are appended after the built-in keywords.
func NewCategorizer(extraAI, extraTech []string) *Categorizer {
	return &Categorizer{
		ai:   lowerAll(DefaultAIKeywords, extraAI),
		tech: lowerAll(DefaultTechKeywords, extraTech),
	}
}

func lowerAll(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	for _, kw := range append(append([]string(nil), base...), extra...) {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// Categorize returns AI, Tech or the default label for a title.
// Matching is plain substring, so "ai" also matches inside "said".
func (c *Categorizer) Categorize(title string) string {
	lower := strings.ToLower(title)

	for _, kw := range c.ai {
		if strings.Contains(lower, kw) {
			return CategoryAI
		}
	}
	for _, kw := range c.tech {
		if strings.Contains(lower, kw) {
			return CategoryTech
		}
	}
	return CategoryDefault
}

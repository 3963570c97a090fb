package llm

// Vendors that expose an OpenAI-compatible chat endpoint reuse OpenAIBackend;
// only the base URL differs.
const (
	geminiCompatBaseURL     = "https://generativelanguage.googleapis.com/v1beta/openai/"
	groqCompatBaseURL       = "https://api.groq.com/openai/v1"
	perplexityCompatBaseURL = "https://api.perplexity.ai"
	openRouterCompatBaseURL = "https://openrouter.ai/api/v1"
)

var compatBaseURLs = map[string]string{
	"gemini":     geminiCompatBaseURL,
	"groq":       groqCompatBaseURL,
	"perplexity": perplexityCompatBaseURL,
	"openrouter": openRouterCompatBaseURL,
}

// NewCompatBackend creates an OpenAIBackend for an OpenAI-compatible family.
// baseURL, when non-empty, overrides the family's well-known endpoint.
func NewCompatBackend(family, id, apiKey, model, baseURL string) (*OpenAIBackend, bool) {
	def, ok := compatBaseURLs[family]
	if !ok {
		return nil, false
	}
	if baseURL == "" {
		baseURL = def
	}
	return NewOpenAIBackend(id, apiKey, model, baseURL), true
}

package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"stockmood/internal/domain"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ArticleScore is the enricher output for one news article.
type ArticleScore struct {
	ArticleID  int64
	Score      float64
	Confidence float64
	Label      string
	Model      string
	Reason     string
}

type BatchLLMScorer interface {
	ScoreBatch(ctx context.Context, articles []domain.NewsArticle) ([]ArticleScore, error)
}

// Scorer assigns sentiment to articles whose provider supplied none. Every
// article gets a heuristic score first; LLM results overwrite it per batch
// when the LLM is configured and the call succeeds.
type Scorer struct {
	llm       BatchLLMScorer
	batchSize int
}

func NewScorer(llm BatchLLMScorer, batchSize int) *Scorer {
	if batchSize <= 0 {
		batchSize = 24
	}
	return &Scorer{llm: llm, batchSize: batchSize}
}

func (s *Scorer) Score(ctx context.Context, articles []domain.NewsArticle) ([]ArticleScore, error) {
	if len(articles) == 0 {
		return nil, nil
	}

	resultByID := make(map[int64]ArticleScore, len(articles))
	for _, article := range articles {
		score, confidence, label, reason := HeuristicSentiment(article.Headline, article.RawText)
		resultByID[article.ID] = ArticleScore{
			ArticleID:  article.ID,
			Score:      score,
			Confidence: confidence,
			Label:      label,
			Reason:     reason,
			Model:      "heuristic:v1",
		}
	}

	if s.llm != nil {
		for start := 0; start < len(articles); start += s.batchSize {
			end := start + s.batchSize
			if end > len(articles) {
				end = len(articles)
			}
			batch := articles[start:end]
			scored, err := s.llm.ScoreBatch(ctx, batch)
			if err != nil {
				continue
			}
			for _, row := range scored {
				current, ok := resultByID[row.ArticleID]
				if !ok {
					continue
				}
				current.Score = clamp(row.Score, -1, 1)
				current.Confidence = clamp(row.Confidence, 0, 1)
				current.Label = normalizeLabel(row.Label)
				current.Reason = strings.TrimSpace(row.Reason)
				if current.Reason == "" {
					current.Reason = "llm"
				}
				if row.Model != "" {
					current.Model = row.Model
				}
				resultByID[row.ArticleID] = current
			}
		}
	}

	out := make([]ArticleScore, 0, len(articles))
	for _, article := range articles {
		if scored, ok := resultByID[article.ID]; ok {
			out = append(out, scored)
		}
	}
	return out, nil
}

// Bucket maps an enricher score to the shared sentiment category.
func (a ArticleScore) Bucket() domain.SentimentBucket {
	return domain.BucketFromScore(a.Score)
}

func HeuristicSentiment(headline, body string) (float64, float64, string, string) {
	text := strings.ToLower(strings.TrimSpace(headline + " " + body))
	if text == "" {
		return 0, 0.25, "neutral", "empty-text"
	}

	positive := []string{"beat", "beats", "surge", "rally", "upgrade", "record", "growth", "strong", "outperform", "raises guidance", "buyback"}
	negative := []string{"miss", "misses", "plunge", "slump", "downgrade", "lawsuit", "recall", "layoff", "weak", "cuts guidance", "probe"}

	posCount := countMatches(text, positive)
	negCount := countMatches(text, negative)

	raw := float64(posCount-negCount) / float64(posCount+negCount+1)
	score := clamp(raw, -1, 1)
	confidence := clamp(0.35+(0.1*float64(absInt(posCount-negCount))), 0.25, 0.70)

	label := "neutral"
	if score > 0.2 {
		label = "positive"
	} else if score < -0.2 {
		label = "negative"
	}
	reason := fmt.Sprintf("heuristic keywords pos=%d neg=%d", posCount, negCount)
	return score, confidence, label, reason
}

func countMatches(text string, tokens []string) int {
	count := 0
	for _, token := range tokens {
		if strings.Contains(text, token) {
			count++
		}
	}
	return count
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func normalizeLabel(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	switch label {
	case "positive", "bullish", "bull":
		return "positive"
	case "negative", "bearish", "bear":
		return "negative"
	default:
		return "neutral"
	}
}

type openAIChatClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

type OpenAIScorer struct {
	client openAIChatClient
	model  string
}

func NewOpenAIScorer(apiKey string, model string) *OpenAIScorer {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil
	}
	if strings.TrimSpace(model) == "" {
		model = "gpt-4o-mini"
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIScorer{
		client: &openAIClient{client: client},
		model:  model,
	}
}

func (s *OpenAIScorer) ScoreBatch(ctx context.Context, articles []domain.NewsArticle) ([]ArticleScore, error) {
	if s == nil || s.client == nil || len(articles) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	for _, article := range articles {
		sb.WriteString(fmt.Sprintf("id=%d\n", article.ID))
		sb.WriteString(fmt.Sprintf("ticker=%s\n", article.TickerSymbol))
		sb.WriteString(fmt.Sprintf("headline=%s\n", strings.TrimSpace(article.Headline)))
		sb.WriteString(fmt.Sprintf("body=%s\n\n", strings.TrimSpace(article.RawText)))
	}

	systemPrompt := "You score stock news sentiment toward the named ticker. Return ONLY JSON array. Each object requires: id (int), score (-1..1), confidence (0..1), label (positive|neutral|negative), reason (short text). No markdown."
	userPrompt := "Articles:\n" + sb.String()

	completion, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionNewParams{
		Model: s.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		return nil, err
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("empty scorer completion")
	}

	raw := strings.TrimSpace(completion.Choices[0].Message.Content)
	raw = trimCodeFence(raw)

	var parsed []struct {
		ID         int64   `json:"id"`
		Score      float64 `json:"score"`
		Confidence float64 `json:"confidence"`
		Label      string  `json:"label"`
		Reason     string  `json:"reason"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("parse scorer json: %w", err)
	}

	byID := make(map[int64]struct{}, len(articles))
	for _, article := range articles {
		byID[article.ID] = struct{}{}
	}

	out := make([]ArticleScore, 0, len(parsed))
	for _, row := range parsed {
		if _, ok := byID[row.ID]; !ok {
			continue
		}
		out = append(out, ArticleScore{
			ArticleID:  row.ID,
			Score:      clamp(row.Score, -1, 1),
			Confidence: clamp(row.Confidence, 0, 1),
			Label:      normalizeLabel(row.Label),
			Reason:     strings.TrimSpace(row.Reason),
			Model:      "llm:" + s.model,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ArticleID < out[j].ArticleID })
	return out, nil
}

func trimCodeFence(v string) string {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "```") {
		v = strings.TrimPrefix(v, "```")
		v = strings.TrimSpace(v)
		if strings.HasPrefix(strings.ToLower(v), "json") {
			v = strings.TrimSpace(v[4:])
		}
		v = strings.TrimSuffix(v, "```")
		v = strings.TrimSpace(v)
	}
	return v
}

type openAIClient struct {
	client openai.Client
}

func (c *openAIClient) CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}

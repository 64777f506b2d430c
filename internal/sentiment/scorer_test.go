package sentiment

import (
	"context"
	"errors"
	"testing"

	"stockmood/internal/domain"
)

func TestScorerHeuristicFallback(t *testing.T) {
	scorer := NewScorer(nil, 10)
	articles := []domain.NewsArticle{{ID: 1, TickerSymbol: "AAPL", Headline: "Apple beats expectations", RawText: "strong growth"}}

	out, err := scorer.Score(context.Background(), articles)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 score, got %d", len(out))
	}
	if out[0].Model != "heuristic:v1" {
		t.Fatalf("expected heuristic model, got %s", out[0].Model)
	}
	if out[0].Label != "positive" {
		t.Fatalf("expected positive label, got %s", out[0].Label)
	}
}

func TestScorerUsesLLMWhenAvailable(t *testing.T) {
	scorer := NewScorer(stubLLMScorer{scores: []ArticleScore{{
		ArticleID:  1,
		Score:      -0.7,
		Confidence: 0.9,
		Label:      "negative",
		Reason:     "llm",
		Model:      "llm:gpt-4o-mini",
	}}}, 10)
	articles := []domain.NewsArticle{{ID: 1, TickerSymbol: "TSLA", Headline: "neutral headline", RawText: ""}}

	out, err := scorer.Score(context.Background(), articles)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].Model != "llm:gpt-4o-mini" {
		t.Fatalf("expected llm model override, got %s", out[0].Model)
	}
	if out[0].Label != "negative" {
		t.Fatalf("expected negative label, got %s", out[0].Label)
	}
	if out[0].Bucket() != domain.SentimentVeryNegative {
		t.Fatalf("expected very_negative bucket, got %s", out[0].Bucket())
	}
}

func TestScorerFallsBackWhenLLMErrors(t *testing.T) {
	scorer := NewScorer(stubLLMScorer{err: errors.New("boom")}, 10)
	articles := []domain.NewsArticle{{ID: 1, TickerSymbol: "NVDA", Headline: "lawsuit and recall weigh on shares", RawText: ""}}

	out, err := scorer.Score(context.Background(), articles)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].Model != "heuristic:v1" {
		t.Fatalf("expected heuristic fallback, got %s", out[0].Model)
	}
	if out[0].Label != "negative" {
		t.Fatalf("expected negative heuristic label, got %s", out[0].Label)
	}
}

func TestHeuristicNeutralOnEmptyText(t *testing.T) {
	score, confidence, label, _ := HeuristicSentiment("", "")
	if score != 0 || label != "neutral" {
		t.Fatalf("expected neutral zero score, got %f %s", score, label)
	}
	if confidence != 0.25 {
		t.Fatalf("expected low confidence, got %f", confidence)
	}
}

func TestNormalizeLabelVocabularies(t *testing.T) {
	cases := map[string]string{
		"Bullish":  "positive",
		"positive": "positive",
		"bear":     "negative",
		"NEGATIVE": "negative",
		"meh":      "neutral",
		"":         "neutral",
	}
	for in, want := range cases {
		if got := normalizeLabel(in); got != want {
			t.Fatalf("normalizeLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

type stubLLMScorer struct {
	scores []ArticleScore
	err    error
}

func (s stubLLMScorer) ScoreBatch(ctx context.Context, articles []domain.NewsArticle) ([]ArticleScore, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]ArticleScore(nil), s.scores...), nil
}

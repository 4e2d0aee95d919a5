package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
)

type stubEngine struct {
	mu         sync.Mutex
	texts      map[string]string
	defaults   string
	recognized []ModeConfig
	tokens     []Token
	tokenErr   error
	err        error
}

func (s *stubEngine) Recognize(ctx context.Context, img image.Image, cfg ModeConfig) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recognized = append(s.recognized, cfg)
	if s.err != nil {
		return "", s.err
	}
	key := fmt.Sprintf("%d_%s", cfg.PageMode, cfg.Language)
	if text, ok := s.texts[key]; ok {
		return text, nil
	}
	return s.defaults, nil
}

func (s *stubEngine) RecognizeWithConfidence(ctx context.Context, img image.Image) ([]Token, error) {
	if s.tokenErr != nil {
		return nil, s.tokenErr
	}
	return s.tokens, nil
}

func grayVariant() map[string]*image.Gray {
	return map[string]*image.Gray{"grayscale": image.NewGray(image.Rect(0, 0, 100, 100))}
}

func TestAggregateProducesAllPassLabels(t *testing.T) {
	engine := &stubEngine{defaults: "TEXT", tokens: []Token{{Text: "P12345678", Confidence: 91}}}
	agg := NewAggregator(engine, DefaultAggregatorConfig(), zap.NewNop())

	bag := agg.Aggregate(context.Background(), grayVariant())

	// 5 page modes + 2 language passes + 1 high-confidence + 3 regions.
	if len(bag.Outcomes) != 11 {
		t.Fatalf("expected 11 outcomes, got %d", len(bag.Outcomes))
	}
	if len(bag.Observations) != 11 {
		t.Fatalf("expected 11 observations, got %d", len(bag.Observations))
	}

	want := []string{
		"grayscale_standard", "grayscale_single_column", "grayscale_uniform_block",
		"grayscale_single_line", "grayscale_sparse_text",
		"grayscale_eng_lang", "grayscale_ara_lang",
		"grayscale_high_confidence",
		"grayscale_region_top_right", "grayscale_region_center", "grayscale_region_bottom",
	}
	got := make(map[string]bool)
	for _, obs := range bag.Observations {
		got[obs.Source] = true
	}
	for _, label := range want {
		if !got[label] {
			t.Fatalf("missing source label %s in %v", label, got)
		}
	}
}

func TestAggregateSortsObservationsBySource(t *testing.T) {
	engine := &stubEngine{defaults: "TEXT", tokens: []Token{{Text: "X", Confidence: 99}}}
	agg := NewAggregator(engine, DefaultAggregatorConfig(), zap.NewNop())

	variants := map[string]*image.Gray{
		"otsu":      image.NewGray(image.Rect(0, 0, 50, 50)),
		"grayscale": image.NewGray(image.Rect(0, 0, 50, 50)),
	}
	bag := agg.Aggregate(context.Background(), variants)

	for i := 1; i < len(bag.Observations); i++ {
		if bag.Observations[i-1].Source > bag.Observations[i].Source {
			t.Fatalf("observations not sorted at %d: %s > %s", i, bag.Observations[i-1].Source, bag.Observations[i].Source)
		}
	}
}

func TestAggregateSkipsEmptyResults(t *testing.T) {
	engine := &stubEngine{defaults: "  \n\t ", tokenErr: errors.New("unavailable")}
	agg := NewAggregator(engine, DefaultAggregatorConfig(), zap.NewNop())

	bag := agg.Aggregate(context.Background(), grayVariant())

	if len(bag.Observations) != 0 {
		t.Fatalf("expected no observations from whitespace results, got %d", len(bag.Observations))
	}
	if len(bag.Outcomes) != 11 {
		t.Fatalf("expected 11 outcomes, got %d", len(bag.Outcomes))
	}
	for _, outcome := range bag.Outcomes {
		if !outcome.Skipped {
			t.Fatalf("expected all outcomes skipped, %s was not", outcome.Source)
		}
		if outcome.Reason == "" {
			t.Fatalf("expected a skip reason for %s", outcome.Source)
		}
	}
}

func TestAggregateEngineErrorsBecomeSkippedOutcomes(t *testing.T) {
	engine := &stubEngine{err: errors.New("engine offline"), tokenErr: errors.New("engine offline")}
	agg := NewAggregator(engine, DefaultAggregatorConfig(), zap.NewNop())

	bag := agg.Aggregate(context.Background(), grayVariant())

	if len(bag.Observations) != 0 {
		t.Fatalf("expected no observations, got %d", len(bag.Observations))
	}
	for _, outcome := range bag.Outcomes {
		if !outcome.Skipped || outcome.Reason != "engine offline" {
			t.Fatalf("expected skipped outcome with engine error, got %+v", outcome)
		}
	}
}

func TestHighConfidencePassFiltersAndJoinsTokens(t *testing.T) {
	engine := &stubEngine{
		defaults: "",
		tokens: []Token{
			{Text: "P12345678", Confidence: 91},
			{Text: "noise", Confidence: 12},
			{Text: "KHARTOUM", Confidence: 77},
			{Text: "   ", Confidence: 99},
		},
	}
	agg := NewAggregator(engine, DefaultAggregatorConfig(), zap.NewNop())

	bag := agg.Aggregate(context.Background(), grayVariant())

	var highConf *Observation
	for i := range bag.Observations {
		if bag.Observations[i].Source == "grayscale_high_confidence" {
			highConf = &bag.Observations[i]
		}
	}
	if highConf == nil {
		t.Fatal("expected a high-confidence observation")
	}
	if highConf.Text != "P12345678 KHARTOUM" {
		t.Fatalf("expected filtered join, got %q", highConf.Text)
	}
}

func TestHighConfidencePassSkipsWhenNothingAboveThreshold(t *testing.T) {
	engine := &stubEngine{
		defaults: "",
		tokens:   []Token{{Text: "noise", Confidence: 30}},
	}
	agg := NewAggregator(engine, DefaultAggregatorConfig(), zap.NewNop())

	bag := agg.Aggregate(context.Background(), grayVariant())

	for _, outcome := range bag.Outcomes {
		if outcome.Source == "grayscale_high_confidence" {
			if !outcome.Skipped {
				t.Fatal("expected high-confidence pass to be skipped")
			}
			if !strings.Contains(outcome.Reason, "threshold") {
				t.Fatalf("unexpected skip reason: %s", outcome.Reason)
			}
			return
		}
	}
	t.Fatal("high-confidence outcome missing")
}

func TestCombinedTextJoinsObservations(t *testing.T) {
	bag := &Bag{Observations: []Observation{
		{Source: "a", Text: "line one"},
		{Source: "b", Text: "line two"},
	}}

	combined := bag.CombinedText()
	if combined != "line one\nline two" {
		t.Fatalf("unexpected combined text: %q", combined)
	}
}

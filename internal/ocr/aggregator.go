package ocr

import (
	"context"
	"fmt"
	"image"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/docverify/internal/imaging"
)

// Observation is one raw text read-out from one (variant, engine-config)
// combination. Duplicates across sources are expected; redundancy is the
// point.
type Observation struct {
	Source string
	Text   string
}

// Outcome records what happened to a single attempted recognition pass so that
// dropped passes stay inspectable instead of silently vanishing.
type Outcome struct {
	Source  string
	Text    string
	Skipped bool
	Reason  string
}

func okOutcome(source, text string) Outcome {
	return Outcome{Source: source, Text: text}
}

func skippedOutcome(source, reason string) Outcome {
	return Outcome{Source: source, Skipped: true, Reason: reason}
}

// Bag is the unordered collection of observations gathered for one document,
// together with the outcome of every attempted pass.
type Bag struct {
	Observations []Observation
	Outcomes     []Outcome
}

// CombinedText joins all observation texts, used by resolvers that only need
// presence rather than provenance.
func (b *Bag) CombinedText() string {
	texts := make([]string, 0, len(b.Observations))
	for _, obs := range b.Observations {
		texts = append(texts, obs.Text)
	}
	return strings.Join(texts, "\n")
}

// AggregatorConfig tunes the multi-pass recognition sweep.
type AggregatorConfig struct {
	Languages           []string
	ConfidenceThreshold float64
}

// DefaultAggregatorConfig covers the dual-script documents this service
// handles.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		Languages:           []string{"eng", "ara"},
		ConfidenceThreshold: 60,
	}
}

// Aggregator drives the recognition engine across every preprocessing variant
// under multiple engine configurations, language hypotheses and document
// sub-regions, and collects the resulting bag of observations.
type Aggregator struct {
	engine Engine
	cfg    AggregatorConfig
	logger *zap.Logger
}

// NewAggregator constructs an aggregator over the given engine.
func NewAggregator(engine Engine, cfg AggregatorConfig, logger *zap.Logger) *Aggregator {
	return &Aggregator{engine: engine, cfg: cfg, logger: logger.Named("ocr_aggregator")}
}

var passModes = []struct {
	name string
	mode PageMode
}{
	{"standard", ModeStandard},
	{"single_column", ModeSingleColumn},
	{"uniform_block", ModeUniformBlock},
	{"single_line", ModeSingleLine},
	{"sparse_text", ModeSparseText},
}

// Fractional sub-regions re-scanned per variant, reflecting the typical
// passport layout at any input resolution.
var passRegions = []struct {
	name                   string
	left, top, right, bott float64
}{
	{"top_right", 0.4, 0, 1, 0.4},
	{"center", 0, 0.2, 1, 0.8},
	{"bottom", 0, 0.6, 1, 1},
}

// Aggregate runs every recognition pass over every variant. Variants are
// processed concurrently; the resulting bag is sorted by source label so that
// downstream first-match-wins rules behave deterministically for a given bag.
func (a *Aggregator) Aggregate(ctx context.Context, variants map[string]*image.Gray) *Bag {
	names := make([]string, 0, len(variants))
	for name := range variants {
		names = append(names, name)
	}
	sort.Strings(names)

	var mu sync.Mutex
	bag := &Bag{}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, name := range names {
		variant := variants[name]
		variantName := name
		group.Go(func() error {
			outcomes := a.sweepVariant(groupCtx, variantName, variant)
			mu.Lock()
			defer mu.Unlock()
			for _, outcome := range outcomes {
				bag.Outcomes = append(bag.Outcomes, outcome)
				if !outcome.Skipped {
					bag.Observations = append(bag.Observations, Observation{Source: outcome.Source, Text: outcome.Text})
				}
			}
			return nil
		})
	}
	// Workers only report per-pass outcomes, never errors.
	_ = group.Wait()

	sort.Slice(bag.Observations, func(i, j int) bool {
		return bag.Observations[i].Source < bag.Observations[j].Source
	})
	sort.Slice(bag.Outcomes, func(i, j int) bool {
		return bag.Outcomes[i].Source < bag.Outcomes[j].Source
	})
	return bag
}

// sweepVariant runs the full pass set against one variant.
func (a *Aggregator) sweepVariant(ctx context.Context, variantName string, variant *image.Gray) []Outcome {
	var outcomes []Outcome

	for _, pass := range passModes {
		source := fmt.Sprintf("%s_%s", variantName, pass.name)
		outcomes = append(outcomes, a.recognize(ctx, source, variant, ModeConfig{PageMode: pass.mode}))
	}

	for _, lang := range a.cfg.Languages {
		source := fmt.Sprintf("%s_%s_lang", variantName, lang)
		outcomes = append(outcomes, a.recognize(ctx, source, variant, ModeConfig{PageMode: ModeStandard, Language: lang}))
	}

	outcomes = append(outcomes, a.highConfidencePass(ctx, variantName, variant))

	bounds := variant.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	for _, region := range passRegions {
		source := fmt.Sprintf("%s_region_%s", variantName, region.name)
		rect := image.Rect(
			bounds.Min.X+int(float64(width)*region.left),
			bounds.Min.Y+int(float64(height)*region.top),
			bounds.Min.X+int(float64(width)*region.right),
			bounds.Min.Y+int(float64(height)*region.bott),
		)
		roi := imaging.CropGray(variant, rect)
		outcomes = append(outcomes, a.recognize(ctx, source, roi, ModeConfig{PageMode: ModeUniformBlock}))
	}

	return outcomes
}

func (a *Aggregator) recognize(ctx context.Context, source string, img image.Image, cfg ModeConfig) Outcome {
	text, err := a.engine.Recognize(ctx, img, cfg)
	if err != nil {
		a.logger.Debug("recognition pass failed", zap.String("source", source), zap.Error(err))
		return skippedOutcome(source, err.Error())
	}
	if strings.TrimSpace(text) == "" {
		return skippedOutcome(source, "empty result")
	}
	return okOutcome(source, text)
}

// highConfidencePass keeps only tokens the engine is confident about and joins
// them into a single observation.
func (a *Aggregator) highConfidencePass(ctx context.Context, variantName string, variant *image.Gray) Outcome {
	source := fmt.Sprintf("%s_high_confidence", variantName)
	tokens, err := a.engine.RecognizeWithConfidence(ctx, variant)
	if err != nil {
		a.logger.Debug("high-confidence pass failed", zap.String("source", source), zap.Error(err))
		return skippedOutcome(source, err.Error())
	}

	var kept []string
	for _, token := range tokens {
		if token.Confidence > a.cfg.ConfidenceThreshold && strings.TrimSpace(token.Text) != "" {
			kept = append(kept, token.Text)
		}
	}
	if len(kept) == 0 {
		return skippedOutcome(source, "no tokens above threshold")
	}
	return okOutcome(source, strings.Join(kept, " "))
}

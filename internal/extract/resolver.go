package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/example/docverify/internal/ocr"
)

// Resolver applies the per-field pattern rules to an observation bag and
// reconciles the candidates into a single typed record. Fields are resolved
// independently; no cross-field consistency checking is attempted.
type Resolver struct {
	logger *zap.Logger
}

// NewResolver constructs a field resolver.
func NewResolver(logger *zap.Logger) *Resolver {
	return &Resolver{logger: logger.Named("field_resolver")}
}

// Resolve extracts every supported field from the bag and computes the
// extraction score and summary.
func (r *Resolver) Resolve(bag *ocr.Bag) *Result {
	result := newResult()
	combined := bag.CombinedText()

	r.resolvePassportNumber(result, bag.Observations)
	r.resolveNationalID(result, combined)
	r.resolveDates(result, combined)
	r.resolveName(result, bag.Observations)
	r.resolveSex(result, combined)
	r.resolvePlaceOfBirth(result, combined)
	r.resolveNationality(result, combined)

	result.finalize()
	r.logger.Debug("extraction finished",
		zap.Float64("score", result.ExtractionScore),
		zap.String("summary", result.Summary))
	return result
}

// resolvePassportNumber scans observations in bag order; the first candidate
// that normalizes to a valid shape wins and terminates the search.
func (r *Resolver) resolvePassportNumber(result *Result, observations []ocr.Observation) {
	for _, obs := range observations {
		for _, pattern := range passportNumberPatterns {
			for _, match := range findAllCandidates(pattern, obs.Text) {
				candidate := strings.ToUpper(match)
				candidate = strings.ReplaceAll(candidate, "O", "0")
				candidate = strings.ReplaceAll(candidate, " ", "")
				if passportNumberShape.MatchString(candidate) {
					result.setWithMethod(FieldPassportNumber, candidate, obs.Source, 0.95)
					return
				}
			}
		}
	}
}

func (r *Resolver) resolveNationalID(result *Result, text string) {
	for _, pattern := range nationalIDPatterns {
		for _, match := range findAllCandidates(pattern, text) {
			candidate := separatorRun.ReplaceAllString(match, "-")
			if nationalIDShape.MatchString(candidate) {
				result.set(FieldNationalID, candidate, 0.9)
				return
			}
		}
	}
}

// resolveDates collects every valid date in the text, deduplicates, sorts
// chronologically and assigns positionally: earliest is treated as birth, the
// latest as expiry and the second-to-last as issue. This is a heuristic that
// assumes birth < issue < expiry and that no unrelated date-like strings
// appear; a spurious fourth date corrupts the assignment. Kept as-is as a
// known accuracy limitation.
func (r *Resolver) resolveDates(result *Result, text string) {
	var raw []string
	for _, pattern := range datePatterns {
		raw = append(raw, pattern.FindAllString(text, -1)...)
	}

	seen := make(map[string]bool)
	type date struct{ year, month, day int }
	var valid []date
	for _, candidate := range raw {
		normalized := separatorRun.ReplaceAllString(candidate, "-")
		normalized = slashRun.ReplaceAllString(normalized, "-")
		parts := strings.Split(normalized, "-")
		if len(parts) != 3 {
			continue
		}
		day, err1 := strconv.Atoi(parts[0])
		month, err2 := strconv.Atoi(parts[1])
		year, err3 := strconv.Atoi(parts[2])
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		if day < 1 || day > 31 || month < 1 || month > 12 || year < 1900 || year > 2100 {
			continue
		}
		key := fmt.Sprintf("%02d-%02d-%d", day, month, year)
		if seen[key] {
			continue
		}
		seen[key] = true
		valid = append(valid, date{year: year, month: month, day: day})
	}

	sort.Slice(valid, func(i, j int) bool {
		a, b := valid[i], valid[j]
		if a.year != b.year {
			return a.year < b.year
		}
		if a.month != b.month {
			return a.month < b.month
		}
		return a.day < b.day
	})

	format := func(d date) string { return fmt.Sprintf("%02d-%02d-%d", d.day, d.month, d.year) }

	if len(valid) >= 1 {
		result.set(FieldDateOfBirth, format(valid[0]), 0.85)
	}
	if len(valid) >= 2 {
		issue := valid[1]
		if len(valid) >= 3 {
			issue = valid[len(valid)-2]
		}
		result.set(FieldDateOfIssue, format(issue), 0.8)
	}
	if len(valid) >= 3 {
		result.set(FieldDateOfExpiry, format(valid[len(valid)-1]), 0.85)
	}
}

// resolveName gathers name-shaped candidates from every observation, filters
// document boilerplate, then prefers candidates from the more reliable pass
// types before falling back to the longest candidate found anywhere.
func (r *Resolver) resolveName(result *Result, observations []ocr.Observation) {
	type candidate struct{ name, source string }
	var candidates []candidate

	for _, obs := range observations {
		for _, pattern := range namePatterns {
			for _, match := range findAllCandidates(pattern, obs.Text) {
				name := strings.TrimSpace(match)
				if len(name) < 10 || len(name) > 60 {
					continue
				}
				if containsAnyWord(name, nonNameWords) {
					continue
				}
				candidates = append(candidates, candidate{name: name, source: obs.Source})
			}
		}
	}
	if len(candidates) == 0 {
		return
	}

	preferredSources := []string{"uniform_block", "high_confidence", "single_column"}
	for _, preferred := range preferredSources {
		for _, c := range candidates {
			if strings.Contains(c.source, preferred) {
				result.setWithMethod(FieldFullName, c.name, c.source, 0.85)
				return
			}
		}
	}

	longest := candidates[0]
	for _, c := range candidates[1:] {
		if len(c.name) > len(longest.name) {
			longest = c
		}
	}
	result.setWithMethod(FieldFullName, longest.name, longest.source, 0.75)
}

func (r *Resolver) resolveSex(result *Result, text string) {
	for _, pattern := range sexPatterns {
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		value := match[0]
		if len(match) > 1 && match[1] != "" {
			value = match[1]
		}
		switch {
		case strings.Contains(value, "ذكر"):
			value = "M"
		case strings.Contains(value, "أنثى"):
			value = "F"
		}
		value = strings.ToUpper(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		result.set(FieldSex, value[:1], 0.95)
		return
	}
}

func (r *Resolver) resolvePlaceOfBirth(result *Result, text string) {
	upper := strings.ToUpper(text)
	for _, place := range knownPlaces {
		if strings.Contains(upper, place) {
			result.set(FieldPlaceOfBirth, place, 0.85)
			return
		}
	}
}

// resolveNationality also sets the country code and document type code as a
// correlated side effect of a nationality hit.
func (r *Resolver) resolveNationality(result *Result, text string) {
	upper := strings.ToUpper(text)
	for _, indicator := range nationalityIndicators {
		if strings.Contains(upper, indicator) {
			result.set(FieldNationality, "SUDANESE", 0.95)
			result.Fields[FieldCountryCode] = "SDN"
			result.Confidence[FieldCountryCode] = 0.95
			result.Fields[FieldPassportType] = "PC"
			result.Confidence[FieldPassportType] = 0.95
			return
		}
	}
}

// findAllCandidates returns the capture group when a pattern defines one and
// it matched, otherwise the whole match.
func findAllCandidates(pattern *regexp.Regexp, text string) []string {
	matches := pattern.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, match := range matches {
		if len(match) > 1 && match[1] != "" {
			out = append(out, match[1])
		} else {
			out = append(out, match[0])
		}
	}
	return out
}

func containsAnyWord(s string, words []string) bool {
	for _, word := range words {
		if strings.Contains(s, word) {
			return true
		}
	}
	return false
}

package extract

import (
	"testing"

	"go.uber.org/zap"

	"github.com/example/docverify/internal/ocr"
)

func resolve(t *testing.T, observations ...ocr.Observation) *Result {
	t.Helper()
	r := NewResolver(zap.NewNop())
	return r.Resolve(&ocr.Bag{Observations: observations})
}

func TestResolvePassportNumberNormalizesCandidates(t *testing.T) {
	result := resolve(t, ocr.Observation{Source: "gray_standard", Text: "Passport No: p1234567O"})

	value, ok := result.Get(FieldPassportNumber)
	if !ok {
		t.Fatal("expected passport number to resolve")
	}
	if value != "P12345670" {
		t.Fatalf("expected P12345670, got %s", value)
	}
	if result.Confidence[FieldPassportNumber] != 0.95 {
		t.Fatalf("expected confidence 0.95, got %v", result.Confidence[FieldPassportNumber])
	}
	if result.Method[FieldPassportNumber] != "gray_standard" {
		t.Fatalf("expected source gray_standard, got %s", result.Method[FieldPassportNumber])
	}
}

func TestResolvePassportNumberFirstValidWins(t *testing.T) {
	result := resolve(t,
		ocr.Observation{Source: "a_standard", Text: "P11111111"},
		ocr.Observation{Source: "b_standard", Text: "P22222222"},
	)

	if value, _ := result.Get(FieldPassportNumber); value != "P11111111" {
		t.Fatalf("expected first valid candidate to win, got %s", value)
	}
}

func TestResolvePassportNumberRejectsInvalidShape(t *testing.T) {
	result := resolve(t, ocr.Observation{Source: "gray_standard", Text: "P123"})

	if _, ok := result.Get(FieldPassportNumber); ok {
		t.Fatal("expected no passport number for short candidate")
	}
}

func TestResolveNationalID(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"hyphenated", "National No: 123-4567-89012", "123-4567-89012"},
		{"spaced", "123 4567 89012", "123-4567-89012"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := resolve(t, ocr.Observation{Source: "gray_standard", Text: tt.text})
			value, ok := result.Get(FieldNationalID)
			if !ok {
				t.Fatal("expected national id to resolve")
			}
			if value != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, value)
			}
		})
	}
}

func TestResolveNationalIDRejectsUnseparatedDigits(t *testing.T) {
	result := resolve(t, ocr.Observation{Source: "gray_standard", Text: "ID 123456789012 END"})
	if value, ok := result.Get(FieldNationalID); ok {
		t.Fatalf("expected bare digit run to be rejected, got %s", value)
	}
}

func TestResolveDatesAssignsPositionally(t *testing.T) {
	result := resolve(t, ocr.Observation{
		Source: "gray_standard",
		Text:   "15-03-2025 01-01-1990 15-03-2015",
	})

	if value, _ := result.Get(FieldDateOfBirth); value != "01-01-1990" {
		t.Fatalf("expected birth 01-01-1990, got %s", value)
	}
	if value, _ := result.Get(FieldDateOfIssue); value != "15-03-2015" {
		t.Fatalf("expected issue 15-03-2015, got %s", value)
	}
	if value, _ := result.Get(FieldDateOfExpiry); value != "15-03-2025" {
		t.Fatalf("expected expiry 15-03-2025, got %s", value)
	}
}

func TestResolveDatesRejectsOutOfRange(t *testing.T) {
	result := resolve(t, ocr.Observation{
		Source: "gray_standard",
		Text:   "32-01-1990 15-13-2015 15-03-1899 15-03-2101",
	})

	if _, ok := result.Get(FieldDateOfBirth); ok {
		t.Fatal("expected no date from invalid candidates")
	}
}

func TestResolveDatesDeduplicatesAcrossPatterns(t *testing.T) {
	result := resolve(t, ocr.Observation{
		Source: "gray_standard",
		Text:   "01-01-1990 01-01-1990 20-06-2020",
	})

	if _, ok := result.Get(FieldDateOfExpiry); ok {
		t.Fatal("expected only two distinct dates, so no expiry")
	}
	if value, _ := result.Get(FieldDateOfIssue); value != "20-06-2020" {
		t.Fatalf("expected issue 20-06-2020, got %s", value)
	}
}

func TestResolveNamePrefersReliableSources(t *testing.T) {
	result := resolve(t,
		ocr.Observation{Source: "gray_sparse_text", Text: "OSMAN IBRAHIM KHALID MOHAMED AHMED"},
		ocr.Observation{Source: "gray_uniform_block", Text: "MOHAMMED AHMED HASSAN"},
	)

	value, ok := result.Get(FieldFullName)
	if !ok {
		t.Fatal("expected name to resolve")
	}
	if value != "MOHAMMED AHMED HASSAN" {
		t.Fatalf("expected uniform_block candidate, got %s", value)
	}
	if result.Confidence[FieldFullName] != 0.85 {
		t.Fatalf("expected confidence 0.85, got %v", result.Confidence[FieldFullName])
	}
}

func TestResolveNameFallsBackToLongest(t *testing.T) {
	result := resolve(t,
		ocr.Observation{Source: "gray_sparse_text", Text: "OSMAN IBRAHIM"},
		ocr.Observation{Source: "gray_standard", Text: "OSMAN IBRAHIM KHALID MOHAMED"},
	)

	value, ok := result.Get(FieldFullName)
	if !ok {
		t.Fatal("expected name to resolve")
	}
	if value != "OSMAN IBRAHIM KHALID MOHAMED" {
		t.Fatalf("expected longest candidate, got %s", value)
	}
	if result.Confidence[FieldFullName] != 0.75 {
		t.Fatalf("expected fallback confidence 0.75, got %v", result.Confidence[FieldFullName])
	}
}

func TestResolveNameRejectsBoilerplate(t *testing.T) {
	result := resolve(t, ocr.Observation{Source: "gray_standard", Text: "REPUBLIC OF THE SUDAN PASSPORT"})

	if value, ok := result.Get(FieldFullName); ok {
		t.Fatalf("expected boilerplate to be rejected, got %s", value)
	}
}

func TestResolveSexArabicTokens(t *testing.T) {
	result := resolve(t, ocr.Observation{Source: "gray_ara_lang", Text: "الجنس ذكر"})

	if value, _ := result.Get(FieldSex); value != "M" {
		t.Fatalf("expected M, got %s", value)
	}

	result = resolve(t, ocr.Observation{Source: "gray_ara_lang", Text: "الجنس أنثى"})
	if value, _ := result.Get(FieldSex); value != "F" {
		t.Fatalf("expected F, got %s", value)
	}
}

func TestResolveSexLatinLabel(t *testing.T) {
	result := resolve(t, ocr.Observation{Source: "gray_standard", Text: "Sex: M"})

	value, ok := result.Get(FieldSex)
	if !ok {
		t.Fatal("expected sex to resolve")
	}
	if value != "M" {
		t.Fatalf("expected M, got %s", value)
	}
	if result.Confidence[FieldSex] != 0.95 {
		t.Fatalf("expected confidence 0.95, got %v", result.Confidence[FieldSex])
	}
}

func TestResolveNationalitySetsCorrelatedFields(t *testing.T) {
	result := resolve(t, ocr.Observation{Source: "gray_standard", Text: "REPUBLIC OF THE SUDAN"})

	if value, _ := result.Get(FieldNationality); value != "SUDANESE" {
		t.Fatalf("expected SUDANESE, got %s", value)
	}
	if value, _ := result.Get(FieldCountryCode); value != "SDN" {
		t.Fatalf("expected SDN, got %s", value)
	}
	if value, _ := result.Get(FieldPassportType); value != "PC" {
		t.Fatalf("expected PC, got %s", value)
	}
}

func TestResolvePlaceOfBirthGazetteer(t *testing.T) {
	result := resolve(t, ocr.Observation{Source: "gray_standard", Text: "Place of birth KHARTOUM"})

	if value, _ := result.Get(FieldPlaceOfBirth); value != "KHARTOUM" {
		t.Fatalf("expected KHARTOUM, got %s", value)
	}
}

func TestExtractionScoreCountsImportantFields(t *testing.T) {
	result := resolve(t, ocr.Observation{
		Source: "gray_uniform_block",
		Text:   "REPUBLIC OF THE SUDAN\nP12345678\nMOHAMMED AHMED HASSAN\n01-01-1990 15-03-2015 15-03-2025\nSex: M\n123-4567-89012",
	})

	// passport number, name, nationality, birth, issue, expiry, national id, sex
	if result.ExtractionScore != 100 {
		t.Fatalf("expected score 100, got %v", result.ExtractionScore)
	}
	if result.Summary == "" {
		t.Fatal("expected a summary")
	}
}

func TestResolveEmptyBag(t *testing.T) {
	result := resolve(t)

	if result.ExtractionScore != 0 {
		t.Fatalf("expected score 0 for empty bag, got %v", result.ExtractionScore)
	}
	if len(result.Fields) != 0 {
		t.Fatalf("expected no fields, got %v", result.Fields)
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	observations := []ocr.Observation{
		{Source: "a_standard", Text: "P11111111 01-01-1990"},
		{Source: "b_standard", Text: "P22222222 20-06-2020"},
	}

	first := resolve(t, observations...)
	for i := 0; i < 5; i++ {
		again := resolve(t, observations...)
		if first.Fields[FieldPassportNumber] != again.Fields[FieldPassportNumber] {
			t.Fatal("expected repeated resolution to be stable")
		}
		if first.ExtractionScore != again.ExtractionScore {
			t.Fatal("expected repeated score to be stable")
		}
	}
}

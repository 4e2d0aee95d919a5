package extract

import "fmt"

// Field names the resolver can populate.
const (
	FieldPassportType   = "passport_type"
	FieldCountryCode    = "country_code"
	FieldPassportNumber = "passport_number"
	FieldFullName       = "full_name"
	FieldNationality    = "nationality"
	FieldPlaceOfBirth   = "place_of_birth"
	FieldSex            = "sex"
	FieldDateOfBirth    = "date_of_birth"
	FieldDateOfIssue    = "date_of_issue"
	FieldDateOfExpiry   = "date_of_expiry"
	FieldNationalID     = "national_id"
)

// importantFields drive the extraction score.
var importantFields = []string{
	FieldPassportNumber, FieldFullName, FieldNationality, FieldDateOfBirth,
	FieldDateOfIssue, FieldDateOfExpiry, FieldNationalID, FieldSex,
}

// summaryFields is the wider field set reported in the human-readable summary.
var summaryFields = []string{
	FieldPassportNumber, FieldFullName, FieldNationality, FieldNationalID,
	FieldDateOfBirth, FieldDateOfIssue, FieldDateOfExpiry, FieldSex,
	FieldPlaceOfBirth, FieldCountryCode,
}

// Result is the resolved document record. A field missing from Fields is
// absent; every present field has a parallel confidence entry, and fields
// resolved from a specific observation record their source label in Method.
type Result struct {
	Fields     map[string]string  `json:"fields"`
	Confidence map[string]float64 `json:"confidence_scores"`
	Method     map[string]string  `json:"extraction_method"`

	ExtractionScore float64 `json:"extraction_score"`
	Summary         string  `json:"extraction_summary"`
}

func newResult() *Result {
	return &Result{
		Fields:     make(map[string]string),
		Confidence: make(map[string]float64),
		Method:     make(map[string]string),
	}
}

// Get returns a field value and whether it was resolved.
func (r *Result) Get(field string) (string, bool) {
	value, ok := r.Fields[field]
	return value, ok
}

func (r *Result) set(field, value string, confidence float64) {
	r.Fields[field] = value
	r.Confidence[field] = confidence
}

func (r *Result) setWithMethod(field, value, source string, confidence float64) {
	r.set(field, value, confidence)
	r.Method[field] = source
}

// finalize computes the extraction score and summary over the finished field
// set. The score counts resolved important fields; the summary spans the
// wider reporting set.
func (r *Result) finalize() {
	resolved := 0
	for _, field := range importantFields {
		if _, ok := r.Fields[field]; ok {
			resolved++
		}
	}
	r.ExtractionScore = float64(resolved) / float64(len(importantFields)) * 100

	summaryCount := 0
	for _, field := range summaryFields {
		if _, ok := r.Fields[field]; ok {
			summaryCount++
		}
	}
	r.Summary = fmt.Sprintf("%d/%d fields extracted", summaryCount, len(summaryFields))
}

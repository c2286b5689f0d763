package terminology

// ICD10Code represents an ICD-10-CM diagnosis code.
type ICD10Code struct {
	Code      string `json:"code"`
	Display   string `json:"display"`
	SystemURI string `json:"system"`
}

// LookupResult is the ranked candidate list the search service returned for
// one free-text query. Total is the service's own match count and may
// exceed len(Candidates).
type LookupResult struct {
	Terms      string      `json:"terms"`
	Total      int         `json:"total"`
	Candidates []ICD10Code `json:"candidates"`
}

// Status classifies how a coding attempt ended.
type Status string

const (
	StatusCoded Status = "coded"
	StatusEmpty Status = "empty"
	StatusError Status = "error"
)

// Result is the Coder's answer for one complaint. Exactly one of Candidate
// and Err is set unless the search came back empty, in which case neither
// is.
type Result struct {
	Complaint string
	Candidate *ICD10Code
	Err       error
}

// Status reports which of the three outcomes r represents.
func (r Result) Status() Status {
	switch {
	case r.Err != nil:
		return StatusError
	case r.Candidate != nil:
		return StatusCoded
	default:
		return StatusEmpty
	}
}

const (
	SystemICD10 = "http://hl7.org/fhir/sid/icd-10-cm"

	// DefaultSearchURL is the NLM Clinical Tables ICD-10-CM search endpoint.
	DefaultSearchURL = "https://clinicaltables.nlm.nih.gov/api/icd10cm/v3/search"
)

package intake

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// LevelOfService is the transport acuity classification of the unit
// bringing the patient in.
type LevelOfService string

const (
	LevelBLS LevelOfService = "BLS"
	LevelALS LevelOfService = "ALS"
	LevelCCT LevelOfService = "CCT"
)

// LevelsOfService lists the accepted levels in the order they are offered.
var LevelsOfService = []LevelOfService{LevelBLS, LevelALS, LevelCCT}

// Vitals is the bundle of readings captured at intake. BloodPressure holds
// the operator's "S/D" text as entered.
type Vitals struct {
	HeartRate        int     `json:"hr"`
	BloodPressure    string  `json:"bp"`
	RespiratoryRate  int     `json:"rr"`
	OxygenSaturation int     `json:"o2_saturation"`
	Temperature      float64 `json:"temperature"`
}

// PatientIntakeRecord is the structured record produced by a Session.
//
// Date of birth and age are only reachable through SetDateOfBirth so the
// age can never drift from the birth date it was computed from.
type PatientIntakeRecord struct {
	SessionID      uuid.UUID      `json:"session_id"`
	Name           string         `json:"name"`
	ChiefComplaint string         `json:"chief_complaint"`
	Vitals         Vitals         `json:"vitals"`
	ETAMinutes     int            `json:"eta"`
	LevelOfService LevelOfService `json:"los"`
	CommittedAt    *time.Time     `json:"committed_at,omitempty"`

	dob time.Time
	age int
}

// SetDateOfBirth stores dob and recomputes the age as of now.
func (r *PatientIntakeRecord) SetDateOfBirth(dob, now time.Time) {
	r.dob = dob
	r.age = AgeOn(dob, now)
}

// DateOfBirth returns the birth date in ISO form, or "" when unset.
func (r *PatientIntakeRecord) DateOfBirth() string {
	if r.dob.IsZero() {
		return ""
	}
	return r.dob.Format(isoDate)
}

// Age returns the age in completed years as of the last date-of-birth edit.
func (r *PatientIntakeRecord) Age() int {
	return r.age
}

// MarshalJSON adds the derived "dob" and "age" fields, which are not
// exported on the struct.
func (r PatientIntakeRecord) MarshalJSON() ([]byte, error) {
	type record PatientIntakeRecord
	return json.Marshal(struct {
		record
		DateOfBirth string `json:"dob"`
		Age         int    `json:"age"`
	}{record(r), r.DateOfBirth(), r.Age()})
}

// Registry is the in-memory collection of committed intake records. It is
// owned by a single session goroutine and is not safe for concurrent use.
type Registry struct {
	records []PatientIntakeRecord
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Commit appends a copy of rec. The caller's record can be reused afterwards
// without affecting what was committed.
func (r *Registry) Commit(rec PatientIntakeRecord) PatientIntakeRecord {
	r.records = append(r.records, rec)
	return rec
}

// Records returns a copy of the committed records in commit order.
func (r *Registry) Records() []PatientIntakeRecord {
	out := make([]PatientIntakeRecord, len(r.records))
	copy(out, r.records)
	return out
}

// Len returns the number of committed records.
func (r *Registry) Len() int {
	return len(r.records)
}

package intake

import (
	"strconv"
	"strings"
)

// ReviewSelector is the operator's choice on the review screen.
type ReviewSelector int

const (
	SelectCancel         ReviewSelector = -1
	SelectSubmit         ReviewSelector = 0
	SelectName           ReviewSelector = 1
	SelectDateOfBirth    ReviewSelector = 2
	SelectChiefComplaint ReviewSelector = 3
	SelectVitals         ReviewSelector = 4
	SelectETA            ReviewSelector = 5
	SelectLevelOfService ReviewSelector = 6
)

// ParseReviewSelector accepts an integer in [-1, 6].
func ParseReviewSelector(raw string) (ReviewSelector, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < int(SelectCancel) || n > int(SelectLevelOfService) {
		return 0, invalid("selector", raw, "\nInvalid option. Please enter a number from -1 to 6.")
	}
	return ReviewSelector(n), nil
}

// VitalSelector is the operator's choice on the vitals edit sub-menu.
type VitalSelector string

const (
	VitalHeartRate        VitalSelector = "a"
	VitalBloodPressure    VitalSelector = "b"
	VitalRespiratoryRate  VitalSelector = "c"
	VitalOxygenSaturation VitalSelector = "d"
	VitalTemperature      VitalSelector = "e"

	// VitalsDone and VitalsBack leave the sub-menu without touching any
	// reading.
	VitalsDone VitalSelector = "0"
	VitalsBack VitalSelector = "-1"
)

// VitalFields lists the editable readings in menu order.
var VitalFields = []VitalSelector{
	VitalHeartRate,
	VitalBloodPressure,
	VitalRespiratoryRate,
	VitalOxygenSaturation,
	VitalTemperature,
}

// ParseVitalSelector accepts a..e, 0 or -1.
func ParseVitalSelector(raw string) (VitalSelector, error) {
	sel := VitalSelector(strings.TrimSpace(raw))
	switch sel {
	case VitalHeartRate, VitalBloodPressure, VitalRespiratoryRate,
		VitalOxygenSaturation, VitalTemperature, VitalsDone, VitalsBack:
		return sel, nil
	}
	return "", invalid("vitals_selector", raw, "\nInvalid option. Please enter a valid letter or number.")
}

// Label is the human-readable name of a reading, used in prompts and on the
// review screen.
func (v VitalSelector) Label() string {
	switch v {
	case VitalHeartRate:
		return "Heart Rate (bpm)"
	case VitalBloodPressure:
		return "Blood Pressure (systolic/diastolic)"
	case VitalRespiratoryRate:
		return "Respiratory Rate (breaths/min)"
	case VitalOxygenSaturation:
		return "O2 Saturation (%)"
	case VitalTemperature:
		return "Temperature (Fahrenheit)"
	case VitalsDone:
		return "Return to review"
	case VitalsBack:
		return "Cancel vitals edit"
	}
	return string(v)
}

package intake

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const isoDate = "2006-01-02"

// ValidationError reports raw operator input that failed a field's format
// rule. Message is what the operator sees before being asked again.
type ValidationError struct {
	Field   string
	Input   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, input, msg string) error {
	return &ValidationError{Field: field, Input: input, Message: msg}
}

// ParseDateOfBirth accepts a YYYY-MM-DD calendar date.
func ParseDateOfBirth(raw string) (time.Time, error) {
	dob, err := time.Parse(isoDate, raw)
	if err != nil {
		return time.Time{}, invalid("dob", raw,
			"Invalid date format. Please enter Date of Birth in the format YYYY-MM-DD.")
	}
	return dob, nil
}

// AgeOn returns the completed years between dob and now. Only the calendar
// fields are compared, so the time of day and zone of either value are
// irrelevant.
func AgeOn(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}

// ParseInteger accepts any base-10 integer. Range is not
// checked: a negative heart rate or ETA passes.
func ParseInteger(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, invalid("integer", raw, "Invalid input. Please enter a valid integer.")
	}
	return n, nil
}

// ParseBloodPressure accepts "S/D" where both sides are non-empty runs of
// ASCII digits. The input is returned unchanged.
func ParseBloodPressure(raw string) (string, error) {
	parts := strings.Split(raw, "/")
	if len(parts) != 2 || !allDigits(parts[0]) || !allDigits(parts[1]) {
		return "", invalid("bp", raw,
			"Invalid input format. Please enter Blood Pressure in the format 'int/int'.")
	}
	return raw, nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ParseTemperature accepts a decimal number in Fahrenheit, optionally
// surrounded by spaces. Only an empty answer means 0; spaces alone are
// rejected.
func ParseTemperature(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, invalid("temperature", raw, "Invalid input. Please enter a valid number.")
	}
	return f, nil
}

// ParseLevelOfService matches raw case-insensitively against
// LevelsOfService and returns the canonical upper-case value.
func ParseLevelOfService(raw string) (LevelOfService, error) {
	candidate := LevelOfService(strings.ToUpper(raw))
	for _, los := range LevelsOfService {
		if candidate == los {
			return los, nil
		}
	}
	return "", invalid("los", raw,
		fmt.Sprintf("Invalid input. Please enter a valid Level of Service (%s).", levelList()))
}

func levelList() string {
	names := make([]string, len(LevelsOfService))
	for i, los := range LevelsOfService {
		names[i] = string(los)
	}
	return strings.Join(names, ", ")
}

package complaint

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Message is the body published for every chief complaint. It carries the
// free text only, no patient identifiers.
type Message struct {
	ChiefComplaint string `json:"chief_complaint"`
}

// Encode serialises m as a UTF-8 JSON object.
func (m Message) Encode() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode chief complaint: %w", err)
	}
	return b, nil
}

// DecodeMessage parses a published body. A missing chief_complaint field
// decodes to the empty string; anything that is not a JSON object is an
// error.
func DecodeMessage(body []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return Message{}, fmt.Errorf("decode chief complaint: %w", err)
	}
	return m, nil
}

package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrKind classifies a bad model response.
type ErrKind string

// Response failure kinds. All are item-scoped: a bad response skips the
// current item and the batch continues.
const (
	KindRateLimited   ErrKind = "rate_limited"
	KindMalformedJSON ErrKind = "malformed_json"
	KindMissingField  ErrKind = "missing_field"
)

// ResponseError is the typed failure for completion-service output the
// orchestration layer cannot use.
type ResponseError struct {
	Kind   ErrKind
	Detail string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("completion response (%s): %s", e.Kind, e.Detail)
}

// IsRateLimited reports whether err is a rate-limit rejection.
func IsRateLimited(err error) bool {
	var re *ResponseError
	return errors.As(err, &re) && re.Kind == KindRateLimited
}

// ExtractJSON strips any markdown code-fence wrapping and returns the JSON
// payload, verifying it parses as an object. Callers unmarshal the returned
// bytes into their own typed shape and validate from there.
func ExtractJSON(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ResponseError{Kind: KindMalformedJSON, Detail: "empty response"}
	}

	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		endIdx := len(lines) - 1
		for i := len(lines) - 1; i > 0; i-- {
			if strings.TrimSpace(lines[i]) == "```" {
				endIdx = i
				break
			}
		}
		text = strings.Join(lines[1:endIdx], "\n")
		text = strings.TrimSpace(text)
	}

	// Models sometimes preface the object with prose; slice from the
	// first brace to the last.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, &ResponseError{Kind: KindMalformedJSON, Detail: "no JSON object in response"}
	}
	payload := []byte(text[start : end+1])

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, &ResponseError{Kind: KindMalformedJSON, Detail: err.Error()}
	}
	return payload, nil
}

// MissingField builds the typed error for a required key the response lacks.
func MissingField(name string) error {
	return &ResponseError{Kind: KindMissingField, Detail: "missing required field " + name}
}

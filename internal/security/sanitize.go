package security

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// FilterMarker replaces every prompt-injection match.
const FilterMarker = "[FILTERED]"

// MaxSafeStringLength bounds the length IsSafeString accepts.
const MaxSafeStringLength = 10000

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(previous|above|all)\s+instructions?`),
	regexp.MustCompile(`(?i)disregard\s+(previous|above|all)\s+instructions?`),
	regexp.MustCompile(`(?i)forget\s+(previous|above|all)\s+instructions?`),
	regexp.MustCompile(`(?i)system\s*:`),
	regexp.MustCompile(`(?i)\[INST\]`),
	regexp.MustCompile(`(?i)<\|im_start\|>`),
	regexp.MustCompile(`(?i)<\|im_end\|>`),
	regexp.MustCompile(`(?i)<<SYS>>`),
	regexp.MustCompile(`(?i)</SYS>>`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+`),
	regexp.MustCompile(`(?i)new\s+instructions?\s*:`),
}

// SanitizeForLLM replaces known prompt-injection phrases, role-switch
// markers and chat control tokens with FilterMarker. It never fails.
func SanitizeForLLM(input string) string {
	out := input
	for _, re := range injectionPatterns {
		out = re.ReplaceAllLiteralString(out, FilterMarker)
	}
	return out
}

// queryOperators are blocked anywhere inside string values.
var queryOperators = []string{
	"$gt", "$gte", "$lt", "$lte", "$ne", "$in", "$nin",
	"$or", "$and", "$not", "$nor", "$exists", "$type", "$mod",
	"$regex", "$where", "$text", "$search",
	"$geoWithin", "$geoIntersects", "$near", "$nearSphere",
	"$all", "$elemMatch", "$size", "$expr", "$jsonSchema",
}

// ErrQueryInjection is returned (wrapped) when structured input carries
// query operators.
var ErrQueryInjection = errors.New("invalid input: query operator detected")

// InjectionError describes where a query operator was found.
type InjectionError struct {
	Path   string
	Detail string
}

func (e *InjectionError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", ErrQueryInjection, e.Detail)
	}
	return fmt.Sprintf("%s at %s: %s", ErrQueryInjection, e.Path, e.Detail)
}

func (e *InjectionError) Unwrap() error { return ErrQueryInjection }

// SanitizeQuery walks a decoded JSON value and rejects it as a whole when a
// map key starts with "$" or a string contains a query operator token. On
// success it returns a deep copy equal to the input.
func SanitizeQuery(v any) (any, error) {
	return sanitizeValue(v, "")
}

func sanitizeValue(v any, path string) (any, error) {
	switch val := v.(type) {
	case string:
		for _, op := range queryOperators {
			if strings.Contains(val, op) {
				return nil, &InjectionError{Path: path, Detail: "operator " + op + " in value"}
			}
		}
		return val, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			clean, err := sanitizeValue(item, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = clean
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for key, item := range val {
			child := key
			if path != "" {
				child = path + "." + key
			}
			if strings.HasPrefix(key, "$") {
				return nil, &InjectionError{Path: child, Detail: "operator in key"}
			}
			clean, err := sanitizeValue(item, child)
			if err != nil {
				return nil, err
			}
			out[key] = clean
		}
		return out, nil
	case map[string]string:
		generic := make(map[string]any, len(val))
		for k, s := range val {
			generic[k] = s
		}
		return sanitizeValue(generic, path)
	case []string:
		generic := make([]any, len(val))
		for i, s := range val {
			generic[i] = s
		}
		return sanitizeValue(generic, path)
	default:
		return v, nil
	}
}

// SanitizeFields is SanitizeQuery for a flat field map.
func SanitizeFields(fields map[string]any) (map[string]any, error) {
	if fields == nil {
		return nil, nil
	}
	clean, err := SanitizeQuery(fields)
	if err != nil {
		return nil, err
	}
	return clean.(map[string]any), nil
}

// IsSafeString reports whether s is at most MaxSafeStringLength characters
// and free of ASCII control characters.
func IsSafeString(s string) bool {
	if utf8.RuneCountInString(s) > MaxSafeStringLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c == 0x7f {
			return false
		}
	}
	return true
}

// IsSafePrompt is IsSafeString that tolerates newlines and tabs, which
// chat messages legitimately contain.
func IsSafePrompt(s string) bool {
	return IsSafeString(strings.NewReplacer("\n", " ", "\r", " ", "\t", " ").Replace(s))
}

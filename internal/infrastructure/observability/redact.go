package observability

import "strings"

// sensitiveKeys are matched by case-insensitive substring against map keys.
var sensitiveKeys = []string{
	"api_key",
	"api-key",
	"apikey",
	"client_id",
	"client-id",
	"clientid",
	"token",
	"authorization",
	"password",
	"secret",
	"signature",
}

const redactedPlaceholder = "***REDACTED***"

// Redact returns a copy of data with values under sensitive keys replaced,
// recursively through nested maps and slices. The input is never mutated.
func Redact(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		if isSensitiveKey(k) {
			out[k] = redactedPlaceholder
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return Redact(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = redactValue(item)
		}
		return out
	default:
		return v
	}
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedact(t *testing.T) {
	tests := []struct {
		name     string
		input    map[string]any
		expected map[string]any
	}{
		{
			name:     "nil map",
			input:    nil,
			expected: nil,
		},
		{
			name:     "plain values pass through",
			input:    map[string]any{"orderReference": "TEST123", "amount": 100.5},
			expected: map[string]any{"orderReference": "TEST123", "amount": 100.5},
		},
		{
			name:     "sensitive keys are masked",
			input:    map[string]any{"api_key": "sk_live_abc", "client-id": "c1", "status": "SUCCESS"},
			expected: map[string]any{"api_key": "***REDACTED***", "client-id": "***REDACTED***", "status": "SUCCESS"},
		},
		{
			name:     "matching is case insensitive and by substring",
			input:    map[string]any{"Authorization": "Bearer x", "refreshToken": "abc", "X-Clickpesa-Signature": "f00"},
			expected: map[string]any{"Authorization": "***REDACTED***", "refreshToken": "***REDACTED***", "X-Clickpesa-Signature": "***REDACTED***"},
		},
		{
			name: "nested maps and slices",
			input: map[string]any{
				"customer": map[string]any{"name": "Jane", "password": "hunter2"},
				"attempts": []any{
					map[string]any{"token": "t1", "status": "FAILED"},
				},
			},
			expected: map[string]any{
				"customer": map[string]any{"name": "Jane", "password": "***REDACTED***"},
				"attempts": []any{
					map[string]any{"token": "***REDACTED***", "status": "FAILED"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Redact(tt.input))
		})
	}
}

func TestRedact_DoesNotMutateInput(t *testing.T) {
	input := map[string]any{
		"secret": "s3cr3t",
		"nested": map[string]any{"token": "abc"},
	}
	Redact(input)
	assert.Equal(t, "s3cr3t", input["secret"])
	assert.Equal(t, "abc", input["nested"].(map[string]any)["token"])
}

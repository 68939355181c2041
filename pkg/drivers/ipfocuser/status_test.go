package ipfocuser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name           string
		input          string
		expected       Status
		expectError    bool
		expectedOffset int64
	}{
		{
			name:  "Full status",
			input: `{"absolutePosition":1200,"minPosition":0,"maxPosition":30000}`,
			expected: Status{
				AbsolutePosition: ptr(1200),
				MinPosition:      ptr(0),
				MaxPosition:      ptr(30000),
			},
		},
		{
			name:  "Controller reply with uptime and padding",
			input: `{"uptime":"05:14:12", "absolutePosition":    4200, "maxPosition":    100000, "minPosition":    10}`,
			expected: Status{
				AbsolutePosition: ptr(4200),
				MinPosition:      ptr(10),
				MaxPosition:      ptr(100000),
			},
		},
		{
			name:     "Missing fields stay nil",
			input:    `{"absolutePosition":7}`,
			expected: Status{AbsolutePosition: ptr(7)},
		},
		{
			name:     "Empty object",
			input:    ` {} `,
			expected: Status{},
		},
		{
			name:           "Not JSON",
			input:          `not-json`,
			expectError:    true,
			expectedOffset: 2,
		},
		{
			name:           "Truncated",
			input:          `{"absolutePosition":12`,
			expectError:    true,
			expectedOffset: 22,
		},
		{
			name:        "Field is not a number",
			input:       `{"absolutePosition":"12"}`,
			expectError: true,
		},
		{
			name:        "Array",
			input:       `[1,2]`,
			expectError: true,
		},
		{
			name:        "Null",
			input:       `null`,
			expectError: true,
		},
		{
			name:        "Empty body",
			input:       ``,
			expectError: true,
		},
		{
			name:        "Negative position",
			input:       `{"absolutePosition":-5}`,
			expectError: true,
		},
		{
			name:        "Trailing data",
			input:       `{"absolutePosition":5} {"absolutePosition":6}`,
			expectError: true,
		},
		{
			name:           "Extra closing brace",
			input:          `{"absolutePosition":1}}`,
			expectError:    true,
			expectedOffset: 23,
		},
		{
			name:           "Extra closing bracket",
			input:          `{"absolutePosition":1}]`,
			expectError:    true,
			expectedOffset: 23,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st, err := ParseStatus([]byte(tc.input))
			if !tc.expectError {
				require.NoError(t, err)
				assert.Equal(t, tc.expected, st)
				return
			}

			require.Error(t, err)
			assert.Equal(t, Status{}, st, "nothing is returned from a broken reply")

			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			if tc.expectedOffset != 0 {
				assert.Equal(t, tc.expectedOffset, pe.Offset)
			}
		})
	}
}

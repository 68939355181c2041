package ipfocuser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEndpointURL(t *testing.T) {
	assert.Equal(t, "http://192.168.1.203:80/focuser", endpointURL("192.168.1.203", 80))
	assert.Equal(t, "http://focuser.local:8080/focuser", endpointURL("focuser.local", 8080))
	assert.Equal(t, "http://[fe80::1]:80/focuser", endpointURL("fe80::1", 80))
}

func TestMoveURL(t *testing.T) {
	tests := []struct {
		name     string
		target   uint32
		backlash int
		approach string
		expected string
	}{
		{
			name:     "Default settings",
			target:   5000,
			backlash: 300,
			approach: "CCW",
			expected: "http://h:80/focuser?absolutePosition=5000&backlashSteps=300&alwaysApproach=CCW",
		},
		{
			name:     "No compensation",
			target:   0,
			backlash: 0,
			approach: "",
			expected: "http://h:80/focuser?absolutePosition=0&backlashSteps=0&alwaysApproach=",
		},
		{
			name:     "Approach value is escaped",
			target:   12,
			backlash: 1,
			approach: "C W&x=1",
			expected: "http://h:80/focuser?absolutePosition=12&backlashSteps=1&alwaysApproach=C+W%26x%3D1",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, moveURL("http://h:80/focuser", tc.target, tc.backlash, tc.approach))
		})
	}
}

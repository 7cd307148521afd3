package version

import (
	"regexp"
	"strings"
	"testing"
)

// semverRegex validates semantic versioning format
var semverRegex = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

func TestVersionConstants(t *testing.T) {
	tests := []struct {
		name    string
		version string
	}{
		{"Framework", Framework},
		{"Protocol", Protocol},
		{"TCP", TCP},
		{"UDP", UDP},
		{"HTTP", HTTP},
		{"GRPC", GRPC},
		{"Console", Console},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.version == "" {
				t.Errorf("%s version is empty", tt.name)
			}
			if !semverRegex.MatchString(tt.version) {
				t.Errorf("%s version %q does not match semver format (x.y.z)", tt.name, tt.version)
			}
		})
	}
}

func TestTransportVersion(t *testing.T) {
	tests := []struct {
		name      string
		transport string
		expected  string
	}{
		{"tcp transport", "tcp", TCP},
		{"udp transport", "udp", UDP},
		{"http transport", "http", HTTP},
		{"grpc transport", "grpc", GRPC},
		{"console transport", "console", Console},
		{"unknown transport", "unknown", Framework},
		{"empty transport", "", Framework},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TransportVersion(tt.transport)
			if result != tt.expected {
				t.Errorf("TransportVersion(%q) = %q, want %q", tt.transport, result, tt.expected)
			}
		})
	}
}

func TestString(t *testing.T) {
	s := String()
	if !strings.HasPrefix(s, "mdwterm "+Framework) {
		t.Errorf("String() = %q, want prefix %q", s, "mdwterm "+Framework)
	}
	if !strings.Contains(s, "commit "+Commit) {
		t.Errorf("String() = %q, want the commit", s)
	}
}

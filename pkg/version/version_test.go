package version

import "testing"

func TestNumeric(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"1.2.3", 1002003},
		{"v0.10.0", 10000},
		{"2.0.1-rc.1", 2000001},
		{"0.0.0-dev", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Numeric(tt.in); got != tt.want {
				t.Errorf("Numeric(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

package content

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"22-03-2025 18:50:10", time.Date(2025, 3, 22, 18, 50, 10, 0, time.UTC)},
		{"2-3-2025 08:05", time.Date(2025, 3, 2, 8, 5, 0, 0, time.UTC)},
		{"22-03-2025", time.Date(2025, 3, 22, 0, 0, 0, 0, time.UTC)},
		{"2025-03-22 18:50:10", time.Date(2025, 3, 22, 18, 50, 10, 0, time.UTC)},
		{"2025-03-22", time.Date(2025, 3, 22, 0, 0, 0, 0, time.UTC)},
		{"2025-03-22T18:50:10+05:30", time.Date(2025, 3, 22, 13, 20, 10, 0, time.UTC)},
		{"  22-03-2025 18:50:10 ", time.Date(2025, 3, 22, 18, 50, 10, 0, time.UTC)},
		{"", Epoch},
		{"yesterday", Epoch},
		{"32-13-2025", Epoch},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseDate(tt.in); !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

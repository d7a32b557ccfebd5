package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTimeText(t *testing.T) {
	now := time.Date(2023, 6, 15, 14, 37, 12, 0, time.Local)

	tests := []struct {
		name string
		text string
		want time.Time
		ok   bool
	}{
		{
			name: "month-day",
			text: "01-15",
			want: time.Date(2023, 1, 15, 0, 0, 0, 0, time.Local),
			ok:   true,
		},
		{
			name: "month-day with time",
			text: "01-15 09:30",
			want: time.Date(2023, 1, 15, 9, 30, 0, 0, time.Local),
			ok:   true,
		},
		{
			name: "full date",
			text: "2023-01-15",
			want: time.Date(2023, 1, 15, 0, 0, 0, 0, time.Local),
			ok:   true,
		},
		{
			name: "full date with time",
			text: "2023-01-15 09:30",
			want: time.Date(2023, 1, 15, 9, 30, 0, 0, time.Local),
			ok:   true,
		},
		{
			name: "hours ago rounds to top of current hour",
			text: "3小时前",
			want: time.Date(2023, 6, 15, 14, 0, 0, 0, time.Local),
			ok:   true,
		},
		{
			name: "surrounding whitespace",
			text: "  01-15  ",
			want: time.Date(2023, 1, 15, 0, 0, 0, 0, time.Local),
			ok:   true,
		},
		{
			name: "plain text",
			text: "在吗？",
			ok:   false,
		},
		{
			name: "empty",
			text: "",
			ok:   false,
		},
		{
			name: "partial digits",
			text: "1-5",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTimeText(tt.text, now)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, got.Equal(tt.want), "got %v want %v", got, tt.want)
			}
		})
	}
}

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/schoolconnect/core/content"
	"github.com/trezcool/schoolconnect/tests"
)

func Test_displayDate(t *testing.T) {
	tests := []struct {
		name     string
		sentDate string
		want     string
	}{
		{name: "dated", sentDate: "22-03-2025 18:50:10", want: "22 Mar 2025 18:50"},
		{name: "unparseable", sentDate: "last week", want: "last week"},
		{name: "missing", sentDate: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it, err := content.ParseItem(testutil.Alert(1, tt.sentDate, "School closed"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, displayDate(it))
		})
	}
}

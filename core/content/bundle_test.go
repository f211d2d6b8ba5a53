package content

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/schoolconnect/core"
	testutil "github.com/trezcool/schoolconnect/tests"
)

func items(t *testing.T, raws ...json.RawMessage) []Item {
	t.Helper()
	out := make([]Item, 0, len(raws))
	for _, raw := range raws {
		it, err := ParseItem(raw)
		require.NoError(t, err)
		out = append(out, it)
	}
	return out
}

func keys(list []Item) []string {
	out := make([]string, 0, len(list))
	for _, it := range list {
		out = append(out, it.Key())
	}
	return out
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{"", CategoryAll, false},
		{"all", CategoryAll, false},
		{" Alerts ", CategoryAlerts, false},
		{"homework", CategoryHomework, false},
		{"moments", CategoryMoments, false},
		{"photos", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCategory(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCategory() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				assert.Equal(t, core.KindValidation, core.KindOf(err))
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "All", CategoryAll.Filter())
	assert.Equal(t, "classwork", CategoryHomework.Filter())
	assert.Equal(t, "photos", CategoryMoments.Filter())
}

func TestBundle_Merge(t *testing.T) {
	b := NewBundle(items(t,
		testutil.Alert(1, "20-03-2025 10:00:00", "old"),
		testutil.Circular(1, "22-03-2025 10:00:00", "new"),
		testutil.Alert(1, "20-03-2025 10:00:00", "old"), // duplicate within the page
	))
	require.Equal(t, 2, b.Len())
	assert.Equal(t, []string{"circular|1|22-03-2025 10:00:00", "alert|1|20-03-2025 10:00:00"}, keys(b.All))

	added := b.Merge(items(t,
		testutil.Alert(1, "20-03-2025 10:00:00", "old"), // already known
		testutil.Alert(2, "21-03-2025 10:00:00", "mid"),
		testutil.Homework(3, "23-03-2025", "Maths"),
		testutil.Moment(4, "", "undated"),
	))
	assert.Equal(t, 3, added)
	assert.Equal(t, []string{
		"classwork|3|23-03-2025",
		"circular|1|22-03-2025 10:00:00",
		"alert|2|21-03-2025 10:00:00",
		"alert|1|20-03-2025 10:00:00",
		"photos|4|",
	}, keys(b.All), "newest first, undated last")
	assert.Len(t, b.Alerts, 2)
	assert.Len(t, b.Circulars, 1)
	assert.Len(t, b.Homework, 1)
	assert.Len(t, b.Moments, 1)
	assert.Equal(t, "alert|2|21-03-2025 10:00:00", b.Category(CategoryAlerts)[0].Key())
}

func TestBundle_Merge_sameIDDifferentDate(t *testing.T) {
	b := NewBundle(items(t,
		testutil.Alert(1, "20-03-2025 10:00:00", "first"),
		testutil.Alert(1, "21-03-2025 10:00:00", "resent"),
	))
	assert.Equal(t, 2, b.Len())
}

func TestBundle_Replace(t *testing.T) {
	b := NewBundle(items(t,
		testutil.Alert(1, "20-03-2025 10:00:00", "a1"),
		testutil.Alert(2, "21-03-2025 10:00:00", "a2"),
		testutil.Circular(3, "22-03-2025 10:00:00", "c3"),
	))

	t.Run("one category", func(t *testing.T) {
		cp := b.Clone()
		cp.Replace(CategoryAlerts, items(t,
			testutil.Alert(5, "24-03-2025 10:00:00", "a5"),
			testutil.Circular(6, "25-03-2025 10:00:00", "ignored"),
		))
		assert.Equal(t, []string{"alert|5|24-03-2025 10:00:00"}, keys(cp.Alerts))
		assert.Equal(t, []string{"alert|5|24-03-2025 10:00:00", "circular|3|22-03-2025 10:00:00"}, keys(cp.All))
		assert.Len(t, cp.Circulars, 1)
	})

	t.Run("empty category page", func(t *testing.T) {
		cp := b.Clone()
		cp.Replace(CategoryAlerts, nil)
		assert.NotNil(t, cp.Alerts)
		assert.Empty(t, cp.Alerts)
		assert.Equal(t, 1, cp.Len())
	})

	t.Run("all", func(t *testing.T) {
		cp := b.Clone()
		cp.Replace(CategoryAll, items(t, testutil.Homework(9, "23-03-2025", "Science")))
		assert.Equal(t, []string{"classwork|9|23-03-2025"}, keys(cp.All))
		assert.Empty(t, cp.Alerts)
		assert.Empty(t, cp.Circulars)
	})

	assert.Equal(t, 3, b.Len(), "clones are independent")
}

func TestBundle_JSON(t *testing.T) {
	b := NewBundle(items(t,
		testutil.Alert(1, "20-03-2025 10:00:00", "a1"),
		testutil.Moment(2, "21-03-2025 10:00:00", "m2"),
	))
	raw, err := json.Marshal(b.Clone())
	require.NoError(t, err)

	var decoded Bundle
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, keys(b.All), keys(decoded.All))
	assert.Equal(t, keys(b.Moments), keys(decoded.Moments))
	assert.Empty(t, decoded.Circulars)
}

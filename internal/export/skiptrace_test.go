package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/parcelbook/internal/skiptrace"
)

func TestWriteSkipTraceCSV(t *testing.T) {
	results := []skiptrace.Result{
		{
			PropertyID:      7,
			Status:          skiptrace.StatusCompleted,
			FoundPersonName: "Jane Public",
			Contact: &skiptrace.Contact{
				Mobiles: []string{"5125550100", "5125550101"},
				Emails:  []string{"jane@example.com"},
			},
		},
		{PropertyID: 8, Status: skiptrace.StatusCompleted},
		{PropertyID: 9, Status: skiptrace.StatusFailed, Error: "404 - no match, try again"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSkipTraceCSV(&buf, results))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, SkipTraceHeader, rows[0])
	assert.Equal(t, []string{"7", "completed", "Jane Public", "5125550100; 5125550101", "", "jane@example.com", ""}, rows[1])
	assert.Equal(t, []string{"8", "completed", "", "", "", "", ""}, rows[2])
	assert.Equal(t, []string{"9", "failed", "", "", "", "", "404 - no match, try again"}, rows[3])
}

func TestSkipTraceFilename(t *testing.T) {
	assert.Equal(t, "skiptrace-B-2024-05-01.csv", SkipTraceFilename("B", time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)))
}

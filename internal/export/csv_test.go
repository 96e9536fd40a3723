package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/parcelbook/internal/models"
)

func ptr[T any](v T) *T { return &v }

func TestWriteCSV(t *testing.T) {
	props := []models.Property{
		{
			ID:        1,
			PropID:    "R100",
			OwnerName: ptr(`Smith, John "Jack"`),
			SitusAddr: ptr("100 Main St, Burnet, TX 78611"),
			LandValue: ptr(12500.5),
			MktValue:  ptr(250000.0),
			GisArea:   ptr(10.25),
			County:    "burnet",
		},
		{ID: 2, PropID: "R200", County: "burnet"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, props))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, Header, rows[0])
	assert.Equal(t, []string{"R100", `Smith, John "Jack"`, "100 Main St, Burnet, TX 78611", "", "12500.5", "250000", "10.25", "burnet"}, rows[1])
	assert.Equal(t, []string{"R200", "", "", "", "0", "0", "0", "burnet"}, rows[2])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "Property_ID,Owner_Name,Property_Address,Mailing_Address,Land_Value,Market_Value,Acreage,County\n", buf.String())
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "properties-2024-05-01.csv", Filename(time.Date(2024, 5, 1, 23, 0, 0, 0, time.UTC)))
}

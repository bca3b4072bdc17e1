package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestXLSX(t *testing.T) {
	cols := []Column{{Key: "guest_id", Title: "Guest ID"}, {Key: "guest_name", Title: "Name"}, {Key: "requires_driver", Title: "Driver"}}
	rows := []map[string]any{
		{"guest_id": "G001", "guest_name": "A. Rahman", "requires_driver": true},
		{"guest_id": "G002", "guest_name": nil, "requires_driver": false},
	}

	b, err := XLSX("Guests", cols, rows)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Guests"}, f.GetSheetList())
	got, err := f.GetRows("Guests")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"Guest ID", "Name", "Driver"}, got[0])
	assert.Equal(t, []string{"G001", "A. Rahman", "Yes"}, got[1])
	assert.Equal(t, []string{"G002", "", "No"}, got[2])
}

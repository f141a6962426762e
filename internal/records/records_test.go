package records

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	assert.Equal(t, FormatJSON, Detect("  [ {} ]"))
	assert.Equal(t, FormatJSON, Detect("{}"))
	assert.Equal(t, FormatCSV, Detect("type,name,cost\nsink,K,1"))
}

func TestParseJSON(t *testing.T) {
	recs, err := ParseJSON(`[
		// comments are allowed
		{"type": "sink", "name": "Kohler K-5", "cost": 450.5, "url": null},
		{"type": "oven", "name": "Bosch", "cost": "1200", "featured": true},
	]`)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "sink", recs[0]["type"])
	assert.Equal(t, "450.5", recs[0]["cost"])
	assert.True(t, recs[0].Has("url"))
	assert.Equal(t, "", recs[0]["url"])
	assert.False(t, recs[0].Has("note"))
	assert.Equal(t, "1200", recs[1]["cost"])
	assert.Equal(t, "true", recs[1]["featured"])
}

func TestParseJSONErrors(t *testing.T) {
	_, err := ParseJSON("   ")
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = ParseJSON("[{")
	assert.ErrorIs(t, err, ErrInvalidJSON)

	_, err = ParseJSON(`{"type":"sink"}`)
	assert.ErrorIs(t, err, ErrNotArray)

	_, err = ParseJSON("[]")
	assert.ErrorIs(t, err, ErrNoRecords)
}

func TestParseJSONNonObjectElement(t *testing.T) {
	recs, err := ParseJSON(`[1, {"type":"sink"}]`)
	require.NoError(t, err)
	assert.Empty(t, recs[0])
	assert.Equal(t, "sink", recs[1]["type"])
}

func TestParseCSV(t *testing.T) {
	tbl, err := ParseCSV("type, name, cost, note\nsink, Kohler, 450.5, \"says \"\"hi\"\", twice\"\n\noven,Bosch,1200\n")
	require.NoError(t, err)

	assert.Equal(t, []string{"type", "name", "cost", "note"}, tbl.Header)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, 2, tbl.Rows[0].Line)
	assert.Equal(t, `says "hi", twice`, tbl.Rows[0].Values[3])
	assert.Equal(t, 4, tbl.Rows[1].Line)
	assert.Len(t, tbl.Rows[1].Values, 3)

	rec := tbl.Record(tbl.Rows[0])
	assert.Equal(t, "Kohler", rec.Fields().Name)
	assert.Equal(t, "450.5", rec.Fields().Cost)
}

func TestParseCSVErrors(t *testing.T) {
	_, err := ParseCSV("")
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = ParseCSV("type,name,cost\n")
	assert.ErrorIs(t, err, ErrNoRecords)
}

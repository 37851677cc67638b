package parsers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractJSONFromFencedBlock(t *testing.T) {
	raw := "Here is the plan:\n```json\n{\"plan\": [\"select a from t\"]}\n```\nLet me know if you need more."
	obj, err := ExtractJSON(raw)
	require.NoError(t, err)
	require.JSONEq(t, `{"plan": ["select a from t"]}`, obj)
}

func TestExtractJSONIgnoresBracesInStrings(t *testing.T) {
	raw := `{"sql": "SELECT 1 AS \"{weird}\""}`
	obj, err := ExtractJSON(raw)
	require.NoError(t, err)
	require.JSONEq(t, raw, obj)
}

func TestExtractJSONNoObjectFound(t *testing.T) {
	_, err := ExtractJSON("no json here at all")
	require.Error(t, err)
}

func TestParseJSONIntoStruct(t *testing.T) {
	type plan struct {
		Plan []string `json:"plan"`
	}
	var out plan
	err := ParseJSON(`some preamble {"plan": ["a", "b"]} trailing`, &out)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, out.Plan)
}

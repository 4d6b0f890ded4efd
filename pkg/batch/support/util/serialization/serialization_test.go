package serialization

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/model"
)

func TestMaskMap(t *testing.T) {
	adapters := map[string]interface{}{
		"storage": map[string]interface{}{
			"staging": map[string]interface{}{
				"type":              "s3",
				"Secret_Access_Key": "abc",
				"session_token":     "",
			},
		},
		"database": map[interface{}]interface{}{
			"watermark": map[string]interface{}{"password": "pw", "host": "db"},
		},
		"list": []interface{}{map[string]interface{}{"password": "x"}},
	}

	masked := MaskMap(adapters, []string{"password", "secret_access_key", "session_token"})

	staging := masked["storage"].(map[string]interface{})["staging"].(map[string]interface{})
	assert.Equal(t, "s3", staging["type"])
	assert.Equal(t, MaskValue, staging["Secret_Access_Key"])
	assert.Equal(t, "", staging["session_token"], "empty values stay empty")

	db := masked["database"].(map[string]interface{})["watermark"].(map[string]interface{})
	assert.Equal(t, MaskValue, db["password"])
	assert.Equal(t, "db", db["host"])

	list := masked["list"].([]interface{})
	assert.Equal(t, MaskValue, list[0].(map[string]interface{})["password"])

	// The input is untouched.
	assert.Equal(t, "abc", adapters["storage"].(map[string]interface{})["staging"].(map[string]interface{})["Secret_Access_Key"])
	assert.Empty(t, MaskMap(nil, []string{"password"}))
}

func TestMarshalMasked(t *testing.T) {
	data, err := MarshalMasked(map[string]interface{}{"password": "pw"}, []string{"password"})
	require.NoError(t, err)
	var out map[string]string
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, MaskValue, out["password"])
}

func TestRunReportRoundTrip(t *testing.T) {
	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	report := &model.RunReport{
		RunID:          "run",
		JobID:          "job",
		Watermark:      "in/2024-01-01/",
		FinalWatermark: "in/2024-01-02/",
		Candidates:     2,
		Pending:        []string{"in/2024-01-02/"},
		Processed:      []string{"in/2024-01-02/"},
		StartTime:      start,
		EndTime:        start.Add(time.Minute),
	}
	data, err := MarshalRunReport(report)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"final_watermark": "in/2024-01-02/"`)
	assert.NotContains(t, string(data), `"error"`)

	back, err := UnmarshalRunReport(data)
	require.NoError(t, err)
	assert.Equal(t, report, back)

	empty, err := MarshalRunReport(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(empty))

	_, err = UnmarshalRunReport([]byte("{"))
	assert.Error(t, err)
}

// Package serialization renders run reports and configuration maps for output, masking
// sensitive values.
package serialization

import (
	"encoding/json"
	"strings"

	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/model"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/logger"
)

// MaskValue replaces every masked value.
const MaskValue = "********"

// MaskMap returns a deep copy of m in which the value of every key listed in maskedKeys
// (compared case-insensitively, at any depth) is replaced by MaskValue.
func MaskMap(m map[string]interface{}, maskedKeys []string) map[string]interface{} {
	if len(m) == 0 {
		return map[string]interface{}{}
	}
	keys := make(map[string]struct{}, len(maskedKeys))
	for _, k := range maskedKeys {
		keys[strings.ToLower(k)] = struct{}{}
	}
	return maskMap(m, keys)
}

func maskMap(m map[string]interface{}, keys map[string]struct{}) map[string]interface{} {
	masked := make(map[string]interface{}, len(m))
	for k, v := range m {
		if _, ok := keys[strings.ToLower(k)]; ok {
			if v != nil && v != "" {
				v = MaskValue
			}
			masked[k] = v
			continue
		}
		masked[k] = maskValue(v, keys)
	}
	return masked
}

func maskValue(v interface{}, keys map[string]struct{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return maskMap(t, keys)
	case map[interface{}]interface{}:
		converted := make(map[string]interface{}, len(t))
		for k, val := range t {
			if s, ok := k.(string); ok {
				converted[s] = val
			}
		}
		return maskMap(converted, keys)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = maskValue(e, keys)
		}
		return out
	default:
		return v
	}
}

// MarshalMasked serializes a masked copy of m as indented JSON.
func MarshalMasked(m map[string]interface{}, maskedKeys []string) ([]byte, error) {
	data, err := json.MarshalIndent(MaskMap(m, maskedKeys), "", "  ")
	if err != nil {
		logger.Errorf("Failed to serialize configuration: %v", err)
		return nil, err
	}
	return data, nil
}

// MarshalRunReport serializes a run report as indented JSON. A nil report renders as "{}".
func MarshalRunReport(report *model.RunReport) ([]byte, error) {
	if report == nil {
		logger.Debugf("RunReport is nil. Returning empty JSON object.")
		return []byte("{}"), nil
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		logger.Errorf("Failed to serialize RunReport: %v", err)
		return nil, err
	}
	return data, nil
}

// UnmarshalRunReport restores a report written by MarshalRunReport.
func UnmarshalRunReport(data []byte) (*model.RunReport, error) {
	report := &model.RunReport{}
	if len(data) == 0 || string(data) == "null" {
		return report, nil
	}
	if err := json.Unmarshal(data, report); err != nil {
		logger.Errorf("Failed to deserialize RunReport: %v", err)
		return nil, err
	}
	return report, nil
}

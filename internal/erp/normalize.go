package erp

import (
	"encoding/json"
	"fmt"
	"strings"
)

const loadRecordsPath = "/service.sbr?serviceName=CRUDServiceProvider.loadRecords&outputType=json"

// BulkQuery names a root entity, the fields to project, and optional filter and
// ordering expressions.
type BulkQuery struct {
	RootEntity string
	Fields     []string
	Filter     string
	OrderBy    string
}

// Record is one normalized row, keyed by field name.
type Record map[string]string

func (q BulkQuery) envelope() map[string]any {
	dataSet := map[string]any{
		"rootEntity":                q.RootEntity,
		"includePresentationFields": "N",
		"entity": map[string]any{
			"fieldset": map[string]any{"list": strings.Join(q.Fields, ",")},
		},
	}
	if q.Filter != "" {
		dataSet["criteria"] = map[string]any{"expression": map[string]any{"$": q.Filter}}
	}
	if q.OrderBy != "" {
		dataSet["orderBy"] = map[string]any{"$": q.OrderBy}
	}
	return map[string]any{
		"serviceName": "CRUDServiceProvider.loadRecords",
		"requestBody": map[string]any{"dataSet": dataSet},
	}
}

type loadResponse struct {
	ResponseBody struct {
		Entities struct {
			Total    string `json:"total"`
			Metadata struct {
				Fields struct {
					Field []struct {
						Name string `json:"name"`
					} `json:"field"`
				} `json:"fields"`
			} `json:"metadata"`
			Entity json.RawMessage `json:"entity"`
		} `json:"entities"`
	} `json:"responseBody"`
}

// fieldValue is the ERP's `{"$": "..."}` wrapper around scalar values.
type fieldValue struct {
	V string `json:"$"`
}

func decodeRecords(raw []byte) ([]Record, error) {
	var out loadResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode bulk response: %w", err)
	}
	names := make([]string, 0, len(out.ResponseBody.Entities.Metadata.Fields.Field))
	for _, f := range out.ResponseBody.Entities.Metadata.Fields.Field {
		names = append(names, f.Name)
	}
	return NormalizeEntities(names, out.ResponseBody.Entities.Entity)
}

// NormalizeEntities zips the metadata field-name list against positional
// `f0, f1, …` values, skipping absent positions. A single non-array entity is
// coerced to a one-element list; an empty set yields an empty slice.
func NormalizeEntities(names []string, entity json.RawMessage) ([]Record, error) {
	trimmed := strings.TrimSpace(string(entity))
	if trimmed == "" || trimmed == "null" {
		return []Record{}, nil
	}
	var rows []map[string]fieldValue
	if err := json.Unmarshal(entity, &rows); err != nil {
		var single map[string]fieldValue
		if err := json.Unmarshal(entity, &single); err != nil {
			return nil, fmt.Errorf("decode entity set: %w", err)
		}
		rows = []map[string]fieldValue{single}
	}
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := Record{}
		for i, name := range names {
			if v, ok := row[fmt.Sprintf("f%d", i)]; ok {
				rec[name] = v.V
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

package service

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/smallbiznis/dataverse/internal/dataset/domain"
)

// sampleRows is the number of leading records used for type inference.
const sampleRows = 10

var datePrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

type inference struct {
	Schema  []domain.SchemaField
	Preview []map[string]any
}

func inferContent(fileType string, data []byte, previewRows int) (inference, error) {
	if previewRows > sampleRows {
		previewRows = sampleRows
	}
	switch fileType {
	case "text/csv":
		return inferCSV(data, previewRows)
	case "application/json":
		return inferJSON(data, previewRows)
	default:
		return inference{}, domain.ErrInvalidFileType
	}
}

func inferCSV(data []byte, previewRows int) (inference, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return inference{}, fmt.Errorf("%w: read header: %v", domain.ErrInvalidContent, err)
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	samples := make([][]string, len(header))
	preview := make([]map[string]any, 0, previewRows)
	for i := 0; i < sampleRows; i++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return inference{}, fmt.Errorf("%w: read row %d: %v", domain.ErrInvalidContent, i+1, err)
		}

		row := make(map[string]any, len(header))
		for col, field := range header {
			value := ""
			if col < len(record) {
				value = record[col]
			}
			row[field] = value
			samples[col] = append(samples[col], value)
		}
		if len(preview) < previewRows {
			preview = append(preview, row)
		}
	}

	schema := make([]domain.SchemaField, 0, len(header))
	for col, field := range header {
		schema = append(schema, domain.SchemaField{
			Field: field,
			Type:  inferType(samples[col]),
		})
	}
	return inference{Schema: schema, Preview: preview}, nil
}

func inferJSON(data []byte, previewRows int) (inference, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return inference{}, fmt.Errorf("%w: %v", domain.ErrInvalidContent, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return inference{}, fmt.Errorf("%w: expected a JSON array of objects", domain.ErrInvalidContent)
	}

	var fields []string
	seen := map[string]bool{}
	samples := map[string][]string{}
	preview := make([]map[string]any, 0, previewRows)

	for i := 0; i < sampleRows && dec.More(); i++ {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return inference{}, fmt.Errorf("%w: element %d: %v", domain.ErrInvalidContent, i, err)
		}
		keys, err := orderedKeys(raw)
		if err != nil {
			return inference{}, fmt.Errorf("%w: element %d: %v", domain.ErrInvalidContent, i, err)
		}

		row := map[string]any{}
		inner := json.NewDecoder(bytes.NewReader(raw))
		inner.UseNumber()
		if err := inner.Decode(&row); err != nil {
			return inference{}, fmt.Errorf("%w: element %d: %v", domain.ErrInvalidContent, i, err)
		}

		for _, key := range keys {
			if !seen[key] {
				seen[key] = true
				fields = append(fields, key)
			}
			if sample, ok := sampleValue(row[key]); ok {
				samples[key] = append(samples[key], sample)
			}
		}
		if len(preview) < previewRows {
			preview = append(preview, row)
		}
	}

	schema := make([]domain.SchemaField, 0, len(fields))
	for _, field := range fields {
		schema = append(schema, domain.SchemaField{Field: field, Type: inferType(samples[field])})
	}
	return inference{Schema: schema, Preview: preview}, nil
}

func orderedKeys(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("expected object")
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.New("expected object key")
		}
		keys = append(keys, key)

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// sampleValue renders a decoded JSON value for inferType. Nulls are skipped.
func sampleValue(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case json.Number:
		return val.String(), true
	case bool:
		return strconv.FormatBool(val), true
	case string:
		return val, true
	default:
		return "{}", true
	}
}

// inferType classifies a column from its sample values. Blank cells are ignored.
func inferType(values []string) string {
	nonEmpty := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			nonEmpty = append(nonEmpty, strings.TrimSpace(v))
		}
	}
	if len(nonEmpty) == 0 {
		return domain.FieldTypeString
	}

	if all(nonEmpty, isFloat) {
		return domain.FieldTypeFloat
	}
	if all(nonEmpty, datePrefix.MatchString) {
		return domain.FieldTypeDate
	}
	if all(nonEmpty, isBool) {
		return domain.FieldTypeBoolean
	}
	return domain.FieldTypeString
}

func all(values []string, pred func(string) bool) bool {
	for _, v := range values {
		if !pred(v) {
			return false
		}
	}
	return true
}

func isFloat(v string) bool {
	f, err := strconv.ParseFloat(v, 64)
	return err == nil && !math.IsInf(f, 0) && !math.IsNaN(f)
}

func isBool(v string) bool {
	lower := strings.ToLower(v)
	return lower == "true" || lower == "false"
}

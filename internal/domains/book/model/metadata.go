package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"bookcatalog/internal/shared"
)

// Metadata là JSON object tự do lưu ở cột books.metadata (jsonb).
// Số được giữ dạng json.Number để không mất độ chính xác.
type Metadata map[string]any

// DecodeMetadata parse jsonb bytes. NULL (nil/empty) và JSON null cho nil
// map; giá trị không phải object là CheckViolation.
func DecodeMetadata(raw []byte) (Metadata, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if v == nil {
		return nil, nil
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, shared.NewCheckViolation(RuleMetadataIsObject, "metadata",
			"metadata must be a JSON object", nil)
	}
	return Metadata(obj), nil
}

// UnmarshalJSON giữ số dạng json.Number (cache round-trip, CLI input).
func (m *Metadata) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeMetadata(data)
	if err != nil {
		return err
	}
	*m = decoded
	return nil
}

// SQLArg trả về giá trị truyền cho tham số jsonb: nil map thành SQL NULL.
func (m Metadata) SQLArg() (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(map[string]any(m))
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return string(b), nil
}

// Clone copies the top level.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ============================================
// FLATTENING (mirror of jsonb_values_to_text)
// ============================================

// FlattenMetadata returns what jsonb_values_to_text(metadata) yields: the
// top-level values in jsonb key order joined by one space. Strings appear
// unquoted, nested containers as jsonb text, JSON nulls are skipped. The
// bool is false where SQL would return NULL (nil or empty object, or only
// null values).
func FlattenMetadata(m Metadata) (string, bool) {
	if len(m) == 0 {
		return "", false
	}

	parts := make([]string, 0, len(m))
	for _, k := range jsonbKeyOrder(m) {
		v := m[k]
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			parts = append(parts, s)
			continue
		}
		var sb strings.Builder
		writeJSONB(&sb, v)
		parts = append(parts, sb.String())
	}

	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, " "), true
}

// jsonbKeyOrder sorts keys the way jsonb stores them: shorter keys first,
// equal lengths bytewise.
func jsonbKeyOrder(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) < len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

// writeJSONB renders v like jsonb's text output: `{"a": 1, "b": [1, 2]}`.
func writeJSONB(sb *strings.Builder, v any) {
	switch t := v.(type) {
	case nil:
		sb.WriteString("null")
	case string:
		writeJSONBString(sb, t)
	case json.Number:
		sb.WriteString(t.String())
	case bool:
		sb.WriteString(strconv.FormatBool(t))
	case float64:
		sb.WriteString(strconv.FormatFloat(t, 'f', -1, 64))
	case float32:
		sb.WriteString(strconv.FormatFloat(float64(t), 'f', -1, 32))
	case int:
		sb.WriteString(strconv.Itoa(t))
	case int32:
		sb.WriteString(strconv.FormatInt(int64(t), 10))
	case int64:
		sb.WriteString(strconv.FormatInt(t, 10))
	case Metadata:
		writeJSONBObject(sb, t)
	case map[string]any:
		writeJSONBObject(sb, t)
	case []any:
		sb.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeJSONB(sb, e)
		}
		sb.WriteByte(']')
	default:
		// Kiểu khác (struct, []string, ...): đi vòng qua encoding/json
		raw, err := json.Marshal(t)
		if err != nil {
			sb.WriteString("null")
			return
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var generic any
		if err := dec.Decode(&generic); err != nil {
			sb.WriteString("null")
			return
		}
		writeJSONB(sb, generic)
	}
}

func writeJSONBObject(sb *strings.Builder, m map[string]any) {
	sb.WriteByte('{')
	for i, k := range jsonbKeyOrder(m) {
		if i > 0 {
			sb.WriteString(", ")
		}
		writeJSONBString(sb, k)
		sb.WriteString(": ")
		writeJSONB(sb, m[k])
	}
	sb.WriteByte('}')
}

// writeJSONBString escapes like PostgreSQL's escape_json: quotes,
// backslashes and control characters only.
func writeJSONBString(sb *strings.Builder, s string) {
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\b':
			sb.WriteString(`\b`)
		case '\f':
			sb.WriteString(`\f`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(sb, `\u%04x`, r)
			} else {
				sb.WriteRune(r)
			}
		}
	}
	sb.WriteByte('"')
}

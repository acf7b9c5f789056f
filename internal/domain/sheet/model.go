package sheet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// Row is one record of the analytics sheet. Keys keep the column order
// the sheet returned them in.
type Row struct {
	Keys   []string
	Values map[string]any
}

// NewRow builds a row from alternating key/value pairs.
func NewRow(kv ...any) Row {
	r := Row{Values: map[string]any{}}
	for i := 0; i+1 < len(kv); i += 2 {
		k := fmt.Sprint(kv[i])
		if _, dup := r.Values[k]; !dup {
			r.Keys = append(r.Keys, k)
		}
		r.Values[k] = kv[i+1]
	}
	return r
}

// Get returns the value for key, or nil.
func (r Row) Get(key string) any {
	return r.Values[key]
}

// UnmarshalJSON decodes an object while recording key order.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("sheet row must be an object")
	}
	row := Row{Values: map[string]any{}}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return err
		}
		if _, dup := row.Values[key]; !dup {
			row.Keys = append(row.Keys, key)
		}
		row.Values[key] = v
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = row
	return nil
}

// MarshalJSON writes the row with its keys in order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(r.Values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Page is one page of rows as returned by the Apps Script dashboard action.
type Page struct {
	Data         []Row  `json:"data"`
	TotalRecords int    `json:"totalRecords"`
	Page         int    `json:"page"`
	Limit        int    `json:"limit"`
	TotalPages   int    `json:"totalPages"`
	Error        string `json:"error,omitempty"`
}

// Field icon kinds, chosen from the column name.
const (
	KindDate = "calendar"
	KindID   = "hash"
	KindText = "text"
	KindInfo = "info"
)

// Columns returns the first row's keys in order, followed by keys that only
// later rows carry, in order of appearance.
func (p Page) Columns() []string {
	seen := map[string]bool{}
	var cols []string
	for _, row := range p.Data {
		for _, k := range row.Keys {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	return cols
}

// FieldKind classifies a column name for its icon.
func FieldKind(name string) string {
	n := strings.ToLower(name)
	switch {
	case containsAny(n, "date", "time", "created", "updated"):
		return KindDate
	case containsAny(n, "id", "number", "count"):
		return KindID
	case containsAny(n, "name", "title", "text", "description"):
		return KindText
	default:
		return KindInfo
	}
}

// FieldLabel turns a column key into a display label: underscores become
// spaces and camelCase is split into words.
func FieldLabel(key string) string {
	var b strings.Builder
	runes := []rune(strings.ReplaceAll(key, "_", " "))
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(runes[i-1]) {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// FormatValue renders a cell for display; empty values show as an em dash.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "—"
	case string:
		if strings.TrimSpace(x) == "" {
			return "—"
		}
		return x
	case float64:
		return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.4f", x), "0"), ".")
	case bool:
		if x {
			return "true"
		}
		return "false"
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

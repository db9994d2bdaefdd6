package screening

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// NormSpace trims a string and collapses internal whitespace runs to a single
// space. Scraped text routinely differs only in incidental whitespace; two
// such variants must canonicalize to the same value.
func NormSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func normPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := NormSpace(*p)
	return &v
}

// Canonicalize returns a copy of the record with every string field
// whitespace-normalized and both timestamps forced to UTC at second
// precision. Fingerprinting and staging both go through this, so records
// that differ only in incidental whitespace or timezone representation of
// the same instant become identical.
func Canonicalize(r Record) Record {
	out := r
	out.StartAtUTC = r.StartAtUTC.UTC().Truncate(time.Second)
	out.EndAtUTC = r.EndAtUTC.UTC().Truncate(time.Second)
	out.TZ = NormSpace(r.TZ)
	out.Source = NormSpace(r.Source)
	out.SourceUID = NormSpace(r.SourceUID)
	out.SourceURL = NormSpace(r.SourceURL)
	out.Notes = normPtr(r.Notes)
	out.RawDate = normPtr(r.RawDate)
	out.RawTime = normPtr(r.RawTime)
	return out
}

// marshalCanonical produces deterministic JSON for hashing: object keys
// sorted, strings NFC normalized, no HTML escaping, no floats, no nulls.
// Absent optional fields must be omitted by the caller rather than encoded
// as null.
func marshalCanonical(obj map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := marshalCanonicalString(k)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')

		vb, err := marshalCanonicalValue(obj[k])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalCanonicalValue(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden in canonical JSON")
	case string:
		return marshalCanonicalString(val)
	case int:
		return []byte(fmt.Sprintf("%d", val)), nil
	case int64:
		return []byte(fmt.Sprintf("%d", val)), nil
	case bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case float32, float64:
		return nil, fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

// marshalCanonicalString encodes a string with NFC normalization and HTML
// escaping disabled, so <, > and & round-trip as themselves.
func marshalCanonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	// json.Encoder adds a trailing newline, remove it
	result := buf.Bytes()
	if len(result) > 0 && result[len(result)-1] == '\n' {
		result = result[:len(result)-1]
	}
	return result, nil
}

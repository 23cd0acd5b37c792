// Package requestkey derives stable cache keys from request descriptors.
package requestkey

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vietddude/shiftfetch/internal/core/domain"
)

// Normalize returns the cache key for d.
//
// A bare path descriptor maps to the path itself. Anything else maps to
// "METHOD:path:body", where body is the canonical JSON of d.Body (empty when nil)
// and METHOD defaults to GET.
func Normalize(d domain.RequestDescriptor) string {
	if d.IsBarePath() {
		return d.Path
	}

	body, err := Canonical(d.Body)
	if err != nil {
		// Unserializable bodies never reach the wire, but still need a stable key.
		body = fmt.Sprintf("%#v", d.Body)
	}
	return d.HTTPMethod() + ":" + d.Path + ":" + body
}

// Canonical serializes v as compact JSON with object keys sorted at every depth,
// so that values differing only in key order produce identical output.
// Numbers keep their literal representation. A nil value yields "".
// Only json.RawMessage is taken as pre-encoded JSON; a []byte is encoded the way
// json.Marshal puts it on the wire, as a base64 string.
func Canonical(v any) (string, error) {
	if v == nil {
		return "", nil
	}

	var raw []byte
	switch b := v.(type) {
	case json.RawMessage:
		raw = b
	default:
		var err error
		raw, err = json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("marshal body: %w", err)
		}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var generic any
	if err := dec.Decode(&generic); err != nil {
		return "", fmt.Errorf("decode body: %w", err)
	}

	// encoding/json writes map keys in sorted order.
	out, err := json.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("marshal canonical body: %w", err)
	}
	return string(out), nil
}

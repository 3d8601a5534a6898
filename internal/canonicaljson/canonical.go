// internal/canonicaljson/canonical.go

// Package canonicaljson serializes values into a deterministic JSON form:
// object keys are emitted in lexicographic order at every depth, and numbers
// keep their literal source representation. Two structurally equal values
// always serialize to the same bytes, which makes the keccak hash of an
// application stable across processes and releases.
package canonicaljson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Marshal returns the canonical JSON encoding of v.
func Marshal(v interface{}) ([]byte, error) {
	// Round-trip through encoding/json so struct tags, omitempty, and custom
	// marshalers all apply before key ordering. UseNumber preserves numeric
	// literals instead of collapsing them through float64.
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical marshal: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonical marshal: %w", err)
	}

	var buf bytes.Buffer
	if err := writeValue(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// HashHex returns the 0x-prefixed keccak256 hash of the canonical encoding
// of v. This is the value the applicant signs.
func HashHex(v interface{}) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(ethcrypto.Keccak256(data)), nil
}

func writeValue(buf *bytes.Buffer, v interface{}) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(val.String())
	case string:
		return writeString(buf, val)
	case []interface{}:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeValue(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("canonical marshal: unsupported type %T", v)
	}
	return nil
}

// writeString reuses encoding/json's escaping so the canonical form stays a
// strict subset of standard JSON output.
func writeString(buf *bytes.Buffer, s string) error {
	encoded, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("canonical marshal: %w", err)
	}
	buf.Write(encoded)
	return nil
}

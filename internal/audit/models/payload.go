package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Payload is the free-form portion of an audit event. The value domain is
// deliberately closed to types with an unambiguous canonical encoding:
// strings, 64-bit integers, booleans, and maps of the same. Floating-point
// values are rejected outright because their textual form is not stable
// across languages and runtimes, which would silently break hash
// reproducibility.
type Payload map[string]Value

// Value is one payload value. Implementations are String, Int, Bool and Map.
type Value interface {
	payloadValue()
}

type (
	// String is a UTF-8 payload string.
	String string
	// Int is a 64-bit integer payload value.
	Int int64
	// Bool is a boolean payload value.
	Bool bool
	// Map is a nested payload object. Key order is irrelevant; canonical
	// encoding sorts keys.
	Map map[string]Value
)

func (String) payloadValue() {}
func (Int) payloadValue()    {}
func (Bool) payloadValue()   {}
func (Map) payloadValue()    {}

// MarshalJSON renders payload values as their natural JSON forms.
func (v String) MarshalJSON() ([]byte, error) { return json.Marshal(string(v)) }
func (v Int) MarshalJSON() ([]byte, error)    { return json.Marshal(int64(v)) }
func (v Bool) MarshalJSON() ([]byte, error)   { return json.Marshal(bool(v)) }

// UnmarshalJSON decodes a stored JSON object back into the closed value
// domain. Numbers are decoded via json.Number so integers survive undamaged.
func (p *Payload) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	decoded, err := PayloadFromJSON(raw)
	if err != nil {
		return err
	}
	*p = decoded
	return nil
}

// PayloadFromJSON converts a decoded JSON object into a Payload. The input
// must come from a json.Decoder with UseNumber enabled so integers survive
// undamaged; any number that does not parse as an int64 is rejected.
func PayloadFromJSON(raw map[string]any) (Payload, error) {
	if raw == nil {
		return nil, nil
	}
	p := make(Payload, len(raw))
	for k, v := range raw {
		val, err := valueFromJSON(v)
		if err != nil {
			return nil, fmt.Errorf("payload key %q: %w", k, err)
		}
		p[k] = val
	}
	return p, nil
}

func valueFromJSON(v any) (Value, error) {
	switch t := v.(type) {
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return nil, fmt.Errorf("%w: non-integer number %q", ErrUnsupportedPayloadType, t.String())
		}
		return Int(n), nil
	case map[string]any:
		m := make(Map, len(t))
		for k, nested := range t {
			val, err := valueFromJSON(nested)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			m[k] = val
		}
		return m, nil
	case float64:
		// Only reachable when the decoder was not configured with UseNumber.
		return nil, fmt.Errorf("%w: float64 %v", ErrUnsupportedPayloadType, t)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedPayloadType, v)
	}
}

// Validate walks the payload and confirms every value belongs to the closed
// domain. Construction through PayloadFromJSON guarantees this already;
// callers building payloads in code go through Validate before hashing.
func (p Payload) Validate() error {
	for k, v := range p {
		if err := validateValue(v); err != nil {
			return fmt.Errorf("payload key %q: %w", k, err)
		}
	}
	return nil
}

func validateValue(v Value) error {
	switch t := v.(type) {
	case String, Int, Bool:
		return nil
	case Map:
		for k, nested := range t {
			if err := validateValue(nested); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
		}
		return nil
	case nil:
		return fmt.Errorf("%w: nil value", ErrUnsupportedPayloadType)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedPayloadType, v)
	}
}

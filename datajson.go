package zkdeploy

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
)

// jsonData mirrors the ledger's detailed JSON schema for structured data.
type jsonData struct {
	Constructor *uint64           `json:"constructor,omitempty"`
	Fields      []json.RawMessage `json:"fields,omitempty"`
	Int         *json.Number      `json:"int,omitempty"`
	Bytes       *string           `json:"bytes,omitempty"`
	List        []json.RawMessage `json:"list,omitempty"`
}

// ParseDataJSON parses structured data written in the detailed JSON schema:
//
//	{"constructor": 0, "fields": [...]}
//	{"int": 42}
//	{"bytes": "deadbeef"}
//	{"list": [...]}
func ParseDataJSON(b []byte) (Data, error) {
	d, err := parseDataJSON(b)
	if err != nil {
		return nil, &DataError{Op: "parse json", Err: err}
	}
	return d, nil
}

func parseDataJSON(b []byte) (Data, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}

	var j jsonData
	if err := json.Unmarshal(b, &j); err != nil {
		return nil, err
	}

	switch {
	case j.Constructor != nil:
		fields, err := parseDataJSONList(j.Fields)
		if err != nil {
			return nil, err
		}
		return NewConstr(*j.Constructor, fields...), nil

	case j.Int != nil:
		v, ok := new(big.Int).SetString(j.Int.String(), 10)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", j.Int.String())
		}
		return Int{Value: v}, nil

	case j.Bytes != nil:
		v, err := hex.DecodeString(*j.Bytes)
		if err != nil {
			return nil, fmt.Errorf("invalid bytes: %w", err)
		}
		return Bytes(v), nil

	case raw["list"] != nil:
		items, err := parseDataJSONList(j.List)
		if err != nil {
			return nil, err
		}
		return List(items), nil

	default:
		return nil, errors.New("object has none of constructor, int, bytes, list")
	}
}

func parseDataJSONList(items []json.RawMessage) ([]Data, error) {
	out := make([]Data, len(items))
	for i, item := range items {
		d, err := parseDataJSON(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out[i] = d
	}
	return out, nil
}

// MarshalDataJSON renders d in the detailed JSON schema.
func MarshalDataJSON(d Data) ([]byte, error) {
	v, err := dataToJSON(d)
	if err != nil {
		return nil, &DataError{Op: "marshal json", Err: err}
	}
	return json.Marshal(v)
}

func dataToJSON(d Data) (any, error) {
	switch v := d.(type) {
	case Constr:
		fields, err := listToJSON(v.Fields)
		if err != nil {
			return nil, err
		}
		return map[string]any{"constructor": v.Alternative, "fields": fields}, nil
	case Int:
		return map[string]any{"int": json.Number(v.big().String())}, nil
	case Bytes:
		return map[string]any{"bytes": hex.EncodeToString(v)}, nil
	case List:
		items, err := listToJSON(v)
		if err != nil {
			return nil, err
		}
		return map[string]any{"list": items}, nil
	default:
		return nil, fmt.Errorf("%w: %T", errUnsupportedData, d)
	}
}

func listToJSON(items []Data) ([]any, error) {
	out := make([]any, len(items))
	for i, item := range items {
		v, err := dataToJSON(item)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

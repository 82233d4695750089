package zkdeploy

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// Structured-data encoding constants.
const (
	// ConstrTagBase is the CBOR tag for constructor 0; alternatives 0-6 use 121-127.
	ConstrTagBase = 121

	// ConstrTagExtendedBase is the CBOR tag for constructor 7; alternatives 7-127 use 1280-1400.
	ConstrTagExtendedBase = 1280

	// ConstrTagGeneral wraps [alternative, fields] for alternatives above 127.
	ConstrTagGeneral = 102

	// MaxBytesChunk is the longest byte string the ledger accepts in one piece.
	// Longer strings are encoded as indefinite-length sequences of chunks.
	MaxBytesChunk = 64
)

// CBOR framing bytes for indefinite-length items.
const (
	cborIndefBytes = 0x5f
	cborIndefArray = 0x9f
	cborBreak      = 0xff
	cborEmptyArray = 0x80
)

// CBOR major types as found in the top three bits of the initial byte.
const (
	majorUnsigned = 0
	majorNegative = 1
	majorBytes    = 2
	majorArray    = 4
	majorTag      = 6
)

var errUnsupportedData = errors.New("unsupported data item")

// EncodeData serialises d into the ledger's CBOR encoding of structured data.
func EncodeData(d Data) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeData(&buf, d); err != nil {
		return nil, &DataError{Op: "encode", Err: err}
	}
	return buf.Bytes(), nil
}

// MustEncodeData is like EncodeData but panics on error.
func MustEncodeData(d Data) []byte {
	b, err := EncodeData(d)
	if err != nil {
		panic(err)
	}
	return b
}

func encodeData(buf *bytes.Buffer, d Data) error {
	switch v := d.(type) {
	case Constr:
		return encodeConstr(buf, v)
	case Int:
		b, err := cbor.Marshal(v.big())
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	case Bytes:
		return encodeBytes(buf, v)
	case List:
		return encodeList(buf, v)
	case nil:
		return fmt.Errorf("%w: nil", errUnsupportedData)
	default:
		return fmt.Errorf("%w: %T", errUnsupportedData, d)
	}
}

func encodeConstr(buf *bytes.Buffer, c Constr) error {
	var fields bytes.Buffer
	if err := encodeList(&fields, c.Fields); err != nil {
		return err
	}

	var tag cbor.Tag
	switch {
	case c.Alternative < 7:
		tag = cbor.Tag{Number: ConstrTagBase + c.Alternative, Content: cbor.RawMessage(fields.Bytes())}
	case c.Alternative < 128:
		tag = cbor.Tag{Number: ConstrTagExtendedBase + c.Alternative - 7, Content: cbor.RawMessage(fields.Bytes())}
	default:
		alt, err := cbor.Marshal(c.Alternative)
		if err != nil {
			return err
		}
		content := append([]byte{0x82}, alt...)
		content = append(content, fields.Bytes()...)
		tag = cbor.Tag{Number: ConstrTagGeneral, Content: cbor.RawMessage(content)}
	}

	b, err := cbor.Marshal(tag)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

// encodeList uses the indefinite-length form for non-empty lists, as the
// ledger's reference serialiser does, so that datum hashes agree.
func encodeList(buf *bytes.Buffer, items []Data) error {
	if len(items) == 0 {
		buf.WriteByte(cborEmptyArray)
		return nil
	}
	buf.WriteByte(cborIndefArray)
	for _, item := range items {
		if err := encodeData(buf, item); err != nil {
			return err
		}
	}
	buf.WriteByte(cborBreak)
	return nil
}

func encodeBytes(buf *bytes.Buffer, b []byte) error {
	if len(b) <= MaxBytesChunk {
		enc, err := cbor.Marshal(b)
		if err != nil {
			return err
		}
		buf.Write(enc)
		return nil
	}

	buf.WriteByte(cborIndefBytes)
	for start := 0; start < len(b); start += MaxBytesChunk {
		end := min(start+MaxBytesChunk, len(b))
		enc, err := cbor.Marshal(b[start:end])
		if err != nil {
			return err
		}
		buf.Write(enc)
	}
	buf.WriteByte(cborBreak)
	return nil
}

// DecodeData parses the ledger's CBOR encoding of structured data.
func DecodeData(b []byte) (Data, error) {
	d, err := decodeData(b)
	if err != nil {
		return nil, &DataError{Op: "decode", Err: err}
	}
	return d, nil
}

func decodeData(raw []byte) (Data, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty input")
	}

	switch raw[0] >> 5 {
	case majorUnsigned, majorNegative:
		var v big.Int
		if err := cbor.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return Int{Value: &v}, nil

	case majorBytes:
		var v []byte
		if err := cbor.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		if v == nil {
			v = []byte{}
		}
		return Bytes(v), nil

	case majorArray:
		items, err := decodeList(raw)
		if err != nil {
			return nil, err
		}
		return List(items), nil

	case majorTag:
		return decodeTagged(raw)

	default:
		return nil, fmt.Errorf("%w: major type %d", errUnsupportedData, raw[0]>>5)
	}
}

func decodeList(raw []byte) ([]Data, error) {
	var items []cbor.RawMessage
	if err := cbor.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	out := make([]Data, len(items))
	for i, item := range items {
		d, err := decodeData(item)
		if err != nil {
			return nil, fmt.Errorf("list item %d: %w", i, err)
		}
		out[i] = d
	}
	return out, nil
}

func decodeTagged(raw []byte) (Data, error) {
	var tag cbor.RawTag
	if err := cbor.Unmarshal(raw, &tag); err != nil {
		return nil, err
	}

	switch n := tag.Number; {
	case n == 2 || n == 3:
		var v big.Int
		if err := cbor.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return Int{Value: &v}, nil

	case n >= ConstrTagBase && n < ConstrTagBase+7:
		fields, err := decodeList(tag.Content)
		if err != nil {
			return nil, err
		}
		return NewConstr(n-ConstrTagBase, fields...), nil

	case n >= ConstrTagExtendedBase && n < ConstrTagExtendedBase+121:
		fields, err := decodeList(tag.Content)
		if err != nil {
			return nil, err
		}
		return NewConstr(n-ConstrTagExtendedBase+7, fields...), nil

	case n == ConstrTagGeneral:
		var pair []cbor.RawMessage
		if err := cbor.Unmarshal(tag.Content, &pair); err != nil {
			return nil, err
		}
		if len(pair) != 2 {
			return nil, fmt.Errorf("general constructor has %d elements, want 2", len(pair))
		}
		var alt uint64
		if err := cbor.Unmarshal(pair[0], &alt); err != nil {
			return nil, err
		}
		fields, err := decodeList(pair[1])
		if err != nil {
			return nil, err
		}
		return NewConstr(alt, fields...), nil

	default:
		return nil, fmt.Errorf("%w: tag %d", errUnsupportedData, tag.Number)
	}
}

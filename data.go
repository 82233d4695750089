package zkdeploy

import (
	"bytes"
	"math/big"
)

// Data is a value in the ledger's structured-data model (Plutus data).
// This is a sealed interface - only types within this package implement it.
type Data interface {
	// isData is unexported to seal the interface.
	isData()

	// Equal reports structural equality with another Data value.
	Equal(other Data) bool
}

// Constr is a tagged constructor application: alternative index plus fields.
type Constr struct {
	Alternative uint64
	Fields      []Data
}

func (Constr) isData() {}

// Equal reports whether other is a Constr with the same alternative and fields.
func (c Constr) Equal(other Data) bool {
	o, ok := other.(Constr)
	if !ok || o.Alternative != c.Alternative || len(o.Fields) != len(c.Fields) {
		return false
	}
	for i := range c.Fields {
		if !c.Fields[i].Equal(o.Fields[i]) {
			return false
		}
	}
	return true
}

// Int is an arbitrary-precision integer.
type Int struct {
	Value *big.Int
}

func (Int) isData() {}

// Equal reports whether other is an Int with the same value.
func (i Int) Equal(other Data) bool {
	o, ok := other.(Int)
	return ok && i.big().Cmp(o.big()) == 0
}

func (i Int) big() *big.Int {
	if i.Value == nil {
		return new(big.Int)
	}
	return i.Value
}

// Bytes is a byte string.
type Bytes []byte

func (Bytes) isData() {}

// Equal reports whether other is a Bytes with the same content.
func (b Bytes) Equal(other Data) bool {
	o, ok := other.(Bytes)
	return ok && bytes.Equal(b, o)
}

// List is an ordered sequence of data values.
type List []Data

func (List) isData() {}

// Equal reports whether other is a List with equal elements in the same order.
func (l List) Equal(other Data) bool {
	o, ok := other.(List)
	if !ok || len(o) != len(l) {
		return false
	}
	for i := range l {
		if !l[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// NewConstr builds a constructor value.
func NewConstr(alternative uint64, fields ...Data) Constr {
	if fields == nil {
		fields = []Data{}
	}
	return Constr{Alternative: alternative, Fields: fields}
}

// NewInt builds an integer value from an int64.
func NewInt(v int64) Int {
	return Int{Value: big.NewInt(v)}
}

// NewBigInt builds an integer value, copying v.
func NewBigInt(v *big.Int) Int {
	return Int{Value: new(big.Int).Set(v)}
}

// Void is the unit value, constructor 0 with no fields.
func Void() Constr {
	return NewConstr(0)
}

package zkdeploy

import (
	"encoding/hex"
	"fmt"
	"strings"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Compressed Groth16 element sizes over BLS12-381, in bytes.
const (
	ProofASize = bls12381.SizeOfG1AffineCompressed
	ProofBSize = bls12381.SizeOfG2AffineCompressed
	ProofCSize = bls12381.SizeOfG1AffineCompressed
)

// Proof is a compressed Groth16 proof: points A and C on G1, B on G2.
type Proof struct {
	A []byte
	B []byte
	C []byte
}

// ProofOption configures BuildProof.
type ProofOption func(*proofConfig)

type proofConfig struct {
	curveCheck bool
}

// WithCurveCheck additionally decodes each element as a compressed
// BLS12-381 point in the prime-order subgroup.
func WithCurveCheck() ProofOption {
	return func(c *proofConfig) {
		c.curveCheck = true
	}
}

// BuildProof constructs a Proof from three bare lower-case hex strings of
// 96, 192 and 96 characters, the form Hex returns. Prefixed or upper-case
// input is rejected. Nothing is returned on failure.
func BuildProof(a, b, c string, opts ...ProofOption) (Proof, error) {
	cfg := &proofConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	pa, err := decodeProofElement("A", a, ProofASize)
	if err != nil {
		return Proof{}, err
	}
	pb, err := decodeProofElement("B", b, ProofBSize)
	if err != nil {
		return Proof{}, err
	}
	pc, err := decodeProofElement("C", c, ProofCSize)
	if err != nil {
		return Proof{}, err
	}

	p := Proof{A: pa, B: pb, C: pc}
	if cfg.curveCheck {
		if err := p.checkCurve(); err != nil {
			return Proof{}, err
		}
	}
	return p, nil
}

// MustBuildProof is like BuildProof but panics on error.
func MustBuildProof(a, b, c string, opts ...ProofOption) Proof {
	p, err := BuildProof(a, b, c, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

func decodeProofElement(name, s string, size int) ([]byte, error) {
	if len(s) != 2*size {
		return nil, &MalformedProofError{Element: name, Want: 2 * size, Got: len(s)}
	}
	if i := strings.IndexFunc(s, notLowerHex); i >= 0 {
		return nil, &MalformedProofError{Element: name, Want: 2 * size, Got: len(s),
			Err: fmt.Errorf("character %q at offset %d is not lower-case hex", s[i], i)}
	}
	b, err := hexutil.Decode("0x" + s)
	if err != nil {
		return nil, &MalformedProofError{Element: name, Want: 2 * size, Got: len(s), Err: err}
	}
	return b, nil
}

func notLowerHex(r rune) bool {
	return (r < '0' || r > '9') && (r < 'a' || r > 'f')
}

func (p Proof) checkCurve() error {
	var g1 bls12381.G1Affine
	var g2 bls12381.G2Affine
	if _, err := g1.SetBytes(p.A); err != nil {
		return &MalformedProofError{Element: "A", Want: 2 * ProofASize, Got: 2 * len(p.A), Err: err}
	}
	if _, err := g2.SetBytes(p.B); err != nil {
		return &MalformedProofError{Element: "B", Want: 2 * ProofBSize, Got: 2 * len(p.B), Err: err}
	}
	if _, err := g1.SetBytes(p.C); err != nil {
		return &MalformedProofError{Element: "C", Want: 2 * ProofCSize, Got: 2 * len(p.C), Err: err}
	}
	return nil
}

// Hex returns the three elements as bare lower-case hex, exactly the text
// BuildProof accepted.
func (p Proof) Hex() (a, b, c string) {
	return hex.EncodeToString(p.A), hex.EncodeToString(p.B), hex.EncodeToString(p.C)
}

// Data returns the on-chain shape of the proof: constructor 0 over three byte strings.
func (p Proof) Data() Data {
	return NewConstr(0, Bytes(p.A), Bytes(p.B), Bytes(p.C))
}

// ProofFromData inverts Proof.Data, re-checking element lengths.
func ProofFromData(d Data) (Proof, error) {
	c, ok := d.(Constr)
	if !ok || c.Alternative != 0 || len(c.Fields) != 3 {
		return Proof{}, fmt.Errorf("%w: expected constructor 0 with 3 fields", ErrMalformedProof)
	}

	elems := make([]string, 3)
	for i, f := range c.Fields {
		b, ok := f.(Bytes)
		if !ok {
			return Proof{}, fmt.Errorf("%w: field %d is %T, want bytes", ErrMalformedProof, i, f)
		}
		elems[i] = hex.EncodeToString(b)
	}
	return BuildProof(elems[0], elems[1], elems[2])
}

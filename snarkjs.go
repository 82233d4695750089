package zkdeploy

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
)

// snarkJSProof is the proof.json layout written by snarkjs for Groth16.
// Coordinates are decimal strings; the last entry of each point is the
// projective Z, which snarkjs normalises to "1" (or "0" for infinity).
type snarkJSProof struct {
	PiA      []string   `json:"pi_a"`
	PiB      [][]string `json:"pi_b"`
	PiC      []string   `json:"pi_c"`
	Protocol string     `json:"protocol"`
	Curve    string     `json:"curve"`
}

// ProofFromSnarkJS reads a snarkjs Groth16 proof.json over BLS12-381 and
// compresses its points into a Proof.
func ProofFromSnarkJS(r io.Reader) (Proof, error) {
	var raw snarkJSProof
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Proof{}, fmt.Errorf("zkdeploy: read snarkjs proof: %w", err)
	}
	if raw.Protocol != "" && raw.Protocol != "groth16" {
		return Proof{}, fmt.Errorf("%w: protocol %q, want groth16", ErrMalformedProof, raw.Protocol)
	}
	if raw.Curve != "" && raw.Curve != "bls12381" {
		return Proof{}, fmt.Errorf("%w: curve %q, want bls12381", ErrMalformedProof, raw.Curve)
	}

	a, err := g1FromDecimal("A", raw.PiA)
	if err != nil {
		return Proof{}, err
	}
	b, err := g2FromDecimal("B", raw.PiB)
	if err != nil {
		return Proof{}, err
	}
	c, err := g1FromDecimal("C", raw.PiC)
	if err != nil {
		return Proof{}, err
	}

	ab, bb, cb := a.Bytes(), b.Bytes(), c.Bytes()
	return BuildProof(hex.EncodeToString(ab[:]), hex.EncodeToString(bb[:]), hex.EncodeToString(cb[:]))
}

func g1FromDecimal(name string, coords []string) (bls12381.G1Affine, error) {
	var p bls12381.G1Affine
	if len(coords) != 3 {
		return p, &MalformedProofError{Element: name, Err: fmt.Errorf("%d coordinates, want 3", len(coords))}
	}
	if coords[2] == "0" {
		return p, nil
	}
	if _, err := p.X.SetString(coords[0]); err != nil {
		return p, &MalformedProofError{Element: name, Err: err}
	}
	if _, err := p.Y.SetString(coords[1]); err != nil {
		return p, &MalformedProofError{Element: name, Err: err}
	}
	if !p.IsOnCurve() || !p.IsInSubGroup() {
		return p, &MalformedProofError{Element: name, Err: fmt.Errorf("point not in G1")}
	}
	return p, nil
}

func g2FromDecimal(name string, coords [][]string) (bls12381.G2Affine, error) {
	var p bls12381.G2Affine
	if len(coords) != 3 || len(coords[0]) != 2 || len(coords[1]) != 2 {
		return p, &MalformedProofError{Element: name, Err: fmt.Errorf("expected 3 pairs of coordinates")}
	}
	if len(coords[2]) == 2 && coords[2][0] == "0" && coords[2][1] == "0" {
		return p, nil
	}
	for _, set := range []struct {
		s string
		f func(string) error
	}{
		{coords[0][0], func(s string) error { _, err := p.X.A0.SetString(s); return err }},
		{coords[0][1], func(s string) error { _, err := p.X.A1.SetString(s); return err }},
		{coords[1][0], func(s string) error { _, err := p.Y.A0.SetString(s); return err }},
		{coords[1][1], func(s string) error { _, err := p.Y.A1.SetString(s); return err }},
	} {
		if err := set.f(set.s); err != nil {
			return p, &MalformedProofError{Element: name, Err: err}
		}
	}
	if !p.IsOnCurve() || !p.IsInSubGroup() {
		return p, &MalformedProofError{Element: name, Err: fmt.Errorf("point not in G2")}
	}
	return p, nil
}

package zkdeploy

// Redeemer is the witness supplied when consuming a script-locked output.
// It is either a plain value or a value paired with an ordered list of proofs.
type Redeemer struct {
	value  Data
	proofs []Proof
	zk     bool
}

// BuildRedeemer wraps a plain application value.
func BuildRedeemer(value Data) Redeemer {
	return Redeemer{value: value}
}

// BuildProofRedeemer pairs value with proofs. The result always has the
// two-field (value, proofs) shape, even when proofs is empty. Proof order is
// preserved because the validator matches proofs to public inputs by position.
func BuildProofRedeemer(value Data, proofs []Proof) Redeemer {
	cp := make([]Proof, len(proofs))
	copy(cp, proofs)
	return Redeemer{value: value, proofs: cp, zk: true}
}

// Value returns the application value.
func (r Redeemer) Value() Data {
	return r.value
}

// Proofs returns the attached proofs (nil for a plain redeemer).
func (r Redeemer) Proofs() []Proof {
	return r.proofs
}

// HasProofs reports whether this is a proof-carrying redeemer.
func (r Redeemer) HasProofs() bool {
	return r.zk
}

// Data returns the on-chain value of the redeemer.
func (r Redeemer) Data() Data {
	value := r.value
	if value == nil {
		value = Void()
	}
	if !r.zk {
		return value
	}

	proofs := make(List, len(r.proofs))
	for i, p := range r.proofs {
		proofs[i] = p.Data()
	}
	return NewConstr(0, value, proofs)
}

// ParseRedeemer recognises the proof-carrying shape produced by
// BuildProofRedeemer; anything else is returned as a plain redeemer.
func ParseRedeemer(d Data) Redeemer {
	c, ok := d.(Constr)
	if !ok || c.Alternative != 0 || len(c.Fields) != 2 {
		return BuildRedeemer(d)
	}
	list, ok := c.Fields[1].(List)
	if !ok {
		return BuildRedeemer(d)
	}

	proofs := make([]Proof, 0, len(list))
	for _, item := range list {
		p, err := ProofFromData(item)
		if err != nil {
			return BuildRedeemer(d)
		}
		proofs = append(proofs, p)
	}
	return BuildProofRedeemer(c.Fields[0], proofs)
}

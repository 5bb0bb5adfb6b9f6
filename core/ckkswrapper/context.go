// Package ckkswrapper bundles the lattigo CKKS objects needed to evaluate a
// model layer on encrypted inputs.
package ckkswrapper

import (
	"fmt"
	"sync"

	"github.com/tuneinsight/lattigo/v5/core/rlwe"
	"github.com/tuneinsight/lattigo/v5/he/hefloat"
)

// DefaultLogN gives 4096 slots, enough for short sequences of small embeddings.
const DefaultLogN = 13

// Stats counts homomorphic operations performed through a HeContext.
type Stats struct {
	Encryptions int
	Decryptions int
	Muls        int
	Rescales    int
}

// HeContext holds parameters, keys and the encoder/evaluator for one party.
// Lattigo encoders and evaluators keep scratch buffers, so every operation is
// serialized through mu.
type HeContext struct {
	Params    hefloat.Parameters
	Encoder   *hefloat.Encoder
	Encryptor *rlwe.Encryptor
	Decryptor *rlwe.Decryptor
	Evaluator *hefloat.Evaluator

	mu    sync.Mutex
	stats Stats
}

// NewHeContext creates a context with DefaultLogN.
func NewHeContext() (*HeContext, error) {
	return NewHeContextWithLogN(DefaultLogN)
}

// NewHeContextWithLogN creates a context with a two-level modulus chain: one
// plaintext multiplication followed by a rescale.
func NewHeContextWithLogN(logN int) (*HeContext, error) {
	params, err := hefloat.NewParametersFromLiteral(hefloat.ParametersLiteral{
		LogN:            logN,
		LogQ:            []int{50, 40},
		LogP:            []int{51},
		LogDefaultScale: 40,
	})
	if err != nil {
		return nil, fmt.Errorf("ckks parameters: %w", err)
	}

	kgen := hefloat.NewKeyGenerator(params)
	sk, pk := kgen.GenKeyPairNew()
	rlk := kgen.GenRelinearizationKeyNew(sk)
	evk := rlwe.NewMemEvaluationKeySet(rlk)

	return &HeContext{
		Params:    params,
		Encoder:   hefloat.NewEncoder(params),
		Encryptor: hefloat.NewEncryptor(params, pk),
		Decryptor: hefloat.NewDecryptor(params, sk),
		Evaluator: hefloat.NewEvaluator(params, evk),
	}, nil
}

// Slots is the number of real values packed into one ciphertext.
func (h *HeContext) Slots() int { return h.Params.MaxSlots() }

// Stats returns a snapshot of the operation counters.
func (h *HeContext) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

func (h *HeContext) encode(vals []float64, level int) (*rlwe.Plaintext, error) {
	slots := h.Params.MaxSlots()
	if len(vals) > slots {
		return nil, fmt.Errorf("%d values exceed %d slots", len(vals), slots)
	}
	vec := make([]complex128, slots)
	for i, v := range vals {
		vec[i] = complex(v, 0)
	}
	pt := hefloat.NewPlaintext(h.Params, level)
	if err := h.Encoder.Encode(vec, pt); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return pt, nil
}

// EncryptValues packs vals into the first slots of a fresh ciphertext.
func (h *HeContext) EncryptValues(vals []float64) (*rlwe.Ciphertext, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	pt, err := h.encode(vals, h.Params.MaxLevel())
	if err != nil {
		return nil, err
	}
	ct, err := h.Encryptor.EncryptNew(pt)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	h.stats.Encryptions++
	return ct, nil
}

// MulPlain multiplies ct slot-wise by the plaintext vals and rescales.
func (h *HeContext) MulPlain(ct *rlwe.Ciphertext, vals []float64) (*rlwe.Ciphertext, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ct.Level() < 1 {
		return nil, fmt.Errorf("ciphertext at level %d cannot be rescaled", ct.Level())
	}
	pt, err := h.encode(vals, ct.Level())
	if err != nil {
		return nil, err
	}
	tmp, err := h.Evaluator.MulNew(ct, pt)
	if err != nil {
		return nil, fmt.Errorf("mul: %w", err)
	}
	h.stats.Muls++

	out := rlwe.NewCiphertext(h.Params, tmp.Degree(), tmp.Level()-1)
	if err := h.Evaluator.Rescale(tmp, out); err != nil {
		return nil, fmt.Errorf("rescale: %w", err)
	}
	h.stats.Rescales++
	return out, nil
}

// DecryptValues returns the first n slots of ct.
func (h *HeContext) DecryptValues(ct *rlwe.Ciphertext, n int) ([]float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	pt := h.Decryptor.DecryptNew(ct)
	decoded := make([]complex128, h.Params.MaxSlots())
	if err := h.Encoder.Decode(pt, decoded); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	h.stats.Decryptions++
	if n > len(decoded) {
		n = len(decoded)
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = real(decoded[i])
	}
	return out, nil
}

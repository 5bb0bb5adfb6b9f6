package layers

import (
	"fmt"

	"interp_lib/core/ckkswrapper"
	"interp_lib/tensor"
)

// EncryptedLinear evaluates a Linear layer on CKKS-encrypted inputs: rows of x
// are packed into ciphertexts, multiplied slot-wise by tiled weight rows, and
// each product is decrypted and summed per row by the key holder. The gradient
// only depends on the (plaintext) weights, so Backward is computed in the clear.
type EncryptedLinear struct {
	Plain *Linear
	he    *ckkswrapper.HeContext
}

func NewEncryptedLinear(l *Linear, he *ckkswrapper.HeContext) *EncryptedLinear {
	return &EncryptedLinear{Plain: l, he: he}
}

func (e *EncryptedLinear) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	in, err := e.Plain.rows(x)
	if err != nil {
		return nil, err
	}
	inDim, outDim := e.Plain.dims()
	rows, _ := in.Dims()
	perCT := e.he.Slots() / inDim
	if perCT == 0 {
		return nil, fmt.Errorf("%s: input width %d exceeds %d slots", e.Tag(), inDim, e.he.Slots())
	}

	out := tensor.New(rows, outDim)
	for start := 0; start < rows; start += perCT {
		end := start + perCT
		if end > rows {
			end = rows
		}
		n := (end - start) * inDim
		ct, err := e.he.EncryptValues(x.Data[start*inDim : end*inDim])
		if err != nil {
			return nil, err
		}

		tiled := make([]float64, n)
		for j := 0; j < outDim; j++ {
			wRow := e.Plain.W.Data[j*inDim : (j+1)*inDim]
			for b := 0; b < end-start; b++ {
				copy(tiled[b*inDim:(b+1)*inDim], wRow)
			}
			prod, err := e.he.MulPlain(ct, tiled)
			if err != nil {
				return nil, err
			}
			vals, err := e.he.DecryptValues(prod, n)
			if err != nil {
				return nil, err
			}
			for b := 0; b < end-start; b++ {
				sum := e.Plain.B.Data[j]
				for _, v := range vals[b*inDim : (b+1)*inDim] {
					sum += v
				}
				out.Data[(start+b)*outDim+j] = sum
			}
		}
	}
	if len(x.Shape) == 1 {
		out.Shape = []int{outDim}
	}
	return out, nil
}

func (e *EncryptedLinear) Backward(x, gradOut *tensor.Tensor) (*tensor.Tensor, error) {
	return e.Plain.Backward(x, gradOut)
}

func (e *EncryptedLinear) Encrypted() bool { return true }

func (e *EncryptedLinear) Tag() string {
	inDim, outDim := e.Plain.dims()
	return fmt.Sprintf("EncryptedLinear_%d_%d", inDim, outDim)
}

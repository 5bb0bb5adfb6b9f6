package utils

import (
	"encoding/json"
	"fmt"
	"os"

	"interp_lib/core/ckkswrapper"
	"interp_lib/nn"
	"interp_lib/nn/layers"
	"interp_lib/tensor"
)

// Layer types understood by BuildModel.
const (
	LayerLinear          = "linear"
	LayerRNN             = "rnn"
	LayerActivation      = "activation"
	LayerSoftmax         = "softmax"
	LayerFlatten         = "flatten"
	LayerSumPool         = "sumpool"
	LayerPositionWeights = "position_weights"
	LayerResidual        = "residual"
)

// WeightData represents serializable weight data for a layer
type WeightData struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// ModelWeights is a saved model: layers applied in order.
type ModelWeights struct {
	Version string        `json:"version"`
	Layers  []LayerWeight `json:"layers"`
}

// LayerWeight describes one layer and its parameters.
type LayerWeight struct {
	Type       string      `json:"type"`
	Activation string      `json:"activation,omitempty"`
	Axis       int         `json:"axis,omitempty"`
	Coef       []float64   `json:"coef,omitempty"`
	Encrypted  bool        `json:"encrypted,omitempty"`
	Weight     *WeightData `json:"weight,omitempty"`
	Recurrent  *WeightData `json:"recurrent,omitempty"`
	Bias       *WeightData `json:"bias,omitempty"`

	// Layers is the main path of a residual block.
	Layers []LayerWeight `json:"layers,omitempty"`
}

// SaveWeights saves model weights to a JSON file
func SaveWeights(filepath string, weights *ModelWeights) error {
	data, err := json.MarshalIndent(weights, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal weights: %w", err)
	}
	return os.WriteFile(filepath, data, 0644)
}

// LoadWeights loads model weights from a JSON file
func LoadWeights(filepath string) (*ModelWeights, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read weights file: %w", err)
	}
	var weights ModelWeights
	if err := json.Unmarshal(data, &weights); err != nil {
		return nil, fmt.Errorf("failed to unmarshal weights: %w", err)
	}
	return &weights, nil
}

// TensorToWeightData converts a tensor to serializable weight data
func TensorToWeightData(name string, t *tensor.Tensor) *WeightData {
	return &WeightData{
		Name:  name,
		Shape: append([]int{}, t.Shape...),
		Data:  append([]float64{}, t.Data...),
	}
}

// WeightDataToTensor converts weight data back to a tensor
func WeightDataToTensor(wd *WeightData) (*tensor.Tensor, error) {
	if wd == nil {
		return nil, fmt.Errorf("missing weight data")
	}
	t, err := tensor.FromData(wd.Data, wd.Shape...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", wd.Name, err)
	}
	return t, nil
}

func loadInto(dst *tensor.Tensor, wd *WeightData) error {
	t, err := WeightDataToTensor(wd)
	if err != nil {
		return err
	}
	if !tensor.SameShape(t.Shape, dst.Shape) {
		return fmt.Errorf("%s: shape %v, want %v", wd.Name, t.Shape, dst.Shape)
	}
	copy(dst.Data, t.Data)
	return nil
}

// BuildModel turns saved weights into a Sequential. Encrypted linear layers
// need he; it may be nil otherwise.
func BuildModel(mw *ModelWeights, he *ckkswrapper.HeContext) (*nn.Sequential, error) {
	if len(mw.Layers) == 0 {
		return nil, fmt.Errorf("model has no layers")
	}
	mods, err := buildLayers(mw.Layers, he)
	if err != nil {
		return nil, err
	}
	return nn.NewSequential(mods...), nil
}

func buildLayers(lws []LayerWeight, he *ckkswrapper.HeContext) ([]nn.Layer, error) {
	mods := make([]nn.Layer, 0, len(lws))
	for i, lw := range lws {
		mod, err := buildLayer(lw, he)
		if err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", i, lw.Type, err)
		}
		mods = append(mods, mod)
	}
	return mods, nil
}

func buildLayer(lw LayerWeight, he *ckkswrapper.HeContext) (nn.Layer, error) {
	switch lw.Type {
	case LayerLinear:
		if lw.Weight == nil || len(lw.Weight.Shape) != 2 {
			return nil, fmt.Errorf("linear layer needs a [out, in] weight")
		}
		l := layers.NewLinear(lw.Weight.Shape[1], lw.Weight.Shape[0])
		if err := loadInto(l.W, lw.Weight); err != nil {
			return nil, err
		}
		if lw.Bias != nil {
			if err := loadInto(l.B, lw.Bias); err != nil {
				return nil, err
			}
		}
		if !lw.Encrypted {
			return l, nil
		}
		if he == nil {
			return nil, fmt.Errorf("encrypted layer needs a CKKS context")
		}
		return layers.NewEncryptedLinear(l, he), nil
	case LayerRNN:
		if lw.Weight == nil || len(lw.Weight.Shape) != 2 {
			return nil, fmt.Errorf("rnn layer needs a [hidden, in] weight")
		}
		r := layers.NewRNN(lw.Weight.Shape[1], lw.Weight.Shape[0])
		if err := loadInto(r.Wx, lw.Weight); err != nil {
			return nil, err
		}
		if err := loadInto(r.Wh, lw.Recurrent); err != nil {
			return nil, err
		}
		if lw.Bias != nil {
			if err := loadInto(r.B, lw.Bias); err != nil {
				return nil, err
			}
		}
		return r, nil
	case LayerActivation:
		return layers.NewActivation(lw.Activation)
	case LayerSoftmax:
		return layers.Softmax{}, nil
	case LayerFlatten:
		return layers.NewFlatten(), nil
	case LayerSumPool:
		return layers.NewSumPool(lw.Axis), nil
	case LayerPositionWeights:
		if len(lw.Coef) == 0 {
			return nil, fmt.Errorf("position weights need coefficients")
		}
		return layers.NewPositionWeights(lw.Coef...), nil
	case LayerResidual:
		if len(lw.Layers) == 0 {
			return nil, fmt.Errorf("residual block has an empty main path")
		}
		mods, err := buildLayers(lw.Layers, he)
		if err != nil {
			return nil, err
		}
		return layers.NewResidualBlock(mods...), nil
	}
	return nil, fmt.Errorf("unknown layer type %q", lw.Type)
}

// ExportModel is the inverse of BuildModel.
func ExportModel(seq *nn.Sequential) (*ModelWeights, error) {
	lws, err := exportLayers("layer", seq.Layers)
	if err != nil {
		return nil, err
	}
	return &ModelWeights{Version: "1.0", Layers: lws}, nil
}

func exportLayers(prefix string, mods []nn.Layer) ([]LayerWeight, error) {
	lws := make([]LayerWeight, 0, len(mods))
	for i, layer := range mods {
		name := fmt.Sprintf("%s%d", prefix, i)
		var lw LayerWeight
		switch l := layer.(type) {
		case *layers.Linear:
			lw = LayerWeight{Type: LayerLinear, Weight: TensorToWeightData(name+"_weight", l.W), Bias: TensorToWeightData(name+"_bias", l.B)}
		case *layers.EncryptedLinear:
			lw = LayerWeight{Type: LayerLinear, Encrypted: true, Weight: TensorToWeightData(name+"_weight", l.Plain.W), Bias: TensorToWeightData(name+"_bias", l.Plain.B)}
		case *layers.RNN:
			lw = LayerWeight{
				Type:      LayerRNN,
				Weight:    TensorToWeightData(name+"_weight", l.Wx),
				Recurrent: TensorToWeightData(name+"_recurrent", l.Wh),
				Bias:      TensorToWeightData(name+"_bias", l.B),
			}
		case *layers.Activation:
			lw = LayerWeight{Type: LayerActivation, Activation: l.Name()}
		case layers.Softmax:
			lw = LayerWeight{Type: LayerSoftmax}
		case *layers.Flatten:
			lw = LayerWeight{Type: LayerFlatten}
		case *layers.SumPool:
			lw = LayerWeight{Type: LayerSumPool, Axis: l.Axis}
		case *layers.PositionWeights:
			lw = LayerWeight{Type: LayerPositionWeights, Coef: append([]float64(nil), l.C...)}
		case *layers.ResidualBlock:
			inner, err := exportLayers(name+"_main", l.Main.Layers)
			if err != nil {
				return nil, err
			}
			lw = LayerWeight{Type: LayerResidual, Layers: inner}
		default:
			return nil, fmt.Errorf("%s: cannot export %s", name, layer.Tag())
		}
		lws = append(lws, lw)
	}
	return lws, nil
}

package policy

import (
	"encoding/json"
	"fmt"

	"backtest-engine/internal/causal"
	"backtest-engine/internal/domain"
)

// StackLayerSpec is one ordered layer of an exit_stack's JSON parameter
// form: a closed-set kind plus its own parameter blob.
type StackLayerSpec struct {
	Kind   domain.PolicyKind `json:"kind"`
	Params json.RawMessage   `json:"params"`
}

// ExitStack is the exit_stack policy kind: an ordered list of layers
// where the first layer to return a non-empty action list wins and
// layers after it are not consulted this bar.
type ExitStack struct {
	layers []Policy
	specs  []StackLayerSpec
}

// NewExitStackFromSpec builds an ExitStack from its JSON layer specs,
// threading tieBreak to any nested fixed_tp_sl layer.
func NewExitStackFromSpec(specs []StackLayerSpec, tieBreak domain.TieBreak) (*ExitStack, error) {
	if len(specs) == 0 {
		return nil, ErrEmptyExitStack
	}
	layers := make([]Policy, 0, len(specs))
	for _, spec := range specs {
		layer, err := FromSpec(spec.Kind, spec.Params, tieBreak)
		if err != nil {
			return nil, fmt.Errorf("exit_stack layer %q: %w", spec.Kind, err)
		}
		layers = append(layers, layer)
	}
	return &ExitStack{layers: layers, specs: specs}, nil
}

// NewExitStack builds an ExitStack directly from already-constructed
// layers, for callers composing policies programmatically (the
// Optimizer's grid search) rather than from a JSON spec.
func NewExitStack(layers ...Policy) (*ExitStack, error) {
	if len(layers) == 0 {
		return nil, ErrEmptyExitStack
	}
	return &ExitStack{layers: layers}, nil
}

func (p *ExitStack) Kind() domain.PolicyKind { return domain.PolicyExitStack }

func (p *ExitStack) OnEntry(pos *domain.Position, entryBar domain.Candle) {
	for _, layer := range p.layers {
		layer.OnEntry(pos, entryBar)
	}
}

func (p *ExitStack) OnBar(bar domain.Candle, pos *domain.Position, acc *causal.Accessor) []domain.Action {
	for _, layer := range p.layers {
		if actions := layer.OnBar(bar, pos, acc); len(actions) > 0 {
			return actions
		}
	}
	return nil
}

// ParamsJSON returns the stack's layer specs when constructed via
// NewExitStackFromSpec; for a programmatically-composed stack it
// recombines each layer's own Kind/ParamsJSON into the same shape so the
// content hash remains stable across either construction path.
func (p *ExitStack) ParamsJSON() ([]byte, error) {
	if p.specs != nil {
		return json.Marshal(p.specs)
	}
	specs := make([]StackLayerSpec, 0, len(p.layers))
	for _, layer := range p.layers {
		raw, err := layer.ParamsJSON()
		if err != nil {
			return nil, err
		}
		specs = append(specs, StackLayerSpec{Kind: layer.Kind(), Params: raw})
	}
	return json.Marshal(specs)
}

package optim

import (
	"github.com/born-ml/amp/internal/nn"
	"github.com/born-ml/amp/internal/parallel"
	"github.com/born-ml/amp/internal/tensor"
)

// SGD implements Stochastic Gradient Descent with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
//
// With Nesterov the step looks ahead along the new velocity:
//
//	param = param - lr * (gradient + momentum * velocity)
type SGD struct {
	momentum   float32
	nesterov   bool
	velocities []*tensor.Tensor // nil entries until Build, and always nil without momentum
	cfg        parallel.Config
}

// SGDConfig holds configuration for SGD.
type SGDConfig struct {
	Momentum float32 // Momentum factor (default: 0.0, range: [0, 1))
	Nesterov bool    // Use Nesterov momentum (requires Momentum > 0)
}

// NewSGD creates a new SGD update rule.
func NewSGD(config SGDConfig) *SGD {
	return &SGD{
		momentum: config.Momentum,
		nesterov: config.Nesterov && config.Momentum > 0,
		cfg:      parallel.DefaultConfig(),
	}
}

// Name implements UpdateRule.
func (s *SGD) Name() string {
	return "sgd"
}

// Build implements UpdateRule.
func (s *SGD) Build(vars []*nn.Variable) error {
	s.velocities = make([]*tensor.Tensor, len(vars))
	if s.momentum == 0 {
		return nil
	}
	for i, v := range vars {
		s.velocities[i] = zerosLike(v)
	}
	return nil
}

// Update implements UpdateRule.
func (s *SGD) Update(index int, grad *tensor.Tensor, v *nn.Variable, lr float32, _ int64) error {
	gradData := grad.Data()
	paramData := v.Value().Data()
	round := v.Value().DType().Round

	if s.momentum == 0 {
		parallel.ForChunks(len(paramData), s.cfg, func(start, end int) {
			for i := start; i < end; i++ {
				paramData[i] = round(paramData[i] - lr*gradData[i])
			}
		})
		return nil
	}

	velocityData := s.velocities[index].Data()
	parallel.ForChunks(len(paramData), s.cfg, func(start, end int) {
		for i := start; i < end; i++ {
			g := gradData[i]
			velocityData[i] = s.momentum*velocityData[i] + g
			step := velocityData[i]
			if s.nesterov {
				step = g + s.momentum*velocityData[i]
			}
			paramData[i] = round(paramData[i] - lr*step)
		}
	})
	return nil
}

// Slots implements UpdateRule.
//
// Without momentum SGD is stateless and returns an empty map.
func (s *SGD) Slots() map[string]*tensor.Tensor {
	slots := make(map[string]*tensor.Tensor)
	for i, velocity := range s.velocities {
		if velocity != nil {
			slots[slotKey("velocity", i)] = velocity
		}
	}
	return slots
}

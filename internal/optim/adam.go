package optim

import (
	"math"

	"github.com/born-ml/amp/internal/nn"
	"github.com/born-ml/amp/internal/parallel"
	"github.com/born-ml/amp/internal/tensor"
)

// Adam implements the Adam (Adaptive Moment Estimation) update rule.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)
//
// With AMSGrad, v_hat uses the running maximum of v_t instead.
// Combined with Config.WeightDecay this is AdamW.
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam struct {
	beta1   float32
	beta2   float32
	eps     float32
	amsgrad bool
	m       []*tensor.Tensor // First moment estimates
	v       []*tensor.Tensor // Second moment estimates
	vMax    []*tensor.Tensor // Running max of v, AMSGrad only
	cfg     parallel.Config
}

// AdamConfig holds configuration for Adam.
type AdamConfig struct {
	Betas   [2]float32 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps     float32    // Term for numerical stability (default: 1e-7)
	AMSGrad bool       // Use the AMSGrad variant
}

// NewAdam creates a new Adam update rule.
func NewAdam(config AdamConfig) *Adam {
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-7
	}

	return &Adam{
		beta1:   config.Betas[0],
		beta2:   config.Betas[1],
		eps:     config.Eps,
		amsgrad: config.AMSGrad,
		cfg:     parallel.DefaultConfig(),
	}
}

// Name implements UpdateRule.
func (a *Adam) Name() string {
	return "adam"
}

// Build implements UpdateRule.
func (a *Adam) Build(vars []*nn.Variable) error {
	a.m = make([]*tensor.Tensor, len(vars))
	a.v = make([]*tensor.Tensor, len(vars))
	if a.amsgrad {
		a.vMax = make([]*tensor.Tensor, len(vars))
	}
	for i, v := range vars {
		a.m[i] = zerosLike(v)
		a.v[i] = zerosLike(v)
		if a.amsgrad {
			a.vMax[i] = zerosLike(v)
		}
	}
	return nil
}

// Update implements UpdateRule.
func (a *Adam) Update(index int, grad *tensor.Tensor, v *nn.Variable, lr float32, step int64) error {
	biasCorrection1 := float32(1.0 - math.Pow(float64(a.beta1), float64(step)))
	biasCorrection2 := float32(1.0 - math.Pow(float64(a.beta2), float64(step)))

	gradData := grad.Data()
	mData := a.m[index].Data()
	vData := a.v[index].Data()
	var vMaxData []float32
	if a.amsgrad {
		vMaxData = a.vMax[index].Data()
	}
	paramData := v.Value().Data()
	round := v.Value().DType().Round

	parallel.ForChunks(len(paramData), a.cfg, func(start, end int) {
		for i := start; i < end; i++ {
			g := gradData[i]

			mData[i] = a.beta1*mData[i] + (1.0-a.beta1)*g
			vData[i] = a.beta2*vData[i] + (1.0-a.beta2)*g*g

			second := vData[i]
			if vMaxData != nil {
				vMaxData[i] = max(vMaxData[i], vData[i])
				second = vMaxData[i]
			}

			mHat := mData[i] / biasCorrection1
			vHat := second / biasCorrection2
			paramData[i] = round(paramData[i] - lr*mHat/(float32(math.Sqrt(float64(vHat)))+a.eps))
		}
	})
	return nil
}

// Slots implements UpdateRule.
func (a *Adam) Slots() map[string]*tensor.Tensor {
	slots := make(map[string]*tensor.Tensor, 3*len(a.m))
	for i := range a.m {
		slots[slotKey("m", i)] = a.m[i]
		slots[slotKey("v", i)] = a.v[i]
		if a.amsgrad {
			slots[slotKey("v_max", i)] = a.vMax[i]
		}
	}
	return slots
}

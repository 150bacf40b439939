package optim

import "math"

// Schedule gives the learning rate for an iteration count.
//
// step is the number of updates applied so far, so the first Apply uses step 0.
type Schedule interface {
	LearningRate(step int64) float32
}

// Constant is a fixed learning rate.
type Constant float32

// LearningRate implements Schedule.
func (c Constant) LearningRate(int64) float32 {
	return float32(c)
}

// ExponentialDecay multiplies LR by DecayRate every DecaySteps.
//
//	lr(step) = LR * DecayRate^(step/DecaySteps)
//
// With Staircase the exponent is truncated to an integer.
type ExponentialDecay struct {
	LR         float32
	DecaySteps int64
	DecayRate  float32
	Staircase  bool
}

// LearningRate implements Schedule.
func (e ExponentialDecay) LearningRate(step int64) float32 {
	if e.DecaySteps <= 0 {
		return e.LR
	}
	p := float64(step) / float64(e.DecaySteps)
	if e.Staircase {
		p = math.Floor(p)
	}
	return e.LR * float32(math.Pow(float64(e.DecayRate), p))
}

// CosineDecay anneals from LR down to MinLR over PeriodSteps, then restarts.
//
// During the first WarmUpSteps the rate ramps linearly from 0 to LR.
// A PeriodSteps of 0 disables annealing.
type CosineDecay struct {
	LR, MinLR   float32
	PeriodSteps int64
	WarmUpSteps int64
}

// LearningRate implements Schedule.
func (c CosineDecay) LearningRate(step int64) float32 {
	if step < c.WarmUpSteps {
		return c.LR * float32(step+1) / float32(c.WarmUpSteps)
	}
	if c.PeriodSteps <= 0 {
		return c.LR
	}
	step -= c.WarmUpSteps
	frac := float64(step%c.PeriodSteps) / float64(c.PeriodSteps)
	cosine := 0.5 * (1 + math.Cos(math.Pi*frac))
	return c.MinLR + (c.LR-c.MinLR)*float32(cosine)
}

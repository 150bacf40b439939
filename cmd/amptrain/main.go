// Package main provides amptrain, a small demo that fits a linear model with
// half-precision gradients and a dynamically loss-scaled optimizer.
package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"

	"github.com/born-ml/amp/checkpoint"
	"github.com/born-ml/amp/optim"
)

const version = "v0.1.0-dev"

var (
	flagSteps      = flag.Int("steps", 2000, "Number of training steps.")
	flagBatch      = flag.Int("batch", 64, "Examples per step.")
	flagFeatures   = flag.Int("features", 16, "Number of input features.")
	flagRule       = flag.String("rule", "adam", "Update rule: sgd, momentum, nesterov, adam or amsgrad.")
	flagLR         = flag.Float64("lr", 0.01, "Learning rate.")
	flagWarmUp     = flag.Int("warmup", 100, "Learning-rate warm-up steps (0 disables cosine decay).")
	flagClip       = flag.Float64("clip", 1.0, "Global gradient clip norm (0 disables).")
	flagDecay      = flag.Float64("weight_decay", 0, "Decoupled weight decay.")
	flagScale      = flag.Float64("loss_scale", 1<<15, "Initial loss scale.")
	flagGrowth     = flag.Int("growth_steps", 200, "Finite steps before the loss scale doubles.")
	flagSeed       = flag.Uint64("seed", 42, "Random seed for synthetic data.")
	flagCheckpoint = flag.String("checkpoint", "", "If set, save the optimizer state here after training.")
	flagVersion    = flag.Bool("version", false, "Print version and exit.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	if *flagVersion {
		fmt.Printf("amptrain %s\n", version)
		return
	}
	if err := run(); err != nil {
		klog.Errorf("amptrain: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	rule, err := optim.RuleByName(*flagRule)
	if err != nil {
		return err
	}
	var schedule optim.Schedule
	if *flagWarmUp > 0 {
		schedule = optim.CosineDecay{
			LR:          float32(*flagLR),
			MinLR:       float32(*flagLR) / 100,
			PeriodSteps: int64(*flagSteps - *flagWarmUp),
			WarmUpSteps: int64(*flagWarmUp),
		}
	}
	opt, err := optim.New(rule, optim.Config{
		LR:                     float32(*flagLR),
		Schedule:               schedule,
		GlobalClipNorm:         *flagClip,
		WeightDecay:            float32(*flagDecay),
		ExcludeFromWeightDecay: []string{"/b"},
	})
	if err != nil {
		return err
	}
	lso, err := optim.NewLossScaleOptimizer(opt, optim.LossScaleConfig{
		InitialScale: float32(*flagScale),
		GrowthSteps:  *flagGrowth,
	})
	if err != nil {
		return err
	}

	model := newRegression(*flagFeatures)
	if err := lso.Build(model.variables()); err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(*flagSeed, *flagSeed^0x9E3779B97F4A7C15))
	trueW := make([]float32, *flagFeatures)
	for i := range trueW {
		trueW[i] = float32(rng.NormFloat64())
	}
	const trueB = 0.5

	fmt.Printf("Fitting %s parameters with %s (loss scale %g)\n",
		humanize.Comma(int64(*flagFeatures+1)), rule.Name(), lso.Scale())
	bar := progressbar.NewOptions(*flagSteps,
		progressbar.OptionSetDescription("training"),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("steps"),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
	)

	var skipped int
	var loss float32
	for step := range *flagSteps {
		data := syntheticBatch(rng, *flagBatch, trueW, trueB)
		l, g, err := model.lossAndGrads(data, lso.Scale())
		if err != nil {
			return err
		}
		loss = l
		before := lso.Iterations()
		if _, err := lso.Apply(g, nil); err != nil {
			return err
		}
		if lso.Iterations() == before {
			skipped++
		}
		if step%50 == 0 {
			bar.Describe(fmt.Sprintf("loss=%.5f scale=%g", loss, lso.Scale()))
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	fmt.Println()

	fmt.Printf("Final loss %.6f after %s updates (%d steps skipped on overflow), loss scale %g\n",
		loss, humanize.Comma(lso.Iterations()), skipped, lso.Scale())

	if *flagCheckpoint != "" {
		if err := checkpoint.SaveLossScaled(*flagCheckpoint, lso); err != nil {
			return err
		}
		if info, err := os.Stat(*flagCheckpoint); err == nil {
			fmt.Printf("Saved optimizer state to %s (%s)\n", *flagCheckpoint, humanize.Bytes(uint64(info.Size())))
		}
	}
	return nil
}

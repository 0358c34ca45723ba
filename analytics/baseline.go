package analytics

import (
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mathext/prng"
)

// Fixed parameters of the normal-operation baseline. Readings in
// [BaselineLow, BaselineHigh) model low-vibration track behaviour.
const (
	BaselineSize  = 200
	BaselineLow   = 0.0
	BaselineHigh  = 2.0
	Contamination = 0.1
	Seed          = 42
)

// BaselineSample draws BaselineSize uniform values from
// [BaselineLow, BaselineHigh) off an MT19937 stream seeded with Seed. The
// sequence matches numpy's RandomState(42).uniform(0, 2, 200).
func BaselineSample() []float64 {
	mt := prng.NewMT19937()
	mt.Seed(Seed)

	data := make([]float64, BaselineSize)
	for i := range data {
		data[i] = BaselineLow + uniform53(mt)*(BaselineHigh-BaselineLow)
	}
	return data
}

// uniform53 builds a double in [0, 1) from two 32-bit outputs, keeping 27
// and 26 bits respectively.
func uniform53(mt *prng.MT19937) float64 {
	a := mt.Uint32() >> 5
	b := mt.Uint32() >> 6
	return (float64(a)*67108864.0 + float64(b)) / 9007199254740992.0
}

// TrainBaseline fits an isolation forest on a fresh baseline sample.
func TrainBaseline(logger *zap.Logger) (*IsolationForest, error) {
	opts := DefaultForestOptions()
	opts.Contamination = Contamination
	opts.Seed = Seed

	forest, err := FitIsolationForest(BaselineSample(), opts)
	if err != nil {
		return nil, fmt.Errorf("training baseline model: %w", err)
	}

	logger.Info("model trained on normal baseline",
		zap.Int("samples", BaselineSize),
		zap.Float64("contamination", Contamination),
		zap.Float64("offset", forest.Offset()),
	)
	return forest, nil
}

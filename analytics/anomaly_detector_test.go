package analytics

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"track-tamper-detector/models"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func trainedDetector(t *testing.T) *AnomalyDetector {
	t.Helper()
	ad := NewAnomalyDetector(testLogger())
	if err := ad.Train(); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	return ad
}

func TestAnomalyDetector_NormalRange(t *testing.T) {
	ad := trainedDetector(t)

	for _, v := range []float64{0.5, 1.0, 1.5} {
		got, err := ad.Classify(v)
		if err != nil {
			t.Fatalf("Classify(%v) error = %v", v, err)
		}
		if got.Status != models.StatusNormal || got.IsAnomaly {
			t.Errorf("Classify(%v) = %+v, want NORMAL", v, got)
		}
	}
}

func TestAnomalyDetector_ExtremeValues(t *testing.T) {
	ad := trainedDetector(t)

	for _, v := range []float64{50.0, -20.0, 100.0} {
		got, err := ad.Classify(v)
		if err != nil {
			t.Fatalf("Classify(%v) error = %v", v, err)
		}
		if got.Status != models.StatusTampering || !got.IsAnomaly {
			t.Errorf("Classify(%v) = %+v, want TAMPERING DETECTED", v, got)
		}
		if got.Confidence >= 0 {
			t.Errorf("Classify(%v).Confidence = %v, want < 0", v, got.Confidence)
		}
	}
}

func TestAnomalyDetector_ConfidenceOrdering(t *testing.T) {
	ad := trainedDetector(t)

	center, _ := ad.Classify(1.0)
	far, _ := ad.Classify(50.0)

	if center.Confidence <= 0 {
		t.Errorf("Classify(1.0).Confidence = %v, want > 0", center.Confidence)
	}
	if center.Confidence <= far.Confidence {
		t.Errorf("confidence(1.0) = %v, want > confidence(50.0) = %v", center.Confidence, far.Confidence)
	}
}

func TestAnomalyDetector_OutputShape(t *testing.T) {
	ad := trainedDetector(t)

	for _, v := range []float64{-1e6, -20, -0.1, 0, 0.01, 1, 1.99, 2, 3, 50, 1e6} {
		got, err := ad.Classify(v)
		if err != nil {
			t.Fatalf("Classify(%v) error = %v", v, err)
		}
		if got.Status != models.StatusNormal && got.Status != models.StatusTampering {
			t.Errorf("Classify(%v).Status = %q, unexpected label", v, got.Status)
		}
		if got.IsAnomaly == (got.Status == models.StatusNormal) {
			t.Errorf("Classify(%v): is_anomaly = %v inconsistent with status %q", v, got.IsAnomaly, got.Status)
		}
		if math.IsNaN(got.Confidence) || math.IsInf(got.Confidence, 0) {
			t.Errorf("Classify(%v).Confidence = %v, want finite", v, got.Confidence)
		}
	}
}

func TestAnomalyDetector_Determinism(t *testing.T) {
	a := trainedDetector(t)
	b := trainedDetector(t)

	for _, v := range []float64{-20, 0.3, 1.0, 1.8, 2.2, 50} {
		pa, _ := a.Classify(v)
		pb, _ := b.Classify(v)
		if pa != pb {
			t.Errorf("Classify(%v) differs between fits: %+v vs %+v", v, pa, pb)
		}
	}
}

func TestAnomalyDetector_LazyTrain(t *testing.T) {
	lazy := NewAnomalyDetector(testLogger())
	if lazy.IsTrained() {
		t.Fatal("IsTrained() = true before any training")
	}

	got, err := lazy.Classify(1.0)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if !lazy.IsTrained() {
		t.Error("IsTrained() = false after lazy classify")
	}

	want, _ := trainedDetector(t).Classify(1.0)
	if got != want {
		t.Errorf("lazy Classify(1.0) = %+v, want %+v", got, want)
	}
}

func TestAnomalyDetector_LazyTrainRunsOnce(t *testing.T) {
	var calls int32
	ad := NewAnomalyDetectorWithTrainer(testLogger(), func(l *zap.Logger) (*IsolationForest, error) {
		atomic.AddInt32(&calls, 1)
		return TrainBaseline(l)
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ad.Classify(1.0); err != nil {
				t.Errorf("Classify() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("trainer called %d times, want 1", got)
	}
}

func TestAnomalyDetector_RetrainReplacesModel(t *testing.T) {
	var trainings int
	ad := NewAnomalyDetector(testLogger())
	ad.OnTrain = func() { trainings++ }

	if err := ad.Train(); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	first := ad.model.Load()
	if err := ad.Train(); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	if ad.model.Load() == first {
		t.Error("Train() kept the previous model instance")
	}
	if trainings != 2 {
		t.Errorf("OnTrain called %d times, want 2", trainings)
	}
}

func TestAnomalyDetector_TrainFailurePropagates(t *testing.T) {
	errFit := errors.New("out of memory")
	ad := NewAnomalyDetectorWithTrainer(testLogger(), func(*zap.Logger) (*IsolationForest, error) {
		return nil, errFit
	})

	if _, err := ad.Classify(1.0); !errors.Is(err, errFit) {
		t.Errorf("Classify() error = %v, want %v", err, errFit)
	}
	if ad.IsTrained() {
		t.Error("IsTrained() = true after failed fit")
	}
}

func TestBaselineSample(t *testing.T) {
	a := BaselineSample()
	b := BaselineSample()

	if len(a) != BaselineSize {
		t.Fatalf("len(BaselineSample()) = %d, want %d", len(a), BaselineSize)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("BaselineSample() not reproducible at %d: %v vs %v", i, a[i], b[i])
		}
		if a[i] < BaselineLow || a[i] >= BaselineHigh {
			t.Errorf("sample[%d] = %v outside [%v, %v)", i, a[i], BaselineLow, BaselineHigh)
		}
	}
}

func TestBaselineSample_KnownPrefix(t *testing.T) {
	// First draws of the reference MT19937 stream for seed 42, scaled to [0, 2).
	want := []float64{0.749080237694725, 1.9014286128198323, 1.4639878836228102}

	got := BaselineSample()
	for i, w := range want {
		if math.Abs(got[i]-w) > 1e-12 {
			t.Errorf("sample[%d] = %.16f, want %.16f", i, got[i], w)
		}
	}
}

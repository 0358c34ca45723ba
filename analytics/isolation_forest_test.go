package analytics

import (
	"math"
	"testing"
)

func TestFitIsolationForest_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		data []float64
		opts func(*ForestOptions)
	}{
		{name: "empty data", data: nil},
		{name: "zero trees", data: []float64{1, 2, 3}, opts: func(o *ForestOptions) { o.NumTrees = 0 }},
		{name: "zero contamination", data: []float64{1, 2, 3}, opts: func(o *ForestOptions) { o.Contamination = 0 }},
		{name: "contamination above half", data: []float64{1, 2, 3}, opts: func(o *ForestOptions) { o.Contamination = 0.6 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultForestOptions()
			if tt.opts != nil {
				tt.opts(&opts)
			}
			if _, err := FitIsolationForest(tt.data, opts); err == nil {
				t.Error("FitIsolationForest() error = nil, want error")
			}
		})
	}
}

func TestFitIsolationForest_Deterministic(t *testing.T) {
	data := BaselineSample()
	a, err := FitIsolationForest(data, DefaultForestOptions())
	if err != nil {
		t.Fatalf("FitIsolationForest() error = %v", err)
	}
	b, err := FitIsolationForest(data, DefaultForestOptions())
	if err != nil {
		t.Fatalf("FitIsolationForest() error = %v", err)
	}

	for _, v := range []float64{-20, 0, 0.5, 1, 1.5, 1.99, 2.5, 50} {
		if a.DecisionFunction(v) != b.DecisionFunction(v) {
			t.Errorf("DecisionFunction(%v) differs between fits: %v vs %v",
				v, a.DecisionFunction(v), b.DecisionFunction(v))
		}
		if a.Predict(v) != b.Predict(v) {
			t.Errorf("Predict(%v) differs between fits", v)
		}
	}
}

func TestIsolationForest_ContaminationShare(t *testing.T) {
	data := BaselineSample()
	f, err := FitIsolationForest(data, DefaultForestOptions())
	if err != nil {
		t.Fatalf("FitIsolationForest() error = %v", err)
	}

	outliers := 0
	for _, v := range data {
		if f.Predict(v) == Outlier {
			outliers++
		}
	}

	// About 10% of 200 training points; ties at the threshold move it a little.
	if outliers < 10 || outliers > 30 {
		t.Errorf("training outliers = %d, want about 20", outliers)
	}
}

func TestIsolationForest_ScoreRange(t *testing.T) {
	f, err := FitIsolationForest(BaselineSample(), DefaultForestOptions())
	if err != nil {
		t.Fatalf("FitIsolationForest() error = %v", err)
	}

	for _, v := range []float64{-1e9, -20, 0, 1, 2, 50, 1e9} {
		s := f.ScoreSamples(v)
		if s >= 0 || s < -1 || math.IsNaN(s) {
			t.Errorf("ScoreSamples(%v) = %v, want in [-1, 0)", v, s)
		}
	}
}

func TestIsolationForest_SingleValueData(t *testing.T) {
	f, err := FitIsolationForest([]float64{3, 3, 3, 3}, DefaultForestOptions())
	if err != nil {
		t.Fatalf("FitIsolationForest() error = %v", err)
	}
	if got := f.Predict(3); got != Inlier {
		t.Errorf("Predict(3) = %d, want Inlier", got)
	}
}

func TestAveragePathLength(t *testing.T) {
	tests := []struct {
		n    int
		want float64
	}{
		{n: 0, want: 0},
		{n: 1, want: 0},
		{n: 2, want: 1},
		{n: 256, want: 10.2448},
	}

	for _, tt := range tests {
		if got := averagePathLength(tt.n); math.Abs(got-tt.want) > 0.001 {
			t.Errorf("averagePathLength(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

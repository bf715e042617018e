package forest

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// andData labels points by the AND of two binary features; the third
// feature is noise.
func andData(n int, seed uint64) ([][]float64, []int) {
	rng := rand.New(rand.NewPCG(seed, 0))
	x := make([][]float64, n)
	y := make([]int, n)
	for i := range x {
		a, b := float64(rng.IntN(2)), float64(rng.IntN(2))
		x[i] = []float64{a, b, rng.Float64()}
		if a == 1 && b == 1 {
			y[i] = 1
		}
	}
	return x, y
}

func TestTree_FitsSeparableData(t *testing.T) {
	x := [][]float64{{1}, {2}, {3}, {10}, {11}, {12}}
	y := []int{0, 0, 0, 1, 1, 1}
	samples := []int{0, 1, 2, 3, 4, 5}

	tree := fitTree(x, y, samples, 2, TreeConfig{}, rand.New(rand.NewPCG(1, 1)))

	assert.Equal(t, 1, tree.Depth())
	assert.Equal(t, 2, tree.Leaves())
	assert.Equal(t, []float64{1, 0}, tree.PredictProba([]float64{6.4}))
	assert.Equal(t, []float64{0, 1}, tree.PredictProba([]float64{6.6}))
	assert.Equal(t, []float64{1}, tree.importance)
}

func TestTree_MaxDepth(t *testing.T) {
	x, y := andData(200, 7)
	samples := make([]int, len(x))
	for i := range samples {
		samples[i] = i
	}

	tree := fitTree(x, y, samples, 2, TreeConfig{MaxDepth: 1}, rand.New(rand.NewPCG(1, 1)))
	assert.Equal(t, 1, tree.Depth())
}

func TestTree_PureNodeIsLeaf(t *testing.T) {
	x := [][]float64{{1}, {2}, {3}}
	y := []int{1, 1, 1}

	tree := fitTree(x, y, []int{0, 1, 2}, 2, TreeConfig{}, rand.New(rand.NewPCG(1, 1)))
	assert.Equal(t, 0, tree.Depth())
	assert.Equal(t, []float64{0, 1}, tree.PredictProba([]float64{2}))
}

func TestTree_MinSamplesLeaf(t *testing.T) {
	x := [][]float64{{1}, {2}, {3}, {4}, {5}, {6}}
	y := []int{0, 1, 1, 1, 1, 1}
	samples := []int{0, 1, 2, 3, 4, 5}

	tree := fitTree(x, y, samples, 2, TreeConfig{}, rand.New(rand.NewPCG(1, 1)))
	assert.Equal(t, []float64{1, 0}, tree.PredictProba([]float64{1}))

	tree = fitTree(x, y, samples, 2, TreeConfig{MinSamplesLeaf: 2}, rand.New(rand.NewPCG(1, 1)))
	assert.Equal(t, []float64{0.5, 0.5}, tree.PredictProba([]float64{1}))
	assert.Equal(t, 2, tree.Leaves())
}

func TestRandomForest_LearnsConjunction(t *testing.T) {
	x, y := andData(400, 3)

	f := New(Config{Trees: 25, Seed: 42, Tree: TreeConfig{MaxFeatures: 3}})
	require.NoError(t, f.Fit(context.Background(), x, y))

	testX, testY := andData(200, 11)
	pred := f.PredictAll(testX)

	correct := 0
	for i := range pred {
		if pred[i] == testY[i] {
			correct++
		}
	}
	assert.Greater(t, float64(correct)/float64(len(pred)), 0.95)
	assert.Len(t, f.Trees(), 25)

	imp, err := f.FeatureImportances()
	require.NoError(t, err)
	require.Len(t, imp, 3)
	assert.InDelta(t, 1.0, imp[0]+imp[1]+imp[2], 1e-9)
	assert.Greater(t, imp[0]+imp[1], imp[2])
}

func TestRandomForest_DeterministicWithSeed(t *testing.T) {
	x, y := andData(150, 5)
	probe, _ := andData(50, 9)

	fit := func(workers int) [][]float64 {
		f := New(Config{Trees: 15, Seed: 7, Workers: workers})
		require.NoError(t, f.Fit(context.Background(), x, y))

		out := make([][]float64, len(probe))
		for i, row := range probe {
			out[i] = f.PredictProba(row)
		}
		return out
	}

	assert.Equal(t, fit(1), fit(4))
}

func TestRandomForest_PredictTieGoesToLowestClass(t *testing.T) {
	f := &RandomForest{nClasses: 2, trees: []*Tree{
		{nodes: []node{{leaf: true, proba: []float64{0, 1}}}},
		{nodes: []node{{leaf: true, proba: []float64{1, 0}}}},
	}}

	assert.Equal(t, 0, f.Predict([]float64{0}))
	assert.Equal(t, []float64{0.5, 0.5}, f.PredictProba([]float64{0}))
}

func TestRandomForest_FitErrors(t *testing.T) {
	tests := []struct {
		name    string
		x       [][]float64
		y       []int
		wantErr error
	}{
		{name: "no samples", x: nil, y: nil, wantErr: ErrNoSamples},
		{name: "length mismatch", x: [][]float64{{1}}, y: []int{0, 1}, wantErr: ErrShapeMismatch},
		{name: "ragged rows", x: [][]float64{{1}, {1, 2}}, y: []int{0, 1}, wantErr: ErrRaggedRows},
		{name: "no features", x: [][]float64{{}}, y: []int{0}, wantErr: ErrRaggedRows},
		{name: "negative label", x: [][]float64{{1}, {2}}, y: []int{0, -1}, wantErr: ErrBadLabel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(DefaultConfig()).Fit(context.Background(), tt.x, tt.y)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRandomForest_CanceledContext(t *testing.T) {
	x, y := andData(50, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New(Config{Trees: 5}).Fit(ctx, x, y)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = New(Config{Trees: 5}).FeatureImportances()
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestMidpoint(t *testing.T) {
	next := math.Nextafter(1, 2)

	tests := []struct {
		name   string
		lo, hi float64
		want   float64
	}{
		{name: "plain", lo: 1, hi: 2, want: 1.5},
		{name: "adjacent floats", lo: 1, hi: next, want: 1},
		{name: "positive infinity", lo: 2, hi: math.Inf(1), want: 2},
		{name: "negative infinity", lo: math.Inf(-1), hi: 1, want: math.Inf(-1)},
		{name: "overflow", lo: -math.MaxFloat64, hi: math.MaxFloat64, want: -math.MaxFloat64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := midpoint(tt.lo, tt.hi)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, tt.lo)
			assert.Less(t, got, tt.hi)
		})
	}
}

func TestTree_AdjacentFloats(t *testing.T) {
	next := math.Nextafter(1, 2)
	x := [][]float64{{1}, {next}, {1}, {next}}
	y := []int{0, 1, 0, 1}

	tree := fitTree(x, y, []int{0, 1, 2, 3}, 2, TreeConfig{}, rand.New(rand.NewPCG(1, 1)))

	assert.Equal(t, 2, tree.Leaves())
	assert.Equal(t, []float64{1, 0}, tree.PredictProba([]float64{1}))
	assert.Equal(t, []float64{0, 1}, tree.PredictProba([]float64{next}))
}

func TestRandomForest_NonFiniteFeatures(t *testing.T) {
	nan, inf := math.NaN(), math.Inf(1)

	tests := []struct {
		name  string
		x     [][]float64
		y     []int
		check map[float64]int
	}{
		{
			name:  "NaN cells",
			x:     [][]float64{{nan}, {1}, {nan}, {2}, {3}, {nan}},
			y:     []int{1, 0, 1, 0, 0, 1},
			check: map[float64]int{1: 0, 2: 0},
		},
		{
			name:  "positive infinity",
			x:     [][]float64{{1}, {2}, {inf}, {inf}},
			y:     []int{0, 0, 1, 1},
			check: map[float64]int{2: 0, inf: 1},
		},
		{
			name:  "negative infinity",
			x:     [][]float64{{-inf}, {-inf}, {1}, {2}},
			y:     []int{1, 1, 0, 0},
			check: map[float64]int{-inf: 1, 1: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(Config{Trees: 3, DisableBootstrap: true})
			require.NoError(t, f.Fit(context.Background(), tt.x, tt.y))

			for v, want := range tt.check {
				assert.Equal(t, want, f.Predict([]float64{v}), "x=%v", v)
			}
		})
	}

	t.Run("NaN rows reach a leaf", func(t *testing.T) {
		f := New(Config{Trees: 3, DisableBootstrap: true})
		require.NoError(t, f.Fit(context.Background(), tests[0].x, tests[0].y))
		assert.Equal(t, 1, f.Predict([]float64{nan}))
	})
}

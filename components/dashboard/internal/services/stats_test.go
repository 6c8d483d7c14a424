package services

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varpsim/varp/pkg/distribution"
)

func TestComputeEstadisticas_KnownSample(t *testing.T) {
	t.Parallel()

	est := computeEstadisticas([]float64{1, 2, 3, 4, 5})
	require.NotNil(t, est)

	assert.Equal(t, 5, est.N)
	assert.InDelta(t, 3.0, est.Media, 1e-12)
	assert.InDelta(t, 3.0, est.Mediana, 1e-12)
	assert.InDelta(t, 2.0, est.Varianza, 1e-12)
	assert.InDelta(t, math.Sqrt(2), est.DesviacionEstandar, 1e-12)
	assert.Equal(t, 1.0, est.Minimo)
	assert.Equal(t, 5.0, est.Maximo)

	half := 1.96 * math.Sqrt(2) / math.Sqrt(5)
	assert.InDelta(t, 3-half, est.IntervaloConfianza95.Inferior, 1e-12)
	assert.InDelta(t, 3+half, est.IntervaloConfianza95.Superior, 1e-12)
}

func TestComputeEstadisticas_Empty(t *testing.T) {
	t.Parallel()

	assert.Nil(t, computeEstadisticas(nil))
}

func TestComputeEstadisticas_Percentiles(t *testing.T) {
	t.Parallel()

	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i + 1)
	}

	est := computeEstadisticas(values)
	require.NotNil(t, est)

	assert.InDelta(t, 25, est.Percentil25, 1)
	assert.InDelta(t, 75, est.Percentil75, 1)
	assert.InDelta(t, 95, est.Percentil95, 1)
	assert.InDelta(t, 99, est.Percentil99, 1)
}

func normalSample(t *testing.T, n int) []float64 {
	t.Helper()

	s := distribution.New(1234)

	values, err := s.SampleBatch("normal", map[string]float64{"media": 0, "std": 1}, n, distribution.KindFloat)
	require.NoError(t, err)

	sort.Float64s(values)

	return values
}

func TestComputeNormalidad_NormalSamplePassesKS(t *testing.T) {
	t.Parallel()

	sorted := normalSample(t, 1000)

	est := computeEstadisticas(sorted)
	require.NotNil(t, est)

	tests := computeNormalidad(sorted, est.Media, est.DesviacionEstandar)
	require.NotNil(t, tests)

	assert.Equal(t, 1000, tests.N)
	assert.Greater(t, tests.KolmogorovSmirnov.PValue, 0.01)
	assert.True(t, tests.KolmogorovSmirnov.IsNormalAlpha01)
	assert.Less(t, tests.KolmogorovSmirnov.Statistic, 0.05)

	require.NotNil(t, tests.ShapiroWilk, "Shapiro-Wilk should run for n <= 5000")
	assert.Greater(t, tests.ShapiroWilk.Statistic, 0.95)
	assert.LessOrEqual(t, tests.ShapiroWilk.Statistic, 1.0)
	assert.GreaterOrEqual(t, tests.ShapiroWilk.PValue, 0.0)
	assert.LessOrEqual(t, tests.ShapiroWilk.PValue, 1.0)
}

func TestComputeNormalidad_UniformSampleFailsKS(t *testing.T) {
	t.Parallel()

	s := distribution.New(99)

	values, err := s.SampleBatch("uniform", map[string]float64{"min": 0, "max": 1}, 2000, distribution.KindFloat)
	require.NoError(t, err)

	sort.Float64s(values)

	est := computeEstadisticas(values)
	require.NotNil(t, est)

	tests := computeNormalidad(values, est.Media, est.DesviacionEstandar)
	require.NotNil(t, tests)

	assert.Less(t, tests.KolmogorovSmirnov.PValue, 0.05)
	assert.False(t, tests.KolmogorovSmirnov.IsNormalAlpha05)
}

func TestComputeNormalidad_SkipsLargeSamplesForShapiroWilk(t *testing.T) {
	t.Parallel()

	sorted := normalSample(t, 5001)

	est := computeEstadisticas(sorted)
	require.NotNil(t, est)

	tests := computeNormalidad(sorted, est.Media, est.DesviacionEstandar)
	require.NotNil(t, tests)
	assert.Nil(t, tests.ShapiroWilk)
}

func TestComputeNormalidad_DegenerateSample(t *testing.T) {
	t.Parallel()

	values := []float64{2, 2, 2, 2, 2}

	assert.Nil(t, computeNormalidad(values, 2, 0))
}

func TestKSPValue_Bounds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.0, ksPValue(0, 100))
	assert.Less(t, ksPValue(0.5, 100), 1e-6)

	p := ksPValue(0.05, 100)
	assert.Greater(t, p, 0.0)
	assert.LessOrEqual(t, p, 1.0)
}

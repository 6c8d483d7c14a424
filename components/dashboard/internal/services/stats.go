package services

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// IntervaloConfianza is the Normal 95% confidence interval around the mean.
type IntervaloConfianza struct {
	Inferior float64 `json:"inferior"`
	Superior float64 `json:"superior"`
}

// Estadisticas are the running descriptive statistics over the result window.
type Estadisticas struct {
	N                    int                `json:"n"`
	Media                float64            `json:"media"`
	Mediana              float64            `json:"mediana"`
	Varianza             float64            `json:"varianza"`
	DesviacionEstandar   float64            `json:"desviacion_estandar"`
	Minimo               float64            `json:"minimo"`
	Maximo               float64            `json:"maximo"`
	Percentil25          float64            `json:"percentil_25"`
	Percentil75          float64            `json:"percentil_75"`
	Percentil95          float64            `json:"percentil_95"`
	Percentil99          float64            `json:"percentil_99"`
	IntervaloConfianza95 IntervaloConfianza `json:"intervalo_confianza_95"`
}

// PuntoConvergencia is one sample of the law-of-large-numbers trace.
type PuntoConvergencia struct {
	N         int     `json:"n"`
	Media     float64 `json:"media"`
	Varianza  float64 `json:"varianza"`
	Timestamp float64 `json:"timestamp"`
}

// computeEstadisticas recomputes the descriptive statistics over the values.
// Variance is the population variance, matching the convergence trace.
func computeEstadisticas(values []float64) *Estadisticas {
	n := len(values)
	if n == 0 {
		return nil
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	media := stat.Mean(sorted, nil)
	varianza := popVariance(sorted, media)
	std := math.Sqrt(varianza)

	half := 1.96 * std / math.Sqrt(float64(n))

	return &Estadisticas{
		N:                  n,
		Media:              media,
		Mediana:            stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Varianza:           varianza,
		DesviacionEstandar: std,
		Minimo:             sorted[0],
		Maximo:             sorted[n-1],
		Percentil25:        stat.Quantile(0.25, stat.Empirical, sorted, nil),
		Percentil75:        stat.Quantile(0.75, stat.Empirical, sorted, nil),
		Percentil95:        stat.Quantile(0.95, stat.Empirical, sorted, nil),
		Percentil99:        stat.Quantile(0.99, stat.Empirical, sorted, nil),
		IntervaloConfianza95: IntervaloConfianza{
			Inferior: media - half,
			Superior: media + half,
		},
	}
}

func popVariance(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64

	for _, v := range values {
		d := v - mean
		sum += d * d
	}

	return sum / float64(len(values))
}

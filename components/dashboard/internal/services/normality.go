package services

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// TestNormalidad is the outcome of one normality test, with the is-normal
// decisions at the two standard significance levels.
type TestNormalidad struct {
	Statistic       float64 `json:"statistic"`
	PValue          float64 `json:"pvalue"`
	IsNormalAlpha05 bool    `json:"is_normal_alpha_05"`
	IsNormalAlpha01 bool    `json:"is_normal_alpha_01"`
}

// TestsNormalidad bundles the Kolmogorov-Smirnov and Shapiro-Wilk results
// against a Normal fit with the sample mean and standard deviation.
type TestsNormalidad struct {
	N                 int             `json:"n"`
	KolmogorovSmirnov TestNormalidad  `json:"kolmogorov_smirnov"`
	ShapiroWilk       *TestNormalidad `json:"shapiro_wilk,omitempty"`
	MediaEstimada     float64         `json:"media_estimada"`
	StdEstimada       float64         `json:"std_estimada"`
}

// shapiroWilkMaxN bounds the Shapiro-Wilk test: beyond this the approximation
// degrades and the KS test carries the decision alone.
const shapiroWilkMaxN = 5000

// computeNormalidad runs the normality tests over the sorted sample.
func computeNormalidad(sorted []float64, media, std float64) *TestsNormalidad {
	n := len(sorted)
	if n < 3 || std <= 0 {
		return nil
	}

	ksStat, ksP := kolmogorovSmirnov(sorted, media, std)

	tests := &TestsNormalidad{
		N: n,
		KolmogorovSmirnov: TestNormalidad{
			Statistic:       ksStat,
			PValue:          ksP,
			IsNormalAlpha05: ksP > 0.05,
			IsNormalAlpha01: ksP > 0.01,
		},
		MediaEstimada: media,
		StdEstimada:   std,
	}

	if n <= shapiroWilkMaxN {
		if w, p, ok := shapiroWilk(sorted); ok {
			tests.ShapiroWilk = &TestNormalidad{
				Statistic:       w,
				PValue:          p,
				IsNormalAlpha05: p > 0.05,
				IsNormalAlpha01: p > 0.01,
			}
		}
	}

	return tests
}

// kolmogorovSmirnov computes the KS statistic of the sorted sample against
// N(media, std) and the asymptotic p-value.
func kolmogorovSmirnov(sorted []float64, media, std float64) (statistic, pvalue float64) {
	n := len(sorted)
	norm := distuv.Normal{Mu: media, Sigma: std}

	var d float64

	for i, x := range sorted {
		cdf := norm.CDF(x)

		upper := float64(i+1)/float64(n) - cdf
		lower := cdf - float64(i)/float64(n)

		d = math.Max(d, math.Max(upper, lower))
	}

	return d, ksPValue(d, n)
}

// ksPValue is the asymptotic Kolmogorov distribution tail with the small-n
// correction of the effective sample size.
func ksPValue(d float64, n int) float64 {
	if d <= 0 {
		return 1
	}

	sqrtN := math.Sqrt(float64(n))
	lambda := (sqrtN + 0.12 + 0.11/sqrtN) * d

	var sum float64

	for k := 1; k <= 100; k++ {
		term := math.Exp(-2 * float64(k) * float64(k) * lambda * lambda)
		if k%2 == 1 {
			sum += term
		} else {
			sum -= term
		}

		if term < 1e-12 {
			break
		}
	}

	p := 2 * sum

	return math.Min(1, math.Max(0, p))
}

// shapiroWilk implements the Royston (AS R94) approximation of the
// Shapiro-Wilk W statistic and its p-value for 3 <= n <= 5000.
func shapiroWilk(sorted []float64) (w, pvalue float64, ok bool) {
	n := len(sorted)
	if n < 3 || n > shapiroWilkMaxN {
		return 0, 0, false
	}

	if sorted[n-1] == sorted[0] {
		// Zero range: W is undefined.
		return 0, 0, false
	}

	unit := distuv.Normal{Mu: 0, Sigma: 1}

	// Expected values of the normal order statistics (Blom approximation).
	m := make([]float64, n)

	var ssm float64

	for i := 0; i < n; i++ {
		m[i] = unit.Quantile((float64(i+1) - 0.375) / (float64(n) + 0.25))
		ssm += m[i] * m[i]
	}

	u := 1 / math.Sqrt(float64(n))

	a := make([]float64, n)

	cn := m[n-1] / math.Sqrt(ssm)
	an := -2.706056*math.Pow(u, 5) + 4.434685*math.Pow(u, 4) -
		2.071190*math.Pow(u, 3) - 0.147981*u*u + 0.221157*u + cn

	if n > 5 {
		cn1 := m[n-2] / math.Sqrt(ssm)
		an1 := -3.582633*math.Pow(u, 5) + 5.682633*math.Pow(u, 4) -
			1.752461*math.Pow(u, 3) - 0.293762*u*u + 0.042981*u + cn1

		phi := (ssm - 2*m[n-1]*m[n-1] - 2*m[n-2]*m[n-2]) /
			(1 - 2*an*an - 2*an1*an1)

		a[n-1] = an
		a[n-2] = an1
		a[0] = -an
		a[1] = -an1

		for i := 2; i < n-2; i++ {
			a[i] = m[i] / math.Sqrt(phi)
		}
	} else {
		phi := (ssm - 2*m[n-1]*m[n-1]) / (1 - 2*an*an)

		a[n-1] = an
		a[0] = -an

		for i := 1; i < n-1; i++ {
			a[i] = m[i] / math.Sqrt(phi)
		}
	}

	var mean float64
	for _, x := range sorted {
		mean += x
	}
	mean /= float64(n)

	var num, den float64

	for i, x := range sorted {
		num += a[i] * x

		d := x - mean
		den += d * d
	}

	w = num * num / den

	if w >= 1 {
		return w, 1, true
	}

	pvalue = shapiroWilkPValue(w, n)

	return w, pvalue, true
}

func shapiroWilkPValue(w float64, n int) float64 {
	unit := distuv.Normal{Mu: 0, Sigma: 1}

	switch {
	case n == 3:
		p := 6 / math.Pi * (math.Asin(math.Sqrt(w)) - math.Asin(math.Sqrt(0.75)))
		return math.Min(1, math.Max(0, p))

	case n <= 11:
		fn := float64(n)
		g := -2.273 + 0.459*fn
		mu := 0.5440 - 0.39978*fn + 0.025054*fn*fn - 0.0006714*fn*fn*fn
		sigma := math.Exp(1.3822 - 0.77857*fn + 0.062767*fn*fn - 0.0020322*fn*fn*fn)

		arg := g - math.Log(1-w)
		if arg <= 0 {
			return 0
		}

		z := (-math.Log(arg) - mu) / sigma

		return 1 - unit.CDF(z)

	default:
		ln := math.Log(float64(n))
		mu := 0.0038915*ln*ln*ln - 0.083751*ln*ln - 0.31082*ln - 1.5861
		sigma := math.Exp(0.0030302*ln*ln - 0.082676*ln - 0.4803)

		z := (math.Log(1-w) - mu) / sigma

		return 1 - unit.CDF(z)
	}
}

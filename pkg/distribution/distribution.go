// Package distribution draws values for the stochastic variables of a model.
//
// Six distributions are supported: normal, uniform, exponential, lognormal,
// triangular and binomial. Parameters are validated on every call and a
// sampler constructed with a seed produces a fully deterministic stream.
package distribution

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Kind is the declared numeric kind of a variable.
type Kind string

// Supported numeric kinds. Integer draws are rounded to the nearest integer.
const (
	KindFloat Kind = "float"
	KindInt   Kind = "int"
)

// ParseKind validates a numeric kind read from a model file.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(s)) {
	case KindFloat:
		return KindFloat, nil
	case KindInt:
		return KindInt, nil
	}

	return "", &Error{Message: fmt.Sprintf("invalid kind %q, valid: float, int", s)}
}

// Error records an error in distribution sampling: unknown tag, missing
// parameter or parameter-domain violation.
type Error struct {
	Distribution string
	Message      string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Distribution != "" {
		return fmt.Sprintf("distribution '%s': %s", e.Distribution, e.Message)
	}

	return e.Message
}

// Supported lists the valid distribution tags.
var Supported = []string{"normal", "uniform", "exponential", "lognormal", "triangular", "binomial"}

// IsSupported reports whether tag names a known distribution.
func IsSupported(tag string) bool {
	for _, s := range Supported {
		if s == strings.ToLower(tag) {
			return true
		}
	}

	return false
}

// Sampler draws values from named distributions. Construction with a seed
// fully determines the stream. A Sampler is not safe for concurrent use.
type Sampler struct {
	seed uint64
	src  rand.Source
}

// New returns a Sampler seeded with the given value.
func New(seed uint64) *Sampler {
	return &Sampler{
		seed: seed,
		src:  rand.NewSource(seed),
	}
}

// Seed returns the seed the sampler was constructed with.
func (s *Sampler) Seed() uint64 {
	return s.seed
}

// Sample returns one draw from the tagged distribution, cast to the declared
// numeric kind. Parameters are validated on every call.
func (s *Sampler) Sample(tag string, params map[string]float64, kind Kind) (float64, error) {
	tag = strings.ToLower(tag)

	var (
		value float64
		err   error
	)

	switch tag {
	case "normal":
		value, err = s.normal(params)
	case "uniform":
		value, err = s.uniform(params)
	case "exponential":
		value, err = s.exponential(params)
	case "lognormal":
		value, err = s.lognormal(params)
	case "triangular":
		value, err = s.triangular(params)
	case "binomial":
		value, err = s.binomial(params)
	default:
		return 0, &Error{
			Distribution: tag,
			Message:      fmt.Sprintf("not supported, valid: %s", strings.Join(Supported, ", ")),
		}
	}

	if err != nil {
		return 0, err
	}

	if kind == KindInt {
		return math.Round(value), nil
	}

	return value, nil
}

// SampleBatch returns size independent draws from the tagged distribution.
func (s *Sampler) SampleBatch(tag string, params map[string]float64, size int, kind Kind) ([]float64, error) {
	if size <= 0 {
		return nil, &Error{Distribution: tag, Message: fmt.Sprintf("batch size must be > 0, got %d", size)}
	}

	values := make([]float64, size)

	for i := range values {
		v, err := s.Sample(tag, params, kind)
		if err != nil {
			return nil, err
		}

		values[i] = v
	}

	return values, nil
}

func param(tag string, params map[string]float64, names ...string) (float64, error) {
	for _, name := range names {
		if v, ok := params[name]; ok {
			return v, nil
		}
	}

	return 0, &Error{
		Distribution: tag,
		Message:      fmt.Sprintf("missing parameter '%s'", names[0]),
	}
}

func (s *Sampler) normal(params map[string]float64) (float64, error) {
	media, err := param("normal", params, "media", "mean")
	if err != nil {
		return 0, err
	}

	std, err := param("normal", params, "std")
	if err != nil {
		return 0, err
	}

	if std <= 0 {
		return 0, &Error{Distribution: "normal", Message: "std must be > 0"}
	}

	return distuv.Normal{Mu: media, Sigma: std, Src: s.src}.Rand(), nil
}

func (s *Sampler) uniform(params map[string]float64) (float64, error) {
	minVal, err := param("uniform", params, "min")
	if err != nil {
		return 0, err
	}

	maxVal, err := param("uniform", params, "max")
	if err != nil {
		return 0, err
	}

	if minVal >= maxVal {
		return 0, &Error{Distribution: "uniform", Message: "min must be < max"}
	}

	return distuv.Uniform{Min: minVal, Max: maxVal, Src: s.src}.Rand(), nil
}

func (s *Sampler) exponential(params map[string]float64) (float64, error) {
	// Accepts 'lambda' or 'scale' where scale = 1/lambda.
	if lambda, ok := params["lambda"]; ok {
		if lambda <= 0 {
			return 0, &Error{Distribution: "exponential", Message: "lambda must be > 0"}
		}

		return distuv.Exponential{Rate: lambda, Src: s.src}.Rand(), nil
	}

	if scale, ok := params["scale"]; ok {
		if scale <= 0 {
			return 0, &Error{Distribution: "exponential", Message: "scale must be > 0"}
		}

		return distuv.Exponential{Rate: 1.0 / scale, Src: s.src}.Rand(), nil
	}

	return 0, &Error{Distribution: "exponential", Message: "requires 'lambda' or 'scale'"}
}

func (s *Sampler) lognormal(params map[string]float64) (float64, error) {
	mu, err := param("lognormal", params, "mu")
	if err != nil {
		return 0, err
	}

	sigma, err := param("lognormal", params, "sigma")
	if err != nil {
		return 0, err
	}

	if sigma <= 0 {
		return 0, &Error{Distribution: "lognormal", Message: "sigma must be > 0"}
	}

	return distuv.LogNormal{Mu: mu, Sigma: sigma, Src: s.src}.Rand(), nil
}

func (s *Sampler) triangular(params map[string]float64) (float64, error) {
	left, err := param("triangular", params, "left", "min")
	if err != nil {
		return 0, err
	}

	mode, err := param("triangular", params, "mode", "moda")
	if err != nil {
		return 0, err
	}

	right, err := param("triangular", params, "right", "max")
	if err != nil {
		return 0, err
	}

	if left >= right {
		return 0, &Error{Distribution: "triangular", Message: "left must be < right"}
	}

	if mode < left || mode > right {
		return 0, &Error{Distribution: "triangular", Message: "mode must satisfy left <= mode <= right"}
	}

	return distuv.NewTriangle(left, right, mode, s.src).Rand(), nil
}

func (s *Sampler) binomial(params map[string]float64) (float64, error) {
	n, err := param("binomial", params, "n")
	if err != nil {
		return 0, err
	}

	p, err := param("binomial", params, "p")
	if err != nil {
		return 0, err
	}

	if n <= 0 || n != math.Trunc(n) {
		return 0, &Error{Distribution: "binomial", Message: "n must be a positive integer"}
	}

	if p < 0 || p > 1 {
		return 0, &Error{Distribution: "binomial", Message: "p must be in [0, 1]"}
	}

	return distuv.Binomial{N: n, P: p, Src: s.src}.Rand(), nil
}

// Info describes a distribution for display purposes.
type Info struct {
	Nombre      string   `json:"nombre"`
	Parametros  []string `json:"parametros"`
	Descripcion string   `json:"descripcion"`
}

var infos = map[string]Info{
	"normal":      {Nombre: "Normal (Gaussiana)", Parametros: []string{"media", "std"}, Descripcion: "Symmetric bell curve"},
	"uniform":     {Nombre: "Uniforme", Parametros: []string{"min", "max"}, Descripcion: "Constant probability on [min, max]"},
	"exponential": {Nombre: "Exponencial", Parametros: []string{"lambda"}, Descripcion: "Time between events"},
	"lognormal":   {Nombre: "Lognormal", Parametros: []string{"mu", "sigma"}, Descripcion: "Log of the variable is normal"},
	"triangular":  {Nombre: "Triangular", Parametros: []string{"left", "mode", "right"}, Descripcion: "Piecewise linear around the mode"},
	"binomial":    {Nombre: "Binomial", Parametros: []string{"n", "p"}, Descripcion: "Successes out of n trials"},
}

// DistributionInfo returns display metadata for a tag, and whether it exists.
func DistributionInfo(tag string) (Info, bool) {
	info, ok := infos[strings.ToLower(tag)]
	return info, ok
}

// Tags returns the supported tags in sorted order.
func Tags() []string {
	tags := make([]string, 0, len(infos))
	for tag := range infos {
		tags = append(tags, tag)
	}

	sort.Strings(tags)

	return tags
}

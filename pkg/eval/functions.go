package eval

import (
	"fmt"
	"math"
)

// function is an entry of the fixed callable table. maxArgs of -1 means
// variadic.
type function struct {
	minArgs int
	maxArgs int
	call    func(args []float64) (float64, error)
}

func unary(name string, f func(float64) float64) function {
	return function{
		minArgs: 1,
		maxArgs: 1,
		call: func(args []float64) (float64, error) {
			return f(args[0]), nil
		},
	}
}

func checkedUnary(name string, domain func(float64) bool, f func(float64) float64) function {
	return function{
		minArgs: 1,
		maxArgs: 1,
		call: func(args []float64) (float64, error) {
			if !domain(args[0]) {
				return 0, &ArithmeticError{Message: fmt.Sprintf("%s: domain error for argument %v", name, args[0])}
			}

			return f(args[0]), nil
		},
	}
}

// functions is the fixed table of callable names. Anything outside it is
// rejected.
var functions = map[string]function{
	"abs": unary("abs", math.Abs),
	"round": {
		minArgs: 1,
		maxArgs: 2,
		call: func(args []float64) (float64, error) {
			if len(args) == 1 {
				return math.RoundToEven(args[0]), nil
			}

			shift := math.Pow(10, math.Trunc(args[1]))

			return math.RoundToEven(args[0]*shift) / shift, nil
		},
	},
	"min": {
		minArgs: 1,
		maxArgs: -1,
		call: func(args []float64) (float64, error) {
			m := args[0]
			for _, a := range args[1:] {
				m = math.Min(m, a)
			}

			return m, nil
		},
	},
	"max": {
		minArgs: 1,
		maxArgs: -1,
		call: func(args []float64) (float64, error) {
			m := args[0]
			for _, a := range args[1:] {
				m = math.Max(m, a)
			}

			return m, nil
		},
	},
	"sum": {
		minArgs: 1,
		maxArgs: -1,
		call: func(args []float64) (float64, error) {
			var total float64
			for _, a := range args {
				total += a
			}

			return total, nil
		},
	},
	"sqrt": checkedUnary("sqrt", func(x float64) bool { return x >= 0 }, math.Sqrt),
	"pow": {
		minArgs: 2,
		maxArgs: 2,
		call: func(args []float64) (float64, error) {
			return power(args[0], args[1])
		},
	},
	"exp": unary("exp", math.Exp),
	"log": {
		minArgs: 1,
		maxArgs: 2,
		call: func(args []float64) (float64, error) {
			if args[0] <= 0 {
				return 0, &ArithmeticError{Message: fmt.Sprintf("log: domain error for argument %v", args[0])}
			}

			if len(args) == 1 {
				return math.Log(args[0]), nil
			}

			if args[1] <= 0 || args[1] == 1 {
				return 0, &ArithmeticError{Message: fmt.Sprintf("log: invalid base %v", args[1])}
			}

			return math.Log(args[0]) / math.Log(args[1]), nil
		},
	},
	"log10":   checkedUnary("log10", func(x float64) bool { return x > 0 }, math.Log10),
	"log2":    checkedUnary("log2", func(x float64) bool { return x > 0 }, math.Log2),
	"sin":     unary("sin", math.Sin),
	"cos":     unary("cos", math.Cos),
	"tan":     unary("tan", math.Tan),
	"asin":    checkedUnary("asin", func(x float64) bool { return x >= -1 && x <= 1 }, math.Asin),
	"acos":    checkedUnary("acos", func(x float64) bool { return x >= -1 && x <= 1 }, math.Acos),
	"atan":    unary("atan", math.Atan),
	"atan2":   {minArgs: 2, maxArgs: 2, call: func(args []float64) (float64, error) { return math.Atan2(args[0], args[1]), nil }},
	"sinh":    unary("sinh", math.Sinh),
	"cosh":    unary("cosh", math.Cosh),
	"tanh":    unary("tanh", math.Tanh),
	"ceil":    unary("ceil", math.Ceil),
	"floor":   unary("floor", math.Floor),
	"trunc":   unary("trunc", math.Trunc),
	"degrees": unary("degrees", func(x float64) float64 { return x * 180 / math.Pi }),
	"radians": unary("radians", func(x float64) float64 { return x * math.Pi / 180 }),
}

// constants is the fixed table of resolvable names beyond the per-call
// bindings.
var constants = map[string]float64{
	"pi":  math.Pi,
	"e":   math.E,
	"tau": 2 * math.Pi,
	"inf": math.Inf(1),
	"nan": math.NaN(),
}

// power applies Python semantics to ** and pow(): 0 to a negative power and a
// negative base to a fractional power are domain errors, not NaN/Inf.
func power(base, exponent float64) (float64, error) {
	if base == 0 && exponent < 0 {
		return 0, &ArithmeticError{Message: "0 cannot be raised to a negative power"}
	}

	if base < 0 && exponent != math.Trunc(exponent) {
		return 0, &ArithmeticError{Message: "negative base with fractional exponent"}
	}

	return math.Pow(base, exponent), nil
}

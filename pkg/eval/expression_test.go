package eval_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varpsim/varp/pkg/eval"
)

func evaluate(t *testing.T, src string, vars map[string]float64) float64 {
	t.Helper()

	expr, err := eval.Compile(src)
	require.NoError(t, err, "compiling %q", src)

	v, err := expr.Evaluate(vars)
	require.NoError(t, err, "evaluating %q", src)

	return v
}

func TestExpression_Arithmetic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		src  string
		vars map[string]float64
		want float64
	}{
		{"x + y", map[string]float64{"x": 2, "y": 3}, 5},
		{"x**2 + y**2", map[string]float64{"x": 3, "y": 4}, 25},
		{"sqrt(x)", map[string]float64{"x": 16}, 4},
		{"2 + 3 * 4", nil, 14},
		{"(2 + 3) * 4", nil, 20},
		{"-2**2", nil, -4},
		{"2**-2", nil, 0.25},
		{"2**3**2", nil, 512},
		{"7 // 2", nil, 3},
		{"-7 // 2", nil, -4},
		{"7 % 3", nil, 1},
		{"-7 % 3", nil, 2},
		{"7 % -3", nil, -2},
		{"1.5e2 + 1", nil, 151},
		{"abs(-3.5)", nil, 3.5},
		{"min(3, 1, 2)", nil, 1},
		{"max(3, 1, 2)", nil, 3},
		{"sum(1, 2, 3)", nil, 6},
		{"round(2.5)", nil, 2},
		{"round(3.5)", nil, 4},
		{"round(3.14159, 2)", nil, 3.14},
		{"pow(2, 10)", nil, 1024},
		{"log(e)", nil, 1},
		{"log(8, 2)", nil, 3},
		{"atan2(0, 1)", nil, 0},
		{"degrees(pi)", nil, 180},
		{"radians(180)", nil, math.Pi},
		{"floor(2.9) + ceil(2.1)", nil, 5},
		{"trunc(-2.7)", nil, -2},
	}

	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			t.Parallel()

			got := evaluate(t, tc.src, tc.vars)
			assert.InEpsilon(t, tc.want+1, got+1, 1e-9, "result of %q", tc.src)
		})
	}
}

func TestExpression_Comparisons(t *testing.T) {
	t.Parallel()

	tests := []struct {
		src  string
		want float64
	}{
		{"1 < 2", 1},
		{"2 < 1", 0},
		{"1 < 2 < 3", 1},
		{"1 < 3 < 2", 0},
		{"2 == 2", 1},
		{"2 != 2", 0},
		{"2 >= 2", 1},
		{"3 <= 2", 0},
	}

	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, evaluate(t, tc.src, nil))
		})
	}
}

func TestExpression_Conditional(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 5.0, evaluate(t, "x if x > 0 else -x", map[string]float64{"x": -5}))
	assert.Equal(t, 7.0, evaluate(t, "x if x > 0 else -x", map[string]float64{"x": 7}))
	assert.Equal(t, 2.0, evaluate(t, "1 if 0 else 2 if 1 else 3", nil))
}

func TestExpression_Constants(t *testing.T) {
	t.Parallel()

	assert.InEpsilon(t, math.Pi, evaluate(t, "pi", nil), 1e-12)
	assert.InEpsilon(t, math.E, evaluate(t, "e", nil), 1e-12)
	assert.InEpsilon(t, 2*math.Pi, evaluate(t, "tau", nil), 1e-12)
	assert.True(t, math.IsInf(evaluate(t, "inf", nil), 1))
	assert.True(t, math.IsNaN(evaluate(t, "nan", nil)))
}

func TestExpression_BindingsShadowNothing(t *testing.T) {
	t.Parallel()

	// Constants take precedence over a binding with the same name.
	assert.InEpsilon(t, math.Pi, evaluate(t, "pi", map[string]float64{"pi": 3}), 1e-12)
}

func TestExpression_RejectedConstructs(t *testing.T) {
	t.Parallel()

	sources := []string{
		"",
		"x.y",
		"f(x=1)",
		"[1, 2]",
		"{'a': 1}",
		"lambda: 1",
		"x = 1",
		"__import__('os')",
		"open('/etc/passwd')",
		"x and y",
		"'text'",
		"1; 2",
	}

	for _, src := range sources {
		t.Run(src, func(t *testing.T) {
			t.Parallel()

			_, err := eval.Compile(src)

			var exprErr *eval.ExpressionError
			require.ErrorAs(t, err, &exprErr, "expected %q to be rejected at compile time", src)
		})
	}
}

func TestExpression_UnknownNameIsTerminal(t *testing.T) {
	t.Parallel()

	expr, err := eval.Compile("x + z")
	require.NoError(t, err)

	_, err = expr.Evaluate(map[string]float64{"x": 1})

	var exprErr *eval.ExpressionError
	require.ErrorAs(t, err, &exprErr)

	kind, terminal := eval.Classify(err)
	assert.Equal(t, "ExpressionError", kind)
	assert.True(t, terminal)
}

func TestExpression_NumericErrorsAreRecoverable(t *testing.T) {
	t.Parallel()

	sources := []string{
		"1 / x",
		"1 // x",
		"1 % x",
		"sqrt(0 - 1)",
		"log(x)",
		"asin(2)",
		"0**-1",
	}

	for _, src := range sources {
		t.Run(src, func(t *testing.T) {
			t.Parallel()

			expr, err := eval.Compile(src)
			require.NoError(t, err)

			_, err = expr.Evaluate(map[string]float64{"x": 0})

			var arithErr *eval.ArithmeticError
			require.ErrorAs(t, err, &arithErr, "expected %q to fail arithmetically", src)

			kind, terminal := eval.Classify(err)
			assert.Equal(t, "ArithmeticError", kind)
			assert.False(t, terminal)
		})
	}
}

func TestExpression_ArityChecked(t *testing.T) {
	t.Parallel()

	_, err := eval.Compile("sqrt(1, 2)")

	var exprErr *eval.ExpressionError
	require.ErrorAs(t, err, &exprErr)

	_, err = eval.Compile("atan2(1)")
	require.ErrorAs(t, err, &exprErr)
}

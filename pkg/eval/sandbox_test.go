package eval_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varpsim/varp/pkg/eval"
)

func TestSandbox_SimpleAssignment(t *testing.T) {
	t.Parallel()

	sandbox, err := eval.CompileCode("resultado = x + y", []string{"x", "y"}, time.Second)
	require.NoError(t, err)

	v, err := sandbox.Execute(map[string]float64{"x": 2, "y": 3})
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)
}

func TestSandbox_MultiStatement(t *testing.T) {
	t.Parallel()

	code := "suma = x + y\nproducto = x * y\nresultado = suma * producto\n"

	sandbox, err := eval.CompileCode(code, []string{"x", "y"}, time.Second)
	require.NoError(t, err)

	v, err := sandbox.Execute(map[string]float64{"x": 2, "y": 3})
	require.NoError(t, err)
	assert.Equal(t, 30.0, v)
}

func TestSandbox_LoopsAndConditionals(t *testing.T) {
	t.Parallel()

	code := `total = 0.0
for i in range(10):
    if i % 2 == 0:
        total = total + x
resultado = total
`

	sandbox, err := eval.CompileCode(code, []string{"x"}, time.Second)
	require.NoError(t, err)

	v, err := sandbox.Execute(map[string]float64{"x": 2})
	require.NoError(t, err)
	assert.Equal(t, 10.0, v)
}

func TestSandbox_MathModule(t *testing.T) {
	t.Parallel()

	sandbox, err := eval.CompileCode("resultado = math.sqrt(x) + sqrt(x)", []string{"x"}, time.Second)
	require.NoError(t, err)

	v, err := sandbox.Execute(map[string]float64{"x": 16})
	require.NoError(t, err)
	assert.Equal(t, 8.0, v)
}

func TestSandbox_ReusableAcrossScenarios(t *testing.T) {
	t.Parallel()

	sandbox, err := eval.CompileCode("resultado = x * 2", []string{"x"}, time.Second)
	require.NoError(t, err)

	for i := 1.0; i <= 5; i++ {
		v, err := sandbox.Execute(map[string]float64{"x": i})
		require.NoError(t, err)
		assert.Equal(t, i*2, v)
	}
}

func TestSandbox_TimeoutOnInfiniteLoop(t *testing.T) {
	t.Parallel()

	code := "while True:\n    pass\nresultado = 1\n"

	sandbox, err := eval.CompileCode(code, nil, 200*time.Millisecond)
	require.NoError(t, err)

	start := time.Now()

	_, err = sandbox.Execute(nil)
	elapsed := time.Since(start)

	var timeoutErr *eval.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)

	assert.Less(t, elapsed, 2*time.Second, "timeout was not enforced promptly")

	kind, terminal := eval.Classify(err)
	assert.Equal(t, "TimeoutError", kind)
	assert.True(t, terminal)
}

func TestSandbox_ImportIsRejectedAtCompile(t *testing.T) {
	t.Parallel()

	_, err := eval.CompileCode("import os\nresultado = 1\n", nil, time.Second)

	var secErr *eval.SecurityError
	require.ErrorAs(t, err, &secErr)

	kind, terminal := eval.Classify(err)
	assert.Equal(t, "SecurityError", kind)
	assert.True(t, terminal)
}

func TestSandbox_LoadOutsideWhitelist(t *testing.T) {
	t.Parallel()

	code := "load(\"os\", \"listdir\")\nresultado = 1\n"

	sandbox, err := eval.CompileCode(code, nil, time.Second)
	if err != nil {
		// Depending on resolve semantics the load may already fail statically;
		// either way it must be a security rejection.
		var secErr *eval.SecurityError
		require.ErrorAs(t, err, &secErr)

		return
	}

	_, err = sandbox.Execute(nil)

	var secErr *eval.SecurityError
	require.ErrorAs(t, err, &secErr)
}

func TestSandbox_LoadMathWhitelisted(t *testing.T) {
	t.Parallel()

	code := "load(\"math\", \"sqrt\")\nresultado = sqrt(9.0)\n"

	sandbox, err := eval.CompileCode(code, nil, time.Second)
	require.NoError(t, err)

	v, err := sandbox.Execute(nil)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
}

func TestSandbox_UndefinedNameRejectedAtCompile(t *testing.T) {
	t.Parallel()

	_, err := eval.CompileCode("resultado = os_listdir()", nil, time.Second)

	var secErr *eval.SecurityError
	require.ErrorAs(t, err, &secErr)
}

func TestSandbox_MissingResult(t *testing.T) {
	t.Parallel()

	sandbox, err := eval.CompileCode("valor = x * 2", []string{"x"}, time.Second)
	require.NoError(t, err)

	_, err = sandbox.Execute(map[string]float64{"x": 1})

	var missingErr *eval.MissingResultError
	require.ErrorAs(t, err, &missingErr)

	kind, terminal := eval.Classify(err)
	assert.Equal(t, "MissingResultError", kind)
	assert.True(t, terminal)
}

func TestSandbox_DivisionByZeroIsRecoverable(t *testing.T) {
	t.Parallel()

	sandbox, err := eval.CompileCode("resultado = 1 / x", []string{"x"}, time.Second)
	require.NoError(t, err)

	_, err = sandbox.Execute(map[string]float64{"x": 0})

	var arithErr *eval.ArithmeticError
	require.ErrorAs(t, err, &arithErr)

	kind, terminal := eval.Classify(err)
	assert.Equal(t, "ArithmeticError", kind)
	assert.False(t, terminal)

	// The same payload succeeds with different bindings.
	v, err := sandbox.Execute(map[string]float64{"x": 4})
	require.NoError(t, err)
	assert.Equal(t, 0.25, v)
}

func TestSandbox_NonNumericResult(t *testing.T) {
	t.Parallel()

	sandbox, err := eval.CompileCode("resultado = \"texto\"", nil, time.Second)
	require.NoError(t, err)

	_, err = sandbox.Execute(nil)

	var exprErr *eval.ExpressionError
	require.ErrorAs(t, err, &exprErr)
}

func TestValidateCode(t *testing.T) {
	t.Parallel()

	require.NoError(t, eval.ValidateCode("resultado = 1"))
	require.NoError(t, eval.ValidateCode("a, resultado = 1, 2"))

	err := eval.ValidateCode("valor = 1")

	var missingErr *eval.MissingResultError
	require.ErrorAs(t, err, &missingErr)

	err = eval.ValidateCode("resultado = = 1")

	var secErr *eval.SecurityError
	require.ErrorAs(t, err, &secErr)
}

package model_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varpsim/varp/pkg/distribution"
	"github.com/varpsim/varp/pkg/model"
)

func writeModel(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "modelo.ini")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

const expressionModel = `# Example model
[METADATA]
nombre = suma_normal
version = 1.0
descripcion = Sum of two normal variables
autor = equipo
fecha_creacion = 2024-01-15

[VARIABLES]
x, float, normal, media=0, std=1
y, float, normal, media=0, std=1
n, int, binomial, n=10, p=0.5

[FUNCION]
tipo = expresion
expresion = x + y

[SIMULACION]
numero_escenarios = 10000
semilla_aleatoria = 42
`

func TestParseFile_Expression(t *testing.T) {
	t.Parallel()

	modelo, err := model.ParseFile(writeModel(t, expressionModel))
	require.NoError(t, err)

	assert.Equal(t, "suma_normal", modelo.Metadata.Nombre)
	assert.Equal(t, "1.0", modelo.Version)
	assert.Equal(t, "Sum of two normal variables", modelo.Metadata.Descripcion)
	assert.Equal(t, "equipo", modelo.Metadata.Autor)

	require.Len(t, modelo.Variables, 3)
	assert.Equal(t, "x", modelo.Variables[0].Nombre)
	assert.Equal(t, distribution.KindFloat, modelo.Variables[0].Tipo)
	assert.Equal(t, "normal", modelo.Variables[0].Distribucion)
	assert.Equal(t, map[string]float64{"media": 0, "std": 1}, modelo.Variables[0].Parametros)

	assert.Equal(t, distribution.KindInt, modelo.Variables[2].Tipo)
	assert.Equal(t, "binomial", modelo.Variables[2].Distribucion)

	assert.Equal(t, model.TipoExpresion, modelo.Funcion.Tipo)
	assert.Equal(t, "x + y", modelo.Funcion.Expresion)

	assert.Equal(t, int64(10000), modelo.Simulacion.NumeroEscenarios)
	require.NotNil(t, modelo.Simulacion.SemillaAleatoria)
	assert.Equal(t, int64(42), *modelo.Simulacion.SemillaAleatoria)

	assert.Equal(t, []string{"x", "y", "n"}, modelo.VariableNames())
}

const codeModel = `[METADATA]
nombre = producto
version = 2.0

[VARIABLES]
x, float, uniform, min=0, max=1
y, float, uniform, min=0, max=1

[FUNCION]
tipo = codigo
codigo =
    suma = x + y
    producto = x * y
    resultado = suma * producto

[SIMULACION]
numero_escenarios = 500
`

func TestParseFile_Code(t *testing.T) {
	t.Parallel()

	modelo, err := model.ParseFile(writeModel(t, codeModel))
	require.NoError(t, err)

	assert.Equal(t, model.TipoCodigo, modelo.Funcion.Tipo)
	assert.Contains(t, modelo.Funcion.Codigo, "resultado = suma * producto")
	assert.Empty(t, modelo.Funcion.Expresion)
	assert.Nil(t, modelo.Simulacion.SemillaAleatoria)
}

func TestParseFile_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := model.ParseFile(filepath.Join(t.TempDir(), "missing.ini"))

	var perr *model.ParseError
	require.ErrorAs(t, err, &perr)
}

func TestParseFile_MissingSection(t *testing.T) {
	t.Parallel()

	content := `[METADATA]
nombre = incompleto
version = 1.0

[VARIABLES]
x, float, normal, media=0, std=1

[SIMULACION]
numero_escenarios = 10
`

	_, err := model.ParseFile(writeModel(t, content))

	var perr *model.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, err.Error(), "FUNCION")
}

func TestParseFile_Validation(t *testing.T) {
	t.Parallel()

	base := func(variables, funcion, simulacion string) string {
		return "[METADATA]\nnombre = m\nversion = 1\n\n[VARIABLES]\n" + variables +
			"\n[FUNCION]\n" + funcion + "\n[SIMULACION]\n" + simulacion
	}

	tests := []struct {
		name    string
		content string
	}{
		{
			"no variables",
			base("# none\n", "tipo = expresion\nexpresion = 1\n", "numero_escenarios = 10\n"),
		},
		{
			"bad kind",
			base("x, decimal, normal, media=0, std=1\n", "tipo = expresion\nexpresion = x\n", "numero_escenarios = 10\n"),
		},
		{
			"bad distribution",
			base("x, float, cauchy, loc=0\n", "tipo = expresion\nexpresion = x\n", "numero_escenarios = 10\n"),
		},
		{
			"non numeric parameter",
			base("x, float, normal, media=abc, std=1\n", "tipo = expresion\nexpresion = x\n", "numero_escenarios = 10\n"),
		},
		{
			"bad function tipo",
			base("x, float, normal, media=0, std=1\n", "tipo = script\n", "numero_escenarios = 10\n"),
		},
		{
			"invalid expression",
			base("x, float, normal, media=0, std=1\n", "tipo = expresion\nexpresion = x +\n", "numero_escenarios = 10\n"),
		},
		{
			"zero scenarios",
			base("x, float, normal, media=0, std=1\n", "tipo = expresion\nexpresion = x\n", "numero_escenarios = 0\n"),
		},
		{
			"code without resultado",
			base("x, float, normal, media=0, std=1\n", "tipo = codigo\ncodigo =\n    valor = x\n", "numero_escenarios = 10\n"),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := model.ParseFile(writeModel(t, tc.content))

			var perr *model.ParseError
			require.ErrorAs(t, err, &perr, "expected parse error")
		})
	}
}

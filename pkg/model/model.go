// Package model holds the wire entities of the simulation fabric and the
// parser for model definition files.
package model

import (
	"github.com/varpsim/varp/pkg/distribution"
)

// Function payload kinds.
const (
	TipoExpresion = "expresion"
	TipoCodigo    = "codigo"
)

// Variable is one stochastic variable of the model. Immutable after parse.
type Variable struct {
	Nombre       string             `json:"nombre"`
	Tipo         distribution.Kind  `json:"tipo"`
	Distribucion string             `json:"distribucion"`
	Parametros   map[string]float64 `json:"parametros"`
}

// Metadata describes the model.
type Metadata struct {
	Nombre        string `json:"nombre"`
	Descripcion   string `json:"descripcion"`
	Autor         string `json:"autor"`
	FechaCreacion string `json:"fecha_creacion"`
}

// Funcion is the payload evaluated against every scenario: either a single
// arithmetic expression or a restricted code block assigning 'resultado'.
type Funcion struct {
	Tipo      string `json:"tipo"`
	Expresion string `json:"expresion,omitempty"`
	Codigo    string `json:"codigo,omitempty"`
}

// Simulacion carries the run parameters.
type Simulacion struct {
	NumeroEscenarios int64  `json:"numero_escenarios"`
	SemillaAleatoria *int64 `json:"semilla_aleatoria"`
}

// Modelo is the complete model as published to the broker. The producer fills
// ModeloID and Timestamp at publish time.
type Modelo struct {
	ModeloID   string     `json:"modelo_id"`
	Version    string     `json:"version"`
	Timestamp  float64    `json:"timestamp"`
	Metadata   Metadata   `json:"metadata"`
	Variables  []Variable `json:"variables"`
	Funcion    Funcion    `json:"funcion"`
	Simulacion Simulacion `json:"simulacion"`
}

// VariableNames returns the names of the model variables in declaration order.
func (m *Modelo) VariableNames() []string {
	names := make([]string, len(m.Variables))
	for i, v := range m.Variables {
		names[i] = v.Nombre
	}

	return names
}

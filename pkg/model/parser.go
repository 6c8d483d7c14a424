package model

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/varpsim/varp/pkg/distribution"
	"github.com/varpsim/varp/pkg/eval"
	"gopkg.in/ini.v1"
)

// ParseError records an error reading or validating a model file.
type ParseError struct {
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Err != nil && strings.TrimSpace(e.Message) == "" {
		return e.Err.Error()
	}

	return e.Message
}

// Unwrap implements the error interface introduced in Go 1.13 to unwrap the internal error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

var requiredSections = []string{"METADATA", "VARIABLES", "FUNCION", "SIMULACION"}

// ParseFile reads and validates a model definition file:
//
//	[METADATA]   nombre, version (+ optional descripcion, autor, fecha_creacion)
//	[VARIABLES]  one line per variable: name, kind, distribution, param=value, ...
//	[FUNCION]    tipo = expresion|codigo, plus the payload
//	[SIMULACION] numero_escenarios, optional semilla_aleatoria
func ParseFile(path string) (*Modelo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("file not found: %s", path), Err: err}
	}

	cfg, err := ini.LoadSources(ini.LoadOptions{
		AllowPythonMultilineValues: true,
		SpaceBeforeInlineComment:   true,
		SkipUnrecognizableLines:    true,
	}, data)
	if err != nil {
		return nil, &ParseError{Message: "error reading model file", Err: err}
	}

	if err := validateSections(cfg); err != nil {
		return nil, err
	}

	modelo := &Modelo{}

	if err := parseMetadata(cfg, modelo); err != nil {
		return nil, err
	}

	variables, err := parseVariables(data)
	if err != nil {
		return nil, err
	}

	modelo.Variables = variables

	if err := parseFuncion(cfg, modelo); err != nil {
		return nil, err
	}

	if err := parseSimulacion(cfg, modelo); err != nil {
		return nil, err
	}

	return modelo, nil
}

func validateSections(cfg *ini.File) error {
	existing := make(map[string]bool)
	for _, name := range cfg.SectionStrings() {
		existing[name] = true
	}

	var missing []string

	for _, name := range requiredSections {
		if !existing[name] {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return &ParseError{Message: fmt.Sprintf("missing sections in model file: %s", strings.Join(missing, ", "))}
	}

	return nil
}

func parseMetadata(cfg *ini.File, modelo *Modelo) error {
	section := cfg.Section("METADATA")

	nombre := strings.TrimSpace(section.Key("nombre").String())
	if nombre == "" {
		return &ParseError{Message: "required field missing in [METADATA]: nombre"}
	}

	version := strings.TrimSpace(section.Key("version").String())
	if version == "" {
		return &ParseError{Message: "required field missing in [METADATA]: version"}
	}

	modelo.Version = version
	modelo.Metadata = Metadata{
		Nombre:        nombre,
		Descripcion:   strings.TrimSpace(section.Key("descripcion").String()),
		Autor:         strings.TrimSpace(section.Key("autor").String()),
		FechaCreacion: strings.TrimSpace(section.Key("fecha_creacion").String()),
	}

	return nil
}

// parseVariables scans the raw [VARIABLES] lines: the free-form
// "name, kind, distribution, param=value, ..." syntax does not survive
// key/value splitting, so the section is read line by line.
func parseVariables(data []byte) ([]Variable, error) {
	var variables []Variable

	inSection := false

	for lineNum, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)

		if line == "[VARIABLES]" {
			inSection = true
			continue
		}

		if inSection && strings.HasPrefix(line, "[") {
			break
		}

		if !inSection || line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		variable, err := parseVariableLine(line)
		if err != nil {
			return nil, &ParseError{Message: fmt.Sprintf("error on line %d parsing variable: %v", lineNum+1, err)}
		}

		variables = append(variables, variable)
	}

	if len(variables) == 0 {
		return nil, &ParseError{Message: "no variables found in [VARIABLES]"}
	}

	return variables, nil
}

func parseVariableLine(line string) (Variable, error) {
	if idx := strings.IndexAny(line, "#;"); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}

	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	if len(parts) < 3 {
		return Variable{}, fmt.Errorf("invalid format, expected: name, kind, distribution, parameters...")
	}

	kind, err := distribution.ParseKind(parts[1])
	if err != nil {
		return Variable{}, err
	}

	tag := strings.ToLower(parts[2])
	if !distribution.IsSupported(tag) {
		return Variable{}, fmt.Errorf("distribution '%s' not supported, valid: %s",
			tag, strings.Join(distribution.Supported, ", "))
	}

	parametros := make(map[string]float64)

	for _, param := range parts[3:] {
		if param == "" {
			continue
		}

		name, value, found := strings.Cut(param, "=")
		if !found {
			return Variable{}, fmt.Errorf("invalid parameter %q, expected format: param=value", param)
		}

		name = strings.TrimSpace(name)

		f, err := parseFloat(strings.TrimSpace(value))
		if err != nil {
			return Variable{}, fmt.Errorf("parameter '%s' value is not numeric: %q", name, value)
		}

		parametros[name] = f
	}

	return Variable{
		Nombre:       parts[0],
		Tipo:         kind,
		Distribucion: tag,
		Parametros:   parametros,
	}, nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

func parseFuncion(cfg *ini.File, modelo *Modelo) error {
	section := cfg.Section("FUNCION")

	tipo := strings.ToLower(strings.TrimSpace(section.Key("tipo").String()))
	if tipo == "" {
		return &ParseError{Message: "required field 'tipo' missing in [FUNCION]"}
	}

	switch tipo {
	case TipoExpresion:
		expresion := strings.TrimSpace(section.Key("expresion").String())
		if expresion == "" {
			return &ParseError{Message: "field 'expresion' required when tipo=expresion"}
		}

		if _, err := eval.Compile(expresion); err != nil {
			return &ParseError{Message: "invalid expression in [FUNCION]", Err: err}
		}

		modelo.Funcion = Funcion{Tipo: TipoExpresion, Expresion: expresion}

	case TipoCodigo:
		codigo := dedent(section.Key("codigo").String())
		if strings.TrimSpace(codigo) == "" {
			return &ParseError{Message: "field 'codigo' required when tipo=codigo"}
		}

		if err := eval.ValidateCode(codigo); err != nil {
			return &ParseError{Message: "invalid code in [FUNCION]", Err: err}
		}

		modelo.Funcion = Funcion{Tipo: TipoCodigo, Codigo: codigo}

	default:
		return &ParseError{Message: fmt.Sprintf("invalid function tipo %q, valid: expresion, codigo", tipo)}
	}

	return nil
}

// dedent removes the indentation shared by every non-blank line, preserving
// relative indentation.
func dedent(code string) string {
	lines := strings.Split(code, "\n")

	minIndent := -1

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		indent := len(line) - len(strings.TrimLeft(line, " \t"))
		if minIndent < 0 || indent < minIndent {
			minIndent = indent
		}
	}

	if minIndent <= 0 {
		return strings.TrimSpace(code) + "\n"
	}

	out := make([]string, len(lines))

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			out[i] = ""
			continue
		}

		out[i] = line[minIndent:]
	}

	return strings.TrimSpace(strings.Join(out, "\n")) + "\n"
}

func parseSimulacion(cfg *ini.File, modelo *Modelo) error {
	section := cfg.Section("SIMULACION")

	if !section.HasKey("numero_escenarios") {
		return &ParseError{Message: "required field 'numero_escenarios' missing in [SIMULACION]"}
	}

	numero, err := section.Key("numero_escenarios").Int64()
	if err != nil {
		return &ParseError{Message: "'numero_escenarios' must be an integer", Err: err}
	}

	if numero <= 0 {
		return &ParseError{Message: fmt.Sprintf("'numero_escenarios' must be > 0, got: %d", numero)}
	}

	modelo.Simulacion.NumeroEscenarios = numero

	if section.HasKey("semilla_aleatoria") {
		semilla, err := section.Key("semilla_aleatoria").Int64()
		if err != nil {
			return &ParseError{Message: "'semilla_aleatoria' must be an integer", Err: err}
		}

		modelo.Simulacion.SemillaAleatoria = &semilla
	}

	return nil
}

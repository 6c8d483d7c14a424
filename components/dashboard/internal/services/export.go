package services

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/varpsim/varp/pkg/model"
)

type exportMetadata struct {
	FechaExportacion string        `json:"fecha_exportacion"`
	NumResultados    int           `json:"num_resultados"`
	Modelo           *model.Modelo `json:"modelo"`
}

type exportDocument struct {
	Metadata             exportMetadata      `json:"metadata"`
	Estadisticas         *Estadisticas       `json:"estadisticas"`
	TestsNormalidad      *TestsNormalidad    `json:"tests_normalidad"`
	Resultados           []float64           `json:"resultados"`
	ResultadosDetallados []model.Resultado   `json:"resultados_detallados"`
	Convergencia         []PuntoConvergencia `json:"convergencia"`
}

// ExportJSON produces the full export document: metadata, statistics,
// normality tests, both result windows and the convergence trace.
func (dm *DataManager) ExportJSON() ([]byte, error) {
	resultados := dm.Resultados()

	doc := exportDocument{
		Metadata: exportMetadata{
			FechaExportacion: time.Now().Format(time.RFC3339),
			NumResultados:    len(resultados),
			Modelo:           dm.Modelo(),
		},
		Estadisticas:         dm.Estadisticas(),
		TestsNormalidad:      dm.Normalidad(),
		Resultados:           resultados,
		ResultadosDetallados: dm.ResultadosRaw(),
		Convergencia:         dm.Convergencia(),
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}

	dm.logger.Infof("Results exported to JSON: %d results", len(resultados))

	return out, nil
}

// ExportResultadosCSV produces the per-result rows preceded by a commented
// statistics header.
func (dm *DataManager) ExportResultadosCSV() string {
	raw := dm.ResultadosRaw()
	est := dm.Estadisticas()

	var sb strings.Builder

	if est != nil {
		sb.WriteString("# Descriptive statistics\n")
		sb.WriteString(fmt.Sprintf("# n: %d\n", est.N))
		sb.WriteString(fmt.Sprintf("# media: %.6f\n", est.Media))
		sb.WriteString(fmt.Sprintf("# mediana: %.6f\n", est.Mediana))
		sb.WriteString(fmt.Sprintf("# desviacion_estandar: %.6f\n", est.DesviacionEstandar))
		sb.WriteString(fmt.Sprintf("# minimo: %.6f\n", est.Minimo))
		sb.WriteString(fmt.Sprintf("# maximo: %.6f\n", est.Maximo))
		sb.WriteString("#\n")
	}

	w := csv.NewWriter(&sb)

	_ = w.Write([]string{"escenario_id", "resultado", "consumer_id", "tiempo_ejecucion"})

	for _, r := range raw {
		_ = w.Write([]string{
			strconv.FormatInt(r.EscenarioID, 10),
			strconv.FormatFloat(r.Resultado, 'f', 6, 64),
			r.ConsumerID,
			strconv.FormatFloat(r.TiempoEjecucion, 'f', 6, 64),
		})
	}

	w.Flush()

	dm.logger.Infof("Results exported to CSV: %d rows", len(raw))

	return sb.String()
}

// ExportEstadisticasCSV produces statistic,value rows.
func (dm *DataManager) ExportEstadisticasCSV() string {
	est := dm.Estadisticas()

	var sb strings.Builder

	w := csv.NewWriter(&sb)

	_ = w.Write([]string{"estadistica", "valor"})

	if est == nil {
		w.Flush()

		return sb.String() + "# no data available\n"
	}

	rows := []struct {
		name  string
		value float64
	}{
		{"n", float64(est.N)},
		{"media", est.Media},
		{"mediana", est.Mediana},
		{"varianza", est.Varianza},
		{"desviacion_estandar", est.DesviacionEstandar},
		{"minimo", est.Minimo},
		{"maximo", est.Maximo},
		{"percentil_25", est.Percentil25},
		{"percentil_75", est.Percentil75},
		{"percentil_95", est.Percentil95},
		{"percentil_99", est.Percentil99},
		{"ic_95_inferior", est.IntervaloConfianza95.Inferior},
		{"ic_95_superior", est.IntervaloConfianza95.Superior},
	}

	for _, row := range rows {
		_ = w.Write([]string{row.name, strconv.FormatFloat(row.value, 'f', 6, 64)})
	}

	w.Flush()

	return sb.String()
}

// ExportConvergenciaCSV produces n,media,varianza,timestamp rows for the
// convergence trace.
func (dm *DataManager) ExportConvergenciaCSV() string {
	trace := dm.Convergencia()

	var sb strings.Builder

	w := csv.NewWriter(&sb)

	_ = w.Write([]string{"n", "media", "varianza", "timestamp"})

	for _, p := range trace {
		ts := time.Unix(0, int64(p.Timestamp*1e9)).UTC().Format(time.RFC3339Nano)

		_ = w.Write([]string{
			strconv.Itoa(p.N),
			strconv.FormatFloat(p.Media, 'f', 6, 64),
			strconv.FormatFloat(p.Varianza, 'f', 6, 64),
			ts,
		})
	}

	w.Flush()

	dm.logger.Infof("Convergence exported to CSV: %d points", len(trace))

	return sb.String()
}

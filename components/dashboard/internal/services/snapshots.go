package services

import (
	"time"

	"github.com/varpsim/varp/pkg/model"
)

// Thread-safe read access. Every accessor returns a copy detached from the
// aggregator's mutable state.

// StatsProductor returns the latest producer telemetry, if any.
func (dm *DataManager) StatsProductor() *model.StatsProductor {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.statsProductor == nil {
		return nil
	}

	stats := *dm.statsProductor

	return &stats
}

// HistoricoProductor returns the producer telemetry history, oldest first.
func (dm *DataManager) HistoricoProductor() []model.StatsProductor {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	return dm.historicoProductor.Values()
}

// StatsConsumidores returns the latest telemetry per consumer.
func (dm *DataManager) StatsConsumidores() map[string]model.StatsConsumidor {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	out := make(map[string]model.StatsConsumidor, len(dm.statsConsumidores))

	for id, stats := range dm.statsConsumidores {
		if stats.ErroresPorTipo != nil {
			errores := make(map[string]int64, len(stats.ErroresPorTipo))
			for kind, n := range stats.ErroresPorTipo {
				errores[kind] = n
			}

			stats.ErroresPorTipo = errores
		}

		out[id] = stats
	}

	return out
}

// HistoricoConsumidores returns the telemetry history per consumer.
func (dm *DataManager) HistoricoConsumidores() map[string][]model.StatsConsumidor {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	out := make(map[string][]model.StatsConsumidor, len(dm.historicoConsumidores))

	for id, historico := range dm.historicoConsumidores {
		values := historico.Values()

		for i := range values {
			if values[i].ErroresPorTipo != nil {
				errores := make(map[string]int64, len(values[i].ErroresPorTipo))
				for kind, n := range values[i].ErroresPorTipo {
					errores[kind] = n
				}

				values[i].ErroresPorTipo = errores
			}
		}

		out[id] = values
	}

	return out
}

// Resultados returns the rolling window of result values, oldest first.
func (dm *DataManager) Resultados() []float64 {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	return dm.resultados.Values()
}

// ResultadosRaw returns the rolling window of complete result messages.
func (dm *DataManager) ResultadosRaw() []model.Resultado {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	return dm.resultadosRaw.Values()
}

// Estadisticas returns the current descriptive statistics, if any.
func (dm *DataManager) Estadisticas() *Estadisticas {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.estadisticas == nil {
		return nil
	}

	est := *dm.estadisticas

	return &est
}

// Convergencia returns the convergence trace, oldest first.
func (dm *DataManager) Convergencia() []PuntoConvergencia {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	return dm.convergencia.Values()
}

// Normalidad returns the latest normality test results, if any.
func (dm *DataManager) Normalidad() *TestsNormalidad {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.normalidad == nil {
		return nil
	}

	tests := *dm.normalidad

	if dm.normalidad.ShapiroWilk != nil {
		sw := *dm.normalidad.ShapiroWilk
		tests.ShapiroWilk = &sw
	}

	return &tests
}

// QueueSizes returns the last sampled depth of the principal queues.
func (dm *DataManager) QueueSizes() map[string]int {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	out := make(map[string]int, len(dm.queueSizes))

	for queue, depth := range dm.queueSizes {
		out[queue] = depth
	}

	return out
}

// Modelo returns the model snapshot, if known.
func (dm *DataManager) Modelo() *model.Modelo {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.modelo == nil {
		return nil
	}

	modelo := *dm.modelo
	modelo.Variables = append([]model.Variable(nil), dm.modelo.Variables...)

	for i, v := range modelo.Variables {
		if v.Parametros != nil {
			parametros := make(map[string]float64, len(v.Parametros))
			for k, x := range v.Parametros {
				parametros[k] = x
			}

			modelo.Variables[i].Parametros = parametros
		}
	}

	if semilla := dm.modelo.Simulacion.SemillaAleatoria; semilla != nil {
		s := *semilla
		modelo.Simulacion.SemillaAleatoria = &s
	}

	return &modelo
}

// LastUpdate returns the end time of the last completed poll cycle.
func (dm *DataManager) LastUpdate() time.Time {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	return dm.lastUpdate
}

// Resumen is the full dashboard snapshot served to the front end.
type Resumen struct {
	Productor        *model.StatsProductor            `json:"productor"`
	Consumidores     map[string]model.StatsConsumidor `json:"consumidores"`
	NumConsumidores  int                              `json:"num_consumidores"`
	TotalProcesados  int64                            `json:"total_procesados"`
	TasaConsumidores float64                          `json:"tasa_total_consumidores"`
	Modelo           *model.Modelo                    `json:"modelo"`
	Colas            map[string]int                   `json:"colas"`
	Estadisticas     *Estadisticas                    `json:"estadisticas"`
	NumResultados    int                              `json:"num_resultados"`
	LastUpdate       time.Time                        `json:"last_update"`
}

// Snapshot builds the aggregate summary of the system state.
func (dm *DataManager) Snapshot() Resumen {
	consumidores := dm.StatsConsumidores()

	var (
		totalProcesados int64
		tasaTotal       float64
	)

	for _, c := range consumidores {
		totalProcesados += c.EscenariosProcesados
		tasaTotal += c.TasaProcesamiento
	}

	dm.mu.Lock()
	numResultados := dm.resultados.Len()
	dm.mu.Unlock()

	return Resumen{
		Productor:        dm.StatsProductor(),
		Consumidores:     consumidores,
		NumConsumidores:  len(consumidores),
		TotalProcesados:  totalProcesados,
		TasaConsumidores: tasaTotal,
		Modelo:           dm.Modelo(),
		Colas:            dm.QueueSizes(),
		Estadisticas:     dm.Estadisticas(),
		NumResultados:    numResultados,
		LastUpdate:       dm.LastUpdate(),
	}
}

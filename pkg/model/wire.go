package model

// Escenario is one independent draw of all model variables.
type Escenario struct {
	EscenarioID int64              `json:"escenario_id"`
	Timestamp   float64            `json:"timestamp"`
	Valores     map[string]float64 `json:"valores"`
}

// Resultado is one numeric outcome of evaluating the payload on a scenario.
// The message is compact: exactly these four fields.
type Resultado struct {
	EscenarioID     int64   `json:"escenario_id"`
	ConsumerID      string  `json:"consumer_id"`
	Resultado       float64 `json:"resultado"`
	TiempoEjecucion float64 `json:"tiempo_ejecucion"`
}

// StatsProductor is the producer's throttled telemetry message.
type StatsProductor struct {
	Timestamp              float64 `json:"timestamp"`
	EscenariosGenerados    int64   `json:"escenarios_generados"`
	EscenariosTotales      int64   `json:"escenarios_totales"`
	Progreso               float64 `json:"progreso"`
	TasaGeneracion         float64 `json:"tasa_generacion"`
	TiempoTranscurrido     float64 `json:"tiempo_transcurrido"`
	TiempoEstimadoRestante float64 `json:"tiempo_estimado_restante"`
	Estado                 string  `json:"estado"`
}

// StatsConsumidor is a consumer's throttled telemetry message, including its
// error accounting.
type StatsConsumidor struct {
	ConsumerID            string           `json:"consumer_id"`
	Timestamp             float64          `json:"timestamp"`
	EscenariosProcesados  int64            `json:"escenarios_procesados"`
	TiempoUltimoEscenario float64          `json:"tiempo_ultimo_escenario"`
	TiempoPromedio        float64          `json:"tiempo_promedio"`
	TasaProcesamiento     float64          `json:"tasa_procesamiento"`
	Estado                string           `json:"estado"`
	TiempoActivo          float64          `json:"tiempo_activo"`
	ErroresTotales        int64            `json:"errores_totales"`
	ReintentosTotales     int64            `json:"reintentos_totales"`
	MensajesDLQ           int64            `json:"mensajes_dlq"`
	ErroresPorTipo        map[string]int64 `json:"errores_por_tipo"`
}

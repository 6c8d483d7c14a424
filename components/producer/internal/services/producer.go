// Package services implements the producer use case: parse a model, publish
// it, and stream its scenarios onto the broker.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/varpsim/varp/pkg/constant"
	"github.com/varpsim/varp/pkg/distribution"
	"github.com/varpsim/varp/pkg/mlog"
	"github.com/varpsim/varp/pkg/model"
)

// BrokerRepository provides the broker operations the producer depends on.
type BrokerRepository interface {
	DeclareTopology() error
	Purge(queue string) (int, error)
	Publish(ctx context.Context, queue string, body []byte, persistent bool, headers amqp.Table) error
}

// ProducerError records a fatal error in a producer run.
type ProducerError struct {
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ProducerError) Error() string {
	if e.Err != nil && strings.TrimSpace(e.Message) == "" {
		return e.Err.Error()
	}

	return e.Message
}

// Unwrap implements the error interface introduced in Go 1.13 to unwrap the internal error.
func (e *ProducerError) Unwrap() error {
	return e.Err
}

// Producer generates scenarios from a model and publishes them to the
// scenario queue, emitting throttled telemetry along the way.
type Producer struct {
	Broker        BrokerRepository
	Logger        mlog.Logger
	StatsInterval time.Duration

	// DefaultSeed is used when the model file declares none. Left nil, a
	// time-derived seed is drawn instead.
	DefaultSeed *int64

	modelo              *model.Modelo
	sampler             *distribution.Sampler
	escenariosGenerados int64
	inicio              time.Time
}

// NewProducer returns a producer publishing through the given broker.
func NewProducer(broker BrokerRepository, logger mlog.Logger, statsInterval time.Duration) *Producer {
	if logger == nil {
		logger = &mlog.NoneLogger{}
	}

	if statsInterval <= 0 {
		statsInterval = 5 * time.Second
	}

	return &Producer{
		Broker:        broker,
		Logger:        logger,
		StatsInterval: statsInterval,
	}
}

// Run executes the complete producer flow for the model file at modeloPath.
// overrideEscenarios > 0 replaces the scenario count from the file.
func (p *Producer) Run(ctx context.Context, modeloPath string, overrideEscenarios int64) error {
	p.inicio = time.Now()

	p.Logger.Infof("Reading model from %s...", modeloPath)

	modelo, err := model.ParseFile(modeloPath)
	if err != nil {
		return &ProducerError{Message: fmt.Sprintf("error parsing model: %v", err), Err: err}
	}

	if overrideEscenarios > 0 {
		modelo.Simulacion.NumeroEscenarios = overrideEscenarios
	}

	p.modelo = modelo

	p.Logger.Infof("Model '%s' v%s loaded (%d variables, %d scenarios)",
		modelo.Metadata.Nombre, modelo.Version, len(modelo.Variables), modelo.Simulacion.NumeroEscenarios)

	seed := time.Now().UnixNano()

	switch {
	case modelo.Simulacion.SemillaAleatoria != nil:
		seed = *modelo.Simulacion.SemillaAleatoria
	case p.DefaultSeed != nil:
		seed = *p.DefaultSeed
	}

	p.sampler = distribution.New(uint64(seed))

	p.Logger.Infof("Sampler initialized with seed: %d", seed)

	if err := p.Broker.DeclareTopology(); err != nil {
		return &ProducerError{Message: "error declaring queue topology", Err: err}
	}

	if err := p.publishModel(ctx); err != nil {
		return err
	}

	if err := p.publishScenarios(ctx); err != nil {
		return err
	}

	elapsed := time.Since(p.inicio).Seconds()

	p.Logger.Info(strings.Repeat("=", 60))
	p.Logger.Info("PRODUCER COMPLETED SUCCESSFULLY")
	p.Logger.Infof("Model: %s v%s", modelo.Metadata.Nombre, modelo.Version)
	p.Logger.Infof("Scenarios generated: %d", p.escenariosGenerados)
	p.Logger.Infof("Total time: %.2fs (%.2f esc/s)", elapsed, float64(p.escenariosGenerados)/elapsed)
	p.Logger.Info(strings.Repeat("=", 60))

	return nil
}

// publishModel purges the model and scenario queues and publishes the new
// model, so newly dequeued scenarios always belong to the one model sitting
// in cola_modelo.
func (p *Producer) publishModel(ctx context.Context) error {
	if purged, err := p.Broker.Purge(constant.QueueModelo); err != nil {
		return &ProducerError{Message: "error purging model queue", Err: err}
	} else if purged > 0 {
		p.Logger.Infof("Previous model purged (%d messages)", purged)
	}

	if purged, err := p.Broker.Purge(constant.QueueEscenarios); err != nil {
		return &ProducerError{Message: "error purging scenario queue", Err: err}
	} else if purged > 0 {
		p.Logger.Infof("Stale scenarios purged (%d messages)", purged)
	}

	now := time.Now()
	p.modelo.ModeloID = fmt.Sprintf("%s_%d", p.modelo.Metadata.Nombre, now.Unix())
	p.modelo.Timestamp = float64(now.UnixNano()) / 1e9

	body, err := json.Marshal(p.modelo)
	if err != nil {
		return &ProducerError{Message: "error serializing model", Err: err}
	}

	if err := p.publishWithRetry(ctx, constant.QueueModelo, body, true); err != nil {
		return &ProducerError{Message: "error publishing model", Err: err}
	}

	p.Logger.Infof("Model published: %s", p.modelo.ModeloID)

	return nil
}

func (p *Producer) publishScenarios(ctx context.Context) error {
	total := p.modelo.Simulacion.NumeroEscenarios

	p.Logger.Infof("Generating %d scenarios...", total)

	progressStep := total / 10
	if progressStep < 1 {
		progressStep = 1
	}

	lastStats := time.Now()

	for i := int64(0); i < total; i++ {
		if err := ctx.Err(); err != nil {
			p.publishStats(ctx, constant.EstadoActivo)

			return err
		}

		escenario, err := p.generateScenario(i)
		if err != nil {
			return &ProducerError{Message: fmt.Sprintf("error generating scenario %d", i), Err: err}
		}

		body, err := json.Marshal(escenario)
		if err != nil {
			return &ProducerError{Message: "error serializing scenario", Err: err}
		}

		if err := p.publishWithRetry(ctx, constant.QueueEscenarios, body, true); err != nil {
			return &ProducerError{Message: fmt.Sprintf("error publishing scenario %d", i), Err: err}
		}

		p.escenariosGenerados++

		if time.Since(lastStats) >= p.StatsInterval {
			p.publishStats(ctx, constant.EstadoActivo)
			lastStats = time.Now()
		}

		if (i+1)%progressStep == 0 {
			p.Logger.Infof("Progress: %d/%d (%.1f%%)", i+1, total, float64(i+1)/float64(total)*100)
		}
	}

	p.publishStats(ctx, constant.EstadoCompletado)

	return nil
}

func (p *Producer) generateScenario(id int64) (*model.Escenario, error) {
	valores := make(map[string]float64, len(p.modelo.Variables))

	for _, v := range p.modelo.Variables {
		value, err := p.sampler.Sample(v.Distribucion, v.Parametros, v.Tipo)
		if err != nil {
			return nil, err
		}

		valores[v.Nombre] = value
	}

	return &model.Escenario{
		EscenarioID: id,
		Timestamp:   float64(time.Now().UnixNano()) / 1e9,
		Valores:     valores,
	}, nil
}

// publishWithRetry retries a transient publish failure once on the same
// connection; a second failure propagates.
func (p *Producer) publishWithRetry(ctx context.Context, queue string, body []byte, persistent bool) error {
	err := p.Broker.Publish(ctx, queue, body, persistent, nil)
	if err == nil {
		return nil
	}

	p.Logger.Warnf("Publish to '%s' failed, retrying once: %v", queue, err)

	return p.Broker.Publish(ctx, queue, body, persistent, nil)
}

// publishStats emits a throttled telemetry message. Telemetry failures are
// logged, never fatal.
func (p *Producer) publishStats(ctx context.Context, estado string) {
	elapsed := time.Since(p.inicio).Seconds()
	total := p.modelo.Simulacion.NumeroEscenarios

	var progreso, tasa, restante float64

	if total > 0 {
		progreso = float64(p.escenariosGenerados) / float64(total)
	}

	if elapsed > 0 {
		tasa = float64(p.escenariosGenerados) / elapsed
	}

	if tasa > 0 {
		restante = float64(total-p.escenariosGenerados) / tasa
	}

	stats := model.StatsProductor{
		Timestamp:              float64(time.Now().UnixNano()) / 1e9,
		EscenariosGenerados:    p.escenariosGenerados,
		EscenariosTotales:      total,
		Progreso:               progreso,
		TasaGeneracion:         tasa,
		TiempoTranscurrido:     elapsed,
		TiempoEstimadoRestante: restante,
		Estado:                 estado,
	}

	body, err := json.Marshal(stats)
	if err != nil {
		p.Logger.Errorf("Error serializing producer stats: %v", err)

		return
	}

	if err := p.Broker.Publish(ctx, constant.QueueStatsProductor, body, false, nil); err != nil {
		p.Logger.Warnf("Error publishing producer stats: %v", err)

		return
	}

	p.Logger.Debugf("Stats published: %d/%d (%.1f%%) - %.2f esc/s",
		p.escenariosGenerados, total, progreso*100, tasa)
}

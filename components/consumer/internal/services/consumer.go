// Package services implements the consumer: load the model once, evaluate the
// payload against every scenario, publish results, and route failures either
// to a header-driven retry or to the dead-letter queue.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/varpsim/varp/pkg/constant"
	"github.com/varpsim/varp/pkg/eval"
	"github.com/varpsim/varp/pkg/mlog"
	"github.com/varpsim/varp/pkg/model"
)

// BrokerRepository provides the broker operations the consumer depends on.
type BrokerRepository interface {
	Publish(ctx context.Context, queue string, body []byte, persistent bool, headers amqp.Table) error
	GetOne(queue string, autoAck bool) (amqp.Delivery, bool, error)
	Consume(queue, consumerTag string, prefetch int) (<-chan amqp.Delivery, error)
}

// ConsumerError records a fatal error in a consumer run.
type ConsumerError struct {
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConsumerError) Error() string {
	if e.Err != nil && strings.TrimSpace(e.Message) == "" {
		return e.Err.Error()
	}

	return e.Message
}

// Unwrap implements the error interface introduced in Go 1.13 to unwrap the internal error.
func (e *ConsumerError) Unwrap() error {
	return e.Err
}

// Consumer lifecycle states.
const (
	StateBooting      = "booting"
	StateLoadingModel = "loading_model"
	StateIdle         = "idle"
	StateProcessing   = "processing"
	StateTerminating  = "terminating"
)

// payload is the evaluable form of the model function: a compiled expression
// or a sandboxed code block.
type payload interface {
	Evaluate(bindings map[string]float64) (float64, error)
}

type expressionPayload struct {
	expr *eval.Expression
}

func (p expressionPayload) Evaluate(bindings map[string]float64) (float64, error) {
	return p.expr.Evaluate(bindings)
}

type codePayload struct {
	sandbox *eval.Sandbox
}

func (p codePayload) Evaluate(bindings map[string]float64) (float64, error) {
	return p.sandbox.Execute(bindings)
}

// Config tunes a consumer instance.
type Config struct {
	ConsumerID        string
	MaxRetries        int
	PrefetchCount     int
	StatsEvery        int64
	ModelLoadAttempts int
	ModelLoadWait     time.Duration
	ExecTimeout       time.Duration
	MaxEscenarios     int64
}

func (c Config) withDefaults() Config {
	if c.ConsumerID == "" {
		c.ConsumerID = "C-" + uuid.New().String()[:8]
	}

	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}

	if c.PrefetchCount <= 0 {
		c.PrefetchCount = 1
	}

	if c.StatsEvery <= 0 {
		c.StatsEvery = 10
	}

	if c.ModelLoadAttempts <= 0 {
		c.ModelLoadAttempts = 5
	}

	if c.ModelLoadWait <= 0 {
		c.ModelLoadWait = 2 * time.Second
	}

	if c.ExecTimeout <= 0 {
		c.ExecTimeout = 30 * time.Second
	}

	return c
}

// Consumer processes scenarios sequentially on a single goroutine, with
// at-least-once delivery semantics and a header-carried retry counter.
type Consumer struct {
	Broker BrokerRepository
	Logger mlog.Logger

	cfg     Config
	state   string
	modelo  *model.Modelo
	payload payload

	inicio               time.Time
	escenariosProcesados int64
	tiempoUltimo         float64
	tiempoAcumulado      float64
	erroresTotales       int64
	reintentosTotales    int64
	mensajesDLQ          int64
	erroresPorTipo       map[string]int64
}

// NewConsumer returns a consumer reading scenarios through the given broker.
func NewConsumer(broker BrokerRepository, logger mlog.Logger, cfg Config) *Consumer {
	if logger == nil {
		logger = &mlog.NoneLogger{}
	}

	cfg = cfg.withDefaults()

	return &Consumer{
		Broker:         broker,
		Logger:         logger.WithFields("consumer_id", cfg.ConsumerID),
		cfg:            cfg,
		state:          StateBooting,
		erroresPorTipo: make(map[string]int64),
	}
}

// ConsumerID returns the identity this consumer stamps on results and retries.
func (c *Consumer) ConsumerID() string {
	return c.cfg.ConsumerID
}

// State returns the current lifecycle state.
func (c *Consumer) State() string {
	return c.state
}

func (c *Consumer) setState(state string) {
	c.state = state
	c.Logger.Debugf("State: %s", state)
}

// Run executes the complete consumer flow until the context is cancelled or
// MaxEscenarios scenarios have been processed.
func (c *Consumer) Run(ctx context.Context) error {
	c.inicio = time.Now()

	c.Logger.Infof("Consumer %s starting...", c.cfg.ConsumerID)

	c.setState(StateLoadingModel)

	if err := c.loadModel(ctx); err != nil {
		return err
	}

	c.setState(StateIdle)

	deliveries, err := c.Broker.Consume(constant.QueueEscenarios, c.cfg.ConsumerID, c.cfg.PrefetchCount)
	if err != nil {
		return &ConsumerError{Message: "error starting scenario consumption", Err: err}
	}

	c.Logger.Infof("Consumer %s waiting for scenarios...", c.cfg.ConsumerID)

	for {
		select {
		case <-ctx.Done():
			c.shutdown()

			return ctx.Err()

		case d, ok := <-deliveries:
			if !ok {
				c.shutdown()

				return &ConsumerError{Message: "broker delivery channel closed"}
			}

			c.processDelivery(ctx, d)

			if c.cfg.MaxEscenarios > 0 && c.escenariosProcesados >= c.cfg.MaxEscenarios {
				c.Logger.Infof("Reached max scenarios (%d), stopping", c.cfg.MaxEscenarios)
				c.shutdown()

				return nil
			}
		}
	}
}

// loadModel reads the model from cola_modelo, republishing it before ACKing
// the read so other consumers can still load it.
func (c *Consumer) loadModel(ctx context.Context) error {
	c.Logger.Info("Loading model...")

	for attempt := 1; attempt <= c.cfg.ModelLoadAttempts; attempt++ {
		d, ok, err := c.Broker.GetOne(constant.QueueModelo, false)
		if err != nil {
			return &ConsumerError{Message: "error reading model queue", Err: err}
		}

		if ok {
			return c.adoptModel(ctx, d)
		}

		if attempt < c.cfg.ModelLoadAttempts {
			c.Logger.Warnf("No model in queue, retrying in %s... (%d/%d)",
				c.cfg.ModelLoadWait, attempt, c.cfg.ModelLoadAttempts)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.ModelLoadWait):
			}
		}
	}

	return &ConsumerError{Message: fmt.Sprintf("no model found in queue after %d attempts", c.cfg.ModelLoadAttempts)}
}

func (c *Consumer) adoptModel(ctx context.Context, d amqp.Delivery) error {
	if err := c.Broker.Publish(ctx, constant.QueueModelo, d.Body, true, nil); err != nil {
		_ = d.Nack(false, true)

		return &ConsumerError{Message: "error republishing model for peers", Err: err}
	}

	if err := d.Ack(false); err != nil {
		return &ConsumerError{Message: "error acking model read", Err: err}
	}

	var modelo model.Modelo

	if err := json.Unmarshal(d.Body, &modelo); err != nil {
		return &ConsumerError{Message: "error decoding model message", Err: err}
	}

	c.modelo = &modelo

	switch modelo.Funcion.Tipo {
	case model.TipoExpresion:
		expr, err := eval.Compile(modelo.Funcion.Expresion)
		if err != nil {
			return &ConsumerError{Message: "error compiling model expression", Err: err}
		}

		c.payload = expressionPayload{expr: expr}

	case model.TipoCodigo:
		sandbox, err := eval.CompileCode(modelo.Funcion.Codigo, modelo.VariableNames(), c.cfg.ExecTimeout)
		if err != nil {
			return &ConsumerError{Message: "error compiling model code", Err: err}
		}

		c.payload = codePayload{sandbox: sandbox}

	default:
		return &ConsumerError{Message: fmt.Sprintf("unsupported function tipo %q", modelo.Funcion.Tipo)}
	}

	c.Logger.Infof("Model loaded: %s v%s (tipo=%s)", modelo.ModeloID, modelo.Version, modelo.Funcion.Tipo)

	return nil
}

// processDelivery runs the per-message pipeline for one scenario.
func (c *Consumer) processDelivery(ctx context.Context, d amqp.Delivery) {
	c.setState(StateProcessing)
	defer c.setState(StateIdle)

	start := time.Now()

	var escenario model.Escenario

	if err := json.Unmarshal(d.Body, &escenario); err != nil {
		c.Logger.Errorf("Error decoding scenario: %v", err)
		c.handleFailure(ctx, d, constant.KindDecodeError, false)

		return
	}

	logger := c.Logger.WithFields("escenario_id", escenario.EscenarioID)

	if retryCount := getRetryCount(d.Headers); retryCount > 0 {
		logger.Debugf("Redelivery %d after %s", retryCount, getLastError(d.Headers))
	}

	value, err := c.payload.Evaluate(escenario.Valores)
	if err != nil {
		kind, terminal := eval.Classify(err)

		logger.Errorf("Error evaluating scenario: %v (kind=%s)", err, kind)
		c.handleFailure(ctx, d, kind, terminal)

		return
	}

	duration := time.Since(start).Seconds()

	if err := c.publishResult(ctx, escenario.EscenarioID, value, duration); err != nil {
		logger.Errorf("Error publishing result: %v", err)
		c.handleFailure(ctx, d, constant.KindBrokerError, false)

		return
	}

	if err := d.Ack(false); err != nil {
		logger.Errorf("Error acking scenario: %v", err)

		return
	}

	c.escenariosProcesados++
	c.tiempoUltimo = duration
	c.tiempoAcumulado += duration

	if c.escenariosProcesados%c.cfg.StatsEvery == 0 {
		c.publishStats(ctx, constant.EstadoActivo)
	}

	if c.escenariosProcesados%100 == 0 {
		c.Logger.Infof("%d scenarios processed", c.escenariosProcesados)
	}
}

// handleFailure applies the error classification matrix. Terminal errors and
// exhausted retries are NACKed without requeue, which the topology routes to
// the scenario DLQ. Transient errors republish the same body with an
// incremented retry counter, then ACK the original.
func (c *Consumer) handleFailure(ctx context.Context, d amqp.Delivery, kind string, terminal bool) {
	c.erroresTotales++
	c.erroresPorTipo[kind]++

	retryCount := getRetryCount(d.Headers)

	if terminal {
		c.sinkToDLQ(d, kind, retryCount)

		return
	}

	if retryCount >= c.cfg.MaxRetries {
		c.Logger.Warnf("Retries exhausted (%d/%d), sinking to DLQ", retryCount, c.cfg.MaxRetries)
		c.sinkToDLQ(d, kind, retryCount)

		return
	}

	headers := amqp.Table{
		constant.HeaderRetryCount: safeIncrementRetryCount(retryCount),
		constant.HeaderLastError:  kind,
		constant.HeaderConsumerID: c.cfg.ConsumerID,
	}

	if err := c.Broker.Publish(ctx, constant.QueueEscenarios, d.Body, true, headers); err != nil {
		// Could not republish; hand the original back to the broker so the
		// scenario is not lost. The counter stays unchanged.
		c.Logger.Errorf("Error republishing scenario for retry: %v", err)

		if nackErr := d.Nack(false, true); nackErr != nil {
			c.Logger.Errorf("Error nacking scenario: %v", nackErr)
		}

		return
	}

	if err := d.Ack(false); err != nil {
		c.Logger.Errorf("Error acking retried scenario: %v", err)

		return
	}

	c.reintentosTotales++

	c.Logger.Warnf("Scenario requeued for retry %d/%d (kind=%s)", retryCount+1, c.cfg.MaxRetries, kind)
}

func (c *Consumer) sinkToDLQ(d amqp.Delivery, kind string, retryCount int) {
	if err := d.Nack(false, false); err != nil {
		c.Logger.Errorf("Error nacking scenario to DLQ: %v", err)

		return
	}

	c.mensajesDLQ++

	c.Logger.Warnf("Scenario sent to DLQ (kind=%s, retries=%d)", kind, retryCount)
}

func (c *Consumer) publishResult(ctx context.Context, escenarioID int64, value, duration float64) error {
	resultado := model.Resultado{
		EscenarioID:     escenarioID,
		ConsumerID:      c.cfg.ConsumerID,
		Resultado:       value,
		TiempoEjecucion: duration,
	}

	body, err := json.Marshal(resultado)
	if err != nil {
		return err
	}

	return c.Broker.Publish(ctx, constant.QueueResultados, body, true, nil)
}

// publishStats emits a consumer telemetry message. Failures are logged, never
// fatal.
func (c *Consumer) publishStats(ctx context.Context, estado string) {
	elapsed := time.Since(c.inicio).Seconds()

	var tasa, promedio float64

	if elapsed > 0 {
		tasa = float64(c.escenariosProcesados) / elapsed
	}

	if c.escenariosProcesados > 0 {
		promedio = c.tiempoAcumulado / float64(c.escenariosProcesados)
	}

	erroresPorTipo := make(map[string]int64, len(c.erroresPorTipo))
	for k, v := range c.erroresPorTipo {
		erroresPorTipo[k] = v
	}

	stats := model.StatsConsumidor{
		ConsumerID:            c.cfg.ConsumerID,
		Timestamp:             float64(time.Now().UnixNano()) / 1e9,
		EscenariosProcesados:  c.escenariosProcesados,
		TiempoUltimoEscenario: c.tiempoUltimo,
		TiempoPromedio:        promedio,
		TasaProcesamiento:     tasa,
		Estado:                estado,
		TiempoActivo:          elapsed,
		ErroresTotales:        c.erroresTotales,
		ReintentosTotales:     c.reintentosTotales,
		MensajesDLQ:           c.mensajesDLQ,
		ErroresPorTipo:        erroresPorTipo,
	}

	body, err := json.Marshal(stats)
	if err != nil {
		c.Logger.Errorf("Error serializing consumer stats: %v", err)

		return
	}

	if err := c.Broker.Publish(ctx, constant.QueueStatsConsumidores, body, false, nil); err != nil {
		c.Logger.Warnf("Error publishing consumer stats: %v", err)
	}
}

// shutdown emits the final telemetry message and the run summary.
func (c *Consumer) shutdown() {
	c.setState(StateTerminating)

	// The run context is already cancelled; give the final telemetry its own
	// short deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.publishStats(ctx, constant.EstadoTerminando)

	elapsed := time.Since(c.inicio).Seconds()

	c.Logger.Info(strings.Repeat("=", 60))
	c.Logger.Infof("CONSUMER %s FINISHED", c.cfg.ConsumerID)
	c.Logger.Infof("Scenarios processed: %d", c.escenariosProcesados)
	c.Logger.Infof("Errors: %d (retries=%d, dlq=%d, by kind=%v)",
		c.erroresTotales, c.reintentosTotales, c.mensajesDLQ, c.erroresPorTipo)

	if elapsed > 0 {
		c.Logger.Infof("Total time: %.2fs (%.2f esc/s)", elapsed, float64(c.escenariosProcesados)/elapsed)
	}

	c.Logger.Info(strings.Repeat("=", 60))
}

// Package services implements the dashboard aggregator: a background poller
// draining telemetry and result queues into bounded rolling windows, and the
// statistics computed over them.
package services

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/varpsim/varp/pkg/constant"
	"github.com/varpsim/varp/pkg/mlog"
	"github.com/varpsim/varp/pkg/model"
)

// BrokerRepository provides the broker operations the aggregator depends on.
type BrokerRepository interface {
	Publish(ctx context.Context, queue string, body []byte, persistent bool, headers amqp.Table) error
	GetOne(queue string, autoAck bool) (amqp.Delivery, bool, error)
	QueueDepth(queue string) (int, error)
}

// Borrower runs fn with a broker session, typically borrowed from the
// connection pool for the duration of one poll cycle.
type Borrower func(ctx context.Context, fn func(BrokerRepository) error) error

// Options tunes the aggregator windows and cadence.
type Options struct {
	PollPeriod      time.Duration
	HistoryWindow   int
	ResultWindow    int
	RawResultWindow int
}

func (o Options) withDefaults() Options {
	if o.PollPeriod <= 0 {
		o.PollPeriod = 500 * time.Millisecond
	}

	if o.HistoryWindow <= 0 {
		o.HistoryWindow = 100
	}

	if o.ResultWindow <= 0 {
		o.ResultWindow = 50000
	}

	if o.RawResultWindow <= 0 {
		o.RawResultWindow = 1000
	}

	return o
}

// DataManager drains telemetry and results in the background and serves
// deep-copied snapshots. All mutable state sits behind one mutex.
type DataManager struct {
	borrow Borrower
	logger mlog.Logger
	opts   Options

	mu                    sync.Mutex
	statsProductor        *model.StatsProductor
	historicoProductor    *ring[model.StatsProductor]
	statsConsumidores     map[string]model.StatsConsumidor
	historicoConsumidores map[string]*ring[model.StatsConsumidor]
	resultados            *ring[float64]
	resultadosRaw         *ring[model.Resultado]
	estadisticas          *Estadisticas
	convergencia          *ring[PuntoConvergencia]
	normalidad            *TestsNormalidad
	queueSizes            map[string]int
	modelo                *model.Modelo
	lastUpdate            time.Time

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewDataManager returns an aggregator borrowing broker sessions through
// borrow.
func NewDataManager(borrow Borrower, logger mlog.Logger, opts Options) *DataManager {
	if logger == nil {
		logger = &mlog.NoneLogger{}
	}

	opts = opts.withDefaults()

	return &DataManager{
		borrow:                borrow,
		logger:                logger,
		opts:                  opts,
		historicoProductor:    newRing[model.StatsProductor](opts.HistoryWindow),
		statsConsumidores:     make(map[string]model.StatsConsumidor),
		historicoConsumidores: make(map[string]*ring[model.StatsConsumidor]),
		resultados:            newRing[float64](opts.ResultWindow),
		resultadosRaw:         newRing[model.Resultado](opts.RawResultWindow),
		convergencia:          newRing[PuntoConvergencia](opts.HistoryWindow),
		queueSizes:            make(map[string]int),
		stop:                  make(chan struct{}),
		done:                  make(chan struct{}),
	}
}

// Start launches the background poll loop.
func (dm *DataManager) Start() {
	dm.logger.Info("Starting data manager...")

	go dm.loop()
}

// Stop terminates the poll loop and waits for it to finish.
func (dm *DataManager) Stop() {
	dm.stopOnce.Do(func() {
		close(dm.stop)
	})

	select {
	case <-dm.done:
	case <-time.After(5 * time.Second):
		dm.logger.Warn("Data manager did not stop in time")
	}
}

func (dm *DataManager) loop() {
	defer close(dm.done)

	dm.logger.Info("Stats consumption loop started")

	for {
		select {
		case <-dm.stop:
			dm.logger.Info("Stats consumption loop finished")

			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := dm.cycle(ctx)
		cancel()

		if err != nil {
			// The aggregator never propagates: log, skip the cycle, back off.
			dm.logger.Errorf("Error in poll cycle: %v", err)

			dm.sleep(time.Second)

			continue
		}

		dm.sleep(dm.opts.PollPeriod)
	}
}

func (dm *DataManager) sleep(d time.Duration) {
	select {
	case <-dm.stop:
	case <-time.After(d):
	}
}

func (dm *DataManager) cycle(ctx context.Context) error {
	return dm.borrow(ctx, func(broker BrokerRepository) error {
		dm.drainStatsProductor(broker)
		dm.drainStatsConsumidores(broker)

		nuevos := dm.drainResultados(broker)

		dm.sampleQueueDepths(broker)
		dm.refreshModelo(ctx, broker)

		if nuevos > 0 {
			dm.recompute()
		}

		dm.mu.Lock()
		dm.lastUpdate = time.Now()
		dm.mu.Unlock()

		return nil
	})
}

func (dm *DataManager) drainStatsProductor(broker BrokerRepository) {
	for {
		d, ok, err := broker.GetOne(constant.QueueStatsProductor, true)
		if err != nil {
			dm.logger.Warnf("Error consuming producer stats: %v", err)

			return
		}

		if !ok {
			return
		}

		var stats model.StatsProductor

		if err := json.Unmarshal(d.Body, &stats); err != nil {
			dm.logger.Warnf("Error decoding producer stats: %v", err)

			continue
		}

		dm.mu.Lock()
		dm.statsProductor = &stats
		dm.historicoProductor.Append(stats)
		dm.mu.Unlock()

		dm.logger.Debugf("Producer stats updated: %.1f%%", stats.Progreso*100)
	}
}

func (dm *DataManager) drainStatsConsumidores(broker BrokerRepository) {
	for {
		d, ok, err := broker.GetOne(constant.QueueStatsConsumidores, true)
		if err != nil {
			dm.logger.Warnf("Error consuming consumer stats: %v", err)

			return
		}

		if !ok {
			return
		}

		var stats model.StatsConsumidor

		if err := json.Unmarshal(d.Body, &stats); err != nil {
			dm.logger.Warnf("Error decoding consumer stats: %v", err)

			continue
		}

		if stats.ConsumerID == "" {
			continue
		}

		dm.mu.Lock()
		dm.statsConsumidores[stats.ConsumerID] = stats

		historico, ok := dm.historicoConsumidores[stats.ConsumerID]
		if !ok {
			historico = newRing[model.StatsConsumidor](dm.opts.HistoryWindow)
			dm.historicoConsumidores[stats.ConsumerID] = historico
		}

		historico.Append(stats)
		dm.mu.Unlock()
	}
}

func (dm *DataManager) drainResultados(broker BrokerRepository) int {
	nuevos := 0

	for {
		d, ok, err := broker.GetOne(constant.QueueResultados, true)
		if err != nil {
			dm.logger.Warnf("Error consuming results: %v", err)

			break
		}

		if !ok {
			break
		}

		var resultado model.Resultado

		if err := json.Unmarshal(d.Body, &resultado); err != nil {
			dm.logger.Warnf("Error decoding result: %v", err)

			continue
		}

		dm.mu.Lock()
		dm.resultados.Append(resultado.Resultado)
		dm.resultadosRaw.Append(resultado)
		dm.mu.Unlock()

		nuevos++
	}

	if nuevos > 0 {
		dm.mu.Lock()
		total := dm.resultados.Len()
		dm.mu.Unlock()

		dm.logger.Debugf("%d new results processed (total: %d)", nuevos, total)
	}

	return nuevos
}

func (dm *DataManager) sampleQueueDepths(broker BrokerRepository) {
	sizes := make(map[string]int, len(constant.PrincipalQueues))

	for _, queue := range constant.PrincipalQueues {
		depth, err := broker.QueueDepth(queue)
		if err != nil {
			dm.logger.Warnf("Error reading depth of %s: %v", queue, err)

			depth = 0
		}

		sizes[queue] = depth
	}

	dm.mu.Lock()
	dm.queueSizes = sizes
	dm.mu.Unlock()
}

// refreshModelo peeks at the model once: read, republish so the queue still
// holds it, then ack the read.
func (dm *DataManager) refreshModelo(ctx context.Context, broker BrokerRepository) {
	dm.mu.Lock()
	known := dm.modelo != nil
	dm.mu.Unlock()

	if known {
		return
	}

	d, ok, err := broker.GetOne(constant.QueueModelo, false)
	if err != nil {
		dm.logger.Warnf("Error reading model queue: %v", err)

		return
	}

	if !ok {
		return
	}

	if err := broker.Publish(ctx, constant.QueueModelo, d.Body, true, nil); err != nil {
		dm.logger.Warnf("Error republishing model: %v", err)

		_ = d.Nack(false, true)

		return
	}

	if err := d.Ack(false); err != nil {
		dm.logger.Warnf("Error acking model read: %v", err)

		return
	}

	var modelo model.Modelo

	if err := json.Unmarshal(d.Body, &modelo); err != nil {
		dm.logger.Warnf("Error decoding model: %v", err)

		return
	}

	dm.mu.Lock()
	dm.modelo = &modelo
	dm.mu.Unlock()

	dm.logger.Infof("Model info loaded: %s", modelo.Metadata.Nombre)
}

// recompute refreshes the descriptive statistics, the convergence trace and
// the normality tests from the current result window.
func (dm *DataManager) recompute() {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	values := dm.resultados.Values()
	if len(values) == 0 {
		dm.estadisticas = nil

		return
	}

	est := computeEstadisticas(values)
	dm.estadisticas = est

	n := est.N

	if n >= 30 && n%10 == 0 {
		dm.convergencia.Append(PuntoConvergencia{
			N:         n,
			Media:     est.Media,
			Varianza:  est.Varianza,
			Timestamp: float64(time.Now().UnixNano()) / 1e9,
		})
	}

	if n >= 20 {
		sorted := make([]float64, n)
		copy(sorted, values)
		sort.Float64s(sorted)

		dm.normalidad = computeNormalidad(sorted, est.Media, est.DesviacionEstandar)
	}
}

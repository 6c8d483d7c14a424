package constant

// Queue names of the simulation fabric. The names are part of the wire
// protocol and must match every peer on the broker.
const (
	QueueModelo            = "cola_modelo"
	QueueEscenarios        = "cola_escenarios"
	QueueResultados        = "cola_resultados"
	QueueStatsProductor    = "cola_stats_productor"
	QueueStatsConsumidores = "cola_stats_consumidores"
	QueueDLQEscenarios     = "cola_dlq_escenarios"
	QueueDLQResultados     = "cola_dlq_resultados"
)

// PrincipalQueues are the queues whose depth the dashboard samples every cycle.
var PrincipalQueues = []string{
	QueueModelo,
	QueueEscenarios,
	QueueResultados,
	QueueStatsProductor,
	QueueStatsConsumidores,
}

package mrabbitmq

import (
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/varpsim/varp/pkg"
	"github.com/varpsim/varp/pkg/constant"
)

type queueSpec struct {
	name    string
	durable bool
	args    amqp.Table
}

// topology lists the seven queues of the fabric in dependency order: the
// dead-letter queues first, so the DLX arguments of the data queues always
// reference an existing queue.
var topology = []queueSpec{
	{
		name:    constant.QueueDLQEscenarios,
		durable: true,
		args: amqp.Table{
			"x-max-length": int32(10000),
		},
	},
	{
		name:    constant.QueueDLQResultados,
		durable: true,
		args: amqp.Table{
			"x-max-length": int32(10000),
		},
	},
	{
		name:    constant.QueueModelo,
		durable: true,
		args: amqp.Table{
			"x-max-length": int32(1),
		},
	},
	{
		name:    constant.QueueEscenarios,
		durable: true,
		args: amqp.Table{
			"x-max-length":              int32(100000),
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": constant.QueueDLQEscenarios,
		},
	},
	{
		name:    constant.QueueResultados,
		durable: true,
		args: amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": constant.QueueDLQResultados,
		},
	},
	{
		name:    constant.QueueStatsProductor,
		durable: false,
		args: amqp.Table{
			"x-max-length":  int32(100),
			"x-message-ttl": int32(60000),
		},
	},
	{
		name:    constant.QueueStatsConsumidores,
		durable: false,
		args: amqp.Table{
			"x-max-length":  int32(1000),
			"x-message-ttl": int32(60000),
		},
	},
}

// DeclareTopology declares every queue of the fabric. Declaration is
// idempotent: redeclaring with identical arguments is a no-op on the broker.
func (c *Client) DeclareTopology() error {
	ch, err := c.ch()
	if err != nil {
		return err
	}

	for _, q := range topology {
		if _, err := ch.QueueDeclare(q.name, q.durable, false, false, false, q.args); err != nil {
			return pkg.WrapBrokerError("declare "+q.name, err)
		}

		c.Logger.Debugf("Queue declared: %s", q.name)
	}

	c.Logger.Info("All queues declared successfully (including DLQs)")

	return nil
}

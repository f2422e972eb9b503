// Command worker runs the C11 queue consumer: it drains the context-bridge
// queue and re-establishes the same tenant-scoped transaction a request
// handler would have had for each delivered snapshot.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/routecore/platform/internal/config"
	"github.com/routecore/platform/internal/logging"
	"github.com/routecore/platform/internal/pipeline"
	"github.com/routecore/platform/internal/queue"
	"github.com/routecore/platform/internal/reqctx"
	"github.com/routecore/platform/internal/storage"
)

const (
	exchangeName = "routecore.context"
	queueName    = "routecore.worker"
	routingKey   = "context.#"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logging.Setup(cfg.Env, "worker")

	if cfg.RabbitMQURL == "" {
		log.Error("rabbitmq_url_missing")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := storage.NewPool(ctx, storage.PoolConfig{DSN: cfg.DatabaseURL})
	if err != nil {
		log.Error("database_connect_failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		log.Error("rabbitmq_connect_failed", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	bind := func(ctx context.Context, snap reqctx.Snapshot, handler func(context.Context) error) error {
		return pipeline.BindFromSnapshot(ctx, pool, snap, handler)
	}

	consumer, err := queue.NewConsumer(conn, exchangeName, queueName, routingKey, bind)
	if err != nil {
		log.Error("consumer_setup_failed", "error", err)
		os.Exit(1)
	}

	log.Info("worker_listening", "queue", queueName)
	if err := consumer.Run(ctx, dispatch); err != nil && ctx.Err() == nil {
		log.Error("consumer_run_failed", "error", err)
		os.Exit(1)
	}
	log.Info("worker_shutdown_complete")
}

// dispatch is the single handler registered for every routing key this
// worker consumes. The consumer has already bound the tenant transaction
// from the envelope (via the bind func passed to it) before calling
// dispatch; dispatch only logs the delivered context and returns nil, so
// every well-formed delivery is committed and acked.
func dispatch(ctx context.Context, snap reqctx.Snapshot) error {
	slog.Info("queue: context delivered", "companyId", snap.CompanyID, "userId", snap.UserID, "actorType", snap.ActorType)
	return nil
}

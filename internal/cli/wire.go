package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lazypower/keepstreak/internal/config"
	"github.com/lazypower/keepstreak/internal/date"
	"github.com/lazypower/keepstreak/internal/freeze"
	"github.com/lazypower/keepstreak/internal/habit"
	"github.com/lazypower/keepstreak/internal/inactivity"
	"github.com/lazypower/keepstreak/internal/llm"
	"github.com/lazypower/keepstreak/internal/notify"
	"github.com/lazypower/keepstreak/internal/queue"
	"github.com/lazypower/keepstreak/internal/scanner"
	"github.com/lazypower/keepstreak/internal/store"
	"github.com/lazypower/keepstreak/internal/store/postgres"
)

// openRepo opens the store named by cfg.Database.Driver.
func openRepo(ctx context.Context, cfg config.Config, logger *zap.Logger) (habit.Repository, error) {
	switch cfg.Database.Driver {
	case "", "sqlite":
		dbPath := cfg.Database.Path
		if dbPath == "" {
			var err error
			dbPath, err = store.DefaultDBPath()
			if err != nil {
				return nil, fmt.Errorf("resolve db path: %w", err)
			}
		}
		db, err := store.Open(dbPath)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		logger.Debug("sqlite store ready", zap.String("path", dbPath))
		return db, nil
	case "postgres":
		if cfg.Database.DSN == "" {
			return nil, fmt.Errorf("postgres driver requires database.dsn")
		}
		pg, err := postgres.Open(ctx, cfg.Database.DSN, logger)
		if err != nil {
			return nil, err
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown database driver: %q", cfg.Database.Driver)
	}
}

// today resolves the reference date in the configured zone, or parses
// override when set.
func today(cfg config.Config, override string) (date.Date, error) {
	if override != "" {
		return date.Parse(override)
	}
	loc, err := cfg.Location()
	if err != nil {
		return date.Date{}, err
	}
	return date.Today(loc), nil
}

func newScanner(repo habit.Store, pub queue.Publisher, cfg config.Config, logger *zap.Logger) *scanner.Scanner {
	return scanner.New(
		repo,
		freeze.NewLedger(repo, cfg.Scan.FreezeCap, logger),
		inactivity.NewDetector(repo),
		pub,
		logger,
	)
}

// newComposer returns nil when no LLM provider is configured, which makes
// every notification use the fallback text.
func newComposer(cfg config.LLMConfig, logger *zap.Logger) notify.Composer {
	if !llm.Enabled(cfg) {
		return nil
	}
	client, err := llm.NewClient(cfg)
	if err != nil {
		logger.Warn("LLM not configured, using fallback text", zap.Error(err))
		return nil
	}
	logger.Info("llm composer enabled", zap.String("provider", cfg.Provider), zap.String("model", cfg.Model))
	return llm.NewComposer(llm.NewLimited(client, cfg.RatePerMin))
}

// notifier bundles a Dispatcher with the resources it holds open.
type notifier struct {
	dispatcher *notify.Dispatcher
	closers    []func()
}

func (n *notifier) Close() {
	for i := len(n.closers) - 1; i >= 0; i-- {
		n.closers[i]()
	}
}

func newNotifier(ctx context.Context, repo habit.Repository, cfg config.Config, logger *zap.Logger) (*notifier, error) {
	n := &notifier{}
	channels := notify.Multi{notify.NewLogDeliverer(logger)}

	if cfg.Notify.MQTTBroker != "" {
		topic := cfg.Notify.MQTTTopic
		if topic == "" {
			topic = notify.DefaultMQTTTopic
		}
		m, err := notify.NewMQTTDeliverer(cfg.Notify.MQTTBroker, fmt.Sprintf("keepstreak-%d", time.Now().UnixNano()), topic)
		if err != nil {
			n.Close()
			return nil, err
		}
		n.closers = append(n.closers, func() { m.Close() })
		channels = append(channels, m)
		logger.Info("mqtt delivery enabled", zap.String("broker", cfg.Notify.MQTTBroker), zap.String("topic", topic))
	}

	if cfg.Notify.TelegramToken != "" {
		tg, err := notify.NewTelegramDeliverer(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID)
		if err != nil {
			n.Close()
			return nil, err
		}
		channels = append(channels, tg)
		logger.Info("telegram delivery enabled", zap.Int64("chat_id", cfg.Notify.TelegramChatID))
	}

	opts := []notify.Option{notify.WithAppName(cfg.Notify.AppName)}
	if cfg.Notify.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Notify.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			rdb.Close()
			n.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		n.closers = append(n.closers, func() { rdb.Close() })
		opts = append(opts, notify.WithDeduper(notify.NewRedisDeduper(rdb, cfg.Notify.DedupTTL, logger)))
		logger.Info("event dedup enabled", zap.String("redis", cfg.Notify.RedisAddr))
	}

	n.dispatcher = notify.NewDispatcher(newComposer(cfg.LLM, logger), repo, channels, logger, opts...)
	return n, nil
}

// eventQueue is the publisher/consumer pair used by serve.
type eventQueue struct {
	pub   queue.Publisher
	cons  queue.Consumer
	close func()
}

func newEventQueue(cfg config.QueueConfig, logger *zap.Logger) (*eventQueue, error) {
	switch cfg.Driver {
	case "", "memory":
		q := queue.NewMemory(cfg.BufferSize, logger)
		return &eventQueue{pub: q, cons: q, close: q.Close}, nil
	case "amqp":
		pub, err := queue.NewAMQPPublisher(cfg.AMQPURL)
		if err != nil {
			return nil, err
		}
		cons, err := queue.NewAMQPConsumer(cfg.AMQPURL, cfg.AMQPQueue, logger)
		if err != nil {
			pub.Close()
			return nil, err
		}
		return &eventQueue{pub: pub, cons: cons, close: func() {
			cons.Close()
			pub.Close()
		}}, nil
	default:
		return nil, fmt.Errorf("unknown queue driver: %q", cfg.Driver)
	}
}

package application

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/therudywolf/DomainsBot-sub000/internal/application/monitor"
	"github.com/therudywolf/DomainsBot-sub000/internal/application/notify"
	"github.com/therudywolf/DomainsBot-sub000/internal/domain/destination"
	"github.com/therudywolf/DomainsBot-sub000/internal/domain/watch"
	"github.com/therudywolf/DomainsBot-sub000/internal/infrastructure/persistence/json"
	"github.com/therudywolf/DomainsBot-sub000/internal/infrastructure/probe"
	"github.com/therudywolf/DomainsBot-sub000/internal/infrastructure/telegram"
	consts "github.com/therudywolf/DomainsBot-sub000/internal/shared/constants"
)

// Config carries everything the container needs to assemble the engine.
type Config struct {
	DataDir       string
	TelegramToken string
	GostCheckURLs []string
	NameServers   []string
	Concurrency   int
	Tick          time.Duration
	DNSTimeout    time.Duration
	WAFTimeout    time.Duration
	TLSTimeout    time.Duration
	NotifyRate    float64
}

// Container holds all application services and repositories.
// This is a simple dependency injection container.
type Container struct {
	// Repositories
	WatchRepo       watch.Repository
	DestinationRepo destination.Repository

	// Services
	WatchService *monitor.Service
	Registry     *notify.Registry
	Notifier     *notify.Notifier
	Scheduler    *monitor.Scheduler
	Collector    *probe.Collector
}

// NewContainer creates the application service container. Without a Telegram
// token the notifier runs in dry-run mode and only logs deliveries.
func NewContainer(cfg Config, log *zap.SugaredLogger) (*Container, error) {
	watchRepo, err := json.NewWatchRepository(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create watch repository: %w", err)
	}
	destRepo, err := json.NewDestinationRepository(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create destination repository: %w", err)
	}

	dnsTimeout := cfg.DNSTimeout
	if dnsTimeout <= 0 {
		dnsTimeout = consts.DefaultDNSTimeout
	}
	wafTimeout := cfg.WAFTimeout
	if wafTimeout <= 0 {
		wafTimeout = consts.DefaultWAFTimeout
	}
	tlsTimeout := cfg.TLSTimeout
	if tlsTimeout <= 0 {
		tlsTimeout = consts.DefaultTLSTimeout
	}

	collector := probe.NewCollector(
		probe.NewResolver(dnsTimeout, cfg.NameServers, log),
		probe.NewTLSInspector(cfg.GostCheckURLs, tlsTimeout, log),
		probe.NewWAFDetector(wafTimeout, log),
		log,
	)

	var messenger notify.Messenger
	if cfg.TelegramToken != "" {
		messenger, err = telegram.NewMessenger(cfg.TelegramToken, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create telegram messenger: %w", err)
		}
	} else {
		log.Warnw("no telegram token configured, notifications go to the log")
		messenger = notify.NewLogMessenger(log)
	}

	registry := notify.NewRegistry(destRepo)
	notifier := notify.NewNotifier(registry, messenger, cfg.NotifyRate, log)
	watchService := monitor.NewService(watchRepo, log)
	scheduler := monitor.NewScheduler(watchService, collector, notifier, cfg.Tick, cfg.Concurrency, log)

	return &Container{
		WatchRepo:       watchRepo,
		DestinationRepo: destRepo,
		WatchService:    watchService,
		Registry:        registry,
		Notifier:        notifier,
		Scheduler:       scheduler,
		Collector:       collector,
	}, nil
}

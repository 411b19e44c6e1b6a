package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marcelsud/webhook-pipeline/alert"
	"github.com/marcelsud/webhook-pipeline/breaker"
	"github.com/marcelsud/webhook-pipeline/config"
	"github.com/marcelsud/webhook-pipeline/deadletter"
	"github.com/marcelsud/webhook-pipeline/event"
	"github.com/marcelsud/webhook-pipeline/handler"
	"github.com/marcelsud/webhook-pipeline/health"
	chihandlers "github.com/marcelsud/webhook-pipeline/internal/http/chi"
	"github.com/marcelsud/webhook-pipeline/metrics"
	"github.com/marcelsud/webhook-pipeline/pipeline"
	"github.com/marcelsud/webhook-pipeline/retry"
	"github.com/marcelsud/webhook-pipeline/source"
	"github.com/marcelsud/webhook-pipeline/storage/redis"
	"github.com/marcelsud/webhook-pipeline/validator"
)

const TIMEOUT = 30 * time.Second

/* “a porta de entrada e saída da minha aplicação”
* Porque a porta de entrada? É no arquivo main.go, que vai ser compilado para gerar o executável da aplicação,
* onde é feita toda a “amarração” dos demais pacotes.
* É nele onde iniciamos as dependências, fazemos as configurações e a invocação dos pacotes que desempenham a lógica de negócio.

* E porque ele é a porta de saída da aplicação?
* https://eltonminetto.dev/post/2022-07-06-error-handling-cli-applications-golang/
 */

/*
 * As importações devem ser feitas apenas em uma direção: para baixo. O aplicativo (api, cli) importa camadas de negócios,
 * que importam a camada de armazenamento
 */

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Println(err)
		return
	}
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	repo, err := redis.NewRepository(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer repo.Close(ctx)

	sources := source.NewLoader()
	if err := sources.Load(cfg.SourcesFile); err != nil {
		fmt.Println(err)
		return
	}

	breakers := breaker.NewRegistry(sources)
	alerts := alert.NewLogSink(logger)
	dead := deadletter.NewStore(repo.DeadLetters(), alerts, cfg.DeadLetterMaxReprocess, logger)

	handlers := handler.NewRegistry()
	registerDeliveryLog(handlers, sources, logger)

	scheduler := retry.NewScheduler(retry.Config{
		Interval:    time.Duration(cfg.RetryIntervalSeconds) * time.Second,
		BatchSize:   cfg.RetryBatchSize,
		Concurrency: cfg.RetryConcurrency,
	}, repo.Events(), repo.RetryItems(), breakers, sources, dead, logger)

	monitor := health.NewMonitor(repo.Events(), repo.Health(), sources, alerts, logger)

	svc := pipeline.NewService(validator.New(sources), repo.Events(), handlers, scheduler, dead, sources, breakers, logger)

	collector := metrics.NewPipelineCollector(scheduler, breakers, dead, monitor)
	exporter, err := metrics.NewOTelExporter(collector)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer exporter.Shutdown(context.Background())

	go scheduler.Start(ctx)
	go monitor.Start(ctx)
	go retentionSweep(ctx, dead, cfg.DeadLetterRetentionDays, logger)
	defer scheduler.Stop()
	defer monitor.Stop()

	r := chihandlers.Handlers(ctx, svc, sources, scheduler, dead, monitor, breakers, exporter.ServeHTTP())
	http.Handle("/", r)
	srv := &http.Server{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Addr:         ":" + cfg.Port,
		Handler:      http.DefaultServeMux,
	}

	errShutdown := make(chan error, 1)
	go shutdown(srv, ctx, errShutdown)
	fmt.Printf("Listening on port %s\n", cfg.Port)
	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		fmt.Println(err)
		return
	}
	err = <-errShutdown
	if err != nil {
		fmt.Println(err)
		return
	}
}

/* registerDeliveryLog installs a fallback consumer for every configured
 * event type so accepted events have somewhere to go until real consumers
 * are registered
 */
func registerDeliveryLog(handlers *handler.Registry, sources *source.Loader, logger *slog.Logger) {
	seen := make(map[event.Type]bool)
	for _, src := range sources.List() {
		for _, t := range src.EventTypes {
			if seen[t] {
				continue
			}
			seen[t] = true
			handlers.RegisterFunc(t, func(ctx context.Context, ev event.Event) error {
				logger.Info("event delivered",
					"event_id", ev.ID,
					"source", ev.SourceName,
					"type", ev.Type.String(),
				)
				return nil
			})
		}
	}
}

/* retentionSweep archives resolved quarantine entries past the retention
 * window and deletes archived ones past twice the window, once a day
 */
func retentionSweep(ctx context.Context, dead *deadletter.Store, days int, logger *slog.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			archived, err := dead.ArchiveOld(ctx, days)
			if err != nil {
				logger.Warn("archiving dead letters", "error", err)
			}
			deleted, err := dead.Cleanup(ctx, 2*days)
			if err != nil {
				logger.Warn("cleaning up dead letters", "error", err)
			}
			if archived > 0 || deleted > 0 {
				logger.Info("dead-letter retention sweep", "archived", archived, "deleted", deleted)
			}
		}
	}
}

func shutdown(server *http.Server, ctxShutdown context.Context, errShutdown chan error) {
	<-ctxShutdown.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), TIMEOUT)
	defer stop()

	err := server.Shutdown(ctxTimeout)
	switch err {
	case nil:
		fmt.Printf("\nShutting down server...\n")
		errShutdown <- nil
	case context.DeadlineExceeded:
		errShutdown <- fmt.Errorf("Forcing closing the server")
	default:
		errShutdown <- fmt.Errorf("Forcing closing the server")
	}
}

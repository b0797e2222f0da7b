// Package main is the entry point for webpilot.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"webpilot-go/application"
	"webpilot-go/core/eventbus"
	"webpilot-go/domain/artifact"
	domaintask "webpilot-go/domain/task"
	"webpilot-go/infrastructure/browser"
	"webpilot-go/infrastructure/logging"
	"webpilot-go/infrastructure/repository"
	"webpilot-go/infrastructure/sink"
	"webpilot-go/resources"
)

func main() {
	var (
		backend     = flag.String("backend", "chromedp", "browser backend: chromedp or rod")
		taskName    = flag.String("task", "", "task to run (default: all registered tasks)")
		sessions    = flag.Int("sessions", 1, "number of concurrent browser sessions")
		artifactDir = flag.String("artifacts", "artifacts", "directory for captured artifacts")
		artifactURL = flag.String("artifact-url", "", "base URL of a remote artifact service (optional)")
		headful     = flag.Bool("headful", false, "run the browser with a visible window")
		noMongo     = flag.Bool("no-mongo", false, "skip MongoDB persistence")
		listTasks   = flag.Bool("list", false, "list registered tasks and exit")
	)
	flag.Parse()

	// Initialize logging (dev: console only, prod: rotating file)
	logger, closeLog, err := logging.Setup(nil)
	if err != nil {
		// Fallback to stderr if logging setup fails
		os.Stderr.WriteString("Failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer closeLog()

	logger.Info("Starting webpilot", "backend", *backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load tasks
	taskRegistry := domaintask.NewRegistry()
	taskLoader := domaintask.NewLoader(taskRegistry)
	if err := taskLoader.LoadFromFS(resources.TaskFiles); err != nil {
		logger.Error("Failed to load tasks", "error", err)
		os.Exit(1)
	}
	logger.Info("Tasks loaded", "count", taskRegistry.Count())

	if *listTasks {
		os.Stdout.WriteString(strings.Join(taskRegistry.List(), "\n") + "\n")
		return
	}

	// Artifacts always go to the local filesystem; MongoDB additionally
	// records artifacts and task runs when it is reachable.
	var artifactSink artifact.Sink = sink.NewFileSink(*artifactDir, logger)
	if *artifactURL != "" {
		httpConfig := sink.DefaultHTTPSinkConfig()
		httpConfig.BaseURL = *artifactURL
		httpSink := sink.NewHTTPSink(httpConfig)
		defer httpSink.Close()
		artifactSink = sink.NewFanout(artifactSink, httpSink)
	}

	var runSink application.RunSink
	if !*noMongo {
		mongoDB, err := repository.NewMongoDB(ctx, repository.DefaultMongoDBConfig(), logger)
		if err != nil {
			logger.Warn("MongoDB unavailable, task runs will not be recorded", "error", err)
		} else {
			defer mongoDB.Close(context.Background())
			runSink = repository.NewMongoRunRepository(mongoDB, logger)
			artifactSink = sink.NewFanout(artifactSink, repository.NewMongoArtifactRepository(mongoDB, logger))
		}
	}

	// Initialize event bus
	eventBus := eventbus.New(100)
	defer eventBus.Close()

	driverConfig := browser.DefaultDriverConfig()
	driverConfig.Headless = !*headful

	// Initialize coordinator
	coordinator := application.NewCoordinator(&application.CoordinatorConfig{
		EventBus:     eventBus,
		TaskRegistry: taskRegistry,
		DriverFactory: func() browser.Driver {
			if *backend == "rod" {
				return browser.NewRodDriver(driverConfig)
			}
			return browser.NewChromeDPDriver(driverConfig)
		},
		ArtifactSink: artifactSink,
		RunSink:      runSink,
		Logger:       logger,
	})
	defer coordinator.Stop()

	for i := 0; i < *sessions; i++ {
		if _, err := coordinator.OpenSession(ctx); err != nil {
			logger.Error("Failed to open session", "error", err)
			os.Exit(1)
		}
	}
	logger.Info("Sessions opened", "count", coordinator.SessionCount())

	names := taskRegistry.List()
	if *taskName != "" {
		names = []string{*taskName}
	}

	failed := false
	for _, name := range names {
		if ctx.Err() != nil {
			logger.Warn("Interrupted, skipping remaining tasks")
			break
		}
		logger.Info("Running task", "task", name)
		if err := coordinator.RunTaskAll(ctx, name); err != nil {
			logger.Error("Task run failed", "task", name, "error", err)
			failed = true
		}
	}

	coordinator.Stop()
	logger.Info("Shutdown complete")
	if failed {
		os.Exit(1)
	}
}

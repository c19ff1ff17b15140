package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reportdesk/api"
	"reportdesk/cli"
	"reportdesk/config"
	"reportdesk/core/audit"
	"reportdesk/core/comments"
	"reportdesk/core/fieldcrypt"
	"reportdesk/core/incidents"
	"reportdesk/core/notify"
	"reportdesk/core/rbac"
	"reportdesk/core/store"
	"reportdesk/core/utils"
)

func main() {
	if len(os.Args) > 1 {
		os.Exit(cli.Run(os.Args[1:]))
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger := utils.NewLogger()
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		logger.Fatalf("db init: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := store.ApplyMigrations(ctx, db, logger); err != nil {
		logger.Fatalf("migrations: %v", err)
	}
	roles := store.NewRolesStore(db)
	if err := rbac.EnsureBuiltIn(ctx, roles); err != nil {
		logger.Fatalf("bootstrap roles: %v", err)
	}

	codec, err := fieldcrypt.New(cfg.EncryptionKey, cfg.AppEnv, logger)
	if err != nil {
		logger.Fatalf("encryption: %v", err)
	}

	dispatcher := audit.NewDispatcher(store.NewAuditStore(db), audit.OptionsFromConfig(cfg.Audit), logger)
	dispatcher.Start()
	replay, err := audit.NewReplayScheduler(dispatcher, cfg.Audit.ReplaySchedule, logger)
	if err != nil {
		logger.Fatalf("audit replay schedule: %v", err)
	}
	replay.Start()

	events := store.NewEventsStore(db)
	engine := rbac.NewEngine(roles, store.NewRoleAssignmentsStore(db), events, dispatcher, logger)
	incidentsSvc := incidents.NewService(incidents.Deps{
		Incidents:  store.NewIncidentsStore(db),
		Tags:       store.NewTagsStore(db),
		Files:      store.NewFilesStore(db),
		Events:     events,
		Authorizer: engine,
		Codec:      codec,
		Audit:      dispatcher,
		Logger:     logger,
	})
	commentsSvc := comments.NewService(store.NewCommentsStore(db), incidentsSvc, codec, dispatcher, logger)

	srv := api.NewServer(cfg, logger, api.ServerDeps{
		DB:           db,
		Engine:       engine,
		IncidentsSvc: incidentsSvc,
		CommentsSvc:  commentsSvc,
		Audit:        dispatcher,
		Notifier:     notify.NewLogNotifier(logger),
	})
	go func() {
		logger.Printf("listening on %s", cfg.ListenAddr)
		if err := srv.Start(); err != nil {
			logger.Fatalf("server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Errorf("graceful shutdown: %v", err)
	}
	if err := replay.StopWithContext(shutdownCtx); err != nil {
		logger.Errorf("audit replay stop: %v", err)
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		logger.Errorf("audit drain: %v", err)
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Daclify/daclifycore/internal/auth"
	"github.com/Daclify/daclifycore/internal/config"
	"github.com/Daclify/daclifycore/internal/custodians"
	"github.com/Daclify/daclifycore/internal/dispatch"
	"github.com/Daclify/daclifycore/internal/domain"
	"github.com/Daclify/daclifycore/internal/group"
	"github.com/Daclify/daclifycore/internal/hooks"
	"github.com/Daclify/daclifycore/internal/hub"
	"github.com/Daclify/daclifycore/internal/ledger"
	"github.com/Daclify/daclifycore/internal/logging"
	"github.com/Daclify/daclifycore/internal/members"
	"github.com/Daclify/daclifycore/internal/modules"
	"github.com/Daclify/daclifycore/internal/observability"
	"github.com/Daclify/daclifycore/internal/proposals"
	"github.com/Daclify/daclifycore/internal/server"
	"github.com/Daclify/daclifycore/internal/storage"
	"github.com/Daclify/daclifycore/internal/thresholds"
)

func main() {
	configPath := flag.String("config", "daclify.toml", "path to the node config")
	writeTemplate := flag.Bool("init", false, "write a starter config to -config and exit")
	flag.Parse()

	logging.ConfigureRuntime()

	if *writeTemplate {
		if err := config.WriteTemplate(*configPath, false); err != nil {
			log.Fatal().Err(err).Msg("config_template_failed")
		}
		log.Info().Str("path", *configPath).Msg("config_template_written")
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config_load_failed")
	}
	groupAccount, err := domain.ParseAccount(cfg.Group)
	if err != nil {
		log.Fatal().Err(err).Msg("config_group_invalid")
	}
	observability.InitLogger("daclifyd", groupAccount.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, groupAccount); err != nil {
		log.Fatal().Err(err).Msg("daclifyd_failed")
	}
}

func run(ctx context.Context, cfg config.NodeConfig, groupAccount domain.Account) error {
	store, err := storage.Open(cfg.DataPath)
	if err != nil {
		return err
	}
	defer store.Close()

	dir := domain.OpenDirectory{}
	dispatcher := hooks.NewDispatcher(
		config.HookSource(cfg.Hooks),
		hub.NewHookNotifier(hub.NewClient(cfg.Sidecar.HooksURL)),
	)

	groupSvc := group.NewService(store, groupAccount, dir, dispatcher)
	custSvc := custodians.NewService(store, groupAccount, dir, dispatcher, nil)
	threshSvc := thresholds.NewService(store, dir)
	memberSvc := members.NewService(store, groupAccount, dir, dispatcher, nil)
	ledgerSvc := ledger.NewService(store, groupAccount,
		hub.NewTokenGateway(hub.NewClient(cfg.Sidecar.TokenURL)), dispatcher)
	moduleSvc := modules.NewService(store, groupAccount,
		hub.NewPayrollForwarder(hub.NewClient(cfg.Sidecar.PayrollURL)), dispatcher)

	registry := dispatch.NewRegistry(groupAccount, nil)
	propSvc := proposals.NewService(store, groupAccount, registry,
		hub.NewNotifier(hub.NewClient(cfg.Sidecar.HubURL)), dispatcher, nil)
	dispatch.Bind(registry, dispatch.Services{
		Group:      groupSvc,
		Custodians: custSvc,
		Members:    memberSvc,
		Ledger:     ledgerSvc,
		Modules:    moduleSvc,
		Proposals:  propSvc,
		Directory:  dir,
	})

	authn := auth.TokenAuthenticator{
		Secret:     []byte(cfg.Auth.JWTSecret),
		Group:      groupAccount,
		AdminToken: cfg.Auth.AdminToken,
	}

	srv := server.New(groupAccount, authn, cfg.CorsOrigins, server.Services{
		Group:      groupSvc,
		Custodians: custSvc,
		Thresholds: threshSvc,
		Members:    memberSvc,
		Ledger:     ledgerSvc,
		Modules:    moduleSvc,
		Proposals:  propSvc,
	})

	httpSrv := &http.Server{Addr: cfg.Addr, Handler: srv.Router()}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Str("group", groupAccount.String()).Msg("daclifyd_listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

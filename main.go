package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/flow-hydraulics/wallet-orchestrator/accounts"
	"github.com/flow-hydraulics/wallet-orchestrator/adapters"
	"github.com/flow-hydraulics/wallet-orchestrator/assets"
	"github.com/flow-hydraulics/wallet-orchestrator/chains"
	"github.com/flow-hydraulics/wallet-orchestrator/chains/evm"
	flowchain "github.com/flow-hydraulics/wallet-orchestrator/chains/flow"
	"github.com/flow-hydraulics/wallet-orchestrator/configs"
	"github.com/flow-hydraulics/wallet-orchestrator/datastore/gorm"
	"github.com/flow-hydraulics/wallet-orchestrator/debug"
	"github.com/flow-hydraulics/wallet-orchestrator/handlers"
	"github.com/flow-hydraulics/wallet-orchestrator/jobs"
	"github.com/flow-hydraulics/wallet-orchestrator/otel"
	"github.com/flow-hydraulics/wallet-orchestrator/wallets"
	"github.com/gorilla/mux"
	access "github.com/onflow/flow-go-sdk/access/grpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const version = "0.1.0"

var (
	sha1ver   string // sha1 revision used to build the program
	buildTime string // when the executable was built
)

func main() {
	var (
		printVersion bool
		envFilePath  string
	)

	// If we should just print the version number and exit
	flag.BoolVar(&printVersion, "version", false, "if true, print version and exit")
	flag.StringVar(&envFilePath, "envfile", "", "optional env file loaded before parsing the environment")
	flag.Parse()

	if printVersion {
		fmt.Printf("v%s build on %s from sha1 %s\n", version, buildTime, sha1ver)
		os.Exit(0)
	}

	cfg, err := configs.ParseConfig(&configs.Options{EnvFilePath: envFilePath})
	if err != nil {
		panic(err)
	}

	runServer(cfg)

	os.Exit(0)
}

func runServer(cfg *configs.Config) {
	configs.ConfigureLogger(cfg.LogLevel, cfg.LogFormat)

	log.Info("Starting server")

	if cfg.OtelEnabled {
		shutdown, err := otel.InitTracer(cfg.ProjectID, cfg.OtelSampleRatio)
		if err != nil {
			log.Fatal(err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Warn(err)
			}
		}()
	}

	// Database
	db, err := gorm.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer gorm.Close(db)

	// Asset catalog
	catalog := assets.NewService(assets.NewGormStore(db))
	if err := catalog.Seed(cfg.EnabledAssets); err != nil {
		log.Fatal(err)
	}

	// Chain adapters
	registry := chains.NewRegistry()

	if cfg.FlowAccessAPIHost != "" {
		fc, err := access.NewClient(
			cfg.FlowAccessAPIHost,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(cfg.GrpcMaxCallRecvMsgSize)),
		)
		if err != nil {
			log.Fatal(err)
		}
		defer func() {
			if err := fc.Close(); err != nil {
				log.Warn(err)
			}
			log.Info("Closed Flow Client")
		}()

		registry.Register(assets.Flow, flowchain.NewFactory(fc, flowchain.Config{
			ChainID:      cfg.FlowChainID,
			SyncInterval: cfg.SyncInterval,
			MaxBackoff:   cfg.SyncMaxBackoff,
		}))
	}

	rpcURLs, err := evm.ParseRPCURLs(cfg.EvmRpcURLs)
	if err != nil {
		log.Fatal(err)
	}
	for b, url := range rpcURLs {
		ec, err := ethclient.Dial(url)
		if err != nil {
			log.Fatal(err)
		}
		defer ec.Close()

		registry.Register(b, evm.NewFactory(b, ec, evm.Config{
			SyncInterval: cfg.SyncInterval,
			MaxBackoff:   cfg.SyncMaxBackoff,
		}))
	}

	log.
		WithFields(log.Fields{"blockchains": registry.Blockchains()}).
		Info("Registered chain adapters")

	// Create a worker pool
	wp := jobs.NewWorkerPool(cfg.WorkerQueueCapacity, cfg.WorkerCount)
	defer func() {
		wp.Stop()
		log.Info("Stopped workerpool")
	}()

	// Managers
	accountManager := accounts.NewManager(
		accounts.NewGormStore(db),
		accounts.WithCurrentLevel(cfg.DefaultLevel),
	)
	defer accountManager.Close()

	walletManager := wallets.NewManager(
		accountManager,
		wallets.NewStorage(wallets.NewGormStore(db), catalog),
	)
	defer walletManager.Stop()

	adapterManager := adapters.NewManager(
		walletManager,
		registry,
		wp,
		adapters.WithRefreshLimiter(ratelimit.New(cfg.RefreshMaxRate, ratelimit.WithoutSlack)),
		adapters.WithMetrics(prometheus.DefaultRegisterer),
	)
	defer func() {
		adapterManager.Stop()
		log.Info("Stopped adapters")
	}()

	if err := walletManager.Start(context.Background()); err != nil {
		log.Fatal(err)
	}
	adapterManager.Start(context.Background())

	// HTTP handling
	accountHandler := handlers.NewAccounts(accountManager)
	walletHandler := handlers.NewWallets(walletManager, catalog, adapterManager)
	adapterHandler := handlers.NewAdapters(adapterManager)
	assetHandler := handlers.NewAssets(catalog)

	debugService := &debug.Service{
		RepoUrl:   "https://github.com/flow-hydraulics/wallet-orchestrator",
		Sha1ver:   sha1ver,
		BuildTime: buildTime,
		Adapters:  adapterManager.DebugInfo,
	}

	r := mux.NewRouter()

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Catch the api version
	rv := r.PathPrefix("/{apiVersion}").Subrouter()

	// Debug
	rv.HandleFunc("/debug", debugService.HandleDebug).Methods(http.MethodGet)

	// Health
	rv.Handle("/health/ready", handlers.Ready(adapterManager.Ready)).Methods(http.MethodGet)
	rv.Handle("/health/liveness", handlers.Liveness(func() (interface{}, error) {
		return wp.Status()
	})).Methods(http.MethodGet)

	// Accounts
	rv.Handle("/accounts", accountHandler.List()).Methods(http.MethodGet)                    // list
	rv.Handle("/accounts", accountHandler.Create()).Methods(http.MethodPost)                 // create
	rv.Handle("/accounts/active", accountHandler.Active()).Methods(http.MethodGet)           // active account
	rv.Handle("/accounts/{id}", accountHandler.Delete()).Methods(http.MethodDelete)          // delete
	rv.Handle("/accounts/{id}/activate", accountHandler.Activate()).Methods(http.MethodPost) // activate

	// Wallets of the active account
	rv.Handle("/wallets", walletHandler.List()).Methods(http.MethodGet)       // list
	rv.Handle("/wallets", walletHandler.Enable()).Methods(http.MethodPost)    // enable
	rv.Handle("/wallets", walletHandler.Disable()).Methods(http.MethodDelete) // disable
	rv.Handle("/wallets/{walletId}/state", walletHandler.State()).Methods(http.MethodGet)
	rv.Handle("/wallets/{walletId}/balance", walletHandler.Balance()).Methods(http.MethodGet)
	rv.Handle("/wallets/{walletId}/receive-address", walletHandler.ReceiveAddress()).Methods(http.MethodGet)
	rv.Handle("/wallets/{walletId}/refresh", walletHandler.Refresh()).Methods(http.MethodPost)

	// Asset catalog
	rv.Handle("/assets", assetHandler.List()).Methods(http.MethodGet)                     // list
	rv.Handle("/assets", assetHandler.Add()).Methods(http.MethodPost)                     // add
	rv.Handle("/assets/{tokenQueryId}", assetHandler.Remove()).Methods(http.MethodDelete) // remove

	// Adapters
	rv.Handle("/adapters/refresh", adapterHandler.Refresh()).Methods(http.MethodPost)
	rv.Handle("/adapters/states", adapterHandler.States()).Methods(http.MethodGet)

	h := http.TimeoutHandler(r, cfg.ServerRequestTimeout, "request timed out")
	h = handlers.UseCors(h)
	h = handlers.UseLogging(log.StandardLogger(), h)
	h = handlers.UseCompress(h)

	// Server boilerplate
	srv := &http.Server{
		Handler:      h,
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		WriteTimeout: 0, // Disabled, set cfg.ServerRequestTimeout instead
		ReadTimeout:  0, // Disabled, set cfg.ServerRequestTimeout instead
	}

	// Run our server in a goroutine so that it doesn't block.
	go func() {
		log.
			WithFields(log.Fields{
				"host": cfg.Host,
				"port": cfg.Port,
			}).
			Info("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(err)
		}
	}()

	// Trap interrupt or sigterm and gracefully shutdown the server
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	// Block until we receive our signal.
	sig := <-c

	log.Infof("Got signal: %s. Shutting down..", sig)

	// Create a deadline to wait for.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*15)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warnf("Error in server shutdown: %s", err)
	}
}

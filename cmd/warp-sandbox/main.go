package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"

	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/warp/internal/pkg/application/sandbox"
	"github.com/diwise/warp/internal/pkg/infrastructure/router"
	api "github.com/diwise/warp/internal/pkg/presentation/api/warp"
	"github.com/diwise/warp/internal/pkg/presentation/api/warp/auth"
)

const serviceName string = "warp-sandbox"

func main() {
	serviceVersion := buildinfo.SourceVersion()

	ctx, log, cleanup := o11y.Init(context.Background(), serviceName, serviceVersion, "json")
	defer cleanup()

	flags := parseExternalConfig(ctx, DefaultFlags())

	cfg, err := loadConfigurationFile(flags[configPath])
	if err != nil {
		log.Error("failed to load configuration", "path", flags[configPath], "err", err.Error())
		os.Exit(1)
	}

	var policies io.ReadCloser
	if flags[opaPath] != "" {
		policies, err = os.Open(flags[opaPath])
		if err != nil {
			log.Error("failed to open policy file", "path", flags[opaPath], "err", err.Error())
			os.Exit(1)
		}
	}

	handler, app, closeStore, err := initialize(ctx, cfg, policies)
	if err != nil {
		log.Error("failed to initialize service", "err", err.Error())
		os.Exit(1)
	}
	defer closeStore()

	err = app.Start()
	if err != nil {
		log.Error("failed to start sandbox", "err", err.Error())
		os.Exit(1)
	}
	defer app.Stop()

	address := net.JoinHostPort(flags[listenAddress], flags[servicePort])
	log.Info("starting to listen for connections", "address", address)

	err = http.ListenAndServe(address, handler)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("failed to listen for connections", "err", err.Error())
		os.Exit(1)
	}
}

func loadConfigurationFile(path string) (*sandbox.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return sandbox.LoadConfiguration(f)
}

// initialize selects a store, creates the sandbox and mounts the api handlers on a new router
func initialize(ctx context.Context, cfg *sandbox.Config, policies io.ReadCloser) (http.Handler, sandbox.App, func(), error) {
	log := logging.GetFromContext(ctx)

	if policies != nil {
		defer policies.Close()
	}

	store := sandbox.NewMemoryStore()
	closeStore := func() {}

	pgConfig := sandbox.LoadPostgresConfiguration(ctx)
	if pgConfig.Enabled() {
		var err error
		store, closeStore, err = sandbox.NewPostgresStore(ctx, pgConfig)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Info("using postgres object store")
	} else {
		log.Info("using in memory object store")
	}

	app, err := sandbox.New(ctx, store)
	if err != nil {
		closeStore()
		return nil, nil, nil, err
	}

	r := router.New(serviceName)

	err = api.RegisterHandlers(ctx, r, policies, auth.Keys{
		APIKeys:         cfg.APIKeys,
		MasterKey:       cfg.MasterKey,
		ReadOnlyClasses: cfg.ReadOnlyClasses(),
	}, app)
	if err != nil {
		closeStore()
		return nil, nil, nil, err
	}

	return r, app, closeStore, nil
}

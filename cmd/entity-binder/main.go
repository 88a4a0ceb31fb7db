package main

import (
	"context"
	"net/http"
	"os"

	"github.com/diwise/entity-binder/internal/pkg/application/binder"
	"github.com/diwise/entity-binder/internal/pkg/application/notifications"
	"github.com/diwise/entity-binder/internal/pkg/infrastructure/router"
	"github.com/diwise/entity-binder/internal/pkg/presentation/api/forms"
	"github.com/diwise/entity-binder/pkg/binding/mapping"
	"github.com/diwise/entity-binder/pkg/binding/typehandlers"
	"github.com/diwise/entity-binder/pkg/datamodels/devices"
	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
)

const serviceName string = "entity-binder"

func main() {
	serviceVersion := buildinfo.SourceVersion()

	ctx, logger, cleanup := o11y.Init(context.Background(), serviceName, serviceVersion, "json")
	defer cleanup()

	flags := parseExternalConfig(ctx, FlagMap{
		servicePort: "8080",
		configPath:  "/opt/diwise/config/binder.yaml",
		opaPath:     "/opt/diwise/config/authz.rego",
		storeType:   "memory",
	})

	cfgFile, err := os.Open(flags[configPath])
	if err != nil {
		logger.Error("failed to open configuration file", "path", flags[configPath], "err", err.Error())
		os.Exit(1)
	}
	defer cfgFile.Close()

	cfg, err := binder.LoadConfiguration(cfgFile)
	if err != nil {
		logger.Error("failed to load configuration", "err", err.Error())
		os.Exit(1)
	}

	policies, err := os.Open(flags[opaPath])
	if err != nil {
		logger.Error("unable to open opa policy file", "path", flags[opaPath], "err", err.Error())
		os.Exit(1)
	}
	defer policies.Close()

	stores, closeStores, err := newStoreFactory(ctx, flags)
	if err != nil {
		logger.Error("failed to set up record stores", "err", err.Error())
		os.Exit(1)
	}
	defer closeStores()

	var notifier notifications.Notifier

	if endpoint := flags[notifierEndpoint]; endpoint != "" {
		notifier, err = notifications.NewNotifier(ctx, endpoint)
		if err != nil {
			logger.Error("failed to create notifier", "err", err.Error())
			os.Exit(1)
		}

		notifier.Start()
		defer notifier.Stop()
	}

	app, err := binder.New(ctx, cfg, stores, notifier)
	if err != nil {
		logger.Error("failed to create binder application", "err", err.Error())
		os.Exit(1)
	}

	err = addMappers(ctx, app, mapping.DefaultRegistry())
	if err != nil {
		logger.Error("failed to add mappers", "err", err.Error())
		os.Exit(1)
	}

	r := router.New(serviceName)

	err = forms.RegisterHandlers(ctx, r, policies, app)
	if err != nil {
		logger.Error("failed to register api handlers", "err", err.Error())
		os.Exit(1)
	}

	logger.Info("starting to listen for connections", "port", flags[servicePort])

	err = http.ListenAndServe(":"+flags[servicePort], r)
	if err != nil {
		logger.Error("failed to listen for connections", "err", err.Error())
	}
}

func addMappers(ctx context.Context, app *binder.App, registry *mapping.Registry) error {
	err := devices.Register(registry, typehandlers.Default())
	if err != nil {
		return err
	}

	err = binder.Add[devices.DeviceModel](ctx, app, registry, devices.DeviceModelTypeName)
	if err != nil {
		return err
	}

	return binder.Add[devices.Device](ctx, app, registry, devices.DeviceTypeName)
}

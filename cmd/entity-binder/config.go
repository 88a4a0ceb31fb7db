package main

import (
	"context"
	"flag"

	"github.com/diwise/service-chassis/pkg/infrastructure/env"
)

type FlagType int
type FlagMap map[FlagType]string

const (
	servicePort FlagType = iota

	configPath
	opaPath

	storeType
	redisURL
	notifierEndpoint

	remoteToken
	remoteDebug
)

var envNames = map[FlagType]string{
	servicePort:      "SERVICE_PORT",
	configPath:       "BINDER_CONFIG_PATH",
	opaPath:          "BINDER_POLICY_PATH",
	storeType:        "BINDER_STORE",
	redisURL:         "REDIS_URL",
	notifierEndpoint: "NOTIFIER_ENDPOINT",
	remoteToken:      "BINDER_REMOTE_TOKEN",
	remoteDebug:      "BINDER_REMOTE_DEBUG",
}

// parseExternalConfig reads settings from the environment. Command line flags
// take precedence over environment variables.
func parseExternalConfig(ctx context.Context, flags FlagMap) FlagMap {
	for f, name := range envNames {
		flags[f] = env.GetVariableOrDefault(ctx, name, flags[f])
	}

	apply := func(f FlagType) func(string) error {
		return func(value string) error {
			flags[f] = value
			return nil
		}
	}

	flag.Func("port", "port number to listen on", apply(servicePort))
	flag.Func("config", "path to the binder configuration file", apply(configPath))
	flag.Func("policies", "path to a file containing the authorization policies", apply(opaPath))
	flag.Func("store", "record store to use (memory or postgres)", apply(storeType))
	flag.Parse()

	return flags
}

package main

import (
	"context"
	"flag"

	"github.com/diwise/service-chassis/pkg/infrastructure/env"
)

type FlagType int
type FlagMap map[FlagType]string

const (
	listenAddress FlagType = iota
	servicePort

	configPath
	opaPath
)

func DefaultFlags() FlagMap {
	return FlagMap{
		listenAddress: "",
		servicePort:   "8080",
		configPath:    "/opt/diwise/config/warp-sandbox.yaml",
		opaPath:       "",
	}
}

// parseExternalConfig lets environment variables and then command line flags override the defaults
func parseExternalConfig(ctx context.Context, flags FlagMap) FlagMap {
	apply := func(f FlagType) func(string) error {
		return func(value string) error {
			flags[f] = value
			return nil
		}
	}

	flags[listenAddress] = env.GetVariableOrDefault(ctx, "LISTEN_ADDRESS", flags[listenAddress])
	flags[servicePort] = env.GetVariableOrDefault(ctx, "SERVICE_PORT", flags[servicePort])
	flags[configPath] = env.GetVariableOrDefault(ctx, "WARP_SANDBOX_CONFIG_PATH", flags[configPath])
	flags[opaPath] = env.GetVariableOrDefault(ctx, "WARP_SANDBOX_POLICIES", flags[opaPath])

	flag.Func("config", "path to the sandbox configuration file", apply(configPath))
	flag.Func("policies", "path to a rego file with access policies", apply(opaPath))
	flag.Func("port", "port to listen for connections on", apply(servicePort))
	flag.Parse()

	return flags
}

// Package gateway creates the router gateway selected by configuration.
package gateway

import (
	"fmt"
	"log/slog"

	"go.hackfix.me/curfew/gateway/mock"
	"go.hackfix.me/curfew/gateway/rest"
	"go.hackfix.me/curfew/gateway/types"
)

// Setup creates a new Gateway of the given type.
//
//nolint:ireturn // Intentional, this is a factory function.
func Setup(gt types.GatewayType, restCfg rest.Config, logger *slog.Logger) (types.Gateway, error) {
	logger = logger.With("component", "gateway")

	var (
		gw  types.Gateway
		err error
	)
	switch gt {
	case types.GatewayMock:
		logger.Warn("using in-memory mock gateway; no router will be changed")
		gw = mock.New()
	case types.GatewayREST:
		gw, err = rest.New(restCfg, logger)
	default:
		return nil, fmt.Errorf("unsupported gateway type '%s'", gt)
	}
	if err != nil {
		return nil, fmt.Errorf("failed creating %s gateway: %w", gt, err)
	}

	return gw, nil
}

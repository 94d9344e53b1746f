package cli

import (
	"go.hackfix.me/curfew/access"
	actx "go.hackfix.me/curfew/app/context"
	aerrors "go.hackfix.me/curfew/app/errors"
	"go.hackfix.me/curfew/db"
	"go.hackfix.me/curfew/gateway"
	"go.hackfix.me/curfew/gateway/rest"
)

// newManager creates the access window manager from the application context.
// The gateway is created from the configuration, unless the context already
// has one. extraOpts are applied last.
func newManager(appCtx *actx.Context, extraOpts ...access.Option) (*access.Manager, error) {
	cfg := appCtx.Config

	gw := appCtx.Gateway
	if gw == nil {
		var err error
		gw, err = gateway.Setup(cfg.Gateway.Type.V, rest.Config{
			Address:            cfg.Gateway.Address.V,
			Username:           cfg.Gateway.Username.V,
			Password:           cfg.Gateway.Password.V,
			Timeout:            cfg.Gateway.Timeout.V,
			InsecureSkipVerify: cfg.Gateway.InsecureSkipVerify.V,
		}, appCtx.Logger)
		if err != nil {
			return nil, aerrors.NewWithCause("failed setting up the router gateway", err,
				"hint", "Set the router address with --gateway-address or in the configuration file.")
		}
	}

	opts := []access.Option{
		access.WithLogger(appCtx.Logger),
		access.WithTimeNow(appCtx.TimeNow),
		access.WithSaltedTags(cfg.Schedule.SaltTags.V),
		access.WithTaskPolicy(cfg.Schedule.Policy.V),
	}
	if appCtx.DB != nil {
		opts = append(opts, access.WithHistory(db.NewHistory(appCtx.DB, appCtx.UUIDGen)))
	}
	opts = append(opts, extraOpts...)

	//nolint:wrapcheck // Only fails on invalid options.
	return access.NewManager(gw, opts...)
}

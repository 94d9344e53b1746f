package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/alecthomas/kong"

	"go.hackfix.me/curfew/app/config"
	actx "go.hackfix.me/curfew/app/context"
	gtypes "go.hackfix.me/curfew/gateway/types"
)

// CLI is the command line interface of curfew.
type CLI struct {
	Schedule   Schedule   `kong:"cmd,help='Restrict a client address to a daily access window.'"`
	Unschedule Unschedule `kong:"cmd,help='Remove the access window of a client address.'"`
	Status     Status     `kong:"cmd,help='Show the access windows on the router.'"`
	History    History    `kong:"cmd,help='Show recorded changes to access windows.'"`
	Serve      Serve      `kong:"cmd,help='Start the web server.'"`

	Log struct {
		Level slog.Level `enum:"DEBUG,INFO,WARN,ERROR" default:"INFO" help:"Set the app logging level."`
	} `embed:"" prefix:"log-"`
	Gateway struct {
		Type     string `help:"Gateway implementation. Valid values: mock, rest"`
		Address  string `help:"Router REST API address, as host[:port] or URL."`
		Username string `help:"Router user name."`
		Password string `help:"Router password."`
	} `embed:"" prefix:"gateway-"`
	// NOTE: Configuration files are managed independently from the CLI, so
	// kong.ConfigFlag isn't used.
	ConfigFile string           `kong:"default='${configFile}',help='Path to the configuration file.'"`
	DataDir    string           `kong:"default='${dataDir}',help='Path to the directory where data is stored.'"`
	Version    kong.VersionFlag `kong:"help='Output version and exit.'"`

	kong *kong.Kong
	kctx *kong.Context
}

// New initializes the command-line interface.
func New(appCtx *actx.Context, name, configFilePath, dataDir, version string) (*CLI, error) {
	c := &CLI{}
	opts := []kong.Option{
		kong.Name(name),
		kong.UsageOnError(),
		kong.DefaultEnvars("CURFEW"),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			Summary:             true,
			NoExpandSubcommands: true,
		}),
		kong.Writers(appCtx.Stdout, appCtx.Stderr),
		kong.Vars{
			"configFile": configFilePath,
			"dataDir":    dataDir,
			"version":    version,
		},
	}
	if appCtx.Env != nil {
		opts = append(opts, kong.Resolvers(envResolver(appCtx.Env)))
	}

	kparser, err := kong.New(c, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed creating the Kong parser: %w", err)
	}

	c.kong = kparser

	return c, nil
}

// Execute starts the command execution. Parse must be called before this method.
func (c *CLI) Execute(appCtx *actx.Context) error {
	if c.kctx == nil {
		panic("the CLI wasn't initialized properly")
	}
	c.kong.Stdout = appCtx.Stdout
	c.kong.Stderr = appCtx.Stderr

	//nolint:wrapcheck // This is fine.
	return c.kctx.Run(appCtx)
}

// Parse the given command line arguments. This method must be called before
// Execute.
func (c *CLI) Parse(args []string) error {
	kctx, err := c.kong.Parse(args)
	if err != nil {
		return fmt.Errorf("failed parsing CLI arguments: %w", err)
	}
	c.kctx = kctx

	return nil
}

// Command returns the full path of the executed command.
func (c *CLI) Command() string {
	if c.kctx == nil {
		panic("the CLI wasn't initialized properly")
	}
	cmdPath := []string{}
	for _, p := range c.kctx.Path {
		if p.Command != nil {
			cmdPath = append(cmdPath, p.Command.Name)
		}
	}

	return strings.Join(cmdPath, " ")
}

// ApplyConfig merges configuration values and CLI flags. The server address
// is read from the configuration only if it wasn't set on the command line,
// and gateway flags and environment variables override the gateway
// configuration.
func (c *CLI) ApplyConfig(cfg *config.Config) {
	if c.Serve.Address == "" && cfg.Server.Address.Valid {
		c.Serve.Address = cfg.Server.Address.V
	}

	if c.Gateway.Type != "" {
		cfg.Gateway.Type.V, cfg.Gateway.Type.Valid = gtypes.GatewayType(c.Gateway.Type), true
	}
	if c.Gateway.Address != "" {
		cfg.Gateway.Address.V, cfg.Gateway.Address.Valid = c.Gateway.Address, true
	}
	if c.Gateway.Username != "" {
		cfg.Gateway.Username.V, cfg.Gateway.Username.Valid = c.Gateway.Username, true
	}
	if c.Gateway.Password != "" {
		cfg.Gateway.Password.V, cfg.Gateway.Password.Valid = c.Gateway.Password, true
	}
}

// envResolver reads flag values from the CURFEW_* variables of env.
func envResolver(env actx.Environment) kong.Resolver {
	return kong.ResolverFunc(func(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (any, error) {
		for _, name := range flag.Envs {
			if v := env.Get(name); v != "" {
				return v, nil
			}
		}
		return nil, nil //nolint:nilnil // No value for this flag.
	})
}

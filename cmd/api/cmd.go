package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/eskrenkovic/fear-tracker-go/internal/config"
	"github.com/eskrenkovic/fear-tracker-go/internal/server"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type options struct {
	envFile string
	port    int
	store   string
}

// apply loads the env file and lets explicit flags win over it.
func (o *options) apply(fs *pflag.FlagSet) error {
	if o.envFile != "" {
		err := godotenv.Load(o.envFile)
		// The default file is optional.
		missingDefault := errors.Is(err, os.ErrNotExist) && !fs.Changed("env-file")
		if err != nil && !missingDefault {
			return fmt.Errorf("load %s: %w", o.envFile, err)
		}
	}

	if fs.Changed("port") {
		if err := os.Setenv(config.PortEnv, strconv.Itoa(o.port)); err != nil {
			return err
		}
	}

	if fs.Changed("store") {
		if err := os.Setenv(config.StoreDriverEnv, o.store); err != nil {
			return err
		}
	}

	return nil
}

func newCmd(opts *options) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("FEARTRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "fear-tracker",
		Short:         "Shared fear and countdown tracker for tabletop sessions.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.apply(cmd.Flags()); err != nil {
				return err
			}
			return run(cmd.Context())
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&opts.envFile, "env-file", "e", "config.env", "env file to load before reading configuration (env: FEARTRACKER_ENV_FILE)")
	fs.IntVarP(&opts.port, "port", "p", 8080, "port to listen on, overrides PORT (env: FEARTRACKER_PORT)")
	fs.StringVar(&opts.store, "store", config.StoreMemory, "document store driver, memory or postgres, overrides STORE_DRIVER (env: FEARTRACKER_STORE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func run(ctx context.Context) (err error) {
	conf, err := config.Load()
	if err != nil {
		return err
	}
	defer func() { _ = conf.Logger.Sync() }()

	zap.ReplaceGlobals(conf.Logger)

	srv, err := server.NewHTTPServer(conf)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, srv.Stop())
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Start(ctx)
}

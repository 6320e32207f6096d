package main

import (
	"context"

	"github.com/kzs0/strata"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps command line flags to option keys understood by
// strata.LoadOptions.
var flagKeys = map[string]string{
	"dsn":                   "dsn",
	"release":               "release",
	"environment":           "environment",
	"traces-sample-rate":    "traces_sample_rate",
	"propagate-traceparent": "propagate_traceparent",
	"debug":                 "debug",
}

// session is the trace state a command works on.
type session struct {
	store *strata.Store
	ctx   context.Context
	done  func()
}

func bindFlags(fs *pflag.FlagSet, vp *viper.Viper) error {
	fs.String("dsn", "", "ingestion endpoint; its user part becomes sentry-public_key")
	fs.String("release", "", "release written into outgoing baggage")
	fs.String("environment", "", "environment written into outgoing baggage")
	fs.Float64("traces-sample-rate", 0, "sample rate written into outgoing baggage")
	fs.Bool("propagate-traceparent", false, "also emit a W3C traceparent header")
	fs.Bool("debug", false, "enable diagnostic logging")
	fs.String("trace", "", "incoming sentry-trace or traceparent value to continue")
	fs.String("baggage", "", "incoming baggage value to continue")

	for flag, key := range flagKeys {
		if err := vp.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return errors.Wrapf(err, "bind flag %s", flag)
		}
	}
	return nil
}

// newSession loads options from vp and continues the trace given by the
// --trace and --baggage flags. Without them the trace comes from
// SENTRY_TRACE and SENTRY_BAGGAGE, or a new one is started.
func newSession(cmd *cobra.Command, vp *viper.Viper) (*session, error) {
	opts, err := strata.LoadOptions(vp)
	if err != nil {
		return nil, err
	}

	st := strata.NewStore(nil)
	ctx, done := strata.Init(cmd.Context(), strata.WithOptions(opts), strata.WithStore(st))

	incoming := map[string]string{}
	if v, _ := cmd.Flags().GetString("trace"); v != "" {
		incoming["sentry-trace"] = v
		incoming["traceparent"] = v
	}
	if v, _ := cmd.Flags().GetString("baggage"); v != "" {
		incoming["baggage"] = v
	}
	if len(incoming) > 0 {
		var guard *strata.Guard
		ctx, guard = st.ContinueTrace(ctx, incoming)
		initDone := done
		done = func() {
			guard.Close()
			initDone()
		}
	}

	return &session{store: st, ctx: ctx, done: done}, nil
}

// New builds the root command.
func New(vp *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:          "strata",
		Short:        "Mint, continue and inspect strata trace headers",
		SilenceUsage: true,
	}
	if err := bindFlags(root.PersistentFlags(), vp); err != nil {
		panic(err)
	}

	root.AddCommand(
		newHeadersCmd(vp),
		newEnvCmd(vp),
		newMetaCmd(vp),
		newParseCmd(),
	)
	return root
}

// Execute runs the CLI with a viper instance reading strata.yaml and
// STRATA_ environment variables.
func Execute() error {
	return New(strata.NewViper()).Execute()
}

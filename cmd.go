package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"obdreader/can"
	"obdreader/config"
	"obdreader/device"
	"obdreader/device/sim"
	"obdreader/device/slcan"
	"obdreader/logging"
	"obdreader/obd"
	"obdreader/output"
	"obdreader/publish"
	"obdreader/report"
)

// frameBuffer is how many received frames may wait for the session.
const frameBuffer = 64

// options are the global flags
type options struct {
	configPath string
	output     string
	strict     bool
	timeout    time.Duration

	conf config.Config // loaded in PersistentPreRunE
}

// RootCmd builds the obdreader command tree.
func RootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "obdreader",
		Short: "Read the VIN and trouble codes from a vehicle over CAN",
		Long: `obdreader talks OBD-II to a vehicle through an SLCAN adapter, or to a
built in simulated ECU. Without a subcommand it opens an interactive console.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd, opts.conf)
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default is ./"+config.DefaultPath+")")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "text", "output format: text, json, yaml")
	root.PersistentFlags().BoolVar(&opts.strict, "strict", false, "reject responses whose consecutive frames arrive out of order")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 0, "response timeout (overrides obd.timeout)")

	root.AddCommand(
		queryCmd(opts, "vin", "Read the vehicle identification number", report.TypeVIN),
		queryCmd(opts, "codes", "Read stored diagnostic trouble codes", report.TypeCodes),
		queryCmd(opts, "clear-codes", "Clear stored diagnostic trouble codes", report.TypeCleared),
	)
	return root
}

// load reads the config file and applies the flag overrides.
func (o *options) load(cmd *cobra.Command) error {
	conf, err := config.LoadConfig(o.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("strict") {
		conf.OBD.StrictSequence = o.strict
	}
	if o.timeout > 0 {
		conf.OBD.Timeout = o.timeout
	}
	if !output.Valid(o.output) {
		return fmt.Errorf("unknown output format %q", o.output)
	}
	o.conf = conf
	return nil
}

func queryCmd(opts *options, use, short string, t report.Type) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.Configure(opts.conf.Log, cmd.ErrOrStderr())
			r, err := runQuery(cmd.Context(), opts.conf, t, logger)
			if err != nil {
				return err
			}
			f := output.NewFormatter(opts.output)
			// Text output would only repeat the error.
			if _, text := f.(*output.TextFormatter); text && r.Err != nil {
				return r.Err
			}
			fmt.Fprint(cmd.OutOrStdout(), f.Format(r))
			return r.Err
		},
	}
}

// openBus connects the link named in the config.
func openBus(conf config.InterfaceConfig, logger zerolog.Logger) (device.Bus, error) {
	switch conf.Type {
	case config.InterfaceSim:
		logger.Info().Msg("using simulated ECU")
		return sim.New(sim.WithLogger(logger)), nil
	default:
		return slcan.Connect(conf, logger)
	}
}

// openPublisher connects the event sink. An unreachable sink only costs the
// events; queries still run.
func openPublisher(conf config.PublishConfig, logger zerolog.Logger) publish.Publisher {
	pub, err := publish.New(conf, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("event sink unavailable, not publishing")
		return publish.Discard
	}
	return pub
}

func newSession(conf config.OBDConfig, bus device.Bus, frames <-chan can.Frame, logger zerolog.Logger, extra ...obd.SessionOption) *obd.Session {
	opts := []obd.SessionOption{
		obd.WithIDs(conf.RequestID, conf.ResponseID),
		obd.WithTimeout(conf.Timeout),
		obd.WithStrictSequence(conf.StrictSequence),
		obd.WithLogger(logger),
	}
	return obd.NewSession(bus, frames, append(opts, extra...)...)
}

// runQuery runs one query with the link reader alongside it and publishes
// the outcome. The returned error is about the link; the query's own
// failure is in the report.
func runQuery(ctx context.Context, conf config.Config, t report.Type, logger zerolog.Logger) (report.Report, error) {
	bus, err := openBus(conf.Interface, logger)
	if err != nil {
		return report.Report{}, err
	}
	defer bus.Close()

	pub := openPublisher(conf.Publish, logger)
	defer pub.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	frames := make(chan can.Frame, frameBuffer)
	session := newSession(conf.OBD, bus, frames, logger)

	var r report.Report
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bus.Run(gctx, frames)
	})
	g.Go(func() error {
		defer cancel()
		r = session.Query(gctx, t)
		return nil
	})
	if err := g.Wait(); err != nil {
		return r, fmt.Errorf("link failed: %w", err)
	}

	if err := pub.Publish(r); err != nil {
		logger.Warn().Err(err).Msg("publish failed")
	}
	return r, nil
}

// consoleLog picks where logs go while the console owns the terminal.
func consoleLog(conf config.LogConfig) (io.Writer, func(), error) {
	if conf.File == "" {
		return io.Discard, func() {}, nil
	}
	f, err := os.OpenFile(conf.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

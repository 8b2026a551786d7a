// journeyctl is a terminal client for a running journey server. It keeps a
// local session in sync with the REST API and prints the same views the web
// UI renders.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"journey/internal/cli"
	"journey/internal/client"
	"journey/internal/config"
	"journey/internal/log"
	"journey/internal/rates"
	"journey/internal/session"

	"github.com/spf13/cobra"
)

type app struct {
	cfg     *config.Config
	api     *client.Client
	session *session.Session
	atomic  bool
	manual  bool
}

func main() {
	a := &app{}
	if err := a.rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "journeyctl",
		Short:         "Track the savings journey from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd, args)
		},
	}
	root.PersistentFlags().String("api-url", "", "journey server URL (default API_URL)")
	root.PersistentFlags().String("token", "", "bearer token (default API_TOKEN)")
	root.PersistentFlags().BoolVar(&a.atomic, "atomic", false, "use the server-side deposit and reversal endpoints")
	root.PersistentFlags().BoolVar(&a.manual, "manual-rate", false, "do not refresh the exchange rate on load")

	root.AddCommand(
		a.summaryCmd(),
		a.objectivesCmd(),
		a.reportCmd(),
		a.statementCmd(),
		a.journeyCmd(),
		a.depositCmd(),
		a.deleteCmd(),
		a.toggleCmd(),
		a.rateCmd(),
		a.loginCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command, args []string) error {
	cli.LoadEnvFile()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	a.cfg = cfg

	// Logs go to stderr so command output stays pipeable.
	lc := log.DefaultConfig()
	lc.Component = log.ComponentSession
	lc.Level = log.ParseLevel(cfg.LogLevel)
	lc.Format = cfg.LogFormat
	lc.Output = os.Stderr
	logger := log.New(lc)

	url := cfg.APIURL
	if v, _ := cmd.Flags().GetString("api-url"); v != "" {
		url = v
	}
	token := cfg.APIToken
	if v, _ := cmd.Flags().GetString("token"); v != "" {
		token = v
	}
	a.api = client.New(url, client.WithToken(token))

	opts := []session.Option{
		session.WithLogger(logger.Slog()),
		session.WithQuoter(rates.NewClient(cfg.RateAPIURL, cfg.RateTimeout)),
	}
	if a.atomic {
		opts = append(opts, session.WithAtomicDeposits())
	}
	// Setting a rate by hand must not be preceded by an automatic refresh.
	if cmd.Name() == "rate" && len(args) == 1 && !strings.EqualFold(args[0], "auto") {
		a.manual = true
	}
	if a.manual {
		opts = append(opts, session.WithManualRate())
	}
	a.session = session.New(a.api, opts...)
	return nil
}

// load syncs the session and fails when the server could not be read.
func (a *app) load(ctx context.Context) (session.State, error) {
	if err := a.session.Load(ctx); err != nil {
		return session.State{}, err
	}
	return a.session.Snapshot(), nil
}

package cli

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bughunter/apperr"
	"bughunter/config"
	"bughunter/logger"
	"bughunter/reporter"
	"bughunter/toolkit"
)

// errOutcomeFailed marks a test run whose error was already printed.
var errOutcomeFailed = errors.New("test run failed")

type options struct {
	configPath string
	logLevel   string
	noColor    bool

	cfg *config.Config
}

func (o *options) load() error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if o.noColor {
		color.NoColor = true
	}
	o.cfg = cfg
	return nil
}

func (o *options) actions() *reporter.Actions {
	client := toolkit.NewClient(o.cfg.Service)
	return reporter.NewActions(client, &http.Client{Timeout: o.cfg.Service.Timeout})
}

func (o *options) renderOptions(snippets bool) reporter.RenderOptions {
	return reporter.RenderOptions{Color: !color.NoColor, Snippets: snippets}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "bughunter",
		Short: "Inject bugs into web pages and test for them",
		Long: `bughunter drives a bug injection service: it generates HTML pages
containing selected defects, uploads pages, runs the service's tests against
files or URLs, and summarizes the results per defect family.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	cmd.AddCommand(
		newServeCommand(opts),
		newBugsCommand(opts),
		newGenerateCommand(opts),
		newTestHTMLCommand(opts),
		newTestURLCommand(opts),
		newReportCommand(opts),
		newFixCommand(opts),
	)
	return cmd
}

func Execute() {
	rootCommand := newRootCommand()
	if err := rootCommand.Execute(); err != nil {
		logger.Debug("cli.execute: command failed", zap.Error(err))
		if !errors.Is(err, errOutcomeFailed) {
			fmt.Fprintf(os.Stderr, "Error: %s\n", apperr.UserMessage(err))
		}
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

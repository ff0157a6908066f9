// Package app builds the cobra command of every driverfleet binary: grouped flags, an
// optional config file, DFLEET_* environment overrides, logging setup and signal handling.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	genericapiserver "k8s.io/apiserver/pkg/server"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/driverfleet/driverfleet/pkg/log"
)

// NamedFlagSetOptions is implemented by the option struct of a binary.
type NamedFlagSetOptions interface {
	// Flags returns the flags grouped by concern.
	Flags() cliflag.NamedFlagSets

	// Complete fills in derived values once flags, config and environment are applied.
	Complete() error

	// Validate checks every option group.
	Validate() error
}

// LogOptionsProvider is implemented by options that carry logger settings.
type LogOptionsProvider interface {
	LogOptions() *log.Options
}

// RunFunc is the body of a binary. ctx is canceled on SIGINT/SIGTERM.
type RunFunc func(ctx context.Context) error

// App is a command line application.
type App struct {
	name        string
	shortDesc   string
	description string
	options     NamedFlagSetOptions
	runFunc     RunFunc
	args        cobra.PositionalArgs
	commands    []*cobra.Command
	noConfig    bool

	viper *viper.Viper
	cmd   *cobra.Command
}

// Option configures an App.
type Option func(*App)

func WithDescription(desc string) Option {
	return func(a *App) { a.description = desc }
}

func WithOptions(opts NamedFlagSetOptions) Option {
	return func(a *App) { a.options = opts }
}

func WithRunFunc(run RunFunc) Option {
	return func(a *App) { a.runFunc = run }
}

// WithDefaultValidArgs rejects positional arguments on the root command.
func WithDefaultValidArgs() Option {
	return func(a *App) {
		a.args = func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				if len(arg) > 0 {
					return fmt.Errorf("%q does not take any arguments, got %q", cmd.CommandPath(), args)
				}
			}
			return nil
		}
	}
}

// WithCommands adds subcommands. They inherit every flag of the root command and run after
// the same config loading and validation.
func WithCommands(cmds ...*cobra.Command) Option {
	return func(a *App) { a.commands = append(a.commands, cmds...) }
}

// WithNoConfig disables the --config flag.
func WithNoConfig() Option {
	return func(a *App) { a.noConfig = true }
}

// NewApp creates an App.
func NewApp(name, shortDesc string, opts ...Option) *App {
	a := &App{name: name, shortDesc: shortDesc, viper: viper.New()}
	for _, o := range opts {
		o(a)
	}
	a.buildCommand()
	return a
}

// Command returns the root cobra command.
func (a *App) Command() *cobra.Command {
	return a.cmd
}

// Run executes the command with a signal aware context and exits the process on error.
func (a *App) Run() {
	err := a.cmd.ExecuteContext(genericapiserver.SetupSignalContext())
	log.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:           a.name,
		Short:         a.shortDesc,
		Long:          a.description,
		Version:       Version(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          a.args,
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.Flags().SortFlags = true

	if a.runFunc != nil {
		cmd.RunE = func(cmd *cobra.Command, _ []string) error {
			return a.runFunc(cmd.Context())
		}
	}

	var fss cliflag.NamedFlagSets
	if a.options != nil {
		fss = a.options.Flags()
	}
	if !a.noConfig {
		addConfigFlag(a.name, fss.FlagSet("global"))
	}

	flags := cmd.Flags()
	if len(a.commands) > 0 {
		flags = cmd.PersistentFlags()
	}
	for _, name := range fss.Order {
		flags.AddFlagSet(fss.FlagSets[name])
	}
	cliflag.SetUsageAndHelpFunc(cmd, fss, 80)

	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return a.prepare(cmd)
	}

	for _, sub := range a.commands {
		cmd.AddCommand(sub)
	}
	a.cmd = cmd
}

// prepare applies config file and environment to the options, then completes and validates
// them and initializes the global logger.
func (a *App) prepare(cmd *cobra.Command) error {
	if a.options == nil {
		log.Init(nil)
		return nil
	}

	if err := a.loadConfig(cmd); err != nil {
		return err
	}
	if err := a.options.Complete(); err != nil {
		return fmt.Errorf("failed to complete options: %w", err)
	}
	if err := a.options.Validate(); err != nil {
		return err
	}

	if p, ok := a.options.(LogOptionsProvider); ok {
		log.Init(p.LogOptions())
	} else {
		log.Init(nil)
	}
	if used := a.viper.ConfigFileUsed(); used != "" {
		log.Info("Loaded configuration file", "path", used)
	}
	return nil
}

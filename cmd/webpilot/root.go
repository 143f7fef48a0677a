package main

import (
	"github.com/rahul/webpilot/internal/observability"
	"github.com/rahul/webpilot/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// app holds what every subcommand needs once configuration is loaded.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:           "webpilot",
		Short:         "Plan and execute browser tasks described in natural language",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./webpilot.yaml)")

	root.AddCommand(newRunCmd(a), newResolveCmd(a), newConfigCmd(a), newHistoryCmd(a))
	return root
}

// load reads the configuration and builds the logger. Flags must be bound to
// a.v before calling it.
func (a *app) load() error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = observability.NewLogger(cfg.Logger)
	return nil
}

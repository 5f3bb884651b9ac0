package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wachiwi/kcamera/pkg/camera"
	"github.com/wachiwi/kcamera/pkg/config"
	"github.com/wachiwi/kcamera/pkg/logger"
)

type app struct {
	configFile string
	envFiles   []string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "kcamera",
		Short:         "Camera frame buffering and time-shifted recording",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.Options{File: a.configFile, EnvFiles: a.envFiles})
			if err != nil {
				return err
			}
			if err := logger.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "config file (default $XDG_CONFIG_HOME/kcamera/config.yaml)")
	cmd.PersistentFlags().StringSliceVar(&a.envFiles, "env-file", []string{".env"}, "env files to load before reading the environment")

	cmd.AddCommand(
		newServeCmd(a),
		newRecordCmd(a),
		newInspectCmd(),
		newModesCmd(),
	)
	return cmd
}

func newDriver(name string) (camera.Driver, error) {
	switch name {
	case "pattern":
		return camera.NewPattern(), nil
	case "pipe", "":
		return camera.NewPipe(), nil
	}
	return nil, fmt.Errorf("unknown driver %q", name)
}

func (a *app) openSession(driver string) (*camera.Session, error) {
	if driver == "" {
		driver = a.cfg.Driver
	}
	d, err := newDriver(driver)
	if err != nil {
		return nil, err
	}
	return camera.NewSession(d, camera.WithParams(a.cfg.Camera.Params()))
}

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ZaguanLabs/transctl/config"
	"github.com/ZaguanLabs/transctl/provider"
)

func (a *app) initCmd() *cobra.Command {
	var (
		tpl    config.Template
		params []string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the " + config.FileName + " configuration file",
		Long: `init writes a new ` + config.FileName + ` in the current directory, or at
--config when given. Resource sections are left for you to add. An existing
file is kept unless --force is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath
			if path == "" {
				wd, err := os.Getwd()
				if err != nil {
					return err
				}
				path = filepath.Join(wd, config.FileName)
			}

			var err error
			if tpl.Params, err = config.ParseParams(params); err != nil {
				return err
			}
			cfg, err := config.Init(path, tpl, force)
			if err != nil {
				return err
			}
			engine := cfg.ProviderConfig().Engine
			a.logger.Info("configuration written", "path", cfg.Path(), "engine", engine)

			fmt.Fprintf(a.stdout, "Configuration file created at %s\n", cfg.Path())
			if env, ok := provider.APIKeyEnv[engine]; ok {
				fmt.Fprintf(a.stdout, "Set the API key for %s before running: export %s=...\n", engine, env)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&tpl.Source, "source", "s", "en", "source language code")
	flags.StringSliceVarP(&tpl.Targets, "targets", "t", nil, "target language codes (comma-separated)")
	flags.StringVarP(&tpl.Engine, "engine", "e", "", "translation engine: deepl, azure, google, openai or mock")
	flags.StringArrayVar(&params, "param", nil, "engine parameter as KEY=VALUE, may be repeated")
	flags.BoolVar(&force, "force", false, "overwrite an existing configuration file")
	_ = cmd.MarkFlagRequired("engine")
	return cmd
}

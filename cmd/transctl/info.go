package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ZaguanLabs/transctl"
)

func (a *app) showLangsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show-langs",
		Short: "List the supported language codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			for _, code := range transctl.SortedLanguages() {
				fmt.Fprintf(w, "%s\t%s\n", code, transctl.GetLanguageName(code))
			}
			return w.Flush()
		},
	}
}

func (a *app) showResourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show-resources",
		Short: "List the resources matched by the configuration and their outputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			resources, err := cfg.Resources()
			if err != nil {
				return err
			}
			if len(resources) == 0 {
				fmt.Fprintln(a.stdout, "No resources matched.")
				return nil
			}

			for _, r := range resources {
				fmt.Fprintf(a.stdout, "%s (%s)\n", r.Input, r.Type)
				for _, t := range cfg.Targets() {
					fmt.Fprintf(a.stdout, "  %-6s %s\n", t, r.OutputFor(t))
				}
			}
			return nil
		},
	}
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(a.stdout, "%s %s\n", transctl.Name, transctl.Version)
			if transctl.GitCommit != "unknown" && transctl.GitCommit != "" {
				fmt.Fprintf(a.stdout, "  commit:  %s\n", transctl.GitCommit)
			}
			if transctl.BuildDate != "unknown" && transctl.BuildDate != "" {
				fmt.Fprintf(a.stdout, "  built:   %s\n", transctl.BuildDate)
			}
			return nil
		},
	}
}

package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ZaguanLabs/transctl"
	"github.com/ZaguanLabs/transctl/cache"
)

func (a *app) pruneCmd() *cobra.Command {
	var (
		ttlDays  int
		maxRows  int
		maxDBMB  int
		noVacuum bool
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Evict old and least recently used translations",
		Long: `Apply the [prune] policy to the translation memory. Nothing is deleted
unless the store is too large, holds too many rows or has rows unused for
longer than the TTL. Flags override the configured values.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.openProject()
			if err != nil {
				return err
			}
			defer p.Close()

			policy := p.cfg.PrunePolicy()
			flags := cmd.Flags()
			if flags.Changed("ttl-days") {
				policy.TTLDays = ttlDays
			}
			if flags.Changed("max-rows") {
				policy.MaxRows = maxRows
			}
			if flags.Changed("max-db-mb") {
				policy.MaxDBMB = maxDBMB
			}
			if noVacuum {
				policy.Vacuum = false
			}

			res, err := a.prune(cmd.Context(), p.store, policy)
			if err != nil {
				return err
			}
			if !res.Triggered {
				fmt.Fprintf(a.stdout, "Nothing to prune (%d rows)\n", res.RowsBefore)
				return nil
			}
			fmt.Fprintf(a.stdout, "Expired: %d\nEvicted: %d\nRows:    %d -> %d\n", res.Expired, res.Evicted, res.RowsBefore, res.RowsAfter)
			return nil
		},
	}

	cmd.Flags().IntVar(&ttlDays, "ttl-days", 0, "delete rows unused for this many days")
	cmd.Flags().IntVar(&maxRows, "max-rows", 0, "keep at most this many rows")
	cmd.Flags().IntVar(&maxDBMB, "max-db-mb", 0, "prune when the store exceeds this size")
	cmd.Flags().BoolVar(&noVacuum, "no-vacuum", false, "do not reclaim freed pages")
	return cmd
}

func (a *app) prune(ctx context.Context, store cache.Store, policy cache.PrunePolicy) (cache.PruneResult, error) {
	before, err := store.Stats(ctx)
	if err != nil {
		return cache.PruneResult{}, err
	}

	res, err := store.Prune(ctx, policy)
	if err != nil {
		return res, err
	}
	if !res.Triggered {
		a.logger.Debug("prune not needed", "rows", res.RowsBefore, "size", humanize.Bytes(uint64(before.SizeBytes)))
		return res, nil
	}

	after, err := store.Stats(ctx)
	if err != nil {
		return res, err
	}
	a.logger.Info("translation memory pruned",
		"expired", res.Expired,
		"evicted", res.Evicted,
		"rows", res.RowsAfter,
		"size_before", humanize.Bytes(uint64(before.SizeBytes)),
		"size_after", humanize.Bytes(uint64(after.SizeBytes)))
	return res, nil
}

func (a *app) cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the run manifest",
		Long:  `Rebuild the manifest from the outputs on disk, or purge it so the next run recomputes every output.`,
	}

	build := &cobra.Command{
		Use:   "build",
		Short: "Record the current outputs as up to date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.openProject()
			if err != nil {
				return err
			}
			defer p.Close()

			pairs, err := p.cfg.Pairs()
			if err != nil {
				return err
			}
			if err := p.manifest.Rebuild(pairs, true); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Manifest rebuilt at %s\n", p.manifest.Path())
			return nil
		},
	}

	purge := &cobra.Command{
		Use:   "purge",
		Short: "Forget every recorded output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.openProject()
			if err != nil {
				return err
			}
			defer p.Close()

			if err := p.manifest.Purge(); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Manifest purged at %s\n", p.manifest.Path())
			return nil
		},
	}

	cmd.AddCommand(build, purge)
	return cmd
}

func (a *app) tmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tm",
		Short: "Inspect, export and import the translation memory",
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show translation memory statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.openProject()
			if err != nil {
				return err
			}
			defer p.Close()

			st, err := p.store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			printStats(a.stdout, st)
			return nil
		},
	}

	export := &cobra.Command{
		Use:   "export [file]",
		Short: "Write the translation memory as JSON (default: stdout)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.openProject()
			if err != nil {
				return err
			}
			defer p.Close()

			meta := map[string]string{
				"source_lang": p.cfg.Locale.Source,
				"engine":      p.cfg.Engine.Provider,
				"exporter":    transctl.UserAgent(),
			}
			exp := cache.NewExporter(p.store)
			if len(args) == 0 || args[0] == "-" {
				return exp.Export(cmd.Context(), a.stdout, meta)
			}
			if err := exp.ExportToFile(cmd.Context(), args[0], meta); err != nil {
				return err
			}
			a.logger.Info("translation memory exported", "path", args[0])
			return nil
		},
	}

	imp := &cobra.Command{
		Use:   "import <file|->",
		Short: "Merge a JSON export into the translation memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.openProject()
			if err != nil {
				return err
			}
			defer p.Close()

			var res *cache.ImportResult
			if args[0] == "-" {
				res, err = cache.NewImporter(p.store).Import(cmd.Context(), a.stdin)
			} else {
				res, err = cache.NewImporter(p.store).ImportFromFile(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Imported: %d\nFailed:   %d\n", res.Imported, res.Failed)
			return nil
		},
	}

	cmd.AddCommand(stats, export, imp)
	return cmd
}

func printStats(w io.Writer, st cache.Stats) {
	fmt.Fprintf(w, "Rows:       %d\n", st.Rows)
	fmt.Fprintf(w, "Size:       %s\n", humanize.Bytes(uint64(st.SizeBytes)))
	if st.Rows == 0 {
		return
	}
	fmt.Fprintf(w, "Oldest use: %s\n", humanize.Time(st.OldestUse))
	fmt.Fprintf(w, "Newest use: %s\n", humanize.Time(st.NewestUse))

	langs := make([]string, 0, len(st.Languages))
	for l := range st.Languages {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	fmt.Fprintln(w, "Languages:")
	for _, l := range langs {
		fmt.Fprintf(w, "  %-8s %s\n", l, humanize.Comma(st.Languages[l]))
	}
}

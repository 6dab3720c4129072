package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ulauncher/extapi/internal/config"
	"github.com/ulauncher/extapi/pkg/observability"
	"github.com/ulauncher/extapi/pkg/sync"
)

func (c *CLI) syncCommand() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Refresh stars and supported versions from GitHub",
		Long: `Refresh every stored extension from GitHub.

By default the worker runs a pass immediately and then every SYNC_INTERVAL
until interrupted. Repositories GitHub reports as missing are unpublished.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSync(cmd.Context(), once)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run a single pass and exit")

	return cmd
}

func (c *CLI) syncOptions() sync.Options {
	cfg := c.config()
	return sync.Options{
		Interval:     cfg.Sync.Interval,
		FetchTimeout: cfg.Sync.FetchTimeout,
		Logger:       c.Logger,
	}
}

func (c *CLI) runSync(ctx context.Context, once bool) error {
	if err := c.config().Validate(config.NeedDatabase); err != nil {
		return err
	}

	store, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	ghCache, err := c.newCache(ctx, false)
	if err != nil {
		return err
	}
	defer ghCache.Close()

	syncer := sync.New(store, c.newGitHub(ghCache).Fresh(), c.syncOptions())
	if !once {
		return syncer.Run(ctx)
	}

	prog := newProgress(c.Logger)
	stats, err := syncer.RunOnce(ctx)
	if err != nil {
		return err
	}
	prog.done("Sync pass finished")
	printPassStats(stats)
	return nil
}

func printPassStats(stats observability.PassStats) {
	printKeyValue("Extensions", fmt.Sprint(stats.Total))
	printKeyValue("Updated", StyleNumber.Render(fmt.Sprint(stats.Updated)))
	printKeyValue("Unpublished", StyleNumber.Render(fmt.Sprint(stats.Unpublished)))
	printKeyValue("Skipped", StyleNumber.Render(fmt.Sprint(stats.Skipped)))
	if stats.Failed > 0 {
		printKeyValue("Failed", StyleWarning.Render(fmt.Sprint(stats.Failed)))
	}
}

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ulauncher/extapi/internal/config"
)

// userImages is the part of the image store the images command needs.
type userImages interface {
	Count(ctx context.Context, user string) (int, error)
	DeleteUser(ctx context.Context, user string) error
}

// imagesCommand creates the image storage management command.
func (c *CLI) imagesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "images",
		Short: "Manage uploaded extension images",
	}

	cmd.AddCommand(c.imagesPurgeCommand())

	return cmd
}

// imagesPurgeCommand creates the "images purge" subcommand.
func (c *CLI) imagesPurgeCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "purge <user>",
		Short: "Delete every image uploaded by a user",
		Long: `Delete every object stored under the user's prefix in the image bucket.
Without --yes only the number of objects that would be removed is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := c.config().Validate(config.NeedImages); err != nil {
				return err
			}
			store, err := c.newImages(ctx)
			if err != nil {
				return err
			}
			return c.runImagesPurge(ctx, store, args[0], yes)
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "actually delete the images")

	return cmd
}

func (c *CLI) runImagesPurge(ctx context.Context, store userImages, user string, yes bool) error {
	count, err := store.Count(ctx, user)
	if err != nil {
		return fmt.Errorf("count images: %w", err)
	}
	if count == 0 {
		printInfo("No images stored for %s", user)
		return nil
	}
	if !yes {
		printInfo("%d images stored for %s", count, user)
		printDetail("Re-run with --yes to delete them")
		return nil
	}

	if err := store.DeleteUser(ctx, user); err != nil {
		return fmt.Errorf("delete images: %w", err)
	}
	c.Logger.Info("purged user images", "user", user, "count", count)
	printSuccess("Deleted %d images for %s", count, user)
	return nil
}

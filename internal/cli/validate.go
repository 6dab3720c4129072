package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	apperrors "github.com/ulauncher/extapi/pkg/errors"
	"github.com/ulauncher/extapi/pkg/extension"
	"github.com/ulauncher/extapi/pkg/integrations/github"
)

func (c *CLI) validateCommand() *cobra.Command {
	var noCache bool

	cmd := &cobra.Command{
		Use:   "validate <github-url | owner/repo>",
		Short: "Check a repository the way the directory does on submission",
		Long: `Fetch repository info, versions.json and manifest.json for a GitHub
project and report what the directory would store for it.`,
		Example: `  extapi validate https://github.com/ulauncher/ulauncher-timer`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runValidate(cmd.Context(), args[0], noCache)
		},
	}

	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the GitHub response cache")

	return cmd
}

func (c *CLI) runValidate(ctx context.Context, ref string, noCache bool) error {
	path, err := github.ParseRepoRef(ref)
	if err != nil {
		return err
	}

	ghCache, err := c.newCache(ctx, noCache)
	if err != nil {
		return err
	}
	defer ghCache.Close()
	resolver := extension.NewResolver(c.newGitHub(ghCache), loggerFromContext(ctx))

	spinner := newSpinnerWithContext(ctx, "Resolving "+path+"...")
	spinner.Start()
	res, err := resolver.Resolve(ctx, path)
	if err != nil {
		spinner.StopWithError(apperrors.UserMessage(err))
		if code := apperrors.GetCode(err); code != "" {
			printDetail("%s", apperrors.Name(code))
		}
		return err
	}
	spinner.StopWithSuccess(StyleHighlight.Render(path) + " is a valid extension")

	printResolution(res)
	return nil
}

func printResolution(res *extension.Resolution) {
	printNewline()
	printKeyValue("ID", extension.IDFor(res.ProjectPath))
	printKeyValue("Name", res.Manifest.Name)
	printKeyValue("Description", res.Manifest.Description)
	printKeyValue("Developer", res.Manifest.Authors)
	printKeyValue("Repository", StyleLink.Render(github.URL(res.ProjectPath)))
	printKeyValue("Stars", StyleNumber.Render(fmt.Sprint(res.Repo.StargazersCount)))
	printKeyValue("API versions", strings.Join(res.SupportedVersions, ", "))

	if res.Versions == nil {
		printDetail("no versions.json, using manifest api_version %s", res.Manifest.APIVersion)
		return
	}
	for _, v := range res.Versions.Versions {
		printDetail("api %s %s %s", v.APIVersion, iconArrow, v.Commit)
	}
}

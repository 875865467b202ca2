package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/goliatone/go-query-cache/pkg/di"
	"github.com/goliatone/go-query-cache/recipe"
	"github.com/goliatone/go-query-cache/repositorycache"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the recipe tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withContainer(cmd.Context(), func(ctx context.Context, c *di.Container) error {
				if err := c.Migrate(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrated")
				return nil
			})
		},
	}
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the sample recipes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withContainer(cmd.Context(), func(ctx context.Context, c *di.Container) error {
				if err := c.Migrate(ctx); err != nil {
					return err
				}
				seeded, err := recipe.Seed(ctx, c.Repository())
				if err != nil {
					return err
				}
				// seeding bypasses the decorator
				report := c.Sweeper().OnMutation(ctx, repositorycache.Scope{RecipeIDs: recipeIDs(seeded)})
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d recipes, swept %d keys\n", len(seeded), report.Removed)
				return nil
			})
		},
	}
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "search [keywords...]",
		Short: "Search recipes by keyword and mode",
		Long: `Search recipes whose name, type, author or ingredients contain any of
the keywords. Without keywords every recipe in the mode is returned.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withContainer(cmd.Context(), func(ctx context.Context, c *di.Container) error {
				var modePtr *string
				if cmd.Flags().Changed("mode") {
					modePtr = &mode
				}
				results, err := c.Recipes().SearchByMode(ctx, modePtr, args...)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), results)
			})
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "recipe mode: user, cookbook or all")
	return cmd
}

func newDetailCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "detail <id>",
		Short: "Show a recipe with fresh nutrition facts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid recipe id %q", args[0])
			}
			return opts.withContainer(cmd.Context(), func(ctx context.Context, c *di.Container) error {
				detail, err := c.Recipes().GetDetail(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), detail)
			})
		},
	}
}

func newWarmCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "warm",
		Short: "Prepopulate the cache with the common queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withContainer(cmd.Context(), func(ctx context.Context, c *di.Container) error {
				report := c.Prepopulator().Warm(ctx)
				fmt.Fprintf(cmd.OutOrStdout(), "warmed %d queries, %d failed in %s\n",
					report.Queries, report.Failed, report.Duration)
				return nil
			})
		},
	}
}

func newSweepCmd(opts *rootOptions) *cobra.Command {
	var (
		ids []int64
		all bool
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Invalidate cached query results",
		Long: `Remove the keys a mutation would invalidate. With --all the whole
namespace is dropped, which requires a store that can enumerate keys.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withContainer(cmd.Context(), func(ctx context.Context, c *di.Container) error {
				if all {
					n, err := c.Sweeper().Flush(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "flushed %d keys\n", n)
					return nil
				}
				report := c.Sweeper().OnMutation(ctx, repositorycache.Scope{RecipeIDs: ids})
				fmt.Fprintf(cmd.OutOrStdout(), "sweep %s: %d removed, %d failed\n", report.ID, report.Removed, report.Failed)
				return nil
			})
		},
	}
	cmd.Flags().Int64SliceVar(&ids, "id", nil, "recipe ids whose detail keys are removed too")
	cmd.Flags().BoolVar(&all, "all", false, "drop every key in the namespace")
	return cmd
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import recipes from a YAML or JSON list of field maps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read import file: %w", err)
			}
			var records []map[string]string
			if err := yaml.Unmarshal(data, &records); err != nil {
				return fmt.Errorf("parse import file: %w", err)
			}

			return opts.withContainer(cmd.Context(), func(ctx context.Context, c *di.Container) error {
				result, err := c.Recipes().Import(ctx, records)
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d recipes, %d failed\n", len(result.Created), result.Failed)
				return err
			})
		},
	}
}

func recipeIDs(recipes []recipe.Recipe) []int64 {
	ids := make([]int64, 0, len(recipes))
	for _, r := range recipes {
		ids = append(ids, r.ID)
	}
	return ids
}

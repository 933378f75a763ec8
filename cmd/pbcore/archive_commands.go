package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jacentio/pbcore/archive"
	"github.com/jacentio/pbcore/internal/dynamo"
	"github.com/jacentio/pbcore/pbcore"
)

func newAssetCommand(ctx *commandContext) *cobra.Command {
	assetCmd := &cobra.Command{
		Use:   "asset",
		Short: "Manage assets",
	}
	assetCmd.AddCommand(newAssetCreateCommand(ctx))
	assetCmd.AddCommand(newAssetListCommand(ctx))
	assetCmd.AddCommand(newAssetDeleteCommand(ctx))
	return assetCmd
}

func newAssetCreateCommand(ctx *commandContext) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an asset and print its ID",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := ctx.repository(cmd)
			if err != nil {
				return err
			}
			asset := &pbcore.Asset{Title: title}
			if err := repo.CreateAsset(cmd.Context(), asset); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), asset.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Asset title")
	return cmd
}

func newAssetListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "instantiations <asset-id>",
		Short: "List the instantiations of an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := ctx.repository(cmd)
			if err != nil {
				return err
			}
			if _, err := ctx.picklists(cmd); err != nil {
				return err
			}
			insts, err := repo.ListInstantiations(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, inst := range insts {
				line := inst.ID + "\t" + summary(cmd, ctx, inst)
				if notes, ok := inst.AnnotationText(); ok {
					line += " " + notes
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}

func newAssetDeleteCommand(ctx *commandContext) *cobra.Command {
	var cascade bool

	cmd := &cobra.Command{
		Use:   "delete <asset-id>",
		Short: "Delete an asset",
		Long: "Delete an asset. Assets with instantiations are only deleted with\n" +
			"--cascade; the stream handler then deletes the instantiations.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := ctx.repository(cmd)
			if err != nil {
				return err
			}
			return repo.DeleteAsset(cmd.Context(), args[0], cascade)
		},
	}
	cmd.Flags().BoolVar(&cascade, "cascade", false, "Also delete the asset's instantiations")
	return cmd
}

func newPicklistCommand(ctx *commandContext) *cobra.Command {
	picklistCmd := &cobra.Command{
		Use:   "picklist",
		Short: "Inspect picklist vocabularies",
	}
	picklistCmd.AddCommand(&cobra.Command{
		Use:   "list [vocabulary]",
		Short: "List vocabularies, or the entries of one vocabulary",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, v := range pbcore.Vocabularies() {
					fmt.Fprintln(out, v)
				}
				return nil
			}
			registry, err := ctx.picklists(cmd)
			if err != nil {
				return err
			}
			entries, err := registry.List(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintf(out, "%s\t%s\n", e.Ref.ID, e.Name)
			}
			return nil
		},
	})
	return picklistCmd
}

func newTablesCommand(ctx *commandContext) *cobra.Command {
	var wait time.Duration

	tablesCmd := &cobra.Command{
		Use:   "tables",
		Short: "Provision DynamoDB tables",
	}
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create the archive tables if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := dynamo.NewClient(cmd.Context(), cfg.DynamoDB)
			if err != nil {
				return err
			}
			specs := archive.TableSpecs(dynamo.Tables(cfg.DynamoDB), dynamo.StoreConfig(cfg.DynamoDB))
			if err := archive.CreateTables(cmd.Context(), client, specs, wait); err != nil {
				return err
			}
			for _, table := range specs {
				fmt.Fprintln(cmd.OutOrStdout(), table.Name)
			}
			return nil
		},
	}
	createCmd.Flags().DurationVar(&wait, "wait", 2*time.Minute, "How long to wait for each table to become active")
	tablesCmd.AddCommand(createCmd)
	return tablesCmd
}

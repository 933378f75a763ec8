package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jacentio/pbcore/pbcore"
	"github.com/jacentio/pbcore/xmlmap"
)

func newNormalizeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize [file]",
		Short: "Rewrite an instantiation document in canonical element order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := ctx.codec(cmd)
			if err != nil {
				return err
			}
			in, err := openInput(cmd, args)
			if err != nil {
				return err
			}
			defer in.Close()

			inst, err := pbcore.Parse(cmd.Context(), codec, in)
			if err != nil {
				return err
			}
			return pbcore.Write(cmd.Context(), codec, cmd.OutOrStdout(), inst)
		},
	}
}

func newValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check an instantiation document against the persistence rules",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := ctx.codec(cmd)
			if err != nil {
				return err
			}
			in, err := openInput(cmd, args)
			if err != nil {
				return err
			}
			defer in.Close()

			inst, err := pbcore.Parse(cmd.Context(), codec, in)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			violations := pbcore.Validate(inst)
			if len(violations) == 0 {
				fmt.Fprintf(out, "valid: %s\n", summary(cmd, ctx, inst))
				return nil
			}
			for _, v := range violations {
				fmt.Fprintln(out, v.String())
			}
			return fmt.Errorf("%d violation(s)", len(violations))
		},
	}
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	var assetID, id string

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Store an instantiation document in the archive",
		Long: "Store an instantiation document in the archive. With --id the document\n" +
			"updates an existing instantiation; its collections are replaced.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if assetID == "" && id == "" {
				return errors.New("either --asset or --id is required")
			}
			repo, err := ctx.repository(cmd)
			if err != nil {
				return err
			}
			codec, err := ctx.codec(cmd)
			if err != nil {
				return err
			}
			in, err := openInput(cmd, args)
			if err != nil {
				return err
			}
			defer in.Close()

			inst := &pbcore.Instantiation{AssetID: assetID}
			if id != "" {
				if inst, err = repo.LoadInstantiation(cmd.Context(), id); err != nil {
					return err
				}
			}
			el, err := xmlmap.ReadDocument(in)
			if err != nil {
				return err
			}
			if err := pbcore.Decode(cmd.Context(), codec, el, inst); err != nil {
				return err
			}

			savedID, err := repo.SaveInstantiation(cmd.Context(), inst)
			var verr *pbcore.ValidationError
			if errors.As(err, &verr) {
				for _, v := range verr.Violations {
					fmt.Fprintln(cmd.ErrOrStderr(), v.String())
				}
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), savedID)
			return nil
		},
	}

	cmd.Flags().StringVar(&assetID, "asset", "", "Asset the new instantiation belongs to")
	cmd.Flags().StringVar(&id, "id", "", "Existing instantiation to update")
	return cmd
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export <id>",
		Short: "Write a stored instantiation as XML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := ctx.repository(cmd)
			if err != nil {
				return err
			}
			codec, err := ctx.codec(cmd)
			if err != nil {
				return err
			}
			inst, err := repo.LoadInstantiation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return pbcore.Write(cmd.Context(), codec, cmd.OutOrStdout(), inst)
		},
	}
}

// summary returns the instantiation label, or its identifiers when a picklist
// value cannot be rendered.
func summary(cmd *cobra.Command, ctx *commandContext, inst *pbcore.Instantiation) string {
	s, err := inst.Summary(cmd.Context(), ctx.registry)
	if err != nil {
		ctx.logger.Warn("summary unavailable", "error", err)
		return inst.Identifier()
	}
	return s
}

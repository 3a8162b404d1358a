package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ledger/internal/core"
	"ledger/internal/ledger"
)

func (r *root) categoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "Manage category labels",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := newTable(cmd.OutOrStdout(), "ID", "NAME", "COLOR")
			for _, c := range r.app.Ledger.Categories.Categories() {
				row(tw, c.ID, c.Name, c.Color)
			}
			return tw.Flush()
		},
	}

	var color string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := r.app.Ledger.Categories.Create(cmd.Context(), core.NewCategory{Name: args[0], Color: color})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created category %s (%s)\n", c.Name, c.ID)
			return nil
		},
	}
	add.Flags().StringVar(&color, "color", "", "display color")

	var name, newColor string
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Rename or recolor a category; transactions keep their label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch core.CategoryPatch
			if cmd.Flags().Changed("name") {
				patch.Name = &name
			}
			if cmd.Flags().Changed("color") {
				patch.Color = &newColor
			}
			c, err := r.app.Ledger.Categories.Update(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated category %s\n", c.Name)
			return nil
		},
	}
	update.Flags().StringVar(&name, "name", "", "new name")
	update.Flags().StringVar(&newColor, "color", "", "new color")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := r.app.Ledger.Categories.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted category %s\n", args[0])
			return nil
		},
	}

	var file string
	seed := &cobra.Command{
		Use:   "seed",
		Short: "Create the default categories that do not exist yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := file
			if path == "" && r.app.Config != nil {
				path = r.app.Config.CategorySeedFile
			}
			entries, err := ledger.LoadSeed(path)
			if err != nil {
				return err
			}
			n, err := r.app.Ledger.Categories.Seed(cmd.Context(), entries)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d categories\n", n)
			return nil
		},
	}
	seed.Flags().StringVar(&file, "file", "", "YAML seed file (default CATEGORY_SEED_FILE)")

	cmd.AddCommand(list, add, update, del, seed)
	return cmd
}

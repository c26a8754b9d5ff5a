package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/docserver/docserver/internal/store"
)

func newCreateLibraryCmd() *cobra.Command {
	var name, ecosystem, context7ID, description string

	cmd := &cobra.Command{
		Use:   "create-library",
		Short: "Register a new library in the store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			d, err := buildDeps(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			if context7ID == "" {
				context7ID = store.DeriveContext7ID(ecosystem, name)
			}
			lib := &store.Library{
				ID:          "lib-" + uuid.NewString(),
				Name:        name,
				Ecosystem:   ecosystem,
				Context7ID:  context7ID,
				Description: description,
				Status:      store.LibraryStatusActive,
			}
			if err := d.store.UpsertLibrary(cmd.Context(), lib); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created library %s (%s)\n", lib.ID, lib.Context7ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "library name (required)")
	cmd.Flags().StringVar(&ecosystem, "ecosystem", "npm", "package ecosystem, e.g. npm, pypi, crates")
	cmd.Flags().StringVar(&context7ID, "context7-id", "", "canonical context7 id, e.g. /npm/react; derived from name if empty")
	cmd.Flags().StringVar(&description, "description", "", "short library description")

	return cmd
}

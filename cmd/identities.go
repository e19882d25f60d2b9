package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-gate/internal/config"
	"github.com/kozaktomas/face-gate/internal/gallery"
)

var identitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "List enrolled identities",
	RunE:  runIdentitiesList,
}

var identitiesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove an identity from the gallery",
	Args:  cobra.ExactArgs(1),
	RunE:  runIdentitiesDelete,
}

func init() {
	rootCmd.AddCommand(identitiesCmd)
	identitiesCmd.AddCommand(identitiesDeleteCmd)
}

func runIdentitiesList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	store, err := openGallery(ctx, cfg, gallery.Strict)
	if err != nil {
		return fmt.Errorf("opening gallery: %w", err)
	}
	defer store.Close()

	identities := store.Snapshot().Identities()
	if len(identities) == 0 {
		fmt.Println("No enrolled identities")
		return nil
	}

	fmt.Printf("%d enrolled identities:\n", len(identities))
	for _, id := range identities {
		fmt.Printf("  %-24s %s\n", id.ID, id.DisplayName)
	}
	return nil
}

func runIdentitiesDelete(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	store, err := openGallery(ctx, cfg, gallery.Strict)
	if err != nil {
		return fmt.Errorf("opening gallery: %w", err)
	}
	defer store.Close()

	id := args[0]
	if err := store.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting %s: %w", id, err)
	}
	fmt.Printf("Deleted %s\n", id)
	return nil
}

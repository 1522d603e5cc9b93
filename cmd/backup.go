package cmd

import (
	"fmt"
	"time"

	"albumapi/db"
	"albumapi/repository"
	"albumapi/storage"

	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Upload a JSON snapshot of all albums to MinIO",
	Long:  `Read every album with its tracks and store them as one JSON object under snapshots/ in the configured MinIO bucket.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		ctx := cmd.Context()

		if listOnly, _ := cmd.Flags().GetBool("list"); listOnly {
			store, err := storage.NewSnapshotStore(ctx, cfg)
			if err != nil {
				return err
			}
			objects, stats, err := store.List(ctx)
			if err != nil {
				return err
			}
			storage.PrintSnapshots(cmd.OutOrStdout(), cfg.MinioBucket, objects, stats)
			return nil
		}

		gdb, err := db.Open(cfg)
		if err != nil {
			return err
		}
		defer db.Close(gdb)

		albums, err := repository.NewGormAlbumRepository(gdb).List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list albums: %w", err)
		}

		store, err := storage.NewSnapshotStore(ctx, cfg)
		if err != nil {
			return err
		}

		snap := storage.NewSnapshot(albums, time.Now())
		name, err := store.Put(ctx, snap)
		if err != nil {
			return err
		}
		fmt.Printf("Uploaded %d albums (%d tracks) to %s/%s\n", snap.AlbumCount, snap.TrackCount, cfg.MinioBucket, name)
		return nil
	},
}

func init() {
	backupCmd.Flags().Bool("list", false, "List stored snapshots instead of taking a new one")
	rootCmd.AddCommand(backupCmd)
}

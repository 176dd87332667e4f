package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bhataakib02/bpa-breed-recognition-sub001/internal/syncer"
	"github.com/bhataakib02/bpa-breed-recognition-sub001/pkg/registry"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Submit queued records to the registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := openQueue(cmd)
		if err != nil {
			return err
		}
		defer q.Close()

		reg := registry.NewClient(cfg.Session.Token, registry.WithBaseURL(cfg.Registry.BaseURL))
		summary, err := syncer.New(q, reg).Run(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("synced %d, failed %d\n", summary.Synced, summary.Failed)
		if summary.Failed > 0 {
			fmt.Println("failed records stay queued, run sync again later")
		}
		return nil
	},
}

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List records already stored in the registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := registry.NewClient(cfg.Session.Token, registry.WithBaseURL(cfg.Registry.BaseURL))
		records, err := reg.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("no records")
			return nil
		}
		for _, r := range records {
			breed := r.PredictedBreed
			if breed == "" {
				breed = "-"
			}
			fmt.Printf("%s  %s  %s  %s  %s\n",
				r.ID, r.OwnerName, r.Location, breed, r.Status)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(recordsCmd)
}

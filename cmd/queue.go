package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bhataakib02/bpa-breed-recognition-sub001/internal/queue"
	"github.com/bhataakib02/bpa-breed-recognition-sub001/internal/utils"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the offline submission queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List records waiting for sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := openQueue(cmd)
		if err != nil {
			return err
		}
		defer q.Close()

		pending, err := q.ListPending(cmd.Context())
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Println("queue is empty")
			return nil
		}

		for _, item := range pending {
			var imageBytes int64
			for _, img := range item.Record.Images {
				imageBytes += int64(len(img.Data))
			}
			fmt.Printf("%s  %s  %s  %d image(s) (%s)  attempts=%d  queued %s\n",
				item.LocalID,
				item.Record.OwnerName,
				item.Record.Location,
				len(item.Record.Images),
				utils.FormatFileSize(imageBytes),
				item.SyncAttempts,
				item.EnqueuedAt.Local().Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var queueRemoveCmd = &cobra.Command{
	Use:   "remove <local id>",
	Short: "Drop a queued record without submitting it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := openQueue(cmd)
		if err != nil {
			return err
		}
		defer q.Close()

		if err := q.Remove(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("removed", args[0])
		return nil
	},
}

func openQueue(cmd *cobra.Command) (*queue.Queue, error) {
	q, err := queue.Open(cfg.Queue.Path)
	if err != nil {
		return nil, err
	}
	if err := q.Migrate(cmd.Context()); err != nil {
		q.Close()
		return nil, err
	}
	return q, nil
}

func init() {
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueRemoveCmd)
	rootCmd.AddCommand(queueCmd)
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bhataakib02/bpa-breed-recognition-sub001/internal/config"
	"github.com/bhataakib02/bpa-breed-recognition-sub001/internal/session"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "fieldcapture",
	Short: "Field capture tool for livestock breed registration",
	Long:  "Screens animal photos, classifies breed, attaches GPS and submits records to the livestock registry, queueing them locally when offline.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// currentSession builds the worker identity from config.
func currentSession() session.Context {
	return session.Context{
		Token:  cfg.Session.Token,
		UserID: cfg.Session.UserID,
		FLWID:  cfg.Session.FLWID,
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

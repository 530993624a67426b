package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/patternscope/patternscope/internal/config"
	"github.com/patternscope/patternscope/internal/database"
	"github.com/patternscope/patternscope/internal/tui"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Launch the terminal dashboard",
	Long: `Opens an interactive terminal dashboard showing tracked repositories,
their analysis state and the active recommendation list.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		db, err := database.New(cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(context.Background()); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		return tui.NewApp(cfg, db).Run()
	},
}

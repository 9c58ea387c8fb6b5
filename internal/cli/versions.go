package cli

import (
	"github.com/spf13/cobra"

	"github.com/resto-data/covers.report/internal/logging"
	"github.com/resto-data/covers.report/internal/models"
	"github.com/resto-data/covers.report/internal/registry"
	"github.com/resto-data/covers.report/internal/timeutil"
)

var versionsCmd = &cobra.Command{
	Use:   "versions [demand|kitchen|churn|ltv|inventory]",
	Short: "Show stored model versions for a task",
	Args:  cobra.ExactArgs(1),
	ValidArgs: []string{
		models.TaskDemand, models.TaskKitchen, models.TaskChurn,
		models.TaskLTV, models.TaskInventory,
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		reg := registry.New(cfg.ModelDir, timeutil.RealClock{}, logging.Component(log, "registry"))
		info, err := reg.ModelInfo(args[0], restaurantID)
		if err != nil {
			return err
		}
		return printJSON(info)
	},
}

func init() {
	rootCmd.AddCommand(versionsCmd)
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/resto-data/covers.report/internal/logging"
	"github.com/resto-data/covers.report/internal/models"
	"github.com/resto-data/covers.report/internal/registry"
	"github.com/resto-data/covers.report/internal/report"
	"github.com/resto-data/covers.report/internal/timeutil"
)

var reportOut string

var reportCmd = &cobra.Command{
	Use:   "report [demand|kitchen|churn|ltv|inventory]",
	Short: "Render an HTML report of a model's metric history",
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
		r := report.New(reg, logging.Component(log, "report"))

		out := reportOut
		if out == "" {
			out = fmt.Sprintf("%s-restaurant-%d.html", args[0], restaurantID)
		}
		if err := r.Generate(out, args[0], restaurantID); err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "output file (default <task>-restaurant-<id>.html)")
	rootCmd.AddCommand(reportCmd)
}

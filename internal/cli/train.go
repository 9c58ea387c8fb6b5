package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/resto-data/covers.report/internal/db"
	"github.com/resto-data/covers.report/internal/extract"
	"github.com/resto-data/covers.report/internal/logging"
	"github.com/resto-data/covers.report/internal/models"
	"github.com/resto-data/covers.report/internal/pipeline"
	"github.com/resto-data/covers.report/internal/registry"
	"github.com/resto-data/covers.report/internal/timeutil"
)

var trainCmd = &cobra.Command{
	Use:   "train [demand|kitchen|churn|ltv|inventory|all]",
	Short: "Train models for one restaurant and store them in the registry",
	Args:  cobra.ExactArgs(1),
	ValidArgs: []string{
		models.TaskDemand, models.TaskKitchen, models.TaskChurn,
		models.TaskLTV, models.TaskInventory, "all",
	},
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	d, err := db.OpenReadOnly(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer d.Close()

	clock := timeutil.RealClock{}
	store := extract.NewExtractor(d, clock, logging.Component(log, "extract"))
	reg := registry.New(cfg.ModelDir, clock, logging.Component(log, "registry"))
	p := pipeline.New(cfg, store, reg, clock, logging.Component(log, "pipeline"))

	ctx := cmd.Context()
	if args[0] == "all" {
		all := p.TrainAll(ctx, restaurantID)
		if err := printJSON(all); err != nil {
			return err
		}
		if all.Failed > 0 {
			return fmt.Errorf("%d of %d tasks failed", all.Failed, all.Total)
		}
		return nil
	}

	var result pipeline.Result
	switch args[0] {
	case models.TaskDemand:
		result = p.TrainDemand(ctx, restaurantID)
	case models.TaskKitchen:
		result = p.TrainKitchen(ctx, restaurantID)
	case models.TaskChurn:
		result = p.TrainChurn(ctx, restaurantID)
	case models.TaskLTV:
		result = p.TrainLTV(ctx, restaurantID)
	case models.TaskInventory:
		result = p.TrainInventory(ctx, restaurantID)
	default:
		return fmt.Errorf("unknown task %q", args[0])
	}

	if err := printJSON(result); err != nil {
		return err
	}
	if result.Status != pipeline.StatusSuccess {
		return fmt.Errorf("training %s failed: %s", args[0], result.Error)
	}
	return nil
}

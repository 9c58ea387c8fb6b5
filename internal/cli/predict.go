package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/resto-data/covers.report/internal/config"
	"github.com/resto-data/covers.report/internal/db"
	"github.com/resto-data/covers.report/internal/extract"
	"github.com/resto-data/covers.report/internal/logging"
	"github.com/resto-data/covers.report/internal/registry"
	"github.com/resto-data/covers.report/internal/serve"
	"github.com/resto-data/covers.report/internal/timeutil"
)

var (
	forecastHours int
	forecastDays  int

	prepStationID int64
	prepItemID    int64

	churnCustomerID int64

	recommendItemID int64
)

// serveDeps opens the read-only store and registry the prediction
// services run against. The caller owns the returned database handle.
func serveDeps(cfg *config.Config, log zerolog.Logger) (*db.DB, serve.Store, serve.ModelSource, timeutil.Clock, error) {
	d, err := db.OpenReadOnly(cfg.DatabasePath)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	clock := timeutil.RealClock{}
	store := extract.NewExtractor(d, clock, logging.Component(log, "extract"))
	reg := registry.New(cfg.ModelDir, clock, logging.Component(log, "registry"))
	return d, store, reg, clock, nil
}

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Forecast order demand from the latest demand model",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		d, store, source, clock, err := serveDeps(cfg, log)
		if err != nil {
			return err
		}
		defer d.Close()

		svc, err := serve.NewDemandService(cfg, store, source, restaurantID, clock, logging.Component(log, "serve"))
		if err != nil {
			return err
		}
		if forecastDays > 0 {
			days, err := svc.PredictDaily(cmd.Context(), forecastDays)
			if err != nil {
				return err
			}
			return printJSON(days)
		}
		hours, err := svc.PredictHourly(cmd.Context(), forecastHours)
		if err != nil {
			return err
		}
		return printJSON(hours)
	},
}

var prepTimeCmd = &cobra.Command{
	Use:   "prep-time",
	Short: "Estimate prep time for a menu item at a station",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		d, store, source, clock, err := serveDeps(cfg, log)
		if err != nil {
			return err
		}
		defer d.Close()

		svc, err := serve.NewKitchenService(cfg, store, source, restaurantID, clock, logging.Component(log, "serve"))
		if err != nil {
			return err
		}
		est, err := svc.PredictPrepTime(cmd.Context(), prepStationID, prepItemID)
		if err != nil {
			return err
		}
		return printJSON(est)
	},
}

var churnCmd = &cobra.Command{
	Use:   "churn",
	Short: "Score a customer's churn risk and lifetime value",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		d, store, source, clock, err := serveDeps(cfg, log)
		if err != nil {
			return err
		}
		defer d.Close()

		svc, err := serve.NewCustomerService(cfg, store, source, restaurantID, clock, logging.Component(log, "serve"))
		if err != nil {
			return err
		}
		profile, err := svc.CustomerAnalytics(cmd.Context(), churnCustomerID)
		if err != nil {
			return err
		}
		return printJSON(profile)
	},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend inventory actions from current stock positions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		d, store, source, clock, err := serveDeps(cfg, log)
		if err != nil {
			return err
		}
		defer d.Close()

		svc, err := serve.NewInventoryService(cfg, store, source, restaurantID, clock, logging.Component(log, "serve"))
		if err != nil {
			return err
		}
		if recommendItemID > 0 {
			advice, err := svc.ItemRecommendation(cmd.Context(), recommendItemID)
			if err != nil {
				return err
			}
			return printJSON(advice)
		}
		batch, err := svc.BatchRecommendations(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(batch)
	},
}

func init() {
	forecastCmd.Flags().IntVar(&forecastHours, "hours", 24, "hours ahead for the hourly forecast")
	forecastCmd.Flags().IntVar(&forecastDays, "days", 0, "days ahead; when set, emits daily forecasts instead")

	prepTimeCmd.Flags().Int64Var(&prepStationID, "station", 0, "kitchen station id")
	prepTimeCmd.Flags().Int64Var(&prepItemID, "item", 0, "menu item id")
	_ = prepTimeCmd.MarkFlagRequired("station")
	_ = prepTimeCmd.MarkFlagRequired("item")

	churnCmd.Flags().Int64Var(&churnCustomerID, "customer", 0, "customer id")
	_ = churnCmd.MarkFlagRequired("customer")

	recommendCmd.Flags().Int64Var(&recommendItemID, "item", 0, "inventory item id (omit for the whole inventory)")

	rootCmd.AddCommand(forecastCmd, prepTimeCmd, churnCmd, recommendCmd)
}

// Package serve exposes the trained models as prediction services. A
// service resolves and loads its model once at construction and reuses it
// for every call; features are re-derived through the same engineer the
// training pipeline uses, so serving inputs match training inputs
// key-for-key.
package serve

import (
	"context"
	"fmt"
	"time"

	"github.com/resto-data/covers.report/internal/extract"
	"github.com/resto-data/covers.report/internal/models"
	"github.com/resto-data/covers.report/internal/registry"
)

// Store is the slice of the extractor the services need.
type Store interface {
	Orders(ctx context.Context, restaurantID int64, start, end time.Time) ([]extract.OrderRecord, error)
	Kitchen(ctx context.Context, restaurantID int64, start, end time.Time) ([]extract.KitchenRecord, error)
	Customers(ctx context.Context, restaurantID int64) ([]extract.CustomerRecord, error)
	Inventory(ctx context.Context, restaurantID int64) ([]extract.InventoryRecord, error)
}

// ModelSource resolves and loads the latest model for a task. Satisfied by
// *registry.Registry.
type ModelSource interface {
	LoadLatest(task string, restaurantID int64) (models.Model, *registry.Metadata, error)
}

func loadAs[T models.Model](source ModelSource, task string, restaurantID int64) (T, string, error) {
	var zero T
	model, meta, err := source.LoadLatest(task, restaurantID)
	if err != nil {
		return zero, "", err
	}
	typed, ok := model.(T)
	if !ok {
		return zero, "", fmt.Errorf("registry returned %T for task %q", model, task)
	}
	return typed, meta.Version, nil
}

func round1(v float64) float64 { return float64(int(v*10+0.5)) / 10 }
func round2(v float64) float64 { return float64(int(v*100+0.5)) / 100 }
func round4(v float64) float64 { return float64(int(v*10000+0.5)) / 10000 }

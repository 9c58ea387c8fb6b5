package serve

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/resto-data/covers.report/internal/config"
	"github.com/resto-data/covers.report/internal/dataset"
	"github.com/resto-data/covers.report/internal/features"
	"github.com/resto-data/covers.report/internal/learn"
	"github.com/resto-data/covers.report/internal/models"
	"github.com/resto-data/covers.report/internal/timeutil"
)

// ChurnAssessment is a churn prediction for one customer.
type ChurnAssessment struct {
	CustomerID  int64   `json:"customer_id"`
	Probability float64 `json:"churn_probability"`
	RiskSegment string  `json:"risk_segment"`
	WillChurn   bool    `json:"will_churn"`
}

// LTVEstimate is a lifetime-value prediction for one customer. The
// segment is relative to the restaurant's current customer base.
type LTVEstimate struct {
	CustomerID   int64   `json:"customer_id"`
	PredictedLTV float64 `json:"predicted_ltv"`
	Segment      string  `json:"ltv_segment"`
}

// CustomerProfile combines both predictions with retention suggestions.
type CustomerProfile struct {
	CustomerID      int64           `json:"customer_id"`
	Churn           ChurnAssessment `json:"churn"`
	LTV             LTVEstimate     `json:"ltv"`
	Recommendations []string        `json:"recommendations"`
}

// AtRiskCustomer is one entry of the at-risk report.
type AtRiskCustomer struct {
	CustomerID    int64   `json:"customer_id"`
	Probability   float64 `json:"churn_probability"`
	RiskSegment   string  `json:"risk_segment"`
	CurrentPoints int     `json:"current_points"`
	RecencyDays   float64 `json:"days_since_last_order"`
}

// HighValueCustomer is one entry of the high-value report.
type HighValueCustomer struct {
	CustomerID   int64   `json:"customer_id"`
	PredictedLTV float64 `json:"predicted_ltv"`
	Segment      string  `json:"ltv_segment"`
	TotalSpent   float64 `json:"total_spent"`
	TotalOrders  int     `json:"total_orders"`
}

// CustomerService answers churn and lifetime-value questions from the
// latest models of both tasks.
type CustomerService struct {
	restaurantID int64
	churn        *models.Churn
	ltv          *models.LTV
	churnVersion string
	ltvVersion   string
	store        Store
	processor    *dataset.Processor
	engineer     *features.Engineer
	log          zerolog.Logger
}

func NewCustomerService(cfg *config.Config, store Store, source ModelSource, restaurantID int64, clock timeutil.Clock, log zerolog.Logger) (*CustomerService, error) {
	churn, churnVersion, err := loadAs[*models.Churn](source, models.TaskChurn, restaurantID)
	if err != nil {
		return nil, err
	}
	ltv, ltvVersion, err := loadAs[*models.LTV](source, models.TaskLTV, restaurantID)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("churn_version", churnVersion).
		Str("ltv_version", ltvVersion).
		Int64("restaurant_id", restaurantID).
		Msg("loaded customer models")
	return &CustomerService{
		restaurantID: restaurantID,
		churn:        churn,
		ltv:          ltv,
		churnVersion: churnVersion,
		ltvVersion:   ltvVersion,
		store:        store,
		processor:    dataset.NewProcessor(cfg, clock, log),
		engineer:     features.NewEngineer(cfg),
		log:          log,
	}, nil
}

// Versions reports the loaded churn and LTV model versions.
func (s *CustomerService) Versions() (churn, ltv string) {
	return s.churnVersion, s.ltvVersion
}

// base loads the current customer base and the index of customerID within
// it; index is -1 when customerID is 0 (whole-base operations).
func (s *CustomerService) base(ctx context.Context, customerID int64) ([]dataset.CleanCustomer, models.Instances, int, error) {
	raw, err := s.store.Customers(ctx, s.restaurantID)
	if err != nil {
		return nil, models.Instances{}, 0, err
	}
	customers := s.processor.CleanCustomers(raw)

	idx := -1
	var in models.Instances
	for i, c := range customers {
		in.Vectors = append(in.Vectors, s.engineer.Customer(c))
		if c.CustomerID == customerID {
			idx = i
		}
	}
	if customerID != 0 && idx < 0 {
		return nil, models.Instances{}, 0, fmt.Errorf("customer %d has no order history at restaurant %d", customerID, s.restaurantID)
	}
	return customers, in, idx, nil
}

// PredictChurn scores one customer's churn probability.
func (s *CustomerService) PredictChurn(ctx context.Context, customerID int64) (ChurnAssessment, error) {
	_, in, idx, err := s.base(ctx, customerID)
	if err != nil {
		return ChurnAssessment{}, err
	}
	return s.assessChurn(in, idx, customerID)
}

func (s *CustomerService) assessChurn(in models.Instances, idx int, customerID int64) (ChurnAssessment, error) {
	single := models.Instances{Vectors: []features.Vector{in.Vectors[idx]}}
	proba, err := s.churn.PredictProba(single)
	if err != nil {
		return ChurnAssessment{}, err
	}
	segments, err := s.churn.RiskSegments(single)
	if err != nil {
		return ChurnAssessment{}, err
	}
	return ChurnAssessment{
		CustomerID:  customerID,
		Probability: round4(proba[0]),
		RiskSegment: segments[0],
		WillChurn:   proba[0] >= s.churn.Threshold,
	}, nil
}

// PredictLTV estimates one customer's lifetime value. The segment is
// computed against the whole customer base so a single lookup and a batch
// report agree.
func (s *CustomerService) PredictLTV(ctx context.Context, customerID int64) (LTVEstimate, error) {
	_, in, idx, err := s.base(ctx, customerID)
	if err != nil {
		return LTVEstimate{}, err
	}
	preds, segments, err := s.ltvBatch(in)
	if err != nil {
		return LTVEstimate{}, err
	}
	return LTVEstimate{
		CustomerID:   customerID,
		PredictedLTV: round2(preds[idx]),
		Segment:      segments[idx],
	}, nil
}

func (s *CustomerService) ltvBatch(in models.Instances) ([]float64, []string, error) {
	preds, err := s.ltv.Predict(in)
	if err != nil {
		return nil, nil, err
	}
	segments, err := s.ltv.Segments(in)
	if err != nil {
		return nil, nil, err
	}
	return preds, segments, nil
}

// CustomerAnalytics combines churn, LTV and retention recommendations for
// one customer.
func (s *CustomerService) CustomerAnalytics(ctx context.Context, customerID int64) (CustomerProfile, error) {
	_, in, idx, err := s.base(ctx, customerID)
	if err != nil {
		return CustomerProfile{}, err
	}

	churn, err := s.assessChurn(in, idx, customerID)
	if err != nil {
		return CustomerProfile{}, err
	}
	preds, segments, err := s.ltvBatch(in)
	if err != nil {
		return CustomerProfile{}, err
	}
	ltv := LTVEstimate{CustomerID: customerID, PredictedLTV: round2(preds[idx]), Segment: segments[idx]}

	return CustomerProfile{
		CustomerID:      customerID,
		Churn:           churn,
		LTV:             ltv,
		Recommendations: recommendations(churn, ltv),
	}, nil
}

// AtRiskCustomers lists customers whose churn probability meets the
// threshold, most at-risk first.
func (s *CustomerService) AtRiskCustomers(ctx context.Context, threshold float64) ([]AtRiskCustomer, error) {
	customers, in, _, err := s.base(ctx, 0)
	if err != nil {
		return nil, err
	}
	if len(customers) == 0 {
		return nil, nil
	}

	proba, err := s.churn.PredictProba(in)
	if err != nil {
		return nil, err
	}
	segments, err := s.churn.RiskSegments(in)
	if err != nil {
		return nil, err
	}

	var out []AtRiskCustomer
	for i, c := range customers {
		if proba[i] < threshold {
			continue
		}
		out = append(out, AtRiskCustomer{
			CustomerID:    c.CustomerID,
			Probability:   round4(proba[i]),
			RiskSegment:   segments[i],
			CurrentPoints: c.CurrentPoints,
			RecencyDays:   c.RecencyDays,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Probability > out[j].Probability })
	return out, nil
}

// HighValueCustomers lists customers whose predicted LTV is at or above
// the given percentile of the base, highest first.
func (s *CustomerService) HighValueCustomers(ctx context.Context, percentile float64) ([]HighValueCustomer, error) {
	customers, in, _, err := s.base(ctx, 0)
	if err != nil {
		return nil, err
	}
	if len(customers) == 0 {
		return nil, nil
	}

	preds, segments, err := s.ltvBatch(in)
	if err != nil {
		return nil, err
	}
	cutoff := learn.Percentile(preds, percentile)

	var out []HighValueCustomer
	for i, c := range customers {
		if preds[i] < cutoff {
			continue
		}
		out = append(out, HighValueCustomer{
			CustomerID:   c.CustomerID,
			PredictedLTV: round2(preds[i]),
			Segment:      segments[i],
			TotalSpent:   c.TotalSpent,
			TotalOrders:  c.TotalOrders,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PredictedLTV > out[j].PredictedLTV })
	return out, nil
}

func recommendations(churn ChurnAssessment, ltv LTVEstimate) []string {
	var recs []string
	switch {
	case churn.Probability >= 0.7:
		recs = append(recs, "Send personalized retention offer", "Offer loyalty points bonus")
	case churn.Probability >= 0.5:
		recs = append(recs, "Send engagement email")
	}
	switch ltv.Segment {
	case models.ValueHigh:
		recs = append(recs, "VIP treatment - priority service", "Exclusive menu items access")
	case models.ValueMedium:
		recs = append(recs, "Encourage repeat visits")
	}
	return recs
}

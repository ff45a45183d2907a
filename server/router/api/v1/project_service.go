package v1

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/memoria/internal/errcode"
	"github.com/hrygo/memoria/internal/profile"
	"github.com/hrygo/memoria/store"
	"github.com/hrygo/memoria/store/cache"
)

type profileConfigData struct {
	ProfileConfig string `json:"profile_config"`
}

type billingData struct {
	TokenLeft             *int64     `json:"token_left"`
	NextRefillAt          *time.Time `json:"next_refill_at"`
	ProjectTokenCostMonth int64      `json:"project_token_cost_month"`
}

// GetProjectProfileConfig returns the raw per-project config string, not
// the resolved view, so clients can round-trip what they stored.
func (s *APIV1Service) GetProjectProfileConfig(c echo.Context) error {
	project, err := s.Store.GetProject(c.Request().Context(), requestProjectID(c))
	if err != nil {
		return respondError(c, err)
	}
	if project == nil {
		return respondError(c, errcode.New(errcode.NotFound, "project not found"))
	}
	return respond(c, &profileConfigData{ProfileConfig: project.ProfileConfig})
}

// UpdateProjectProfileConfig validates and stores the per-project config
// overlay. The config only takes effect on the next pipeline run.
func (s *APIV1Service) UpdateProjectProfileConfig(c echo.Context) error {
	var req profileConfigData
	if err := c.Bind(&req); err != nil {
		return respondError(c, errcode.Wrap(err, errcode.BadRequest, "malformed profile config body"))
	}
	if _, err := profile.LoadConfigString(req.ProfileConfig); err != nil {
		return respondError(c, err)
	}

	err := s.Store.UpdateProjectProfileConfig(c.Request().Context(), requestProjectID(c), req.ProfileConfig)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, nil)
}

func (s *APIV1Service) GetProjectBilling(c echo.Context) error {
	billing, err := s.resolveBilling(c.Request().Context(), requestProjectID(c))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, billing)
}

// resolveBilling computes the live token balance for a project. Projects
// with a billing row get the prepaid balance, refilled monthly up to the
// active-tier allowance; projects without one fall back to a status-based
// monthly limit minus this month's LLM token spend.
func (s *APIV1Service) resolveBilling(ctx context.Context, projectID string) (*billingData, error) {
	kv := s.Store.GetCache()
	inTokens, err := kv.GetCounter(ctx, projectID, cache.CounterLLMInputTokens, true)
	if err != nil {
		return nil, err
	}
	outTokens, err := kv.GetCounter(ctx, projectID, cache.CounterLLMOutputTokens, true)
	if err != nil {
		return nil, err
	}
	monthCost := inTokens + outTokens

	billing, err := s.Store.GetProjectBilling(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if billing == nil {
		return s.fallbackBilling(ctx, projectID, monthCost)
	}

	tokenLeft := billing.UsageLeft
	nextRefill := billing.NextRefillAt
	refill := int64(s.Profile.UsageTokenLimitActive)
	if refill > 0 && tokenLeft != nil && *tokenLeft < refill && time.Now().After(nextRefill) {
		topped := refill
		newDate := store.NextMonthFirstDay()
		err := s.Store.UpdateBilling(ctx, &store.UpdateBilling{
			ID:           billing.ID,
			UsageLeft:    &topped,
			NextRefillAt: &newDate,
		})
		if err != nil {
			return nil, err
		}
		tokenLeft = &topped
		nextRefill = newDate
	}

	return &billingData{
		TokenLeft:             tokenLeft,
		NextRefillAt:          &nextRefill,
		ProjectTokenCostMonth: monthCost,
	}, nil
}

func (s *APIV1Service) fallbackBilling(ctx context.Context, projectID string, monthCost int64) (*billingData, error) {
	status, err := s.projectStatus(ctx, projectID)
	if err != nil {
		return nil, err
	}
	limit, ok := s.Profile.UsageTokenLimit(status)
	if !ok {
		return nil, errcode.New(errcode.Internal, "invalid project status %q", status)
	}

	var tokenLeft *int64
	if limit >= 0 {
		left := int64(limit) - monthCost
		tokenLeft = &left
	}
	next := store.NextMonthFirstDay()
	return &billingData{
		TokenLeft:             tokenLeft,
		NextRefillAt:          &next,
		ProjectTokenCostMonth: monthCost,
	}, nil
}

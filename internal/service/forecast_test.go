package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/restockr/internal/domain"
	"github.com/vbonduro/restockr/internal/predict"
)

func TestRunForecast_EmptyInventorySkipsModel(t *testing.T) {
	env := newTestEnv(t)

	outcome, err := env.svc.RunForecast(context.Background(), testUser)
	require.NoError(t, err)
	assert.Empty(t, outcome.Cart)
	assert.True(t, outcome.CartTotal.IsZero())
	assert.False(t, outcome.Degraded)

	forecasts, _ := env.predictor.calls()
	assert.Equal(t, 0, forecasts)
	assert.Empty(t, env.auditActions(t))
}

func TestRunForecast_MilkExample(t *testing.T) {
	env := newTestEnv(t)
	env.addItem(t, "Milk", 1, 2)
	env.setSpend(t, "500", "150")
	env.predictor.forecast = milkForecast

	outcome, err := env.svc.RunForecast(context.Background(), testUser)
	require.NoError(t, err)
	assert.False(t, outcome.Degraded)

	require.Len(t, outcome.Cart, 1)
	assert.Equal(t, "Milk", outcome.Cart[0].Name)
	assert.Equal(t, 2.0, outcome.Cart[0].Quantity)
	assert.Equal(t, "Costco", outcome.Cart[0].Vendor)
	assert.Equal(t, "8.00", outcome.CartTotal.StringFixed(2))

	require.Len(t, outcome.Updated, 1)
	milk := env.item(t, "Milk")
	require.NotNil(t, milk.PredictedRunOutDate)
	assert.True(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC).Equal(*milk.PredictedRunOutDate))

	cart := env.svc.Cart(testUser)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "8.00", cart.Total.StringFixed(2))
	assert.Equal(t, []string{domain.ActionForecastGenerated}, env.auditActions(t))
}

func TestRunForecast_SendsStateToModel(t *testing.T) {
	env := newTestEnv(t)
	env.addItem(t, "Eggs", 6, 12)

	var got *predict.ForecastRequest
	env.predictor.forecast = func(_ int, req *predict.ForecastRequest) (*predict.ForecastResult, error) {
		got = req
		return &predict.ForecastResult{}, nil
	}

	_, err := env.svc.RunForecast(context.Background(), testUser)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got.Inventory, 1)
	assert.Equal(t, []string{"Amazon", "Walmart", "Costco"}, []string(got.VendorAllowlist))
	assert.Equal(t, 5, got.MaxSuggestions)
	assert.True(t, testNow.Equal(got.Today))
}

func TestRunForecast_PredictionFailureIsDegraded(t *testing.T) {
	env := newTestEnv(t)
	env.addItem(t, "Milk", 1, 2)
	env.predictor.forecast = milkForecast

	_, err := env.svc.RunForecast(context.Background(), testUser)
	require.NoError(t, err)

	env.predictor.forecast = func(int, *predict.ForecastRequest) (*predict.ForecastResult, error) {
		return nil, errUnavailable
	}
	outcome, err := env.svc.RunForecast(context.Background(), testUser)
	require.NoError(t, err)
	assert.True(t, outcome.Degraded)
	require.Len(t, outcome.Cart, 1, "previous cart is kept")
	assert.Len(t, env.auditActions(t), 1, "degraded forecast writes nothing")
}

func TestRunForecast_CartRespectsSpendCap(t *testing.T) {
	env := newTestEnv(t)
	env.addItem(t, "Milk", 1, 2)
	env.setSpend(t, "500", "495")
	env.predictor.forecast = milkForecast

	outcome, err := env.svc.RunForecast(context.Background(), testUser)
	require.NoError(t, err)
	assert.Empty(t, outcome.Cart)
	assert.True(t, outcome.CartTotal.IsZero())
}

func TestRunForecast_IgnoresUnknownNames(t *testing.T) {
	env := newTestEnv(t)
	env.addItem(t, "Milk", 1, 2)
	env.predictor.forecast = func(int, *predict.ForecastRequest) (*predict.ForecastResult, error) {
		return &predict.ForecastResult{
			Forecasts: []predict.Forecast{{Name: "Caviar", RunOut: testNow}},
		}, nil
	}

	outcome, err := env.svc.RunForecast(context.Background(), testUser)
	require.NoError(t, err)
	assert.Empty(t, outcome.Updated)
	assert.Nil(t, env.item(t, "Milk").PredictedRunOutDate)
}

func TestRunForecast_RollsOverMonthlySpend(t *testing.T) {
	env := newTestEnv(t)
	env.addItem(t, "Milk", 1, 2)
	cfg := domain.DefaultUserConfig(testUser, testNow.AddDate(0, -1, 0))
	cfg.CurrentMonthSpend = dec("500")
	require.NoError(t, env.configs.Save(context.Background(), cfg))
	env.predictor.forecast = milkForecast

	outcome, err := env.svc.RunForecast(context.Background(), testUser)
	require.NoError(t, err)
	assert.Len(t, outcome.Cart, 1, "last month's spend does not count")
}

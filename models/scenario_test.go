package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarioTypeBuckets(t *testing.T) {
	assert.True(t, ScenarioTypeBudget.IsPlan())
	assert.True(t, ScenarioTypePlan.IsPlan())
	assert.False(t, ScenarioTypeForecast.IsPlan())
	assert.True(t, ScenarioTypeActual.IsFact())
	assert.False(t, ScenarioTypeAdjustment.IsFact())
}

func TestCreateScenario_VersionsAndDuplicates(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	tenantId := newTestTenant(t, "Scenario Co")

	base, err := CreateScenario(ctx, tenantId, &NewScenario{Name: "Forecast 2025", Type: ScenarioTypeForecast})
	require.NoError(t, err)
	assert.Equal(t, 1, base.Version)
	assert.Equal(t, "forecast-2025", base.Slug)

	_, err = CreateScenario(ctx, tenantId, &NewScenario{Name: "Forecast 2025", Type: ScenarioTypeForecast})
	assert.ErrorIs(t, err, ErrDuplicateCode)

	derived, err := DeriveScenarioVersion(ctx, tenantId, base.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, derived.Version)
	require.NotNil(t, derived.BaseScenarioId)
	assert.Equal(t, base.ID, *derived.BaseScenarioId)
	assert.NotEqual(t, base.Slug, derived.Slug)

	bySlug, err := GetScenarioBySlug(ctx, tenantId, base.Slug)
	require.NoError(t, err)
	assert.Equal(t, base.ID, bySlug.ID)
}

func TestCreateScenario_ValidatesReferences(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	a := newTestTenant(t, "Scenario A")
	b := newTestTenant(t, "Scenario B")

	foreign, err := CreateScenario(ctx, b, &NewScenario{Name: "Theirs", Type: ScenarioTypeActual})
	require.NoError(t, err)
	_, err = CreateScenario(ctx, a, &NewScenario{Name: "Mine", Type: ScenarioTypeActual, BaseScenarioId: &foreign.ID})
	assert.ErrorIs(t, err, ErrCrossTenantReference)

	_, err = CreateScenario(ctx, a, &NewScenario{Name: "Bad", Type: "wishful"})
	assert.ErrorIs(t, err, ErrValidation)

	dec, err := ResolveOrCreatePeriod(ctx, a, 2025, intPtr(4), intPtr(12))
	require.NoError(t, err)
	jan, err := ResolveOrCreatePeriod(ctx, a, 2025, intPtr(1), intPtr(1))
	require.NoError(t, err)
	_, err = CreateScenario(ctx, a, &NewScenario{Name: "Backwards", Type: ScenarioTypeBudget, StartPeriodId: &dec.ID, EndPeriodId: &jan.ID})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestToggleActiveScenario(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	tenantId := newTestTenant(t, "Toggle Co")

	s, err := CreateScenario(ctx, tenantId, &NewScenario{Name: "Plan", Type: ScenarioTypePlan})
	require.NoError(t, err)
	_, err = ToggleActiveScenario(ctx, tenantId, s.ID, false)
	require.NoError(t, err)

	active, err := ListScenarios(ctx, tenantId, true)
	require.NoError(t, err)
	assert.Empty(t, active)
	all, err := ListScenarios(ctx, tenantId, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

package models

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mmdatafocus/prognosis_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePeriod(t *testing.T) {
	for month := 1; month <= 12; month++ {
		q := QuarterOfMonth(month)
		m := month
		assert.NoError(t, ValidatePeriod(2025, &q, &m), "month %d", month)
	}

	cases := []struct {
		name    string
		year    int
		quarter *int
		month   *int
	}{
		{"month without quarter", 2025, nil, intPtr(3)},
		{"quarter does not match month", 2025, intPtr(2), intPtr(1)},
		{"quarter out of range", 2025, intPtr(5), nil},
		{"month out of range", 2025, intPtr(4), intPtr(13)},
		{"year too small", 1999, nil, nil},
		{"year too large", 2101, nil, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, ValidatePeriod(tc.year, tc.quarter, tc.month), ErrInvalidPeriod)
		})
	}

	assert.NoError(t, ValidatePeriod(2025, intPtr(3), nil), "quarter-level period")
}

func TestPeriodKeyAndIndexes(t *testing.T) {
	p := newPeriod("t", 2025, intPtr(2), intPtr(5))
	assert.Equal(t, "2025-05", p.PeriodKey)
	assert.Equal(t, 2025*12+4, p.StartIndex)
	assert.Equal(t, p.StartIndex, p.EndIndex)
	assert.Equal(t, PeriodGranularityMonth, p.Granularity())

	q := newPeriod("t", 2025, intPtr(2), nil)
	assert.Equal(t, "2025-Q2", q.PeriodKey)
	assert.Equal(t, 2025*12+3, q.StartIndex)
	assert.Equal(t, 2025*12+5, q.EndIndex)

	y := newPeriod("t", 2025, nil, nil)
	assert.Equal(t, "2025", y.PeriodKey)
	assert.Equal(t, PeriodGranularityYear, y.Granularity())
}

func TestGenerateCalendarYear_IsIdempotent(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	tenantId := newTestTenant(t, "Calendar Co")

	created, err := GenerateCalendarYear(ctx, tenantId, 2025)
	require.NoError(t, err)
	assert.Len(t, created, 17)

	again, err := GenerateCalendarYear(ctx, tenantId, 2025)
	require.NoError(t, err)
	assert.Empty(t, again)

	all, err := ListPeriods(ctx, tenantId, nil)
	require.NoError(t, err)
	require.Len(t, all, 17)
	assert.Equal(t, "2025", all[0].PeriodKey)
	assert.Equal(t, "2025-Q1", all[1].PeriodKey)
	assert.Equal(t, "2025-01", all[2].PeriodKey)
	assert.Equal(t, "2025-12", all[16].PeriodKey)
}

func TestResolveOrCreatePeriod_MonthAndYear(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	tenantId := newTestTenant(t, "Resolve Co")

	month, err := ResolveOrCreatePeriod(ctx, tenantId, 2025, intPtr(1), intPtr(1))
	require.NoError(t, err)
	require.NotNil(t, month.Quarter)
	assert.Equal(t, 1, *month.Quarter)
	assert.Equal(t, 1, *month.Month)

	year, err := ResolveOrCreatePeriod(ctx, tenantId, 2025, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, year.Quarter)
	assert.Nil(t, year.Month)
	assert.NotEqual(t, month.ID, year.ID)

	same, err := ResolveOrCreatePeriod(ctx, tenantId, 2025, intPtr(1), intPtr(1))
	require.NoError(t, err)
	assert.Equal(t, month.ID, same.ID)
}

func TestResolveOrCreatePeriod_Concurrent(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	tenantId := newTestTenant(t, "Race Co")

	const workers = 8
	ids := make([]int, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := ResolveOrCreatePeriod(ctx, tenantId, 2026, intPtr(3), intPtr(7))
			errs[i] = err
			if p != nil {
				ids[i] = p.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	count, err := utils.ResourceCountWhere[Period](dbFor(ctx), tenantId, "period_key = ?", "2026-07")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestPeriod_TenantIsolation(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	a := newTestTenant(t, "Tenant A")
	b := newTestTenant(t, "Tenant B")

	pa, err := ResolveOrCreatePeriod(ctx, a, 2025, nil, nil)
	require.NoError(t, err)
	pb, err := ResolveOrCreatePeriod(ctx, b, 2025, nil, nil)
	require.NoError(t, err)
	assert.NotEqual(t, pa.ID, pb.ID)

	_, err = GetPeriod(ctx, b, pa.ID)
	assert.ErrorIs(t, err, utils.ErrorRecordNotFound)
}

func TestGetCurrentPeriod(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	tenantId := newTestTenant(t, "Now Co")
	now := time.Date(2025, time.August, 14, 10, 0, 0, 0, time.UTC)

	month, err := GetCurrentPeriod(ctx, tenantId, PeriodGranularityMonth, now)
	require.NoError(t, err)
	assert.Equal(t, "2025-08", month.PeriodKey)

	quarter, err := GetCurrentPeriod(ctx, tenantId, PeriodGranularityQuarter, now)
	require.NoError(t, err)
	assert.Equal(t, "2025-Q3", quarter.PeriodKey)

	_, err = GetCurrentPeriod(ctx, tenantId, "week", now)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestClosePeriod_BlocksWrites(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	f := newFactFixture(t, "Closed Co")

	_, err := ClosePeriod(ctx, f.tenantId, f.period.ID)
	require.NoError(t, err)

	input := &NewFinancialLine{ScenarioId: f.actual.ID, PeriodId: f.period.ID, ArticleId: f.article.ID}
	_, err = CreateFinancialLine(ctx, f.tenantId, input)
	assert.ErrorIs(t, err, ErrPeriodClosed)
	_, err = UpsertFinancialLine(ctx, f.tenantId, input)
	assert.ErrorIs(t, err, ErrPeriodClosed)

	_, err = ReopenPeriod(ctx, f.tenantId, f.period.ID)
	require.NoError(t, err)
	_, err = CreateFinancialLine(ctx, f.tenantId, input)
	assert.NoError(t, err)
}

package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/prognosis_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	PeriodMinYear = 2000
	PeriodMaxYear = 2100
)

// Period is a year, quarter or month bucket of one tenant.
//
// PeriodKey ("2025", "2025-Q2", "2025-04") carries the unique constraint so the
// three granularities coexist as distinct rows on every dialect. StartIndex and
// EndIndex are month ordinals (year*12 + month-1) used for range filters.
type Period struct {
	ID         int       `gorm:"primary_key" json:"id"`
	TenantId   string    `gorm:"size:36;not null;index:idx_periods_tenant_key,unique,priority:1" json:"tenant_id"`
	Year       int       `gorm:"not null;index" json:"year"`
	Quarter    *int      `json:"quarter"`
	Month      *int      `json:"month"`
	PeriodKey  string    `gorm:"size:10;not null;index:idx_periods_tenant_key,unique,priority:2" json:"period_key"`
	StartIndex int       `gorm:"not null;index" json:"start_index"`
	EndIndex   int       `gorm:"not null" json:"end_index"`
	IsClosed   bool      `gorm:"not null;default:false;index" json:"is_closed"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Period) Granularity() PeriodGranularity {
	switch {
	case p.Month != nil:
		return PeriodGranularityMonth
	case p.Quarter != nil:
		return PeriodGranularityQuarter
	default:
		return PeriodGranularityYear
	}
}

// QuarterOfMonth maps 1..12 to 1..4.
func QuarterOfMonth(month int) int {
	return (month-1)/3 + 1
}

// ValidatePeriod checks the year/quarter/month combination.
// A month requires its quarter, and the quarter must match the month.
func ValidatePeriod(year int, quarter *int, month *int) error {
	if year < PeriodMinYear || year > PeriodMaxYear {
		return fmt.Errorf("%w: year %d out of range [%d, %d]", ErrInvalidPeriod, year, PeriodMinYear, PeriodMaxYear)
	}
	if quarter != nil && (*quarter < 1 || *quarter > 4) {
		return fmt.Errorf("%w: quarter %d out of range [1, 4]", ErrInvalidPeriod, *quarter)
	}
	if month != nil {
		if *month < 1 || *month > 12 {
			return fmt.Errorf("%w: month %d out of range [1, 12]", ErrInvalidPeriod, *month)
		}
		if quarter == nil {
			return fmt.Errorf("%w: month requires quarter", ErrInvalidPeriod)
		}
		if expected := QuarterOfMonth(*month); *quarter != expected {
			return fmt.Errorf("%w: quarter %d does not match month %d (expected %d)", ErrInvalidPeriod, *quarter, *month, expected)
		}
	}
	return nil
}

func periodKey(year int, quarter *int, month *int) string {
	switch {
	case month != nil:
		return fmt.Sprintf("%04d-%02d", year, *month)
	case quarter != nil:
		return fmt.Sprintf("%04d-Q%d", year, *quarter)
	default:
		return fmt.Sprintf("%04d", year)
	}
}

func periodIndexes(year int, quarter *int, month *int) (int, int) {
	base := year * 12
	switch {
	case month != nil:
		return base + *month - 1, base + *month - 1
	case quarter != nil:
		first := (*quarter - 1) * 3
		return base + first, base + first + 2
	default:
		return base, base + 11
	}
}

func newPeriod(tenantId string, year int, quarter *int, month *int) Period {
	start, end := periodIndexes(year, quarter, month)
	return Period{
		TenantId:   tenantId,
		Year:       year,
		Quarter:    quarter,
		Month:      month,
		PeriodKey:  periodKey(year, quarter, month),
		StartIndex: start,
		EndIndex:   end,
	}
}

// resolveOrCreatePeriod inserts with ON CONFLICT DO NOTHING on (tenant_id, period_key)
// and reads the row back, so concurrent callers converge on one row.
func resolveOrCreatePeriod(db *gorm.DB, tenantId string, year int, quarter *int, month *int) (*Period, bool, error) {
	if err := requireTenant(tenantId); err != nil {
		return nil, false, err
	}
	if err := ValidatePeriod(year, quarter, month); err != nil {
		return nil, false, err
	}

	candidate := newPeriod(tenantId, year, quarter, month)
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "period_key"}},
		DoNothing: true,
	}).Create(&candidate)
	if res.Error != nil {
		return nil, false, res.Error
	}
	created := res.RowsAffected > 0

	var period Period
	if err := db.Where("tenant_id = ? AND period_key = ?", tenantId, candidate.PeriodKey).First(&period).Error; err != nil {
		return nil, false, err
	}
	return &period, created, nil
}

// ResolveOrCreatePeriod is the idempotent lookup-or-insert of a period.
func ResolveOrCreatePeriod(ctx context.Context, tenantId string, year int, quarter *int, month *int) (*Period, error) {
	period, _, err := resolveOrCreatePeriod(dbFor(ctx), tenantId, year, quarter, month)
	return period, err
}

// GenerateCalendarYear ensures the year, its 4 quarters and 12 months exist.
// Returns only the periods created by this call.
func GenerateCalendarYear(ctx context.Context, tenantId string, year int) ([]*Period, error) {
	if err := ValidatePeriod(year, nil, nil); err != nil {
		return nil, err
	}
	created := make([]*Period, 0, 17)
	err := dbFor(ctx).Transaction(func(tx *gorm.DB) error {
		add := func(quarter *int, month *int) error {
			p, isNew, err := resolveOrCreatePeriod(tx, tenantId, year, quarter, month)
			if err != nil {
				return err
			}
			if isNew {
				created = append(created, p)
			}
			return nil
		}
		if err := add(nil, nil); err != nil {
			return err
		}
		for q := 1; q <= 4; q++ {
			quarter := q
			if err := add(&quarter, nil); err != nil {
				return err
			}
			for m := (q-1)*3 + 1; m <= q*3; m++ {
				quarter, month := q, m
				if err := add(&quarter, &month); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetCurrentPeriod resolves the period containing now at the given granularity.
func GetCurrentPeriod(ctx context.Context, tenantId string, granularity PeriodGranularity, now time.Time) (*Period, error) {
	year := now.Year()
	month := int(now.Month())
	quarter := QuarterOfMonth(month)
	switch granularity {
	case PeriodGranularityYear:
		return ResolveOrCreatePeriod(ctx, tenantId, year, nil, nil)
	case PeriodGranularityQuarter:
		return ResolveOrCreatePeriod(ctx, tenantId, year, &quarter, nil)
	case PeriodGranularityMonth, "":
		return ResolveOrCreatePeriod(ctx, tenantId, year, &quarter, &month)
	default:
		return nil, fmt.Errorf("%w: unknown granularity %q", ErrInvalidPeriod, granularity)
	}
}

func GetPeriod(ctx context.Context, tenantId string, id int) (*Period, error) {
	return utils.FetchModel[Period](dbFor(ctx), tenantId, id)
}

// ListPeriods orders each year as: year, Q1, its months, Q2, ...
func ListPeriods(ctx context.Context, tenantId string, year *int) ([]*Period, error) {
	var results []*Period
	q := dbFor(ctx).Where("tenant_id = ?", tenantId)
	if year != nil {
		q = q.Where("year = ?", *year)
	}
	if err := q.Order("start_index ASC, end_index DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func ClosePeriod(ctx context.Context, tenantId string, id int) (*Period, error) {
	return setPeriodClosed(ctx, tenantId, id, true)
}

func ReopenPeriod(ctx context.Context, tenantId string, id int) (*Period, error) {
	return setPeriodClosed(ctx, tenantId, id, false)
}

func setPeriodClosed(ctx context.Context, tenantId string, id int, closed bool) (*Period, error) {
	var period *Period
	err := dbFor(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		period, err = utils.FetchModelForUpdate[Period](tx, tenantId, id)
		if err != nil {
			return err
		}
		if err := tx.Model(&Period{}).Where("tenant_id = ? AND id = ?", tenantId, id).Update("is_closed", closed).Error; err != nil {
			return err
		}
		period.IsClosed = closed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return period, nil
}

// ensurePeriodWritable rejects fact writes into a missing, foreign or closed period.
func ensurePeriodWritable(db *gorm.DB, tenantId string, periodId int) error {
	period, err := utils.FetchModel[Period](db, tenantId, periodId)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return fmt.Errorf("%w: period %d", ErrCrossTenantReference, periodId)
		}
		return err
	}
	if period.IsClosed {
		return fmt.Errorf("%w: %s", ErrPeriodClosed, period.PeriodKey)
	}
	return nil
}

package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreeSegments(t *testing.T) {
	s, err := encodeTreeSegment(1)
	require.NoError(t, err)
	assert.Equal(t, "0001", s)

	s, err = encodeTreeSegment(36)
	require.NoError(t, err)
	assert.Equal(t, "0010", s)

	s, err = encodeTreeSegment(36*36*36*36 - 1)
	require.NoError(t, err)
	assert.Equal(t, "ZZZZ", s)

	_, err = encodeTreeSegment(36 * 36 * 36 * 36)
	assert.ErrorIs(t, err, ErrTreeFull)

	n, err := decodeTreeSegment("0010")
	require.NoError(t, err)
	assert.Equal(t, 36, n)

	next, err := nextTreePath("0001", "00010009")
	require.NoError(t, err)
	assert.Equal(t, "0001000A", next)

	assert.Equal(t, []string{"0001", "00010002"}, ancestorPaths("000100020003"))
	assert.Empty(t, ancestorPaths("0001"))
}

func TestBudgetArticleTree(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	tenantId := newTestTenant(t, "Tree Co")

	revenue, err := CreateBudgetArticle(ctx, tenantId, &NewDimension{Code: "R", Name: "Revenue", ArticleType: ArticleTypeRevenue})
	require.NoError(t, err)
	expense, err := CreateBudgetArticle(ctx, tenantId, &NewDimension{Code: "E", Name: "Expense"})
	require.NoError(t, err)
	sales, err := CreateBudgetArticle(ctx, tenantId, &NewDimension{Code: "R1", Name: "Sales", ParentId: &revenue.ID})
	require.NoError(t, err)
	services, err := CreateBudgetArticle(ctx, tenantId, &NewDimension{Code: "R2", Name: "Services", ParentId: &revenue.ID})
	require.NoError(t, err)
	retail, err := CreateBudgetArticle(ctx, tenantId, &NewDimension{Code: "R1a", Name: "Retail", ParentId: &sales.ID})
	require.NoError(t, err)

	assert.Equal(t, "0001", revenue.Path)
	assert.Equal(t, "0002", expense.Path)
	assert.Equal(t, ArticleTypeExpense, expense.ArticleType)
	assert.Equal(t, "00010001", sales.Path)
	assert.Equal(t, "00010002", services.Path)
	assert.Equal(t, "000100010001", retail.Path)
	assert.Equal(t, 3, retail.Depth)

	ancestors, err := Ancestors[BudgetArticle](ctx, tenantId, retail.ID)
	require.NoError(t, err)
	require.Len(t, ancestors, 2)
	assert.Equal(t, "R", ancestors[0].Code)
	assert.Equal(t, "R1", ancestors[1].Code)

	descendants, err := Descendants[BudgetArticle](ctx, tenantId, revenue.ID)
	require.NoError(t, err)
	codes := make([]string, 0, len(descendants))
	for _, d := range descendants {
		codes = append(codes, d.Code)
	}
	assert.Equal(t, []string{"R1", "R1a", "R2"}, codes)

	children, err := Children[BudgetArticle](ctx, tenantId, revenue.ID)
	require.NoError(t, err)
	assert.Len(t, children, 2)

	parent, err := Parent[BudgetArticle](ctx, tenantId, sales.ID)
	require.NoError(t, err)
	require.NotNil(t, parent)
	assert.Equal(t, revenue.ID, parent.ID)
	assert.Equal(t, 2, parent.NumChild)

	root, err := Parent[BudgetArticle](ctx, tenantId, revenue.ID)
	require.NoError(t, err)
	assert.Nil(t, root)

	roots, err := Roots[BudgetArticle](ctx, tenantId)
	require.NoError(t, err)
	assert.Len(t, roots, 2)
}

func TestDepartmentTree_CrossTenantParentRejected(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	a := newTestTenant(t, "Dept A")
	b := newTestTenant(t, "Dept B")

	hq, err := CreateDepartment(ctx, a, &NewDimension{Code: "HQ", Name: "Head office"})
	require.NoError(t, err)

	_, err = CreateDepartment(ctx, b, &NewDimension{Code: "FIN", Name: "Finance", ParentId: &hq.ID})
	assert.ErrorIs(t, err, ErrCrossTenantReference)

	fin, err := CreateDepartment(ctx, a, &NewDimension{Code: "FIN", Name: "Finance", ParentId: &hq.ID})
	require.NoError(t, err)
	assert.Equal(t, "00010001", fin.Path)
}

func TestDimensionCodes_UniquePerTenant(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	a := newTestTenant(t, "Codes A")
	b := newTestTenant(t, "Codes B")

	_, err := CreateCostCenter(ctx, a, &NewDimension{Code: "CC1", Name: "Moscow"})
	require.NoError(t, err)
	_, err = CreateCostCenter(ctx, a, &NewDimension{Code: "CC1", Name: "Moscow again"})
	assert.ErrorIs(t, err, ErrDuplicateCode)
	_, err = CreateCostCenter(ctx, b, &NewDimension{Code: "CC1", Name: "Moscow"})
	assert.NoError(t, err)

	acc, err := CreateAccount(ctx, a, &NewDimension{Code: "60", Name: "Settlements"})
	require.NoError(t, err)
	_, err = CreateAccount(ctx, b, &NewDimension{Code: "60.1", Name: "Sub", ParentId: &acc.ID})
	assert.ErrorIs(t, err, ErrCrossTenantReference)

	_, err = CreateDimension(ctx, a, "widgets", &NewDimension{Code: "W", Name: "W"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestResolveDimensionCodes(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	a := newTestTenant(t, "Lookup A")
	b := newTestTenant(t, "Lookup B")

	p1, err := CreateProject(ctx, a, &NewDimension{Code: "P1", Name: "Launch"})
	require.NoError(t, err)
	_, err = CreateProject(ctx, b, &NewDimension{Code: "P2", Name: "Other tenant"})
	require.NoError(t, err)

	ids, err := ResolveDimensionCodes[Project](ctx, a, []string{"P1", "P2", "P1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"P1": p1.ID}, ids)
}

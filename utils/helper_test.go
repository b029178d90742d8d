package utils

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1000.00", "1000"},
		{"1234,56", "1234.56"},
		{" -15,5 ", "-15.5"},
		{"1 200 000", "1200000"},
		{"0", "0"},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		require.NoError(t, err, tc.in)
		assert.True(t, got.Equal(decimal.RequireFromString(tc.want)), "%q => %s", tc.in, got)
	}
}

func TestParseAmount_Rejects(t *testing.T) {
	for _, in := range []string{"", "abc", "1,234.56", "1,2,3", "12a"} {
		_, err := ParseAmount(in)
		assert.Error(t, err, in)
	}
}

func TestUniqueSlice_KeepsFirstOrder(t *testing.T) {
	assert.Equal(t, []string{"b", "a", "c"}, UniqueSlice([]string{"b", "a", "b", "c", "a"}))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc", TruncateString("abcdef", 3))
	assert.Equal(t, "ab", TruncateString("ab", 3))
	assert.Equal(t, "Стат", TruncateString("Статья", 4))
}

func TestTenantLock_WithoutRedisIsNoop(t *testing.T) {
	release, err := TenantLock(context.Background(), "t1", "report", "utils", "TestTenantLock")
	require.NoError(t, err)
	require.NotNil(t, release)
	release()
}

func TestLocalStore_SaveOpenDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, "imports/2025/01/02/a.csv", strings.NewReader("x,y\n")))

	rc, err := store.Open(ctx, "imports/2025/01/02/a.csv")
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "x,y\n", string(b))

	require.NoError(t, store.Delete(ctx, "imports/2025/01/02/a.csv"))
	_, err = store.Open(ctx, "imports/2025/01/02/a.csv")
	assert.ErrorIs(t, err, ErrorObjectNotFound)
}

func TestLocalStore_KeysCannotEscapeRoot(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root)
	require.NoError(t, err)

	p, err := store.path("../../etc/passwd")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, root))
}

func TestJwtRoundTrip(t *testing.T) {
	token, err := JwtGenerate(42, "planner")
	require.NoError(t, err)

	claims, err := JwtUser(token)
	require.NoError(t, err)
	assert.Equal(t, 42, claims.ID)
	assert.Equal(t, "planner", claims.Role)

	_, err = JwtUser(token + "x")
	assert.Error(t, err)
}

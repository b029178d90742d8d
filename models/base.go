package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/prognosis_backend/config"
	"github.com/mmdatafocus/prognosis_backend/utils"
	"gorm.io/gorm"
)

// dbFor returns the global DB bound to ctx.
func dbFor(ctx context.Context) *gorm.DB {
	return config.GetDB().WithContext(ctx)
}

func requireTenant(tenantId string) error {
	if strings.TrimSpace(tenantId) == "" {
		return errors.New("tenant id is required")
	}
	return nil
}

// inputValidator reads the same `binding` tags gin uses for request bodies.
var inputValidator = func() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	return v
}()

func validateInput(input any) error {
	if err := inputValidator.Struct(input); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return fmt.Errorf("%w: %s is %s", ErrValidation, ve[0].Field(), ve[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// IsDuplicateKeyError covers gorm's translated error plus the raw driver error
// in case a dialect did not translate it.
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "SQLSTATE 23505")
}

// slugify lowercases, keeps letters and digits of any script and joins the rest with "-".
func slugify(s string, fallback string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if b.Len() > 0 && !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return fallback
	}
	return utils.TruncateString(slug, 120)
}

// uniqueSlug appends -1, -2, ... until the slug is free for the tenant.
func uniqueSlug[T any](db *gorm.DB, tenantId string, name string, fallback string) (string, error) {
	base := slugify(name, fallback)
	slug := base
	for i := 1; ; i++ {
		count, err := utils.ResourceCountWhere[T](db, tenantId, "slug = ?", slug)
		if err != nil {
			return "", err
		}
		if count == 0 {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}

package models

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mmdatafocus/prognosis_backend/utils"
)

type Resource interface {
	GetTenantId() string
}

// first find in redis, then in db scoped by tenant_id, cache result
// (may return ErrorRecordNotFound)
func GetResource[T Resource](ctx context.Context, tenantId string, id int) (*T, error) {
	if err := requireTenant(tenantId); err != nil {
		return nil, err
	}
	key := strconv.Itoa(id)
	result, err := utils.RetrieveRedis[T](ctx, key)
	if err != nil {
		return nil, err
	}
	if result != nil {
		// a cached copy of another tenant's row is treated as missing
		if (*result).GetTenantId() != tenantId {
			return nil, utils.ErrorRecordNotFound
		}
		return result, nil
	}

	result, err = utils.FetchModel[T](dbFor(ctx), tenantId, id)
	if err != nil {
		return nil, err
	}
	if err := utils.StoreRedis(ctx, result, key); err != nil {
		return nil, fmt.Errorf("cache %s:%d: %w", utils.GetTypeName[T](), id, err)
	}
	return result, nil
}

func RemoveResourceCache[T any](ctx context.Context, id int) error {
	return utils.RemoveRedisItem[T](ctx, strconv.Itoa(id))
}

package utils

import (
	"context"
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/mmdatafocus/prognosis_backend/config"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil || lifespan <= 0 {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

/* generic functions */

func GetTypeName[T any]() string {
	var v T
	return reflect.TypeOf(v).Name()
}

func redisKey[T any](id string) string {
	return GetTypeName[T]() + ":" + id
}

/* Redis */

// store instance under Type:$id
func StoreRedis[T any](ctx context.Context, obj *T, id string) error {
	return config.SetRedisObject(ctx, redisKey[T](id), obj, GetCacheLifespan())
}

// get from redis
// returns nil if does not exist (or redis is not configured)
func RetrieveRedis[T any](ctx context.Context, id string) (*T, error) {
	var result *T
	exists, err := config.GetRedisObject(ctx, redisKey[T](id), &result)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return result, nil
}

// remove an instance, Type:$id
func RemoveRedisItem[T any](ctx context.Context, id string) error {
	return config.RemoveRedisKey(ctx, redisKey[T](id))
}

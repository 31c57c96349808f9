package utils

import (
	"os"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/structures_backend/config"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

// store list of models, keyed by type name + business id
func StoreRedisList[T any](obj any, businessId string) error {
	key := GetTypeName[T]() + "List:" + businessId
	return config.SetRedisObject(key, &obj, GetCacheLifespan())
}

// retrieve list of models, nil result means cache miss
func RetrieveRedisList[T any](businessId string) ([]*T, error) {
	key := GetTypeName[T]() + "List:" + businessId
	var results []*T
	exists, err := config.GetRedisObject(key, &results)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return results, nil
}

// drop the cached list after any write to the underlying table
func ClearRedisList[T any](businessId string) error {
	key := GetTypeName[T]() + "List:" + businessId
	return config.RemoveRedisKey(key)
}

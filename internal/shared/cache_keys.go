package shared

import "fmt"

// Cache key layout. Mọi key của catalog đều bắt đầu bằng "catalog:".
const (
	CacheKeyPrefix   = "catalog:"
	BookCachePattern = CacheKeyPrefix + "book:*"
)

func BookCacheKey(id int64) string {
	return fmt.Sprintf("%sbook:%d", CacheKeyPrefix, id)
}

func LookupNameCacheKey(kind, name string) string {
	return fmt.Sprintf("%slookup:%s:name:%s", CacheKeyPrefix, kind, name)
}

func LookupIDCacheKey(kind string, id int32) string {
	return fmt.Sprintf("%slookup:%s:id:%d", CacheKeyPrefix, kind, id)
}

func LookupCachePattern(kind string) string {
	return fmt.Sprintf("%slookup:%s:*", CacheKeyPrefix, kind)
}

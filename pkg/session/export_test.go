package session

func CacheSize[V any](c *Cache[V]) int {
	return c.size()
}

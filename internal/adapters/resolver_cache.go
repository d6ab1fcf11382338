package adapters

import (
	"sync"
	"time"

	"dependency-metrics/internal/types"
)

// cacheStore is a read-through map safe for concurrent use. Values are
// stored once and handed out verbatim.
type cacheStore[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
}

func newCacheStore[K comparable, V any]() *cacheStore[K, V] {
	return &cacheStore[K, V]{items: map[K]V{}}
}

func (s *cacheStore[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.items[key]
	return value, ok
}

func (s *cacheStore[K, V]) Put(key K, value V) {
	s.mu.Lock()
	s.items[key] = value
	s.mu.Unlock()
}

func (s *cacheStore[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

type packageKey struct {
	ecosystem types.Ecosystem
	name      string
}

type versionKey struct {
	ecosystem types.Ecosystem
	name      string
	version   string
}

type resolutionKey struct {
	ecosystem  types.Ecosystem
	dependency string
	constraint string
	before     int64
}

// ResolverCache is shared by every resolver of one batch run. It holds
// fetched histories, per-version declarations and per-instant constraint
// resolutions.
type ResolverCache struct {
	metadata    *cacheStore[packageKey, types.PackageMetadata]
	versionData *cacheStore[versionKey, types.VersionData]
	versionDeps *cacheStore[versionKey, map[string]string]
	resolutions *cacheStore[resolutionKey, string]
}

func NewResolverCache() *ResolverCache {
	return &ResolverCache{
		metadata:    newCacheStore[packageKey, types.PackageMetadata](),
		versionData: newCacheStore[versionKey, types.VersionData](),
		versionDeps: newCacheStore[versionKey, map[string]string](),
		resolutions: newCacheStore[resolutionKey, string](),
	}
}

func (c *ResolverCache) Metadata(ecosystem types.Ecosystem, name string) (types.PackageMetadata, bool) {
	return c.metadata.Get(packageKey{ecosystem: ecosystem, name: name})
}

func (c *ResolverCache) PutMetadata(ecosystem types.Ecosystem, name string, meta types.PackageMetadata) {
	c.metadata.Put(packageKey{ecosystem: ecosystem, name: name}, meta)
}

func (c *ResolverCache) VersionData(ecosystem types.Ecosystem, name string, version string) (types.VersionData, bool) {
	return c.versionData.Get(versionKey{ecosystem: ecosystem, name: name, version: version})
}

func (c *ResolverCache) PutVersionData(ecosystem types.Ecosystem, name string, version string, data types.VersionData) {
	c.versionData.Put(versionKey{ecosystem: ecosystem, name: name, version: version}, data)
}

func (c *ResolverCache) VersionDeps(ecosystem types.Ecosystem, name string, version string) (map[string]string, bool) {
	return c.versionDeps.Get(versionKey{ecosystem: ecosystem, name: name, version: version})
}

func (c *ResolverCache) PutVersionDeps(ecosystem types.Ecosystem, name string, version string, deps map[string]string) {
	c.versionDeps.Put(versionKey{ecosystem: ecosystem, name: name, version: version}, deps)
}

func (c *ResolverCache) Resolution(ecosystem types.Ecosystem, dependency string, constraint string, before time.Time) (string, bool) {
	return c.resolutions.Get(resolutionKey{ecosystem: ecosystem, dependency: dependency, constraint: constraint, before: before.UnixNano()})
}

func (c *ResolverCache) PutResolution(ecosystem types.Ecosystem, dependency string, constraint string, before time.Time, version string) {
	c.resolutions.Put(resolutionKey{ecosystem: ecosystem, dependency: dependency, constraint: constraint, before: before.UnixNano()}, version)
}

// Stats returns entry counts, logged at the end of a batch.
func (c *ResolverCache) Stats() map[string]int {
	return map[string]int{
		"metadata":     c.metadata.Len(),
		"version_data": c.versionData.Len(),
		"version_deps": c.versionDeps.Len(),
		"resolutions":  c.resolutions.Len(),
	}
}

package sandbox

import (
	"hash/fnv"
	"strconv"

	"github.com/ctrl-escp/restringer-go/pkg/jsast"
)

// MaxCacheEntries bounds the per-script cache (spec §3: "size-bounded
// (≤100 entries)"). The engine holds one Cache per loaded script and
// discards it when a new script is loaded.
const MaxCacheEntries = 100

// entry is the cache's sum type: a result is either a resolved AST node or a
// prepared sandbox, never both.
type entry struct {
	node    jsast.Node
	sandbox *Sandbox
}

// Cache maps opaque string keys (conventionally "rule-name:hash(fragment)",
// built with Key below) to either a resolved node or a prepared sandbox.
// It is not safe for concurrent use — the engine is single-threaded (spec
// §5) so this never needs a lock.
type Cache struct {
	entries map[string]entry
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]entry)}
}

// Key builds the conventional cache key for a rule's fragment, hashed with
// 64-bit FNV per the spec's own suggestion ("typically rule-name:hash(fragment)").
func Key(ruleName, fragment string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(fragment))
	return ruleName + ":" + strconv.FormatUint(h.Sum64(), 16)
}

// GetNode returns a cached node result, if any.
func (c *Cache) GetNode(key string) (jsast.Node, bool) {
	e, ok := c.entries[key]
	if !ok || e.node == nil {
		return nil, false
	}
	return e.node, true
}

// PutNode stores a node result, evicting the whole cache first if it is at
// capacity (spec: "a conservative flush is acceptable" in place of true LRU).
func (c *Cache) PutNode(key string, node jsast.Node) {
	c.evictIfFull()
	c.entries[key] = entry{node: node}
}

// GetSandbox returns a cached prepared sandbox, if any. Callers must treat it
// as read-only: "cached sandboxes are read-only after preparation" (spec §5).
func (c *Cache) GetSandbox(key string) (*Sandbox, bool) {
	e, ok := c.entries[key]
	if !ok || e.sandbox == nil {
		return nil, false
	}
	return e.sandbox, true
}

// PutSandbox stores a prepared sandbox under key.
func (c *Cache) PutSandbox(key string, sb *Sandbox) {
	c.evictIfFull()
	c.entries[key] = entry{sandbox: sb}
}

func (c *Cache) evictIfFull() {
	if len(c.entries) >= MaxCacheEntries {
		c.entries = make(map[string]entry)
	}
}

// Len reports the number of cached entries, for tests/diagnostics.
func (c *Cache) Len() int { return len(c.entries) }

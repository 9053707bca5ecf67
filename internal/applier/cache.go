package applier

import "github.com/agentflare-ai/jsoncrdt/internal/node"

// seqCache holds, per sequence-container path, a linearized index→elemID
// ordering observed the first time that sequence is touched in this
// Apply call (spec.md §4.6's index-snapshot cache). applyCtx keeps two
// instances: headCache, whose insertAt/deleteAt/replaceAt keep it
// incrementally consistent as ArrInsert/ArrDelete/ArrReplace mutate
// head — so an N-operation batch against one array stays O(N) rather
// than O(N²) — and baseCache, read against a snapshot that never
// mutates during Apply, so a plain get() suffices there.
type seqCache struct {
	m map[string][]string
}

func newSeqCache() *seqCache {
	return &seqCache{m: make(map[string][]string)}
}

// get returns the cached ordering for path, seeding it from seq's current
// linearization on first access.
func (c *seqCache) get(path string, seq *node.Node) []string {
	if ids, ok := c.m[path]; ok {
		return ids
	}
	ids := node.RGALinearizeIDs(seq)
	c.m[path] = ids
	return ids
}

// insertAt splices id into the cached ordering for path at index (which
// may equal len(ids) for an append).
func (c *seqCache) insertAt(path string, index int, id string) {
	ids := c.m[path]
	ids = append(ids, "")
	copy(ids[index+1:], ids[index:])
	ids[index] = id
	c.m[path] = ids
}

// deleteAt removes the element at index from the cached ordering for path.
func (c *seqCache) deleteAt(path string, index int) {
	ids := c.m[path]
	ids = append(ids[:index], ids[index+1:]...)
	c.m[path] = ids
}

// replaceAt substitutes the element at index in place, used by ArrReplace.
func (c *seqCache) replaceAt(path string, index int, id string) {
	ids := c.m[path]
	ids[index] = id
	c.m[path] = ids
}

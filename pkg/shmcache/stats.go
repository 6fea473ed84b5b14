package shmcache

// Stats offsets within the stats area (spec §3 "Stats").
const (
	statsOffGetHits   = 0
	statsOffGetMisses = wordSize
)

func (c codec) getHits(layout areaLayout) int64 {
	return c.readWord(layout.statsOffset + statsOffGetHits)
}

func (c codec) getMisses(layout areaLayout) int64 {
	return c.readWord(layout.statsOffset + statsOffGetMisses)
}

func (c codec) incGetHits(layout areaLayout) {
	c.writeWord(layout.statsOffset+statsOffGetHits, c.getHits(layout)+1)
}

func (c codec) incGetMisses(layout areaLayout) {
	c.writeWord(layout.statsOffset+statsOffGetMisses, c.getMisses(layout)+1)
}

// Stats is the aggregate returned by [Engine.Stats] (spec §4.5).
type Stats struct {
	// Items is the number of live chunks found while walking every zone.
	Items int64

	// BucketsUsed is the number of non-empty bucket heads.
	BucketsUsed int64

	// GetHits and GetMisses are the two monotonic counters of spec §3.
	GetHits   int64
	GetMisses int64
}

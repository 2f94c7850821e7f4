package arena

// growthPolicy sizes new chunks. The first chunk holds one page worth of
// elements; each later chunk doubles its predecessor until the predecessor
// reaches half a huge page, after which every chunk is one huge page.
// A chunk is never smaller than the request that caused it.
type growthPolicy struct {
	page     int
	hugePage int
}

// chunkCap returns the element capacity of the next chunk. last is the
// capacity of the current last chunk, or 0 when there is none.
func (p growthPolicy) chunkCap(last, elemSize, additional int) int {
	elemSize = max(1, elemSize)

	var newCap int
	if last > 0 {
		newCap = min(last, p.hugePage/elemSize/2) * 2
	} else {
		newCap = p.page / elemSize
	}
	return max(additional, newCap)
}

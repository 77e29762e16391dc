package queue

import (
	"sync"
)

// FITS is a user-defined SQL function used by migration file selection:
// FITS(inode, size, free, num_found, total) returns 1 and debits size
// from the free counter when the file still fits, 0 otherwise, counting
// candidates either way. Transparent recall does not call it, but every
// store exposes it.
//
// The original passed raw counter addresses through the integer
// arguments. Go cannot smuggle pointers through SQL, so the last three
// arguments are slot handles from RegisterFitsCounter instead.

var (
	fitsMu    sync.Mutex
	fitsSlots = make(map[int64]*int64)
	fitsNext  int64
)

// RegisterFitsCounter makes a counter addressable from SQL and returns
// its slot handle.
func RegisterFitsCounter(c *int64) int64 {
	fitsMu.Lock()
	defer fitsMu.Unlock()

	fitsNext++
	fitsSlots[fitsNext] = c
	return fitsNext
}

// ReleaseFitsCounter drops a slot handle.
func ReleaseFitsCounter(slot int64) {
	fitsMu.Lock()
	defer fitsMu.Unlock()
	delete(fitsSlots, slot)
}

func fits(inode, size, freeSlot, foundSlot, totalSlot int64) int64 {
	fitsMu.Lock()
	defer fitsMu.Unlock()

	free := fitsSlots[freeSlot]
	found := fitsSlots[foundSlot]
	total := fitsSlots[totalSlot]
	if free == nil || found == nil || total == nil {
		return 0
	}

	if *free >= size {
		*free -= size
		*found++
		*total++
		return 1
	}
	*total++
	return 0
}

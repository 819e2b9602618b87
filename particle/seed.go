package particle

import "sync/atomic"

// freeSeedCounter feeds non-fixed sampling so successive regenerations
// differ. Accessed atomically; sampling may run on any goroutine.
var freeSeedCounter atomic.Uint64

func nextFreeSeed() uint64 {
	return freeSeedCounter.Add(0x632BE59BD9B4E019)
}

package mapper

import "sync"

// scanBuffers holds one row of driver values and the pointers Scan writes
// through. Buffers are pooled and reused across rows and calls.
type scanBuffers struct {
	vals []any
	ptrs []any
}

// reset clears the buffers for reuse
func (sb *scanBuffers) reset() {
	clear(sb.vals)
	sb.vals = sb.vals[:0]
	sb.ptrs = sb.ptrs[:0]
}

// prepare sizes the buffers for a row of size columns.
func (sb *scanBuffers) prepare(size int) {
	sb.reset()
	if cap(sb.vals) < size {
		sb.vals = make([]any, 0, size)
		sb.ptrs = make([]any, 0, size)
	}

	for len(sb.vals) < size {
		sb.vals = append(sb.vals, nil)
		sb.ptrs = append(sb.ptrs, nil)
	}

	for i := range sb.vals {
		sb.ptrs[i] = &sb.vals[i]
	}
}

var scanPool = sync.Pool{
	New: func() interface{} {
		return &scanBuffers{
			vals: make([]any, 0, 20),
			ptrs: make([]any, 0, 20),
		}
	},
}

func getBuffers(size int) *scanBuffers {
	sb := scanPool.Get().(*scanBuffers)
	sb.prepare(size)
	return sb
}

func putBuffers(sb *scanBuffers) {
	sb.reset()
	scanPool.Put(sb)
}

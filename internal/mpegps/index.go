package mpegps

import "github.com/gpaccore/mediacore/pkg/diskslice"

// RecordMinGap is the minimum DTS distance, in 90kHz ticks, required
// between two consecutive RecordedAccessPoints (spec §3 "RecordedAccessPoint":
// 5 seconds at 90kHz).
const RecordMinGap = int64(5 * 90000)

// RecordedAccessPoint is a seek anchor: a (DTS, byte offset) pair recorded
// while parsing, which Seek binary-searches (FindFloor).
type RecordedAccessPoint struct {
	DTS        int64
	ByteOffset int64
}

// AccessPointIndex is a stream's sorted list of RecordedAccessPoints,
// backed by diskslice so long recordings don't pin the whole index in
// memory (spec §1B "Growable buffer / PS index").
type AccessPointIndex struct {
	points *diskslice.DiskSlice[RecordedAccessPoint]
}

// NewAccessPointIndex creates an empty index.
func NewAccessPointIndex() (*AccessPointIndex, error) {
	ds, err := diskslice.New[RecordedAccessPoint](diskslice.Options{
		Name:              "mpegps-index",
		EstimatedItemSize: 16,
	})
	if err != nil {
		return nil, err
	}
	return &AccessPointIndex{points: ds}, nil
}

// Len returns the number of recorded anchors.
func (idx *AccessPointIndex) Len() int {
	return idx.points.Len()
}

// At returns the anchor at position i.
func (idx *AccessPointIndex) At(i int) (RecordedAccessPoint, error) {
	p, err := idx.points.Get(i)
	if err != nil {
		return RecordedAccessPoint{}, err
	}
	return *p, nil
}

// Last returns the most recently recorded anchor, if any.
func (idx *AccessPointIndex) Last() (RecordedAccessPoint, bool) {
	n := idx.points.Len()
	if n == 0 {
		return RecordedAccessPoint{}, false
	}
	p, err := idx.points.Get(n - 1)
	if err != nil {
		return RecordedAccessPoint{}, false
	}
	return *p, true
}

// TryInsert appends a candidate anchor, accepting it only if it is at
// least RecordMinGap away from the most recently recorded anchor (spec
// §4.1 "Index & seek", §8 "MPEG-2 PS index sparsity" invariant). Anchors
// arrive in increasing-DTS order during forward parsing, so a plain
// "append if far enough from the tail" check is sufficient to keep the
// list sorted and sparse — no mid-list insertion is ever required.
func (idx *AccessPointIndex) TryInsert(p RecordedAccessPoint) error {
	if last, ok := idx.Last(); ok {
		if p.DTS-last.DTS < RecordMinGap {
			return nil
		}
	}
	return idx.points.Append(p)
}

// Close releases any backing disk file.
func (idx *AccessPointIndex) Close() error {
	return idx.points.Close()
}

// FindFloor returns the index of the anchor with the greatest DTS not
// exceeding target, or -1 if every anchor's DTS exceeds target (or the
// index is empty).
func (idx *AccessPointIndex) FindFloor(target int64) (int, error) {
	lo, hi := 0, idx.points.Len()-1
	best := -1
	for lo <= hi {
		mid := (lo + hi) / 2
		p, err := idx.At(mid)
		if err != nil {
			return -1, err
		}
		if p.DTS <= target {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return best, nil
}

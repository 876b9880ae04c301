package inflight

import "github.com/kartikbazzad/docdb-inflight/internal/vclock"

// classify applies the source-specific conflict-resolution table:
// currentKnown is false only when the document has never been staged or
// persisted before (both current-history and the persisted history are
// absent) — in that case every source classifies as write.
func classify(source Source, currentKnown bool, current, supplied vclock.Clock) Status {
	if !currentKnown {
		return StatusWrite
	}
	switch source {
	case Client:
		// same? and descends? both resolve to write for a client; Same
		// implies Descends here, so a single check covers both rows of
		// the table.
		if supplied.Descends(current) {
			return StatusWrite
		}
		return StatusConflict
	case Replication:
		switch {
		case supplied.Same(current):
			return StatusSkip
		case supplied.Descends(current):
			return StatusWrite
		case current.Descends(supplied):
			return StatusSkip
		default:
			return StatusConflict
		}
	default:
		return StatusConflict
	}
}

package kmertop

import "github.com/ledgerwatch/log/v3"

// progressInterval is the number of tokens between EventProgress events.
const progressInterval = 1 << 16

// EventKind identifies what an Event reports.
type EventKind int

const (
	// EventPlanned carries the plan chosen for the run and the input's
	// token count.
	EventPlanned EventKind = iota
	// EventShardStart marks the start of an iteration's shard phase.
	EventShardStart
	// EventShardDone reports the tokens written during a shard phase.
	EventShardDone
	// EventPassStart marks the start of a counting pass.
	EventPassStart
	// EventProgress reports the tokens read so far in the current pass or
	// shard phase.
	EventProgress
	// EventPassDone reports the tokens read and the distinct repeated
	// tokens counted by a pass.
	EventPassDone
)

func (k EventKind) String() string {
	switch k {
	case EventPlanned:
		return "planned"
	case EventShardStart:
		return "shard-start"
	case EventShardDone:
		return "shard-done"
	case EventPassStart:
		return "pass-start"
	case EventProgress:
		return "progress"
	case EventPassDone:
		return "pass-done"
	default:
		return "unknown"
	}
}

// Event describes a step of a run. Iteration and Partition are -1 when
// they don't apply, as for a single-pass run.
type Event struct {
	Kind      EventKind
	Plan      Plan
	Iteration int
	Partition int
	Tokens    uint64
	Distinct  int
}

// Observer receives events as a run progresses. It is called synchronously
// and has no influence on results.
type Observer func(Event)

func (o Observer) emit(e Event) {
	if o != nil {
		o(e)
	}
}

// discardLogger returns a logger that drops every record.
func discardLogger() log.Logger {
	l := log.New()
	l.SetHandler(log.DiscardHandler())
	return l
}

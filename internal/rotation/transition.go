package rotation

import (
	"fmt"
	"time"
)

type Phase int

const (
	Mid Phase = iota
	Start
	End
)

func (p Phase) String() string {
	switch p {
	case Mid:
		return "mid"
	case Start:
		return "start"
	case End:
		return "end"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Transition is a classified instant along with the neighbouring states it
// was compared against.
type Transition struct {
	Phase    Phase
	Current  ActiveState
	Previous ActiveState
	Upcoming ActiveState
}

// ClassifyPeriod is the distance to the neighbouring instants Classify looks at.
const ClassifyPeriod = 24 * time.Hour

// Classify reports Start when the item active at now differs from the one a
// day earlier, End when it differs from the one a day later, and Mid
// otherwise. Items compare by ID.
func Classify(r Resolver, now time.Time) (Transition, error) {
	cur, err := r.Resolve(now)
	if err != nil {
		return Transition{}, fmt.Errorf("classify now: %w", err)
	}
	prev, err := r.Resolve(now.Add(-ClassifyPeriod))
	if err != nil {
		return Transition{}, fmt.Errorf("classify previous: %w", err)
	}
	next, err := r.Resolve(now.Add(ClassifyPeriod))
	if err != nil {
		return Transition{}, fmt.Errorf("classify upcoming: %w", err)
	}
	tr := Transition{Phase: Mid, Current: cur, Previous: prev, Upcoming: next}
	switch {
	case cur.Current.ID != prev.Current.ID:
		tr.Phase = Start
	case cur.Current.ID != next.Current.ID:
		tr.Phase = End
	}
	return tr, nil
}

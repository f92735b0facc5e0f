package sched

// Direction of a sweep over block columns (or rows).
type Direction uint8

const (
	Forward  Direction = iota // k = 0 .. nt-1
	Backward                  // k = nt-1 .. 0
)

// Step is the plan of one sweep iteration.
type Step struct {
	K         int   // panel index
	Lookahead []int // updated with high priority, nearest first
	Trailing  []int // updated by one bulk task, in sweep order
}

// Sweep plans nt steps with a lookahead window of la columns. For every
// step, Lookahead and Trailing are disjoint and together hold exactly the
// columns after K in sweep direction.
//
// It panics if la < 0.
func Sweep(nt, la int, dir Direction) []Step {
	if la < 0 {
		panic("sched: Sweep: lookahead must be >= 0")
	}
	steps := make([]Step, 0, nt)
	for s := 0; s < nt; s++ {
		k, next := s, func(i int) int { return i }
		if dir == Backward {
			k, next = nt-1-s, func(i int) int { return nt - 1 - i }
		}
		st := Step{K: k}
		for i := s + 1; i < nt; i++ {
			if i <= s+la {
				st.Lookahead = append(st.Lookahead, next(i))
			} else {
				st.Trailing = append(st.Trailing, next(i))
			}
		}
		steps = append(steps, st)
	}
	return steps
}

// First returns the first trailing column, or -1.
func (s Step) First() int {
	if len(s.Trailing) == 0 {
		return -1
	}
	return s.Trailing[0]
}

// Last returns the last trailing column, or -1.
func (s Step) Last() int {
	if len(s.Trailing) == 0 {
		return -1
	}
	return s.Trailing[len(s.Trailing)-1]
}

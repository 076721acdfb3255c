package booking

import "time"

// All times in this file are minutes since midnight. A slot t is usable when
// it starts inside the window and the whole slot fits before the window
// closes: t >= start && t+step <= end.

// snapToGrid rounds desired onto the slot grid anchored at windowStart.
// Midpoints round to the later slot.
func snapToGrid(desired, windowStart, step int) int {
	off := desired - windowStart
	rem := off % step
	if rem == 0 {
		return desired
	}
	if rem*2 >= step {
		return desired + (step - rem)
	}
	return desired - rem
}

// FindNearestSlot picks the free grid slot closest to desired inside a
// single window, preferring the later slot when two candidates are
// equidistant. It returns false when every usable slot is taken or the
// window fits no slot at all.
func FindNearestSlot(desired, windowStart, windowEnd, step int, taken map[int]bool) (int, bool) {
	if step <= 0 || windowStart+step > windowEnd {
		return 0, false
	}

	fits := func(t int) bool {
		return t >= windowStart && t+step <= windowEnd
	}

	// Clamp the desire into the window before snapping, then clamp the
	// snapped base back onto a usable grid point.
	if desired < windowStart {
		desired = windowStart
	}
	if desired > windowEnd {
		desired = windowEnd
	}
	base := snapToGrid(desired, windowStart, step)
	for base+step > windowEnd {
		base -= step
	}
	if base < windowStart {
		base = windowStart
	}

	for dist := 0; ; dist++ {
		later := base + dist*step
		earlier := base - dist*step
		if !fits(later) && !fits(earlier) {
			return 0, false
		}
		if fits(later) && !taken[later] {
			return later, true
		}
		if dist > 0 && fits(earlier) && !taken[earlier] {
			return earlier, true
		}
	}
}

// ChooseSlot allocates across a day's windows: each window proposes its
// nearest free slot, and the proposal closest to desired wins, later times
// winning ties. Windows must be non-overlapping.
func ChooseSlot(desired int, windows []Window, taken map[int]bool) (int, bool) {
	best := 0
	bestDist := -1
	found := false

	for _, w := range windows {
		t, ok := FindNearestSlot(desired, w.StartMin, w.EndMin, w.SlotMinutes, taken)
		if !ok {
			continue
		}
		dist := t - desired
		if dist < 0 {
			dist = -dist
		}
		if !found || dist < bestDist || (dist == bestDist && t > best) {
			best, bestDist, found = t, dist, true
		}
	}
	return best, found
}

// ImmediateSlot schedules an immediate-mode dispatch: a fixed lead from now,
// truncated to the minute so the stored clock time is grid-friendly. It
// returns the timestamp and its minutes-since-midnight clock value.
func ImmediateSlot(now time.Time, lead time.Duration) (time.Time, int) {
	at := now.Add(lead).Truncate(time.Minute)
	return at, at.Hour()*60 + at.Minute()
}

// DayCapacity sums the windows' capacities. It returns 0 (unlimited) when
// any window is itself unlimited.
func DayCapacity(windows []Window) int {
	total := 0
	for _, w := range windows {
		if w.Capacity == 0 {
			return 0
		}
		total += w.Capacity
	}
	return total
}

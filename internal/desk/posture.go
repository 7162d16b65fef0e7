package desk

// Classify returns the posture for height h. A height outside both tolerance
// bands keeps prev, so a desk in motion does not flap between states.
func Classify(h uint16, p Params, prev Posture) Posture {
	if h == 0 {
		return PostureUnknown
	}
	if absDiff(h, p.StandingMM) <= p.ToleranceMM {
		return PostureStanding
	}
	if absDiff(h, p.SittingMM) <= p.ToleranceMM {
		return PostureSitting
	}
	if prev == "" {
		return PostureUnknown
	}
	return prev
}

func absDiff(a, b uint16) uint16 {
	if a >= b {
		return a - b
	}
	return b - a
}

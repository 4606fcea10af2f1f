package http

import "picocompta/internal/core"

// stateColors is the display lookup for period states.
var stateColors = map[core.PeriodState]string{
	core.StateInactive:   "gray",
	core.StateCurrent:    "blue",
	core.StateDeclared:   "green",
	core.StateUndeclared: "red",
}

// StateColor returns the color name of s, red for unknown states.
func StateColor(s core.PeriodState) string {
	if c, ok := stateColors[s]; ok {
		return c
	}
	return "red"
}

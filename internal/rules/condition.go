package rules

import (
	"github.com/borelli28/siembackend/internal/normalize"
)

// matches reports whether the rule's detection matches an event. The
// minimum supported condition is the literal "selection": every
// (field, expected) pair in detection.Selection must equal the event's
// resolved field, compared as string equality against the literal's
// rendered string form.
func matches(d Detection, event normalize.NormalizedLog) bool {
	// Only condition = "selection" is evaluated; anything else matches
	// vacuously false rather than attempting a boolean expression parse,
	// since and/or/not over named selections isn't wired into this engine.
	if d.Condition != "selection" {
		return false
	}
	for field, expected := range d.Selection {
		actual := normalize.ResolveFieldFromLog(event, field)
		if actual != expected {
			return false
		}
	}
	return true
}

package directory

// Slots is the fixed grid of bookable intervals. Sessions are booked against
// a named slot, never an arbitrary time range.
var Slots = []string{
	"10:00–10:40",
	"10:40–11:20",
	"11:20–12:00",
	"12:20–13:00",
	"13:00–13:40",
	"13:40–14:20",
	"14:20–15:00",
	"15:00–15:40",
}

var slotSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(Slots))
	for _, s := range Slots {
		set[s] = struct{}{}
	}
	return set
}()

// ValidSlot reports whether s names one of the fixed intervals.
func ValidSlot(s string) bool {
	_, ok := slotSet[s]
	return ok
}

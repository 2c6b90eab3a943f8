package timer

type Group struct {
	Category string  `json:"category"`
	Timers   []Timer `json:"timers"`
}

// GroupByCategory partitions timers by category. Groups appear in the order
// their category is first seen and keep the input order of their timers.
func GroupByCategory(timers []Timer) []Group {
	groups := []Group{}
	index := make(map[string]int)

	for _, t := range timers {
		i, ok := index[t.Category]
		if !ok {
			i = len(groups)
			index[t.Category] = i
			groups = append(groups, Group{Category: t.Category})
		}
		groups[i].Timers = append(groups[i].Timers, t)
	}

	return groups
}

func Flatten(groups []Group) []Timer {
	var timers []Timer
	for _, g := range groups {
		timers = append(timers, g.Timers...)
	}
	return timers
}

func InCategory(timers []Timer, category string) []Timer {
	var matched []Timer
	for _, t := range timers {
		if t.Category == category {
			matched = append(matched, t)
		}
	}
	return matched
}

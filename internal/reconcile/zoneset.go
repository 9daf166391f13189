package reconcile

import (
	"maps"
	"slices"
)

type zoneSet map[string]struct{}

func newZoneSet(ids ...[]string) zoneSet {
	s := make(zoneSet)
	for _, list := range ids {
		for _, id := range list {
			if id != "" {
				s[id] = struct{}{}
			}
		}
	}
	return s
}

func (s zoneSet) has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s zoneSet) add(id string) {
	if id != "" {
		s[id] = struct{}{}
	}
}

// minus returns s - o.
func (s zoneSet) minus(o zoneSet) zoneSet {
	out := make(zoneSet, len(s))
	for id := range s {
		if !o.has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

func (s zoneSet) intersect(o zoneSet) zoneSet {
	out := make(zoneSet)
	for id := range s {
		if o.has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// sorted never returns nil so JSON renders [] rather than null.
func (s zoneSet) sorted() []string {
	if len(s) == 0 {
		return []string{}
	}
	return slices.Sorted(maps.Keys(s))
}

// SortedUnique returns the distinct non-empty ids in ascending order.
func SortedUnique(ids []string) []string {
	return newZoneSet(ids).sorted()
}

// IntersectZones returns the sorted ids present in both a and b.
func IntersectZones(a, b []string) []string {
	return newZoneSet(a).intersect(newZoneSet(b)).sorted()
}

// UnionZones returns the sorted ids present in any of the lists.
func UnionZones(lists ...[]string) []string {
	return newZoneSet(lists...).sorted()
}

// SubtractZones returns the sorted ids of a that are not in b.
func SubtractZones(a, b []string) []string {
	return newZoneSet(a).minus(newZoneSet(b)).sorted()
}

package roster

import "sort"

// Roster is the fixed set of gent identities eligible for gig
// assignment and push subscription. It is built once at startup and
// never mutated afterwards.
type Roster struct {
	members map[string]struct{}
	sorted  []string
}

// New builds a Roster from the given gent IDs. Duplicates are collapsed.
func New(gents []string) *Roster {
	members := make(map[string]struct{}, len(gents))
	for _, g := range gents {
		members[g] = struct{}{}
	}
	sorted := make([]string, 0, len(members))
	for g := range members {
		sorted = append(sorted, g)
	}
	sort.Strings(sorted)
	return &Roster{members: members, sorted: sorted}
}

// Contains reports whether id is a roster member.
func (r *Roster) Contains(id string) bool {
	_, ok := r.members[id]
	return ok
}

// Members returns the roster as a sorted copy.
func (r *Roster) Members() []string {
	out := make([]string, len(r.sorted))
	copy(out, r.sorted)
	return out
}

// Len returns the number of roster members.
func (r *Roster) Len() int {
	return len(r.sorted)
}

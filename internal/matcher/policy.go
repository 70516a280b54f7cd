package matcher

import (
	"sort"

	"github.com/smallbiznis/tapcoin/internal/chainfeed"
)

// Policy decides the order candidates are tried in. The first candidate that
// passes every filter settles the invoice.
type Policy interface {
	Name() string
	Order(candidates []chainfeed.Transfer) []chainfeed.Transfer
}

// NewestFirst tries the most recent transfer first. With several pending
// invoices for the same package, the newest payment goes to whichever invoice
// is checked first.
type NewestFirst struct{}

func (NewestFirst) Name() string { return "newest_first" }

func (NewestFirst) Order(candidates []chainfeed.Transfer) []chainfeed.Transfer {
	ordered := make([]chainfeed.Transfer, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].BlockTimestamp > ordered[j].BlockTimestamp
	})
	return ordered
}

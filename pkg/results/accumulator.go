// Package results holds decoded listing pages and the accumulator that merges
// them into a single search result.
//
// An Accumulator is either Empty or Populated. The first non-empty page
// merged moves it to Populated and fixes its Metadata; every later merge
// only appends proposals.
package results

import (
	"encoding/json"
)

// State tags the accumulator lifecycle.
type State int

const (
	// StateEmpty means no page has been merged yet.
	StateEmpty State = iota

	// StatePopulated means metadata has been captured from the first page.
	StatePopulated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StatePopulated:
		return "populated"
	default:
		return "unknown"
	}
}

// Metadata is captured once, from the first page.
type Metadata struct {
	// PageSize is the page size echoed by the server.
	PageSize int `json:"pageSize"`

	// TotalAvailable is the server's count of matching proposals.
	TotalAvailable int `json:"totalAvailable"`

	SearchTerms string          `json:"searchTerms"`
	Breadcrumb  json.RawMessage `json:"breadcrumb,omitempty"`
	SearchURL   string          `json:"searchURL"`
}

// Accumulator merges successive pages of one logical search.
// It is not safe for concurrent use.
type Accumulator struct {
	meta  *Metadata
	items []Proposal
}

// NewAccumulator returns an Empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// State returns the current lifecycle state.
func (a *Accumulator) State() State {
	if a.meta == nil {
		return StateEmpty
	}
	return StatePopulated
}

// Initialized reports whether the first page has been merged.
func (a *Accumulator) Initialized() bool {
	return a.State() == StatePopulated
}

// Merge folds a page into the accumulator.
//
// Empty: a page with proposals fixes the metadata and seeds the items; a
// page without proposals is ignored.
// Populated: proposals are appended and metadata is left untouched.
func (a *Accumulator) Merge(page *Page) {
	if page.Empty() {
		return
	}

	switch a.State() {
	case StateEmpty:
		a.meta = &Metadata{
			PageSize:       page.Max.Int(),
			TotalAvailable: page.TotalProposals.Int(),
			SearchTerms:    page.SearchTerms,
			Breadcrumb:     append(json.RawMessage(nil), page.Breadcrumb...),
			SearchURL:      page.SearchURL,
		}
		a.items = append(make([]Proposal, 0, len(page.Proposals)), page.Proposals...)
	case StatePopulated:
		a.items = append(a.items, page.Proposals...)
	}
}

// Metadata returns the captured metadata and whether the accumulator is populated.
func (a *Accumulator) Metadata() (Metadata, bool) {
	if a.meta == nil {
		return Metadata{}, false
	}
	return *a.meta, true
}

// Items returns a copy of the merged proposals in arrival order.
func (a *Accumulator) Items() []Proposal {
	out := make([]Proposal, len(a.items))
	copy(out, a.items)
	return out
}

// Len returns the number of merged proposals.
func (a *Accumulator) Len() int {
	return len(a.items)
}

// TotalAvailable returns the server-reported total, or 0 while Empty.
func (a *Accumulator) TotalAvailable() int {
	if a.meta == nil {
		return 0
	}
	return a.meta.TotalAvailable
}

// Complete reports whether every proposal the server announced was merged.
// An Empty accumulator is complete: the server had nothing to return.
func (a *Accumulator) Complete() bool {
	return a.TotalAvailable() == a.Len()
}

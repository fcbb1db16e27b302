package results

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const (
	idWidth     = 15
	statusWidth = 20
	ruleWidth   = 100
)

// FormatTable writes proposals as a fixed-column text table: ID, funding
// status and title, one row per proposal after a header and a rule.
func FormatTable(w io.Writer, items []Proposal) error {
	if _, err := fmt.Fprintf(w, "%-*s %-*s %s\n", idWidth, "ID", statusWidth, "Funding Status", "Title"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, strings.Repeat("-", ruleWidth)); err != nil {
		return err
	}
	for _, p := range items {
		if _, err := fmt.Fprintf(w, "%-*s %-*s %s\n", idWidth, p.ID, statusWidth, p.FundingStatus, p.Title); err != nil {
			return err
		}
	}
	return nil
}

// ASCII renders the accumulator's proposals with FormatTable.
func (a *Accumulator) ASCII() string {
	var b strings.Builder
	_ = FormatTable(&b, a.items)
	return strings.TrimSuffix(b.String(), "\n")
}

// CountCheck renders the total-versus-merged comparison shown by the CLI.
func (a *Accumulator) CountCheck() string {
	return fmt.Sprintf("Check record count: %d ==? %d", a.TotalAvailable(), a.Len())
}

type jsonView struct {
	State     string     `json:"state"`
	Metadata  *Metadata  `json:"metadata,omitempty"`
	Count     int        `json:"count"`
	Proposals []Proposal `json:"proposals"`
}

// MarshalJSON renders metadata and proposals.
func (a *Accumulator) MarshalJSON() ([]byte, error) {
	items := a.items
	if items == nil {
		items = []Proposal{}
	}
	return json.Marshal(jsonView{
		State:     a.State().String(),
		Metadata:  a.meta,
		Count:     len(items),
		Proposals: items,
	})
}

// FormatJSON writes the accumulator as indented JSON.
func FormatJSON(w io.Writer, a *Accumulator) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(a)
}

package results

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Page is one decoded response from the listing API.
type Page struct {
	// Proposals is nil when the member was missing from the response and
	// empty when the server returned "proposals": [].
	Proposals      []Proposal      `json:"proposals"`
	Max            FlexInt         `json:"max"`
	TotalProposals FlexInt         `json:"totalProposals"`
	SearchTerms    string          `json:"searchTerms"`
	Breadcrumb     json.RawMessage `json:"breadcrumb,omitempty"`
	SearchURL      string          `json:"searchURL"`
}

// Empty reports whether the page carries no proposals. An empty page marks
// the end of a paginated search.
func (p *Page) Empty() bool {
	return p == nil || len(p.Proposals) == 0
}

// Proposal is a single classroom project listing.
type Proposal struct {
	ID               string     `json:"id"`
	ProposalURL      string     `json:"proposalURL,omitempty"`
	Title            string     `json:"title"`
	ShortDescription string     `json:"shortDescription,omitempty"`
	FundingStatus    string     `json:"fundingStatus"`
	SchoolName       string     `json:"schoolName,omitempty"`
	City             string     `json:"city,omitempty"`
	State            string     `json:"state,omitempty"`
	Zip              FlexString `json:"zip,omitempty"`
	Latitude         FlexString `json:"latitude,omitempty"`
	Longitude        FlexString `json:"longitude,omitempty"`
	TotalPrice       FlexString `json:"totalPrice,omitempty"`
	CostToComplete   FlexString `json:"costToComplete,omitempty"`
	PercentFunded    FlexString `json:"percentFunded,omitempty"`
	NumDonors        FlexString `json:"numDonors,omitempty"`
	ExpirationDate   string     `json:"expirationDate,omitempty"`

	// Raw is the full record as received.
	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the known fields and keeps the original record in Raw.
func (p *Proposal) UnmarshalJSON(data []byte) error {
	type plain Proposal
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = Proposal(v)
	p.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON re-emits the original record when one was received.
func (p Proposal) MarshalJSON() ([]byte, error) {
	if len(p.Raw) > 0 {
		return p.Raw, nil
	}
	type plain Proposal
	return json.Marshal(plain(p))
}

// FlexInt decodes integers the API sends either as JSON numbers or as
// numeric strings ("13"). Empty strings and null decode to zero.
type FlexInt int

// UnmarshalJSON implements json.Unmarshaler.
func (n *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}

	s := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*n = 0
			return nil
		}
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("parse integer %s: %w", data, err)
	}
	*n = FlexInt(v)
	return nil
}

// Int returns the value as an int.
func (n FlexInt) Int() int {
	return int(n)
}

// FlexString holds a value the API sends either as a string or as a bare
// JSON number or boolean. Numbers keep their literal text; null decodes to "".
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*s = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	case bytes.Equal(data, []byte("true")), bytes.Equal(data, []byte("false")):
		*s = FlexString(data)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("parse scalar %s: %w", data, err)
	}
	*s = FlexString(n)
	return nil
}

// String returns the value as a string.
func (s FlexString) String() string {
	return string(s)
}

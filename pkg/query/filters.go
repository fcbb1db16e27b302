package query

import (
	"sort"
	"strings"
)

// DocsURL documents the listing API parameters.
const DocsURL = "https://data.donorschoose.org/docs/project-listing/json-requests/"

// FilterName names an optional listing refinement beyond the keyword phrase.
type FilterName string

// Recognized filter names.
const (
	FilterSubject1            FilterName = "subject1"
	FilterSubject2            FilterName = "subject2"
	FilterSubject3            FilterName = "subject3"
	FilterSubject4            FilterName = "subject4"
	FilterSubject5            FilterName = "subject5"
	FilterSubject6            FilterName = "subject6"
	FilterSubject7            FilterName = "subject7"
	FilterPartiallyFunded     FilterName = "partiallyFunded"
	FilterHighLevelPoverty    FilterName = "highLevelPoverty"
	FilterHighestLevelPoverty FilterName = "highestLevelPoverty"
	FilterTeacherNotFunded    FilterName = "teacherNotFunded"
	FilterProposalType        FilterName = "proposalType"
	FilterProposalTypeFunded  FilterName = "proposalTypeFunded"
	FilterGradeType           FilterName = "gradeType"
	FilterTeacherType         FilterName = "teacherType"
	FilterCostToCompleteRange FilterName = "costToCompleteRange"
	FilterSchoolType          FilterName = "schoolType"
	FilterID                  FilterName = "id"
	FilterChallengeID         FilterName = "challengeId"
	FilterMatchingID          FilterName = "matchingId"
	FilterState               FilterName = "state"
	FilterCommunity           FilterName = "community"
	FilterSchool              FilterName = "school"
	FilterSortBy              FilterName = "sortBy"
	FilterHistorical          FilterName = "historical"
	FilterNewSince            FilterName = "newSince"
)

// allowedFilters is the compiled allow-list. Keyword, paging, key, concise
// and bounding-box parameters are owned by Params and are not filters.
var allowedFilters = map[FilterName]struct{}{
	FilterSubject1:            {},
	FilterSubject2:            {},
	FilterSubject3:            {},
	FilterSubject4:            {},
	FilterSubject5:            {},
	FilterSubject6:            {},
	FilterSubject7:            {},
	FilterPartiallyFunded:     {},
	FilterHighLevelPoverty:    {},
	FilterHighestLevelPoverty: {},
	FilterTeacherNotFunded:    {},
	FilterProposalType:        {},
	FilterProposalTypeFunded:  {},
	FilterGradeType:           {},
	FilterTeacherType:         {},
	FilterCostToCompleteRange: {},
	FilterSchoolType:          {},
	FilterID:                  {},
	FilterChallengeID:         {},
	FilterMatchingID:          {},
	FilterState:               {},
	FilterCommunity:           {},
	FilterSchool:              {},
	FilterSortBy:              {},
	FilterHistorical:          {},
	FilterNewSince:            {},
}

// Valid reports whether the name is on the allow-list.
func (n FilterName) Valid() bool {
	_, ok := allowedFilters[n]
	return ok
}

// AllowedFilters returns every recognized filter name, sorted.
func AllowedFilters() []FilterName {
	names := make([]FilterName, 0, len(allowedFilters))
	for name := range allowedFilters {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Filter is a single name=value refinement.
type Filter struct {
	Name  FilterName
	Value string
}

// Filters is an ordered set of refinements. Order is preserved on the wire.
type Filters []Filter

// Add returns a new set with the filter appended. The receiver is left
// unchanged, so several sets can be derived from one base.
func (f Filters) Add(name FilterName, value string) Filters {
	out := make(Filters, len(f), len(f)+1)
	copy(out, f)
	return append(out, Filter{Name: name, Value: value})
}

// Validate checks every name against the allow-list. The first unknown
// name fails the whole set.
func (f Filters) Validate() error {
	for _, filter := range f {
		if !filter.Name.Valid() {
			return invalid(string(filter.Name), "unknown filter; see %s", DocsURL)
		}
	}
	return nil
}

// ParseFilter parses "name=value" as given on a command line.
func ParseFilter(s string) (Filter, error) {
	name, value, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return Filter{}, invalid(s, "expected name=value")
	}
	filter := Filter{Name: FilterName(name), Value: strings.TrimSpace(value)}
	if !filter.Name.Valid() {
		return Filter{}, invalid(name, "unknown filter; see %s", DocsURL)
	}
	return filter, nil
}

package routine

import (
	"fmt"
	"strings"
)

// DepartmentCategory drives building preferences for theory rooms.
type DepartmentCategory int

const (
	CategoryGeneral DepartmentCategory = iota
	CategoryTechnology
)

// Department is one entry of the abbreviation table.
type Department struct {
	Code     string
	Name     string
	Category DepartmentCategory
}

// DefaultDepartments is the table used when none is configured.
var DefaultDepartments = []Department{
	{Code: "CST", Name: "Computer Science and Technology", Category: CategoryTechnology},
	{Code: "CMT", Name: "Computer Technology", Category: CategoryTechnology},
	{Code: "ET", Name: "Electronics Technology", Category: CategoryTechnology},
	{Code: "EMT", Name: "Electromedical Technology", Category: CategoryTechnology},
	{Code: "TCT", Name: "Telecommunication Technology", Category: CategoryTechnology},
	{Code: "CT", Name: "Civil Technology", Category: CategoryGeneral},
	{Code: "EL", Name: "Electrical Technology", Category: CategoryGeneral},
	{Code: "MT", Name: "Mechanical Technology", Category: CategoryGeneral},
	{Code: "PT", Name: "Power Technology", Category: CategoryGeneral},
	{Code: "RAC", Name: "Refrigeration and Air Conditioning Technology", Category: CategoryGeneral},
	{Code: "NT", Name: "Non-Tech", Category: CategoryGeneral},
}

// DepartmentTable resolves department names and abbreviations.
type DepartmentTable struct {
	entries []Department
	byCode  map[string]Department
}

// NewDepartmentTable validates entries and builds the lookup.
func NewDepartmentTable(entries []Department) (*DepartmentTable, error) {
	t := &DepartmentTable{byCode: make(map[string]Department, len(entries))}
	for _, e := range entries {
		code := strings.ToLower(strings.TrimSpace(e.Code))
		if code == "" || strings.TrimSpace(e.Name) == "" {
			return nil, fmt.Errorf("department entry %+v requires code and name", e)
		}
		if _, dup := t.byCode[code]; dup {
			return nil, fmt.Errorf("duplicate department code %q", e.Code)
		}
		t.byCode[code] = e
		t.entries = append(t.entries, e)
	}
	return t, nil
}

// MustDepartmentTable panics on invalid entries. Intended for package-level tables.
func MustDepartmentTable(entries []Department) *DepartmentTable {
	t, err := NewDepartmentTable(entries)
	if err != nil {
		panic(err)
	}
	return t
}

// Abbreviations shorter than this only match exactly; "CT" must not hit "Electrical".
const minFuzzyLen = 4

var defaultDepartmentTable = MustDepartmentTable(DefaultDepartments)

func (t *DepartmentTable) resolve(raw string) (Department, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return Department{}, false
	}
	if d, ok := t.byCode[key]; ok {
		return d, true
	}
	for _, d := range t.entries {
		name := strings.ToLower(d.Name)
		if name == key || (len(key) >= minFuzzyLen && (strings.Contains(name, key) || strings.Contains(key, name))) {
			return d, true
		}
	}
	return Department{}, false
}

// Category classifies a department name or code.
func (t *DepartmentTable) Category(raw string) DepartmentCategory {
	if d, ok := t.resolve(raw); ok {
		return d.Category
	}
	if strings.Contains(strings.ToLower(raw), "computer") {
		return CategoryTechnology
	}
	return CategoryGeneral
}

// Match reports a fuzzy, case-insensitive department match. Abbreviations
// resolve through the table, anything else falls back to substring matching.
func (t *DepartmentTable) Match(a, b string) bool {
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	if len(a) >= minFuzzyLen && len(b) >= minFuzzyLen && (strings.Contains(a, b) || strings.Contains(b, a)) {
		return true
	}
	da, okA := t.resolve(a)
	db, okB := t.resolve(b)
	return okA && okB && strings.EqualFold(da.Code, db.Code)
}

// ParseDepartments reads "CODE:Name[:technology]" entries into a validated table.
func ParseDepartments(entries []string) (*DepartmentTable, error) {
	if len(entries) == 0 {
		return defaultDepartmentTable, nil
	}
	parsed := make([]Department, 0, len(entries))
	for _, raw := range entries {
		parts := strings.Split(raw, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("department entry %q must look like CODE:Name[:technology]", raw)
		}
		d := Department{Code: strings.TrimSpace(parts[0]), Name: strings.TrimSpace(parts[1])}
		if len(parts) == 3 && strings.EqualFold(strings.TrimSpace(parts[2]), "technology") {
			d.Category = CategoryTechnology
		}
		parsed = append(parsed, d)
	}
	return NewDepartmentTable(parsed)
}

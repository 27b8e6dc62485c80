package directory

import "strings"

// NormalizeTeamName is the single rule used to join Employee.Team against
// Team.Name: surrounding whitespace is dropped and case is folded.
func NormalizeTeamName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ResolveTeamKey returns the normalized team key for an employee, or false
// when the employee has no team.
func ResolveTeamKey(emp Employee) (string, bool) {
	key := NormalizeTeamName(emp.Team)
	return key, key != ""
}

// InTeam reports whether emp belongs to the team called name.
func InTeam(emp Employee, name string) bool {
	key, ok := ResolveTeamKey(emp)
	return ok && key == NormalizeTeamName(name)
}

// Matches applies the filter to one employee. Team matching goes through
// ResolveTeamKey so every caller shares the same join rule.
func (f EmployeeFilter) Matches(emp Employee) bool {
	if f.IsAdded != nil && emp.IsAdded != *f.IsAdded {
		return false
	}
	if strings.TrimSpace(f.Team) != "" && !InTeam(emp, f.Team) {
		return false
	}
	return true
}

// GroupByTeam buckets employees by normalized team key, preserving input
// order inside each bucket. Employees without a team are left out.
func GroupByTeam(employees []Employee) map[string][]Employee {
	groups := make(map[string][]Employee)
	for _, emp := range employees {
		key, ok := ResolveTeamKey(emp)
		if !ok {
			continue
		}
		groups[key] = append(groups[key], emp)
	}
	return groups
}

// MembersOf returns the employees of groups that belong to team.
func MembersOf(team Team, groups map[string][]Employee) []Employee {
	key := NormalizeTeamName(team.Name)
	if key == "" {
		return nil
	}
	return groups[key]
}

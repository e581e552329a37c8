// Package profile defines the freelancer profile record and its persisted
// semicolon-separated table.
package profile

import (
	"strings"
)

// NotAvailable stands in for any field missing from the scraped page.
const NotAvailable = "N/A"

// Skill is one skill/experience pair as listed on a profile.
type Skill struct {
	Name  string
	Years string
}

// Profile is one scraped freelancer. URL is the unique key.
type Profile struct {
	URL         string
	GitHub      string
	Name        string
	Title       string
	Location    string
	HourlyRate  string
	Description string
	Skills      []Skill
}

// FormatSkills renders skills as "name (years), name (years)".
func FormatSkills(skills []Skill) string {
	parts := make([]string, 0, len(skills))

	for _, s := range skills {
		parts = append(parts, s.Name+" ("+s.Years+")")
	}

	return strings.Join(parts, ", ")
}

// ParseSkills is the inverse of [FormatSkills]. Entries without a
// parenthesised suffix keep an empty Years.
func ParseSkills(raw string) []Skill {
	var skills []Skill

	for part := range strings.SplitSeq(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, rest, found := strings.Cut(part, "(")
		skill := Skill{Name: strings.TrimSpace(name)}

		if found {
			skill.Years = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rest), ")"))
		}

		skills = append(skills, skill)
	}

	return skills
}

// SkillNames returns the lower-cased skill names of a stored skills cell,
// ignoring any parenthesised suffix.
func SkillNames(raw string) []string {
	var names []string

	for part := range strings.SplitSeq(raw, ",") {
		name, _, _ := strings.Cut(part, "(")

		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			names = append(names, name)
		}
	}

	return names
}

// Handle returns the last path segment of the GitHub URL, which is the
// account name for profile links such as https://github.com/octocat/.
func (p Profile) Handle() string {
	trimmed := strings.TrimRight(strings.TrimSpace(p.GitHub), "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}

	return trimmed
}

// HasGitHub reports whether a GitHub link was found on the profile.
func (p Profile) HasGitHub() bool {
	return p.GitHub != "" && p.GitHub != NotAvailable
}

package webhook

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RepoTarget is a GitHub repository a Linear team or project maps to.
type RepoTarget struct {
	Owner string
	Name  string
}

// TeamMapping routes one Linear team to repositories. Either Repo is set
// (flat form, every issue in the team goes to one repo) or Projects/Default
// are (nested form, routed per project with an optional fallback).
type TeamMapping struct {
	Repo     *RepoTarget
	Projects map[string]RepoTarget
	Default  *RepoTarget
}

// RepoMap resolves which repository an issue belongs to. Resolution order:
// team id, team name, a "repo:owner/name" issue label, then the configured
// fallback.
type RepoMap struct {
	teams    map[string]TeamMapping
	fallback RepoTarget
}

// NewRepoMap creates a RepoMap with the given team mappings (keyed by team
// id or team name) and fallback repository.
func NewRepoMap(teams map[string]TeamMapping, fallback RepoTarget) *RepoMap {
	if teams == nil {
		teams = map[string]TeamMapping{}
	}
	return &RepoMap{teams: teams, fallback: fallback}
}

// ParseRepoMap builds a RepoMap from a JSON team mapping. Two entry forms
// are accepted, keyed by team id or team name:
//
//	{"Docs": {"owner": "acme", "name": "docs"}}
//	{"Platform": {"projects": {"api": {"owner": "acme", "name": "api"}},
//	              "default": {"owner": "acme", "name": "platform"}}}
//
// raw may be empty, which yields a map that always resolves to fallback.
func ParseRepoMap(raw string, fallback RepoTarget) (*RepoMap, error) {
	teams := map[string]TeamMapping{}
	if strings.TrimSpace(raw) == "" {
		return NewRepoMap(teams, fallback), nil
	}

	var entries map[string]struct {
		Owner    string                `json:"owner"`
		Name     string                `json:"name"`
		Projects map[string]RepoTarget `json:"projects"`
		Default  *RepoTarget           `json:"default"`
	}
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("invalid team repo mapping: %w", err)
	}

	for team, entry := range entries {
		mapping := TeamMapping{
			Projects: entry.Projects,
			Default:  entry.Default,
		}
		if entry.Owner != "" && entry.Name != "" {
			mapping.Repo = &RepoTarget{Owner: entry.Owner, Name: entry.Name}
		}
		if mapping.Repo == nil && len(mapping.Projects) == 0 && mapping.Default == nil {
			return nil, fmt.Errorf("team %q maps to no repository", team)
		}
		teams[team] = mapping
	}
	return NewRepoMap(teams, fallback), nil
}

// Resolve maps an issue to its repository.
func (m *RepoMap) Resolve(issue *Issue) RepoTarget {
	teamID, teamName, projectName := "", "", ""
	if issue.Team != nil {
		teamID = strings.TrimSpace(issue.Team.ID)
		teamName = strings.TrimSpace(issue.Team.Name)
	}
	if issue.Project != nil {
		projectName = strings.TrimSpace(issue.Project.Name)
	}

	for _, key := range []string{teamID, teamName} {
		if key == "" {
			continue
		}
		mapping, ok := m.teams[key]
		if !ok {
			continue
		}
		if target, ok := mapping.resolve(projectName); ok {
			return target
		}
	}

	if target, ok := labelTarget(issue.Labels); ok {
		return target
	}
	return m.fallback
}

func (t TeamMapping) resolve(projectName string) (RepoTarget, bool) {
	if t.Repo != nil {
		return *t.Repo, true
	}
	if projectName != "" {
		if target, ok := t.Projects[projectName]; ok {
			return target, true
		}
	}
	if t.Default != nil {
		return *t.Default, true
	}
	return RepoTarget{}, false
}

// labelTarget looks for a "repo:owner/name" label on the issue.
func labelTarget(labels []Label) (RepoTarget, bool) {
	for _, label := range labels {
		ref, ok := strings.CutPrefix(label.Name, "repo:")
		if !ok {
			continue
		}
		owner, name, ok := strings.Cut(ref, "/")
		if ok && owner != "" && name != "" {
			return RepoTarget{Owner: owner, Name: name}, true
		}
	}
	return RepoTarget{}, false
}

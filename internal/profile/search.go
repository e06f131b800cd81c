package profile

import (
	"context"
	"strings"

	"github.com/sahilm/fuzzy"
)

// nameSource adapts profiles for fuzzy matching
type nameSource []UserProfile

func (s nameSource) String(i int) string { return strings.ToLower(s[i].Name) }
func (s nameSource) Len() int            { return len(s) }

// Search returns the listed profiles whose name fuzzily matches query,
// best match first. An empty query matches nothing.
func (s *Service) Search(ctx context.Context, query string) ([]UserProfile, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, nil
	}
	users, err := s.repo.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	matches := fuzzy.FindFrom(query, nameSource(users))
	out := make([]UserProfile, len(matches))
	for i, m := range matches {
		out[i] = users[m.Index]
	}
	return out, nil
}

package entity

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/antzucaro/matchr"

	"github.com/archos-hq/archos/pkg/resource"
)

// TableKnowledge holds the personal wiki.
const TableKnowledge = "knowledge_vault"

// DefaultCategory is assigned to entries filed without one.
const DefaultCategory = "General"

// KnowledgeEntry is one wiki page.
type KnowledgeEntry struct {
	ID        string    `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Content   string    `db:"content" json:"content"`
	Category  *string   `db:"category" json:"category"`
	Tags      []string  `db:"tags" json:"tags"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (k KnowledgeEntry) EntityID() string { return k.ID }

// KnowledgeDefaults files uncategorized entries under [DefaultCategory] and
// normalizes a nil tag list to empty.
func KnowledgeDefaults(k KnowledgeEntry) KnowledgeEntry {
	if k.Category == nil || *k.Category == "" {
		cat := DefaultCategory
		k.Category = &cat
	}
	if k.Tags == nil {
		k.Tags = []string{}
	}
	return k
}

// ValidateKnowledge rejects untitled entries.
func ValidateKnowledge(k KnowledgeEntry) error {
	if k.Title == "" {
		return &resource.ValidationError{Table: TableKnowledge, Reason: "entry", Err: errors.New("title is required")}
	}
	return nil
}

// KnowledgeLess sorts newest first.
func KnowledgeLess(a, b KnowledgeEntry) bool { return a.CreatedAt.After(b.CreatedAt) }

// Categories returns the sorted unique categories across entries, prefixed
// with "All" for the wiki's filter bar.
func Categories(entries []KnowledgeEntry) []string {
	seen := make(map[string]struct{})
	for _, e := range entries {
		if e.Category != nil && *e.Category != "" {
			seen[*e.Category] = struct{}{}
		}
	}
	cats := make([]string, 0, len(seen)+1)
	for c := range seen {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return append([]string{"All"}, cats...)
}

// searchDistance is the maximum edit distance for a fuzzy title match,
// scaled with query length so short queries stay strict.
func searchDistance(query string) int {
	return max(1, len(query)/4)
}

// SearchKnowledge returns the entries whose title, tags, or content match
// the query. Substring matches rank before fuzzy title matches; within a
// rank the input order is kept. An empty query returns all entries.
func SearchKnowledge(entries []KnowledgeEntry, query string) []KnowledgeEntry {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return entries
	}

	var exact, fuzzy []KnowledgeEntry
	maxDist := searchDistance(query)
	for _, e := range entries {
		switch {
		case containsFold(e.Title, query), tagMatch(e.Tags, query), containsFold(e.Content, query):
			exact = append(exact, e)
		case fuzzyTitleMatch(e.Title, query, maxDist):
			fuzzy = append(fuzzy, e)
		}
	}
	return append(exact, fuzzy...)
}

func containsFold(s, query string) bool {
	return strings.Contains(strings.ToLower(s), query)
}

func tagMatch(tags []string, query string) bool {
	for _, t := range tags {
		if containsFold(t, query) {
			return true
		}
	}
	return false
}

// fuzzyTitleMatch reports whether any word of the title is within maxDist
// edits of the query, catching typos like "knwoledge".
func fuzzyTitleMatch(title, query string, maxDist int) bool {
	for _, word := range strings.Fields(strings.ToLower(title)) {
		if matchr.DamerauLevenshtein(word, query) <= maxDist {
			return true
		}
	}
	return false
}

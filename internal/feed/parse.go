package feed

import (
	"errors"
	"time"
)

// ErrMissingID is returned for raw feed items without an external identifier.
// Such items are skipped rather than upserted under a default key, so they
// can never collide with a genuine item.
var ErrMissingID = errors.New("feed item has no id")

// Tag is one entry of a tag group in the feed's tagsContainer.
type Tag struct {
	TagName string `json:"tagName"`
}

// TagsContainer groups the feed's tag arrays. Absent groups decode to nil
// and parse as empty lists.
type TagsContainer struct {
	Products       []Tag `json:"products"`
	Platforms      []Tag `json:"platforms"`
	CloudInstances []Tag `json:"cloudInstances"`
	ReleasePhase   []Tag `json:"releasePhase"`
}

// RawItem mirrors one element of the feed's JSON array.
type RawItem struct {
	ID                               *int64        `json:"id"`
	Title                            string        `json:"title"`
	Description                      string        `json:"description"`
	Status                           string        `json:"status"`
	PublicDisclosureAvailabilityDate string        `json:"publicDisclosureAvailabilityDate"`
	Modified                         string        `json:"modified"`
	Created                          string        `json:"created"`
	TagsContainer                    TagsContainer `json:"tagsContainer"`
}

// ModifiedTime returns the item's modification timestamp, falling back to
// the creation timestamp. ok is false when neither field parses; callers
// treat unparseable timestamps as "include" to prefer over-inclusion over
// silent data loss.
func (r RawItem) ModifiedTime() (t time.Time, ok bool) {
	for _, s := range []string{r.Modified, r.Created} {
		if s == "" {
			continue
		}
		if parsed, err := time.Parse(time.RFC3339, s); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// Item is a parsed roadmap feed entry.
type Item struct {
	ID                   int64
	Title                string
	Description          string
	Status               string
	PublicDisclosureDate string
	Products             []string
	Platforms            []string
	CloudInstances       []string
	ReleasePhase         string
}

// Parse converts a raw feed item into an Item. Tag groups default to empty
// lists when absent; the first release phase wins when several are listed.
// Returns ErrMissingID when the item carries no external identifier.
func Parse(raw RawItem) (Item, error) {
	if raw.ID == nil {
		return Item{}, ErrMissingID
	}

	item := Item{
		ID:                   *raw.ID,
		Title:                raw.Title,
		Description:          raw.Description,
		Status:               raw.Status,
		PublicDisclosureDate: raw.PublicDisclosureAvailabilityDate,
		Products:             tagNames(raw.TagsContainer.Products),
		Platforms:            tagNames(raw.TagsContainer.Platforms),
		CloudInstances:       tagNames(raw.TagsContainer.CloudInstances),
	}
	if phases := tagNames(raw.TagsContainer.ReleasePhase); len(phases) > 0 {
		item.ReleasePhase = phases[0]
	}
	return item, nil
}

func tagNames(tags []Tag) []string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.TagName)
	}
	return names
}

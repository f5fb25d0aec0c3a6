package feed

import (
	"errors"
	"testing"
	"time"
)

func int64p(v int64) *int64 { return &v }

func TestParseRejectsMissingID(t *testing.T) {
	_, err := Parse(RawItem{Title: "no id"})
	if !errors.Is(err, ErrMissingID) {
		t.Errorf("Parse error = %v, want ErrMissingID", err)
	}
}

func TestParseFlattensTags(t *testing.T) {
	raw := RawItem{
		ID:     int64p(12345),
		Title:  "Copilot updates",
		Status: "In development",
		TagsContainer: TagsContainer{
			Products:       []Tag{{TagName: "Microsoft Teams"}, {TagName: "Microsoft Copilot"}},
			Platforms:      []Tag{{TagName: "Desktop"}},
			CloudInstances: []Tag{{TagName: "Worldwide (Standard Multi-Tenant)"}},
			ReleasePhase:   []Tag{{TagName: "General Availability"}, {TagName: "Preview"}},
		},
	}

	item, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if item.ID != 12345 {
		t.Errorf("ID = %d, want 12345", item.ID)
	}
	if len(item.Products) != 2 || item.Products[0] != "Microsoft Teams" {
		t.Errorf("Products = %v", item.Products)
	}
	if len(item.Platforms) != 1 || item.Platforms[0] != "Desktop" {
		t.Errorf("Platforms = %v", item.Platforms)
	}
	// Several phases may be listed; the first one wins.
	if item.ReleasePhase != "General Availability" {
		t.Errorf("ReleasePhase = %q, want first entry", item.ReleasePhase)
	}
}

func TestParseAbsentTagGroups(t *testing.T) {
	item, err := Parse(RawItem{ID: int64p(1)})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if item.Products == nil || len(item.Products) != 0 {
		t.Errorf("Products = %#v, want empty slice", item.Products)
	}
	if item.ReleasePhase != "" {
		t.Errorf("ReleasePhase = %q, want empty", item.ReleasePhase)
	}
}

func TestModifiedTime(t *testing.T) {
	modified := "2026-08-15T10:00:00Z"
	created := "2026-01-02T09:30:00Z"

	tests := []struct {
		name   string
		raw    RawItem
		want   string
		wantOK bool
	}{
		{"modified wins", RawItem{Modified: modified, Created: created}, modified, true},
		{"falls back to created", RawItem{Created: created}, created, true},
		{"unparseable modified falls back", RawItem{Modified: "not-a-date", Created: created}, created, true},
		{"both unparseable", RawItem{Modified: "nope", Created: "also nope"}, "", false},
		{"both empty", RawItem{}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.raw.ModifiedTime()
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !tt.wantOK {
				return
			}
			want, _ := time.Parse(time.RFC3339, tt.want)
			if !got.Equal(want) {
				t.Errorf("ModifiedTime = %v, want %v", got, want)
			}
		})
	}
}

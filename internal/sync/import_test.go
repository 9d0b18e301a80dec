package sync

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/alfredjeanlab/contentstore/internal/content"
	"github.com/alfredjeanlab/contentstore/internal/model"
)

var legacyFixture = []content.UpsertRequest{
	{Key: "landing.hero", Title: "Hero", Type: model.TypeText, Section: "landing", Content: "Welcome"},
	{Key: "faq.topics", Title: "Topics", Type: model.TypeJSON, Content: "first\n  second \n\n"},
	{Key: "pricing.plans", Title: "Plans", Type: model.TypeJSON, Content: `[{"id":1,"name":"Basic"}]`, Metadata: []byte(`{"draft":true}`)},
}

func exportOf(t *testing.T, reqs ...content.UpsertRequest) []byte {
	t.Helper()
	ms, _ := seed(t, reqs...)
	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), ms, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}
	return buf.Bytes()
}

func TestImportJSONL_NormalizesLegacyLists(t *testing.T) {
	data := exportOf(t, legacyFixture...)
	_, target := seed(t)
	ctx := context.Background()

	stats, err := ImportJSONL(ctx, target, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if stats != (ImportStats{Written: 3, Normalized: 1}) {
		t.Fatalf("stats = %+v", stats)
	}

	topics, err := target.Get(ctx, "faq.topics")
	if err != nil {
		t.Fatalf("get faq.topics: %v", err)
	}
	if topics.Content != `["first","second"]` {
		t.Fatalf("legacy content not normalized: %q", topics.Content)
	}

	plans, err := target.Get(ctx, "pricing.plans")
	if err != nil {
		t.Fatalf("get pricing.plans: %v", err)
	}
	if plans.Content != `[{"id":1,"name":"Basic"}]` || string(plans.Metadata) != `{"draft":true}` {
		t.Fatalf("strict json entry changed: %+v", plans)
	}

	hero, err := target.Get(ctx, "landing.hero")
	if err != nil {
		t.Fatalf("get landing.hero: %v", err)
	}
	if hero.Content != "Welcome" || hero.Section != "landing" || hero.Revision != 1 {
		t.Fatalf("text entry not copied: %+v", hero)
	}
}

func TestImportJSONL_Idempotent(t *testing.T) {
	data := exportOf(t, legacyFixture...)
	_, target := seed(t)
	ctx := context.Background()

	if _, err := ImportJSONL(ctx, target, bytes.NewReader(data)); err != nil {
		t.Fatalf("first import: %v", err)
	}
	stats, err := ImportJSONL(ctx, target, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if stats.Written != 0 || stats.Unchanged != 3 {
		t.Fatalf("second import rewrote entries: %+v", stats)
	}

	topics, err := target.Get(ctx, "faq.topics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if topics.Revision != 1 {
		t.Fatalf("revision = %d, want 1", topics.Revision)
	}
}

func TestImportJSONL_InPlaceMigration(t *testing.T) {
	ms, coord := seed(t, legacyFixture...)
	ctx := context.Background()

	var buf bytes.Buffer
	if err := ExportJSONL(ctx, ms, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}
	stats, err := ImportJSONL(ctx, coord, &buf)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if stats != (ImportStats{Written: 1, Unchanged: 2, Normalized: 1}) {
		t.Fatalf("stats = %+v", stats)
	}

	topics, err := coord.Get(ctx, "faq.topics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if topics.Revision != 2 || topics.Content != `["first","second"]` {
		t.Fatalf("migrated entry = %+v", topics)
	}
}

func TestImportJSONL_Errors(t *testing.T) {
	for _, tc := range []struct {
		name string
		data string
		want string
	}{
		{"UnsupportedVersion", `{"version":"9","type":"header"}`, "unsupported export version"},
		{"UnknownRecordType", `{"version":"1","type":"header"}` + "\n" + `{"type":"widget","data":{}}`, "unknown record type"},
		{"MalformedLine", `{"version":"1","type":"header"}` + "\n" + `{"type":`, "record 2"},
		{"InvalidEntry", `{"type":"entry","data":{"key":"","type":"text"}}`, "invalid request"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, coord := seed(t)
			_, err := ImportJSONL(context.Background(), coord, strings.NewReader(tc.data))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	for _, tc := range []struct {
		name        string
		entry       model.Entry
		wantChanged bool
		wantContent string
	}{
		{"LegacyLines", model.Entry{Type: model.TypeJSON, Content: "a\nb"}, true, `["a","b"]`},
		{"StrictJSON", model.Entry{Type: model.TypeJSON, Content: `{"a":1}`}, false, `{"a":1}`},
		{"Text", model.Entry{Type: model.TypeText, Content: "a\nb"}, false, "a\nb"},
		{"Blank", model.Entry{Type: model.TypeJSON, Content: " \n "}, false, " \n "},
	} {
		t.Run(tc.name, func(t *testing.T) {
			e := tc.entry
			changed, err := Normalize(&e)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if changed != tc.wantChanged || e.Content != tc.wantContent {
				t.Fatalf("Normalize = %v, %q; want %v, %q", changed, e.Content, tc.wantChanged, tc.wantContent)
			}
		})
	}
}

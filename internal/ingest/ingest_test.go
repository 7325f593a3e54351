package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"percept/internal/lexicon"
	"percept/internal/storage"
)

// --- Mocks ---

type mockEvidenceStore struct {
	mu    sync.Mutex
	saved []storage.Evidence
}

func (m *mockEvidenceStore) SaveEvidence(ev storage.Evidence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, ev)
	return nil
}

type mockDomainSink struct {
	mu   sync.Mutex
	tags []string
}

func (m *mockDomainSink) AddCoreDomains(tags []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags = append(m.tags, tags...)
	return nil
}

func newTestIngestor(t *testing.T) (*Ingestor, *mockEvidenceStore, *mockDomainSink) {
	t.Helper()
	rules, err := lexicon.Default()
	if err != nil {
		t.Fatalf("loading default rules: %v", err)
	}
	store := &mockEvidenceStore{}
	sink := &mockDomainSink{}
	return New(store, sink, rules), store, sink
}

// --- Tests ---

func TestFromPlain(t *testing.T) {
	got := FromPlain("  hello\n\n  world\t again ")
	if got != "hello world again" {
		t.Errorf("FromPlain = %q", got)
	}
}

func TestFromHTML(t *testing.T) {
	doc := `<html><head><style>body{color:red}</style>
		<script>var x = "ignored";</script></head>
		<body><h1>Neural networks</h1><p>in education</p></body></html>`

	got, err := FromHTML(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("FromHTML: %v", err)
	}
	if !strings.Contains(got, "Neural networks") || !strings.Contains(got, "in education") {
		t.Errorf("visible text missing: %q", got)
	}
	if strings.Contains(got, "ignored") || strings.Contains(got, "color:red") {
		t.Errorf("script/style content leaked: %q", got)
	}
}

func TestIngestText(t *testing.T) {
	ing, store, sink := newTestIngestor(t)

	res, err := ing.IngestText(context.Background(), "notes", "working on a neural network for education research")
	if err != nil {
		t.Fatalf("IngestText: %v", err)
	}

	wantDomains := []string{"artificial_intelligence", "education", "science"}
	if !reflect.DeepEqual(res.Domains, wantDomains) {
		t.Errorf("Domains = %v, want %v", res.Domains, wantDomains)
	}
	if res.ID == "" {
		t.Error("empty evidence ID")
	}

	if len(store.saved) != 1 {
		t.Fatalf("saved %d evidence records, want 1", len(store.saved))
	}
	if store.saved[0].Kind != "text" || store.saved[0].Source != "notes" {
		t.Errorf("evidence = %+v", store.saved[0])
	}
	if !reflect.DeepEqual(sink.tags, wantDomains) {
		t.Errorf("profile tags = %v, want %v", sink.tags, wantDomains)
	}
}

func TestIngestText_Empty(t *testing.T) {
	ing, _, _ := newTestIngestor(t)

	if _, err := ing.IngestText(context.Background(), "notes", "   "); err == nil {
		t.Error("expected error for empty text")
	}
}

func TestIngestText_NoDomainsLeavesProfileAlone(t *testing.T) {
	ing, store, sink := newTestIngestor(t)

	res, err := ing.IngestText(context.Background(), "notes", "groceries for the weekend")
	if err != nil {
		t.Fatalf("IngestText: %v", err)
	}
	if len(res.Domains) != 0 {
		t.Errorf("Domains = %v, want none", res.Domains)
	}
	if len(sink.tags) != 0 {
		t.Errorf("profile touched with tags %v", sink.tags)
	}
	if store.saved[0].Domains != "[]" {
		t.Errorf("stored domains = %q, want []", store.saved[0].Domains)
	}
}

func TestIngestText_EmbeddedCueWordsNotTagged(t *testing.T) {
	ing, store, sink := newTestIngestor(t)

	// "explain" contains "ai", "start" and "party" contain "art"; none of
	// these may become a permanent core domain.
	res, err := ing.IngestText(context.Background(), "notes", "explain how to start a garden party")
	if err != nil {
		t.Fatalf("IngestText: %v", err)
	}
	if len(res.Domains) != 0 {
		t.Errorf("Domains = %v, want none", res.Domains)
	}
	if len(sink.tags) != 0 {
		t.Errorf("profile polluted with tags %v", sink.tags)
	}
	if store.saved[0].Domains != "[]" {
		t.Errorf("stored domains = %q, want []", store.saved[0].Domains)
	}
}

func TestIngestURL_HTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body><p>debugging software</p></body></html>`))
	}))
	defer srv.Close()

	ing, store, _ := newTestIngestor(t)
	res, err := ing.IngestURL(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("IngestURL: %v", err)
	}
	if res.Kind != "html" {
		t.Errorf("Kind = %q, want html", res.Kind)
	}
	if !reflect.DeepEqual(res.Domains, []string{"programming"}) {
		t.Errorf("Domains = %v", res.Domains)
	}
	if len(store.saved) != 1 {
		t.Errorf("saved %d records, want 1", len(store.saved))
	}
}

func TestIngestURL_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	ing, _, _ := newTestIngestor(t)
	if _, err := ing.IngestURL(context.Background(), srv.URL); err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestIngestFile_Text(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("an experiment in curriculum design"), 0o644); err != nil {
		t.Fatal(err)
	}

	ing, _, _ := newTestIngestor(t)
	res, err := ing.IngestFile(context.Background(), path)
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if res.Kind != "text" {
		t.Errorf("Kind = %q, want text", res.Kind)
	}
	for _, want := range []string{"science", "education", "art"} {
		if !contains(res.Domains, want) {
			t.Errorf("Domains = %v, missing %q", res.Domains, want)
		}
	}
}

func TestIngestFile_Binary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob.bin")
	if err := os.WriteFile(path, []byte{0xff, 0xfe, 0x00, 0x01}, 0o644); err != nil {
		t.Fatal(err)
	}

	ing, _, _ := newTestIngestor(t)
	if _, err := ing.IngestFile(context.Background(), path); err == nil {
		t.Error("expected error for non-UTF-8 file")
	}
}

func TestIngestBatch(t *testing.T) {
	ing, store, _ := newTestIngestor(t)

	sources := []Source{
		{Name: "a", Text: "neural network notes"},
		{Name: "b", Text: "marketing plan"},
		{Name: "c", Text: "aesthetics of design"},
	}
	results, err := ing.IngestBatch(context.Background(), sources)
	if err != nil {
		t.Fatalf("IngestBatch: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	// Results keep input order regardless of completion order.
	if results[0].Source != "a" || results[1].Source != "b" || results[2].Source != "c" {
		t.Errorf("result order lost: %v", results)
	}
	if len(store.saved) != 3 {
		t.Errorf("saved %d records, want 3", len(store.saved))
	}
}

func TestIngestBatch_FailureAborts(t *testing.T) {
	ing, _, _ := newTestIngestor(t)

	sources := []Source{
		{Name: "a", Text: "neural network notes"},
		{}, // invalid: no text, url, or path
	}
	if _, err := ing.IngestBatch(context.Background(), sources); err == nil {
		t.Error("expected error for invalid source")
	}
}

func contains(tags []string, want string) bool {
	for _, tag := range tags {
		if tag == want {
			return true
		}
	}
	return false
}

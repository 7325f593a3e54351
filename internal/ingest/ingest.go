package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"percept/internal/lexicon"
	"percept/internal/storage"
)

// maxBodyBytes caps how much of a fetched document is read.
const maxBodyBytes = 4 << 20

// batchConcurrency limits parallel source processing in IngestBatch.
const batchConcurrency = 4

// EvidenceStore persists ingestion records. Implemented by storage.Store.
type EvidenceStore interface {
	SaveEvidence(ev storage.Evidence) error
}

// DomainSink receives domain tags inferred from ingested sources.
// Implemented by profile.Manager.
type DomainSink interface {
	AddCoreDomains(tags []string) error
}

// Result describes one ingested source.
type Result struct {
	ID      string   `json:"id"`
	Source  string   `json:"source"`
	Kind    string   `json:"kind"`
	Domains []string `json:"domains"`
	Chars   int      `json:"chars"`
}

// Ingestor extracts text from sources, infers domain tags from it, and
// feeds the tags into the user profile.
type Ingestor struct {
	store      EvidenceStore
	profile    DomainSink
	rules      *lexicon.Table
	httpClient *http.Client
}

// New creates an Ingestor over the given store, profile sink, and rule table.
func New(store EvidenceStore, profile DomainSink, rules *lexicon.Table) *Ingestor {
	return &Ingestor{
		store:   store,
		profile: profile,
		rules:   rules,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// IngestText records a plain text source.
func (ing *Ingestor) IngestText(ctx context.Context, source, text string) (Result, error) {
	return ing.record(ctx, source, "text", FromPlain(text))
}

// IngestURL fetches a URL and records its visible text.
func (ing *Ingestor) IngestURL(ctx context.Context, url string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, fmt.Errorf("building request for %s: %w", url, err)
	}
	resp, err := ing.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("fetching %s: unexpected status %d", url, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxBodyBytes)
	ct := resp.Header.Get("Content-Type")

	var text string
	kind := "url"
	if strings.Contains(ct, "text/html") {
		text, err = FromHTML(body)
		if err != nil {
			return Result{}, err
		}
		kind = "html"
	} else {
		raw, err := io.ReadAll(body)
		if err != nil {
			return Result{}, fmt.Errorf("reading %s: %w", url, err)
		}
		text = FromPlain(string(raw))
	}

	return ing.record(ctx, url, kind, text)
}

// IngestFile records a local file, extracting PDF text when the
// extension calls for it.
func (ing *Ingestor) IngestFile(ctx context.Context, path string) (Result, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		text, err := FromPDF(path)
		if err != nil {
			return Result{}, err
		}
		return ing.record(ctx, path, "pdf", text)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if !utf8.Valid(raw) {
		return Result{}, fmt.Errorf("file %s is not valid UTF-8 text", path)
	}
	return ing.record(ctx, path, "text", FromPlain(string(raw)))
}

// Source is one batch ingestion item. Exactly one of Text, URL, or Path
// should be set; they are checked in that order.
type Source struct {
	Name string `json:"name,omitempty"`
	Text string `json:"text,omitempty"`
	URL  string `json:"url,omitempty"`
	Path string `json:"path,omitempty"`
}

// IngestBatch processes sources concurrently with bounded parallelism.
// Results keep the input order. The first failure cancels the batch.
func (ing *Ingestor) IngestBatch(ctx context.Context, sources []Source) ([]Result, error) {
	results := make([]Result, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, src := range sources {
		g.Go(func() error {
			res, err := ing.ingestSource(ctx, src)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (ing *Ingestor) ingestSource(ctx context.Context, src Source) (Result, error) {
	switch {
	case src.Text != "":
		name := src.Name
		if name == "" {
			name = "inline"
		}
		return ing.IngestText(ctx, name, src.Text)
	case src.URL != "":
		return ing.IngestURL(ctx, src.URL)
	case src.Path != "":
		return ing.IngestFile(ctx, src.Path)
	default:
		return Result{}, fmt.Errorf("source has no text, url, or path")
	}
}

// record infers domains, updates the profile, and persists the evidence.
func (ing *Ingestor) record(ctx context.Context, source, kind, text string) (Result, error) {
	if text == "" {
		return Result{}, fmt.Errorf("source %s produced no text", source)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	domains := ing.inferDomains(text)
	domainsJSON := "[]"
	if len(domains) > 0 {
		if err := ing.profile.AddCoreDomains(domains); err != nil {
			return Result{}, fmt.Errorf("updating profile domains: %w", err)
		}
		b, err := json.Marshal(domains)
		if err != nil {
			return Result{}, fmt.Errorf("marshalling domains: %w", err)
		}
		domainsJSON = string(b)
	}

	ev := storage.Evidence{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Source:    source,
		Kind:      kind,
		Domains:   domainsJSON,
		Chars:     utf8.RuneCountInString(text),
	}
	if err := ing.store.SaveEvidence(ev); err != nil {
		return Result{}, fmt.Errorf("saving evidence: %w", err)
	}

	slog.Info("ingested evidence", "source", source, "kind", kind, "domains", domains, "chars", ev.Chars)

	return Result{
		ID:      ev.ID,
		Source:  source,
		Kind:    kind,
		Domains: domains,
		Chars:   ev.Chars,
	}, nil
}

// inferDomains maps domain rule tags whose keyword sets appear in the text.
func (ing *Ingestor) inferDomains(text string) []string {
	var tags []string
	for _, r := range ing.rules.Domains {
		if lexicon.MatchAny(text, r.Keywords) {
			tags = append(tags, r.Tag)
		}
	}
	return tags
}

package opensearch

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws-samples/genai-data-governance-assistant/internal/mocksearch"
	"github.com/aws-samples/genai-data-governance-assistant/pkg/llm"
	"github.com/aws-samples/genai-data-governance-assistant/pkg/vecindex"
)

func newTestClient(t *testing.T, srv *mocksearch.Server, token string) *Client {
	t.Helper()
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)
	c, err := NewClient(hs.URL, "schemas", token, "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestIndexStoresDocument(t *testing.T) {
	t.Parallel()

	srv := mocksearch.New()
	c := newTestClient(t, srv, "")

	err := c.Index(context.Background(), vecindex.Passage{
		ID:     "p1",
		Text:   "orders table",
		Vector: []float32{1, 0},
	})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}

	docs := srv.Docs("schemas")
	if len(docs) != 1 || docs[0].DocID != "p1" || docs[0].Passage != "orders table" {
		t.Fatalf("docs = %+v", docs)
	}

	calls := srv.Calls()
	if len(calls) != 1 || calls[0].Method != "PUT" || calls[0].Path != "/schemas/_doc/p1" {
		t.Fatalf("calls = %+v", calls)
	}
}

func TestQueryReturnsRankedHitsExcludingSelf(t *testing.T) {
	t.Parallel()

	srv := mocksearch.New()
	c := newTestClient(t, srv, "")
	ctx := context.Background()

	passages := []vecindex.Passage{
		{ID: "self", Text: "the query's own doc", Vector: []float32{1, 0, 0}},
		{ID: "near", Text: "close", Vector: []float32{1, 0.1, 0}},
		{ID: "far", Text: "distant", Vector: []float32{0, 1, 0}},
	}
	for _, p := range passages {
		if err := c.Index(ctx, p); err != nil {
			t.Fatalf("Index %s: %v", p.ID, err)
		}
	}

	hits, err := c.Query(ctx, passages[0], 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %d, want 2", len(hits))
	}
	if hits[0].Passage.ID != "near" || hits[1].Passage.ID != "far" {
		t.Fatalf("order = %s, %s", hits[0].Passage.ID, hits[1].Passage.ID)
	}
	for _, h := range hits {
		if h.Passage.ID == "self" {
			t.Fatal("query's own document leaked into the hits")
		}
	}
}

func TestQueryEmptyIndex(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, mocksearch.New(), "")
	hits, err := c.Query(context.Background(), vecindex.Passage{ID: "q", Vector: []float32{1}}, 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("hits = %+v, want none", hits)
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	srv := mocksearch.New()
	srv.RequireBearerToken("sekrit")

	authed := newTestClient(t, srv, "sekrit")
	if err := authed.Index(context.Background(), vecindex.Passage{ID: "p", Vector: []float32{1}}); err != nil {
		t.Fatalf("Index with token: %v", err)
	}

	unauthed := newTestClient(t, srv, "")
	err := unauthed.Index(context.Background(), vecindex.Passage{ID: "p", Vector: []float32{1}})
	var ierr *vecindex.IndexError
	if !errors.As(err, &ierr) {
		t.Fatalf("err = %v, want IndexError", err)
	}
	var herr *HTTPError
	if !errors.As(err, &herr) || herr.StatusCode != 401 {
		t.Fatalf("err = %v, want HTTPError with status 401", err)
	}
}

func TestServerFailuresAreTransient(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status    int
		transient bool
	}{
		{429, true},
		{503, true},
		{400, false},
		{404, false},
	}
	for _, tc := range cases {
		srv := mocksearch.New()
		srv.FailWith(tc.status)
		c := newTestClient(t, srv, "")

		err := c.Index(context.Background(), vecindex.Passage{ID: "p", Vector: []float32{1}})
		if err == nil {
			t.Fatalf("status %d: Index succeeded", tc.status)
		}
		var te *llm.TransientError
		if got := errors.As(err, &te); got != tc.transient {
			t.Fatalf("status %d: transient = %v, want %v (err %v)", tc.status, got, tc.transient, err)
		}
	}
}

func TestErrorMessageRedactsSecrets(t *testing.T) {
	t.Parallel()

	srv := mocksearch.New()
	srv.RequireBearerToken("sekrit-token-value")
	c := newTestClient(t, srv, "wrong-token")

	err := c.Index(context.Background(), vecindex.Passage{ID: "p", Vector: []float32{1}})
	if err == nil {
		t.Fatal("Index succeeded with wrong token")
	}
	if strings.Contains(err.Error(), "sekrit-token-value") || strings.Contains(err.Error(), "wrong-token") {
		t.Fatalf("error leaks token material: %v", err)
	}
}

func TestParseBaseURL(t *testing.T) {
	t.Parallel()

	u, err := parseBaseURL("search.example.com:9200/prefix")
	if err != nil {
		t.Fatalf("parseBaseURL: %v", err)
	}
	if u.Scheme != "https" || u.Path != "/prefix/" {
		t.Fatalf("url = %v", u)
	}

	if _, err := parseBaseURL(""); err == nil {
		t.Fatal("empty endpoint accepted")
	}
}

// Package opensearch is a minimal HTTP client for an OpenSearch-style k-NN
// index, covering exactly the two operations the pipeline needs: index one
// passage document and run one k-NN query.
package opensearch

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aws-samples/genai-data-governance-assistant/pkg/llm"
	"github.com/aws-samples/genai-data-governance-assistant/pkg/vecindex"
)

// Client talks to one index on one OpenSearch-compatible endpoint.
//
// Authentication is a bearer token on each request; anything richer (SigV4,
// mTLS client certs) belongs to a fronting proxy.
type Client struct {
	baseURL   *url.URL
	indexName string
	token     string
	http      *http.Client
}

// NewClient constructs a client for the given endpoint and index name.
//
// caPath is optional and, when provided, is used as the TLS trust store
// (managed clusters commonly hand out a private CA bundle).
func NewClient(endpoint, indexName, token, caPath string) (*Client, error) {
	base, err := parseBaseURL(endpoint)
	if err != nil {
		return nil, err
	}
	indexName = strings.TrimSpace(indexName)
	if indexName == "" {
		return nil, fmt.Errorf("index name is required")
	}

	hc, err := newHTTPClient(caPath)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL:   base,
		indexName: indexName,
		token:     strings.TrimSpace(token),
		http:      hc,
	}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("endpoint must include a host (got %q)", raw)
	}
	// Ensure the base path ends with a slash so ResolveReference treats it as a directory.
	u.Path = strings.TrimRight(u.Path, "/") + "/"
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

func newHTTPClient(caPath string) (*http.Client, error) {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if strings.TrimSpace(caPath) != "" {
		b, err := os.ReadFile(strings.TrimSpace(caPath))
		if err != nil {
			return nil, fmt.Errorf("read CA bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(b); !ok {
			return nil, fmt.Errorf("parse CA bundle PEM: no certs found")
		}
		tr.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}
	return &http.Client{
		Transport: tr,
		Timeout:   60 * time.Second,
	}, nil
}

type passageDoc struct {
	DocID     string    `json:"doc_id"`
	Passage   string    `json:"passage"`
	Embedding []float32 `json:"embedding"`
}

// Index stores one passage document under its id. Re-indexing an existing id
// overwrites the stored document.
func (c *Client) Index(ctx context.Context, p vecindex.Passage) error {
	if strings.TrimSpace(p.ID) == "" {
		return &vecindex.IndexError{Op: "index", Err: fmt.Errorf("passage id is required")}
	}
	body, err := json.Marshal(passageDoc{
		DocID:     p.ID,
		Passage:   p.Text,
		Embedding: p.Vector,
	})
	if err != nil {
		return &vecindex.IndexError{Op: "index", Err: err}
	}

	u := c.resolve(fmt.Sprintf("%s/_doc/%s", url.PathEscape(c.indexName), url.PathEscape(p.ID)))
	if _, err := c.do(ctx, http.MethodPut, u, body, "index"); err != nil {
		return err
	}
	return nil
}

type knnQuery struct {
	Size  int `json:"size"`
	Query struct {
		KNN map[string]knnField `json:"knn"`
	} `json:"query"`
}

type knnField struct {
	Vector []float32 `json:"vector"`
	K      int       `json:"k"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64    `json:"_score"`
			Source passageDoc `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Query runs a k-NN search and returns up to k hits in descending score
// order, excluding query.ID. The query asks the cluster for one extra
// neighbour so that excluding the query's own document still yields k hits.
func (c *Client) Query(ctx context.Context, query vecindex.Passage, k int) ([]vecindex.Hit, error) {
	if k <= 0 {
		return nil, nil
	}

	var q knnQuery
	q.Size = k + 1
	q.Query.KNN = map[string]knnField{
		"embedding": {Vector: query.Vector, K: k + 1},
	}
	body, err := json.Marshal(q)
	if err != nil {
		return nil, &vecindex.IndexError{Op: "query", Err: err}
	}

	u := c.resolve(fmt.Sprintf("%s/_search", url.PathEscape(c.indexName)))
	respBody, err := c.do(ctx, http.MethodPost, u, body, "query")
	if err != nil {
		return nil, err
	}

	var parsed searchResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &vecindex.IndexError{Op: "query", Err: fmt.Errorf("parse search response: %w", err)}
	}

	hits := make([]vecindex.Hit, 0, k)
	for _, h := range parsed.Hits.Hits {
		if h.Source.DocID == query.ID {
			continue
		}
		hits = append(hits, vecindex.Hit{
			Passage: vecindex.Passage{
				ID:     h.Source.DocID,
				Text:   h.Source.Passage,
				Vector: h.Source.Embedding,
			},
			Score: h.Score,
		})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

func (c *Client) resolve(ref string) *url.URL {
	return c.baseURL.ResolveReference(&url.URL{Path: ref})
}

func (c *Client) do(ctx context.Context, method string, u *url.URL, body []byte, op string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, &vecindex.IndexError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &vecindex.IndexError{Op: op, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &vecindex.IndexError{Op: op, Err: err}
	}
	if resp.StatusCode/100 != 2 {
		herr := newHTTPError(op, resp, b)
		if resp.StatusCode == 429 || resp.StatusCode/100 == 5 {
			return nil, &vecindex.IndexError{Op: op, Err: &llm.TransientError{Err: herr}}
		}
		return nil, &vecindex.IndexError{Op: op, Err: herr}
	}
	return b, nil
}

// Package mocksearch implements a minimal in-memory OpenSearch-like index
// surface (document put + k-NN search) for client tests and the local
// harness binary.
package mocksearch

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/aws-samples/genai-data-governance-assistant/pkg/vecindex"
)

// Call records a request made to the mock service.
type Call struct {
	Method string
	Path   string
}

// Doc is one stored passage document.
type Doc struct {
	DocID     string    `json:"doc_id"`
	Passage   string    `json:"passage"`
	Embedding []float32 `json:"embedding"`
}

// Server implements the index API surface used by the opensearch client.
type Server struct {
	mu    sync.Mutex
	calls []Call

	// docs holds documents per index name, in insertion order. Re-putting a
	// doc id overwrites in place so search tie-breaks stay stable.
	docs map[string][]Doc

	expectedAuthorization string

	// failStatus, when non-zero, makes every request fail with that status.
	failStatus int
}

func New() *Server {
	return &Server{docs: make(map[string][]Doc)}
}

// RequireBearerToken enforces that requests include an Authorization header
// matching the token. If token is empty, authorization is not enforced.
func (s *Server) RequireBearerToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token = strings.TrimSpace(token)
	if token == "" {
		s.expectedAuthorization = ""
		return
	}
	s.expectedAuthorization = "Bearer " + token
}

// FailWith makes every subsequent request fail with the given HTTP status.
// Pass 0 to restore normal behavior.
func (s *Server) FailWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatus = status
}

// Handler returns an http.Handler that serves the mock API.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handle)
}

// Calls returns a snapshot of calls made to the server.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Docs returns a snapshot of the documents stored in an index.
func (s *Server) Docs(index string) []Doc {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Doc, len(s.docs[index]))
	copy(out, s.docs[index])
	return out
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path})
	expected := s.expectedAuthorization
	failStatus := s.failStatus
	s.mu.Unlock()

	if failStatus != 0 {
		writeError(w, failStatus, "forced_failure", "mock server failure")
		return
	}
	if expected != "" && r.Header.Get("Authorization") != expected {
		writeError(w, http.StatusUnauthorized, "security_exception", "missing authentication credentials")
		return
	}

	// /{index}/_doc/{id} and /{index}/_search
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 3 && parts[1] == "_doc" && r.Method == http.MethodPut:
		s.handlePut(w, r, parts[0], parts[2])
	case len(parts) == 2 && parts[1] == "_search" && r.Method == http.MethodPost:
		s.handleSearch(w, r, parts[0])
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request, index, id string) {
	var doc Doc
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "mapper_parsing_exception", "failed to parse document")
		return
	}
	if strings.TrimSpace(doc.DocID) == "" {
		doc.DocID = id
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.docs[index]
	replaced := false
	for i := range list {
		if list[i].DocID == doc.DocID {
			list[i] = doc
			replaced = true
			break
		}
	}
	if !replaced {
		list = append(list, doc)
	}
	s.docs[index] = list

	w.Header().Set("Content-Type", "application/json")
	result := "created"
	if replaced {
		result = "updated"
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"_index": index, "_id": doc.DocID, "result": result})
}

type searchRequest struct {
	Size  int `json:"size"`
	Query struct {
		KNN map[string]struct {
			Vector []float32 `json:"vector"`
			K      int       `json:"k"`
		} `json:"knn"`
	} `json:"query"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, index string) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "parsing_exception", "failed to parse search request")
		return
	}
	field, ok := req.Query.KNN["embedding"]
	if !ok {
		writeError(w, http.StatusBadRequest, "parsing_exception", "knn query must target the embedding field")
		return
	}
	size := req.Size
	if size <= 0 {
		size = field.K
	}

	s.mu.Lock()
	docs := make([]Doc, len(s.docs[index]))
	copy(docs, s.docs[index])
	s.mu.Unlock()

	type scored struct {
		doc   Doc
		score float64
	}
	hits := make([]scored, 0, len(docs))
	for _, d := range docs {
		hits = append(hits, scored{doc: d, score: vecindex.Cosine(field.Vector, d.Embedding)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > size {
		hits = hits[:size]
	}

	type respHit struct {
		Score  float64 `json:"_score"`
		Source Doc     `json:"_source"`
	}
	var resp struct {
		Hits struct {
			Hits []respHit `json:"hits"`
		} `json:"hits"`
	}
	resp.Hits.Hits = make([]respHit, 0, len(hits))
	for _, h := range hits {
		resp.Hits.Hits = append(resp.Hits.Hits, respHit{Score: h.score, Source: h.doc})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, status int, errType, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":  map[string]any{"type": errType, "reason": reason},
		"status": status,
	})
}

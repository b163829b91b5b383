// Command mock-search serves an in-memory OpenSearch-like index for local
// development and client testing.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/aws-samples/genai-data-governance-assistant/internal/mocksearch"
)

func main() {
	fs := flag.NewFlagSet("mock-search", flag.ExitOnError)
	addr := fs.String("addr", ":8200", "Listen address")
	token := fs.String("token", "", "If set, require this bearer token on every request")
	_ = fs.Parse(os.Args[1:])

	logger := log.New(os.Stdout, "mock-search ", log.LstdFlags)

	srv := mocksearch.New()
	if *token != "" {
		srv.RequireBearerToken(*token)
	}

	httpSrv := &http.Server{
		Addr:              *addr,
		Handler:           logRequests(logger, srv.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Printf("listening on %s", *addr)
	if err := httpSrv.ListenAndServe(); err != nil {
		logger.Fatalf("serve: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start).Round(time.Millisecond))
	})
}

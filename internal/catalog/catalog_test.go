package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"

	"github.com/aws-samples/genai-data-governance-assistant/pkg/schema"
)

func TestMapColumnType(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"string", "string"},
		{"integer", "int"},
		{"float", "double"},
		{"number", "double"},
		{"date", "date"},
		{"boolean", "boolean"},
		{" Integer ", "int"},
	}
	for _, tc := range cases {
		got, err := MapColumnType(tc.in)
		if err != nil {
			t.Fatalf("MapColumnType(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("MapColumnType(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	if _, err := MapColumnType("varchar"); err == nil {
		t.Fatal("unknown type accepted")
	}
}

func TestTruncateDescription(t *testing.T) {
	t.Parallel()

	desc := "This table holds customer orders.\n\n1. id: the order id\n2. dob: date of birth"
	if got := TruncateDescription(desc); got != "This table holds customer orders." {
		t.Fatalf("got %q", got)
	}

	plain := "Just a paragraph with no list."
	if got := TruncateDescription(plain); got != plain {
		t.Fatalf("got %q", got)
	}
}

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dsn := t.TempDir() + "/catalog.db"
	store, err := OpenStore(context.Background(), dsn)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store, dsn
}

func testEntry() Entry {
	return Entry{
		Database:    "sales",
		Table:       "orders",
		Description: "Customer orders.\n1. id: order id",
		Location:    "s3://bucket/orders/",
		Schema: schema.Schema{Columns: []schema.ColumnSpec{
			{Name: "id", Type: "integer", Description: "order id"},
			{Name: "amount", Type: "float", Description: "order amount"},
		}},
	}
}

func readEntry(t *testing.T, dsn, database, table string) (description, columnsJSON string) {
	t.Helper()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()
	err = db.QueryRow(
		`SELECT description, columns_json FROM catalog_entries WHERE database_name = ? AND table_name = ?`,
		database, table,
	).Scan(&description, &columnsJSON)
	if err != nil {
		t.Fatalf("query entry: %v", err)
	}
	return description, columnsJSON
}

func TestRegisterMapsTypesAndTruncates(t *testing.T) {
	t.Parallel()

	store, dsn := openTestStore(t)
	if err := store.Register(context.Background(), testEntry()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	desc, colsJSON := readEntry(t, dsn, "sales", "orders")
	if desc != "Customer orders." {
		t.Fatalf("description = %q, want numbered list truncated", desc)
	}

	var cols []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(colsJSON), &cols); err != nil {
		t.Fatalf("decode columns: %v", err)
	}
	if cols[0].Type != "int" || cols[1].Type != "double" {
		t.Fatalf("columns = %+v, want engine types", cols)
	}
}

func TestRegisterReplacesExisting(t *testing.T) {
	t.Parallel()

	store, dsn := openTestStore(t)
	ctx := context.Background()
	if err := store.Register(ctx, testEntry()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	updated := testEntry()
	updated.Description = "Replaced description."
	if err := store.Register(ctx, updated); err != nil {
		t.Fatalf("Register again: %v", err)
	}

	desc, _ := readEntry(t, dsn, "sales", "orders")
	if desc != "Replaced description." {
		t.Fatalf("description = %q, want replacement", desc)
	}
}

func TestRegisterRejectsBadTypeBeforeWriting(t *testing.T) {
	t.Parallel()

	store, dsn := openTestStore(t)
	bad := testEntry()
	bad.Schema.Columns[1].Type = "varchar"

	err := store.Register(context.Background(), bad)
	if err == nil || !strings.Contains(err.Error(), "amount") {
		t.Fatalf("err = %v, want column-named type error", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM catalog_entries`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("entries = %d, want none after a failed registration", n)
	}
}

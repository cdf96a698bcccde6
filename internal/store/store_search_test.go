package store

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestSearchByMetric(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"content_hash", "file_name", "full_text", "created_at"}).
		AddRow("abc123", "q4.pdf", "revenue $1,000,000", created)

	mock.ExpectQuery("SELECT content_hash, file_name, full_text, created_at").
		WithArgs(`\$revenue\s*[0-9,.]+[MBK]?`).
		WillReturnRows(rows)

	hits, err := st.SearchByMetric(context.Background(), "revenue", nil, nil)
	if err != nil {
		t.Fatalf("SearchByMetric: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits: got %d, want 1", len(hits))
	}
	if hits[0].ContentHash != "abc123" {
		t.Fatalf("content_hash: got %q", hits[0].ContentHash)
	}
}

func TestSearchByMetricWithBounds(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	min, max := 100.0, 5000.0

	mock.ExpectQuery("SELECT content_hash, file_name, full_text, created_at").
		WithArgs(`\$revenue\s*[0-9,.]+[MBK]?`,
			`\$revenue\s*([0-9,.]+)`, min,
			`\$revenue\s*([0-9,.]+)`, max).
		WillReturnRows(sqlmock.NewRows([]string{"content_hash", "file_name", "full_text", "created_at"}))

	hits, err := st.SearchByMetric(context.Background(), "revenue", &min, &max)
	if err != nil {
		t.Fatalf("SearchByMetric: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("hits: got %d, want 0", len(hits))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchByMetricRejectsBadNames(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	for _, metric := range []string{"", "rev.enue", `rev\d+`, "a(b", "'; DROP TABLE documents; --"} {
		_, err := st.SearchByMetric(context.Background(), metric, nil, nil)
		if !errors.Is(err, ErrInvalidQuery) {
			t.Fatalf("metric %q: got %v, want ErrInvalidQuery", metric, err)
		}
	}
}

func TestValidateReadOnly(t *testing.T) {
	cases := []struct {
		query string
		ok    bool
	}{
		{"SELECT * FROM documents", true},
		{"   select count(*) from documents", true},
		{"\n\tSeLeCt 1", true},
		{"DROP TABLE documents", false},
		{"DELETE FROM documents", false},
		{"UPDATE documents SET full_text = ''", false},
		{"", false},
		{"   ", false},
	}
	for _, c := range cases {
		err := ValidateReadOnly(c.query)
		if c.ok && err != nil {
			t.Fatalf("query %q: unexpected error %v", c.query, err)
		}
		if !c.ok && !errors.Is(err, ErrInvalidQuery) {
			t.Fatalf("query %q: got %v, want ErrInvalidQuery", c.query, err)
		}
	}
}

func TestReadOnlyQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	rows := sqlmock.NewRows([]string{"file_name", "byte_size"}).
		AddRow([]byte("q4.pdf"), int64(2048))
	mock.ExpectQuery("SELECT file_name, byte_size FROM documents").WillReturnRows(rows)

	out, err := st.ReadOnlyQuery(context.Background(), "SELECT file_name, byte_size FROM documents")
	if err != nil {
		t.Fatalf("ReadOnlyQuery: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("rows: got %d, want 1", len(out))
	}
	if out[0]["file_name"] != "q4.pdf" {
		t.Fatalf("file_name: got %v, want string after []byte conversion", out[0]["file_name"])
	}
	if out[0]["byte_size"] != int64(2048) {
		t.Fatalf("byte_size: got %v", out[0]["byte_size"])
	}
}

func TestReadOnlyQueryRejectsMutation(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	_, err = st.ReadOnlyQuery(context.Background(), "DROP TABLE documents")
	if !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("got %v, want ErrInvalidQuery", err)
	}
}

package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestTiingoClient_GetDailyPrices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tiingo/daily/ACME/prices" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Token secret" {
			t.Errorf("Authorization = %q", got)
		}
		q := r.URL.Query()
		if q.Get("startDate") != "2025-03-10" || q.Get("endDate") != "2025-03-12" || q.Get("resampleFreq") != "daily" {
			t.Errorf("query = %v", q)
		}
		fmt.Fprint(w, `[{"date":"2025-03-12T00:00:00.000Z","open":10,"high":11,"low":9,"close":10.5,"volume":1000,
			"adjOpen":5,"adjHigh":5.5,"adjLow":4.5,"adjClose":5.25,"adjVolume":2000,"divCash":0,"splitFactor":1},
			{"date":"2025-03-11T00:00:00.000Z","close":null}]`)
	}))
	defer server.Close()

	c := NewTiingoClient("secret", server.URL+"/", time.Second)
	rows, err := c.GetDailyPrices(context.Background(), "ACME",
		time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("GetDailyPrices: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if !rows[0].AdjClose.Valid || rows[0].AdjClose.Decimal.String() != "5.25" {
		t.Errorf("adjClose = %+v", rows[0].AdjClose)
	}
	if rows[1].Close.Valid || rows[1].AdjOpen.Valid {
		t.Errorf("missing fields should be invalid: %+v", rows[1])
	}
}

func TestTiingoClient_NonOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"detail":"Invalid token."}`)
	}))
	defer server.Close()

	_, err := NewTiingoClient("bad", server.URL, time.Second).
		GetDailyPrices(context.Background(), "ACME", time.Now(), time.Now())

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Body == "" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestTiingoClient_BadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"not":"a list"}`)
	}))
	defer server.Close()

	if _, err := NewTiingoClient("k", server.URL, time.Second).
		GetDailyPrices(context.Background(), "ACME", time.Now(), time.Now()); err == nil {
		t.Error("expected decode error")
	}
}

func TestTiingoClient_NonOKMultibyteBody(t *testing.T) {
	body := strings.Repeat("错", 300)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, body)
	}))
	defer server.Close()

	_, err := NewTiingoClient("k", server.URL, time.Second).
		GetDailyPrices(context.Background(), "ACME", time.Now(), time.Now())

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if !utf8.ValidString(apiErr.Body) {
		t.Errorf("body is not valid UTF-8: %q", apiErr.Body)
	}
	if n := utf8.RuneCountInString(apiErr.Body); n != 200 {
		t.Errorf("body runes = %d, want 200", n)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"  short  ", 10, "short"},
		{"abcdef", 3, "abc"},
		{"가나다라", 2, "가나"},
		{"", 5, ""},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

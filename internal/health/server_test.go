package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestStatusHandler(t *testing.T) {
	s := New(":0", func() int { return 3 }, zerolog.Nop())
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.started = start
	s.now = func() time.Time { return start.Add(90 * time.Second) }

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type %q", ct)
	}

	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.Status != "Bot is running" || st.Guilds != 3 || st.Uptime != 90 {
		t.Errorf("unexpected status %+v", st)
	}
	if st.Timestamp != "2026-01-01T12:01:30Z" {
		t.Errorf("unexpected timestamp %q", st.Timestamp)
	}
}

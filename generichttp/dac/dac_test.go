package dac

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"

	driver "github.com/embedlab/radac/dac"
	"github.com/embedlab/radac/mmio"
)

// benchChannel adapts a driver control block to the HTTP layer's Channel
type benchChannel struct {
	ch  driver.Channel
	p   *driver.Peripheral
	cfg driver.Config
}

func (b *benchChannel) Open() error { return b.ch.Open(b.p, b.cfg) }

func (b *benchChannel) Write(v uint16) error { return b.ch.Write(v) }

func (b *benchChannel) Start() error { return b.ch.Start() }

func (b *benchChannel) Stop() error { return b.ch.Stop() }

func (b *benchChannel) Close() error { return b.ch.Close() }

func (b *benchChannel) Started() (bool, error) { return b.ch.Started() }

type staticVersion struct{}

func (staticVersion) Version() (string, error) { return "test", nil }

func testServer(t *testing.T) (*httptest.Server, *benchChannel) {
	t.Helper()
	feat, err := driver.Profile("RA6M3")
	if err != nil {
		t.Fatal(err)
	}
	p := driver.NewPeripheral(mmio.NewSim(16), feat)
	b := &benchChannel{p: p, cfg: driver.Config{Channel: 0}}
	h := NewHTTPDAC(map[int]Channel{0: b}, staticVersion{})
	r := chi.NewRouter()
	h.RouteTable.Bind(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, b
}

func post(t *testing.T, url string, body []byte) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHTTPLifecycle(t *testing.T) {
	srv, _ := testServer(t)

	if resp := post(t, srv.URL+"/chan/0/open", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("open: status %d", resp.StatusCode)
	}
	body, _ := json.Marshal(struct {
		U16 uint16 `json:"u16"`
	}{0x0200})
	if resp := post(t, srv.URL+"/chan/0/write", body); resp.StatusCode != http.StatusOK {
		t.Fatalf("write: status %d", resp.StatusCode)
	}
	if resp := post(t, srv.URL+"/chan/0/start", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("start: status %d", resp.StatusCode)
	}

	resp, err := http.Get(srv.URL + "/chan/0/started")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var started struct {
		Bool bool `json:"bool"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&started); err != nil {
		t.Fatal(err)
	}
	if !started.Bool {
		t.Error("started reported false after start")
	}

	if resp := post(t, srv.URL+"/chan/0/stop", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("stop: status %d", resp.StatusCode)
	}
	if resp := post(t, srv.URL+"/chan/0/close", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("close: status %d", resp.StatusCode)
	}
}

func TestHTTPErrors(t *testing.T) {
	srv, _ := testServer(t)

	// driver errors surface as 500s; the channel is not open yet
	if resp := post(t, srv.URL+"/chan/0/start", nil); resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("start before open: status %d, want 500", resp.StatusCode)
	}
	// channels outside the configured set are 404
	if resp := post(t, srv.URL+"/chan/3/open", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown channel: status %d, want 404", resp.StatusCode)
	}
	// non-numeric channel is a 400
	if resp := post(t, srv.URL+"/chan/zero/open", nil); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad channel: status %d, want 400", resp.StatusCode)
	}
	// open twice is a driver error
	if resp := post(t, srv.URL+"/chan/0/open", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("open: status %d", resp.StatusCode)
	}
	if resp := post(t, srv.URL+"/chan/0/open", nil); resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("second open: status %d, want 500", resp.StatusCode)
	}
}

func TestHTTPVersion(t *testing.T) {
	srv, _ := testServer(t)
	resp, err := http.Get(srv.URL + "/version")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var v struct {
		Str string `json:"str"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	if v.Str != "test" {
		t.Errorf("version: got %q, want %q", v.Str, "test")
	}
}

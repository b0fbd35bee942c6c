package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kingrea/overview/internal/proposal"
	"github.com/kingrea/overview/internal/proposal/aggregate"
	"github.com/kingrea/overview/internal/proposal/session"
)

type fakeDriver struct {
	state   session.State
	actions []proposal.Action
	err     error
}

func (d *fakeDriver) Handle(action proposal.Action) error {
	d.actions = append(d.actions, action)
	if d.err != nil {
		return d.err
	}
	if _, ok := action.(proposal.Proceed); ok {
		d.state.Status = session.StatusFinished
	}
	return nil
}

func (d *fakeDriver) State() session.State { return d.state }

func (d *fakeDriver) Help() string { return "Network\nConfigure interfaces." }

func newDriver() *fakeDriver {
	return &fakeDriver{state: session.State{
		ID:     "sess-1",
		Status: session.StatusIdle,
		Document: aggregate.Document{
			Markup: `<h3><a href="net">Network</a></h3><p><a href="net--dhcp">DHCP</a></p>`,
		},
	}}
}

func postAction(t *testing.T, srv *httptest.Server, body string) (*http.Response, actionResponse) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/actions", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	var decoded actionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp, decoded
}

func TestProposalEndpointRendersView(t *testing.T) {
	srv := httptest.NewServer(NewServer(Settings{}, newDriver()).Handler())
	t.Cleanup(srv.Close)
	resp, err := http.Get(srv.URL + "/proposal")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var view View
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Session != "sess-1" || view.Text != "Network\n\nDHCP" || len(view.Links) != 2 {
		t.Fatalf("unexpected view %+v", view)
	}
	if view.Links[1].ID != "net--dhcp" || !strings.Contains(view.Help, "interfaces") {
		t.Fatalf("unexpected links or help %+v", view)
	}
}

func TestActionsEndpointDispatches(t *testing.T) {
	driver := newDriver()
	srv := httptest.NewServer(NewServer(Settings{}, driver).Handler())
	t.Cleanup(srv.Close)

	resp, decoded := postAction(t, srv, `{"type":"link","id":"net--dhcp"}`)
	if resp.StatusCode != http.StatusOK || decoded.Status != "ok" {
		t.Fatalf("unexpected response %d %+v", resp.StatusCode, decoded)
	}
	resp, decoded = postAction(t, srv, `{"type":"proceed"}`)
	if resp.StatusCode != http.StatusOK || decoded.View.Status != session.StatusFinished {
		t.Fatalf("unexpected response %d %+v", resp.StatusCode, decoded)
	}
	if len(driver.actions) != 2 {
		t.Fatalf("expected two actions, got %+v", driver.actions)
	}
	if link, ok := driver.actions[0].(proposal.ActivateLink); !ok || link.ID != "net--dhcp" {
		t.Fatalf("unexpected first action %#v", driver.actions[0])
	}
}

func TestActionsEndpointMapsErrors(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{proposal.ErrBlocked, http.StatusConflict},
		{proposal.ErrLocked, http.StatusForbidden},
		{proposal.ErrUnknownLink, http.StatusNotFound},
		{proposal.ErrSessionClosed, http.StatusGone},
		{proposal.ErrWriteFailed, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		driver := newDriver()
		driver.err = tc.err
		srv := httptest.NewServer(NewServer(Settings{}, driver).Handler())
		resp, decoded := postAction(t, srv, `{"type":"proceed"}`)
		srv.Close()
		if resp.StatusCode != tc.code || decoded.Status != "rejected" {
			t.Fatalf("%v: expected %d, got %d %+v", tc.err, tc.code, resp.StatusCode, decoded)
		}
	}
}

func TestActionsEndpointRejectsBadRequests(t *testing.T) {
	srv := httptest.NewServer(NewServer(Settings{MaxBodyBytes: 64}, newDriver()).Handler())
	t.Cleanup(srv.Close)
	for body, code := range map[string]int{
		`{"type":"tab"}`:   http.StatusBadRequest,
		`{"type":"dance"}`: http.StatusBadRequest,
		`not json`:         http.StatusBadRequest,
		`{"type":"link","id":"` + strings.Repeat("x", 100) + `"}`: http.StatusRequestEntityTooLarge,
	} {
		resp, err := http.Post(srv.URL+"/actions", "application/json", bytes.NewBufferString(body))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != code {
			t.Fatalf("%s: expected %d, got %d", body, code, resp.StatusCode)
		}
	}
	resp, err := http.Get(srv.URL + "/actions")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestEventsStreamPublishesUpdates(t *testing.T) {
	server := NewServer(Settings{}, newDriver())
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	postAction(t, srv, `{"type":"reset"}`)

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var update Update
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &update); err != nil {
			t.Fatalf("decode update: %v", err)
		}
		if update.Action != "reset" || update.Sequence != 1 || update.Session != "sess-1" {
			t.Fatalf("unexpected update %+v", update)
		}
		return
	}
	t.Fatalf("stream ended without an update: %v", scanner.Err())
}

func TestServerStartAndShutdown(t *testing.T) {
	srv := NewServer(Settings{Host: "127.0.0.1", Port: 0}, newDriver())
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	if srv.Status() != StatusReady {
		t.Fatalf("unexpected status %s", srv.Status())
	}
	resp, err := http.Get(srv.BaseURL() + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer resp.Body.Close()
	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Status != string(StatusReady) || health.Version != ProtocolVersion || health.SessionStatus != "idle" {
		t.Fatalf("unexpected health %+v", health)
	}
	if err := srv.Start(context.Background()); err == nil {
		t.Fatalf("second start must fail")
	}
}

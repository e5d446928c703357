package bridge

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(portStr)
	return NewClient(host, port, "testuser", false, 0)
}

func TestFetchState(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/testuser/" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"lights": {"1": {"name": "Lamp"}}, "groups": {}}`))
	}))

	payload, err := c.FetchState(context.Background())
	if err != nil {
		t.Fatalf("FetchState: %v", err)
	}
	if _, ok := payload["lights"]; !ok {
		t.Error("payload should contain lights")
	}
	if _, ok := payload["groups"]; !ok {
		t.Error("payload should contain groups")
	}
}

func TestFetchState_Unauthorized(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"error": {"type": 1, "address": "/", "description": "unauthorized user"}}]`))
	}))

	_, err := c.FetchState(context.Background())
	if !errors.Is(err, ErrRejected) {
		t.Errorf("unauthorized should yield ErrRejected, got %v", err)
	}
}

func TestFetchState_ServerError(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.FetchState(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Errorf("5xx should yield ErrTransport, got %v", err)
	}
}

func TestSend(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %q", r.Method)
		}
		if r.URL.Path != "/api/testuser/lights/1/state" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`[
			{"success": {"/lights/1/state/on": true}},
			{"success": {"/lights/1/state/bri": 127}}
		]`))
	}))

	results, err := c.Send(context.Background(), "", "lights/1/state", map[string]any{"on": true, "bri": 127})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d", len(results))
	}
	if results[0].Success["/lights/1/state/on"] != true {
		t.Errorf("first result = %+v", results[0])
	}
}

func TestSend_FieldError(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"error": {"type": 201, "address": "/lights/1/state/bri", "description": "parameter, bri, is not modifiable. Device is set to off."}}]`))
	}))

	results, err := c.Send(context.Background(), "", "lights/1/state", map[string]any{"bri": 127})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if results[0].Error == nil || results[0].Error.Type != 201 {
		t.Errorf("result = %+v", results[0])
	}
}

func TestFetchGroupZero(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/testuser/groups/0" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"name": "Group 0", "lights": ["1"], "type": "LightGroup", "action": {"on": false}}`))
	}))

	group, err := c.FetchGroupZero(context.Background())
	if err != nil {
		t.Fatalf("FetchGroupZero: %v", err)
	}
	if group["name"] != "Group 0" {
		t.Errorf("name = %v", group["name"])
	}
}

func TestCreateUser(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`[{"success": {"username": "newuser123"}}]`))
	}))

	user, err := c.CreateUser(context.Background(), "huesyncd#test")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user != "newuser123" {
		t.Errorf("user = %q", user)
	}
}

func TestCreateUser_LinkButtonNotPressed(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"error": {"type": 101, "address": "", "description": "link button not pressed"}}]`))
	}))

	_, err := c.CreateUser(context.Background(), "huesyncd#test")
	if !errors.Is(err, ErrRejected) {
		t.Errorf("want ErrRejected, got %v", err)
	}
}

func TestFriendlyMessages(t *testing.T) {
	err := transportError(errors.New("dial tcp 10.0.0.2:80: connect: connection refused"))
	if !errors.Is(err, ErrTransport) {
		t.Fatal("transportError must wrap ErrTransport")
	}
	if err.Error() != "transport error: connection refused" {
		t.Errorf("message = %q", err.Error())
	}

	err = transportError(errors.New("net/http: request canceled (Client.Timeout exceeded while awaiting headers)"))
	if err.Error() != "transport error: request timed out" {
		t.Errorf("message = %q", err.Error())
	}
}

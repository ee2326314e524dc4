package restclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewRestClient(t *testing.T) {
	c := NewRestClient("http://test", map[string]string{"x": "y"}, time.Second)
	if c.baseURL != "http://test" {
		t.Fail()
	}
	if c.headers["x"] != "y" {
		t.Fail()
	}
	if c.httpClient == nil || c.httpClient.Timeout != time.Second {
		t.Fail()
	}
}

func TestDoRequest(t *testing.T) {
	c := &RestClient{httpClient: &http.Client{Transport: RoundTripFunc(func(_ *http.Request) (*http.Response, error) {
		return nil, errors.New("err")
	})}}
	r, _ := http.NewRequest("GET", "http://test", nil)
	b, s, err := c.doRequest(r)
	if err == nil || s != 0 || len(b) != 0 {
		t.Fail()
	}
}

func TestSetHeadersPrecedence(t *testing.T) {
	var got http.Header
	c := &RestClient{
		baseURL: "http://test",
		headers: map[string]string{"x-api-key": "client", "x-client": "1"},
		httpClient: &http.Client{Transport: RoundTripFunc(func(r *http.Request) (*http.Response, error) {
			got = r.Header.Clone()
			return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(http.NoBody)}, nil
		})},
	}
	_, status, err := c.Post(context.Background(), "/", nil, map[string]string{"x-api-key": "request"})
	if err != nil || status != http.StatusOK {
		t.Fatalf("unexpected result: %d %v", status, err)
	}
	if got.Get("x-api-key") != "request" || got.Get("x-client") != "1" || got.Get("Content-Type") != "application/json" {
		t.Fatalf("unexpected headers: %v", got)
	}
}

func TestRestClient(t *testing.T) {
	ctx := context.Background()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer ts.Close()
	cases := []struct {
		name     string
		baseURL  string
		endpoint string
		body     any
		expectOK bool
	}{
		{"post_ok", ts.URL, "/", map[string]string{"x": "y"}, true},
		{"post_no_body", ts.URL, "/", nil, true},
		{"invalid_url", "://bad", "", nil, false},
		{"json_error", ts.URL, "/", func() {}, false},
		{"server_closed", "", "/", nil, false},
	}
	for _, cse := range cases {
		t.Run(cse.name, func(t *testing.T) {
			var rc *RestClient
			if cse.name == "server_closed" {
				s := httptest.NewServer(nil)
				s.Close()
				rc = NewRestClient(s.URL, nil, time.Second)
			} else {
				rc = NewRestClient(cse.baseURL, nil, time.Second)
			}
			b, s, err := rc.Post(ctx, cse.endpoint, cse.body, nil)
			if cse.expectOK && (err != nil || s != http.StatusOK || string(b) != "ok") {
				t.Fail()
			}
			if !cse.expectOK && err == nil {
				t.Fail()
			}
		})
	}
}

type RoundTripFunc func(*http.Request) (*http.Response, error)

func (f RoundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

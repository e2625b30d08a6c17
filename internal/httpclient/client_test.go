package httpclient_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fd1az/flashloan-arb/internal/httpclient"
)

func TestClient_GetDecodesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/ticker/price" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("symbol"); got != "ETHUSDC" {
			t.Errorf("symbol = %q", got)
		}
		if got := r.Header.Get("X-Api-Key"); got != "k" {
			t.Errorf("api key header = %q", got)
		}
		fmt.Fprint(w, `{"symbol":"ETHUSDC","price":"2500.10"}`)
	}))
	defer srv.Close()

	c, err := httpclient.New(
		httpclient.WithBaseURL(srv.URL),
		httpclient.WithProviderName("test"),
		httpclient.WithHeaders(map[string]string{"X-Api-Key": "k"}),
	)
	if err != nil {
		t.Fatal(err)
	}

	var out struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	resp, err := c.NewRequest().
		SetQueryParam("symbol", "ETHUSDC").
		SetResult(&out).
		Get(context.Background(), "/api/v3/ticker/price")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !resp.IsSuccess() || out.Price != "2500.10" {
		t.Errorf("resp=%d out=%+v", resp.StatusCode, out)
	}
}

func TestClient_ErrorHandler(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"code":-1003}`)
	}))
	defer srv.Close()

	c, _ := httpclient.New(httpclient.WithBaseURL(srv.URL))
	sentinel := errors.New("throttled")

	_, err := c.NewRequest().
		SetErrorHandler(func(status int, _ []byte) error {
			if status == http.StatusTooManyRequests {
				return sentinel
			}
			return nil
		}).
		Post(context.Background(), "/x")
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want sentinel", err)
	}
}

func TestClient_PostJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q", r.Header.Get("Content-Type"))
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c, _ := httpclient.New(httpclient.WithBaseURL(srv.URL))
	resp, err := c.NewRequest().SetBody(map[string]int{"a": 1}).Post(context.Background(), "/")
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("Post = %v, %v", resp, err)
	}
}

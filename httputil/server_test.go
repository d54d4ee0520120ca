// Copyright (c) 2023 BVK Chaitanya

package httputil

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"
)

func get(t *testing.T, addr *net.TCPAddr, path string) (int, string) {
	resp, err := http.Get("http://" + addr.String() + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(data)
}

func TestServer(t *testing.T) {
	s, err := New(&Options{ServerCheckRetryInterval: 10 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	addr := &net.TCPAddr{IP: net.ParseIP("127.0.0.1")}
	id, err := s.StartTCP(context.Background(), addr)
	if err != nil {
		t.Fatal(err)
	}
	if addr.Port == 0 {
		t.Fatalf("want the chosen port in the address")
	}

	s.AddHandler("/pid", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "123")
	}))
	if code, body := get(t, addr, "/pid"); code != http.StatusOK || body != "123" {
		t.Fatalf("want 123, got %d %q", code, body)
	}

	if !s.RemoveHandler("/pid") {
		t.Fatalf("want handler to be removed")
	}
	if s.RemoveHandler("/pid") {
		t.Fatalf("removed handler must not be found again")
	}
	if code, _ := get(t, addr, "/pid"); code != http.StatusNotFound {
		t.Fatalf("want not found, got %d", code)
	}

	if err := s.Stop(id); err != nil {
		t.Fatal(err)
	}
	if err := s.Stop(id); err == nil {
		t.Fatalf("stopped server must not be found")
	}
}

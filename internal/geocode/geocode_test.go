package geocode

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const photonBody = `{"features":[{"geometry":{"coordinates":[-97.74,30.27]},"properties":{"name":"Austin","state":"Texas","country":"United States"}}]}`

func TestSearchParsesPhotonFeatures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "Austin" {
			t.Errorf("q = %q", got)
		}
		fmt.Fprint(w, photonBody)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5, nil)
	places, err := c.Search(context.Background(), "Austin")
	if err != nil {
		t.Fatal(err)
	}
	if len(places) != 1 {
		t.Fatalf("places = %v", places)
	}
	p := places[0]
	if p.Name != "Austin, Texas, United States" {
		t.Fatalf("name = %q", p.Name)
	}
	if *p.Lat != 30.27 || *p.Lng != -97.74 {
		t.Fatalf("coords = %v,%v", *p.Lat, *p.Lng)
	}
}

func TestSearchUsesCache(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, photonBody)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5, NewMemoryCache(time.Minute))
	for i := 0; i < 3; i++ {
		if _, err := c.Search(context.Background(), "Austin"); err != nil {
			t.Fatal(err)
		}
	}
	if hits.Load() != 1 {
		t.Fatalf("upstream hit %d times", hits.Load())
	}
}

func TestMemoryCacheExpires(t *testing.T) {
	c := NewMemoryCache(5 * time.Millisecond)
	c.Set("q", nil)
	if _, ok := c.Get("q"); !ok {
		t.Fatal("fresh entry missing")
	}
	time.Sleep(10 * time.Millisecond)
	if _, ok := c.Get("q"); ok {
		t.Fatal("expired entry served")
	}
}

func TestEmptyQueryShortCircuits(t *testing.T) {
	c := NewClient("http://unused.invalid", 5, nil)
	places, err := c.Search(context.Background(), "   ")
	if err != nil || places != nil {
		t.Fatalf("places=%v err=%v", places, err)
	}
}

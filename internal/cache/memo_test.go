package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ppiankov/qidlink/internal/model"
)

type countingSource struct {
	calls int
	fail  bool
}

func (s *countingSource) Entity(ctx context.Context, id string) (*model.EntityDetail, error) {
	s.calls++
	if s.fail {
		return nil, errors.New("lookup failed")
	}
	return &model.EntityDetail{ID: id, Sitelinks: map[string]string{"enwiki": id}}, nil
}

func TestMemoDetails_CachesSuccess(t *testing.T) {
	src := &countingSource{}
	var results []string
	memo := NewMemoDetails(src, NewMemoryCache(time.Minute, time.Minute), func(r string) {
		results = append(results, r)
	})

	for i := 0; i < 3; i++ {
		d, err := memo.Entity(context.Background(), "Q64")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !d.HasSitelink("enwiki") {
			t.Error("expected cached detail to keep its sitelinks")
		}
	}

	if src.calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", src.calls)
	}
	if len(results) != 3 || results[0] != "miss" || results[1] != "hit" || results[2] != "hit" {
		t.Errorf("unexpected observer results: %v", results)
	}
}

func TestMemoDetails_DoesNotCacheFailures(t *testing.T) {
	src := &countingSource{fail: true}
	memo := NewMemoDetails(src, NewMemoryCache(time.Minute, time.Minute), nil)

	for i := 0; i < 2; i++ {
		if _, err := memo.Entity(context.Background(), "Q64"); err == nil {
			t.Fatal("expected error")
		}
	}

	if src.calls != 2 {
		t.Errorf("expected failures to be retried upstream, got %d calls", src.calls)
	}
}

func TestMemoryCache_KeyIsCaseInsensitive(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	c.Set("q64", &model.EntityDetail{ID: "Q64"})

	if _, ok := c.Get("Q64"); !ok {
		t.Error("expected lookup by upper-case id to hit")
	}
	if _, ok := c.Get(" q64 "); !ok {
		t.Error("expected lookup with surrounding spaces to hit")
	}
	if _, ok := c.Get("Q65"); ok {
		t.Error("unexpected hit for a different id")
	}
}

func TestMemoryCache_Expires(t *testing.T) {
	c := NewMemoryCache(10*time.Millisecond, time.Minute)
	c.Set("Q64", &model.EntityDetail{ID: "Q64"})

	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get("Q64"); ok {
		t.Error("expected entry to expire")
	}
}

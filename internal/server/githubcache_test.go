package server

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/runghost/runghost/pkg/integrations/github"
	"github.com/runghost/runghost/pkg/store"
)

// countingGitHub counts live calls per method.
type countingGitHub struct {
	users atomic.Int64
	repos atomic.Int64
}

func (c *countingGitHub) User(_ context.Context, login string) (*github.User, error) {
	c.users.Add(1)
	return &github.User{Login: login, Followers: 42}, nil
}

func (c *countingGitHub) Repos(_ context.Context, login string) ([]github.Repo, error) {
	c.repos.Add(1)
	return []github.Repo{{Name: "app"}}, nil
}

func (c *countingGitHub) Issues(context.Context, string, string) ([]github.Issue, error) {
	return nil, nil
}

func (c *countingGitHub) Releases(context.Context, string, string) ([]github.Release, error) {
	return nil, nil
}

func TestCachedGitHub_ReusesFreshEntries(t *testing.T) {
	inner := &countingGitHub{}
	gh := NewCachedGitHub(inner, store.NewMemory(), time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		u, err := gh.User(ctx, "acme-dev")
		if err != nil {
			t.Fatalf("User() failed: %v", err)
		}
		if u.Login != "acme-dev" || u.Followers != 42 {
			t.Errorf("user = %+v", u)
		}
	}
	if got := inner.users.Load(); got != 1 {
		t.Errorf("live calls = %d, want 1", got)
	}
}

func TestCachedGitHub_ExpiredEntryRefetches(t *testing.T) {
	inner := &countingGitHub{}
	st := store.NewMemory()
	gh := NewCachedGitHub(inner, st, time.Nanosecond)
	ctx := context.Background()

	if _, err := gh.Repos(ctx, "acme-dev"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)
	if _, err := gh.Repos(ctx, "acme-dev"); err != nil {
		t.Fatal(err)
	}
	if got := inner.repos.Load(); got != 2 {
		t.Errorf("live calls = %d, want refetch after expiry", got)
	}
}

func TestCachedGitHub_KeysAreScoped(t *testing.T) {
	inner := &countingGitHub{}
	st := store.NewMemory()
	gh := NewCachedGitHub(inner, st, time.Minute)
	ctx := context.Background()

	if _, err := gh.User(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := gh.User(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	if got := inner.users.Load(); got != 2 {
		t.Errorf("live calls = %d, want one per login", got)
	}
	if _, ok, _ := st.Get(ctx, "github:user:a"); !ok {
		t.Error("expected github:user:a entry")
	}
}

package media

import (
	"context"
	"errors"
	"testing"
)

type fakeStrategy struct {
	desc    Descriptor
	calls   int
	attempt func(ctx context.Context, req Request) (Artifact, error)
}

func (f *fakeStrategy) Descriptor() Descriptor { return f.desc }

func (f *fakeStrategy) Attempt(ctx context.Context, req Request) (Artifact, error) {
	f.calls++
	return f.attempt(ctx, req)
}

func videoStrategy(name string, priority int, attempt func(ctx context.Context, req Request) (Artifact, error)) *fakeStrategy {
	return &fakeStrategy{
		desc: Descriptor{
			Name:         name,
			Platforms:    []Platform{PlatformYouTube, PlatformTikTok, PlatformInstagram},
			ContentTypes: []ContentType{ContentVideo},
			Priority:     priority,
		},
		attempt: attempt,
	}
}

func succeedWith(path string) func(ctx context.Context, req Request) (Artifact, error) {
	return func(ctx context.Context, req Request) (Artifact, error) {
		return Artifact{LocalPath: path}, nil
	}
}

func failWith(err error) func(ctx context.Context, req Request) (Artifact, error) {
	return func(ctx context.Context, req Request) (Artifact, error) {
		return Artifact{}, err
	}
}

func TestChainShortCircuitsOnFirstSuccess(t *testing.T) {
	t.Parallel()

	high := videoStrategy("high", 10, succeedWith("/tmp/a.mp4"))
	low := videoStrategy("low", 1, succeedWith("/tmp/b.mp4"))
	chain := NewChain(nil, NewRegistry(low, high))

	artifact, err := chain.Run(context.Background(), Request{
		URL: "https://youtube.com/watch?v=x", Platform: PlatformYouTube, ContentType: ContentVideo,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if artifact.Strategy != "high" {
		t.Fatalf("strategy = %q, want %q", artifact.Strategy, "high")
	}
	if high.calls != 1 || low.calls != 0 {
		t.Fatalf("calls high=%d low=%d, want 1 and 0", high.calls, low.calls)
	}
	if artifact.Platform != PlatformYouTube || artifact.ContentType != ContentVideo {
		t.Fatalf("artifact metadata not stamped: %+v", artifact)
	}
}

func TestChainFallsThroughToNextStrategy(t *testing.T) {
	t.Parallel()

	first := videoStrategy("first", 10, failWith(Errorf(KindNetwork, "down")))
	second := videoStrategy("second", 5, succeedWith("/tmp/out.mp4"))
	chain := NewChain(nil, NewRegistry(first, second))

	artifact, err := chain.Run(context.Background(), Request{
		Platform: PlatformTikTok, ContentType: ContentVideo,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if artifact.Strategy != "second" {
		t.Fatalf("strategy = %q, want %q", artifact.Strategy, "second")
	}
	if first.calls != 1 || second.calls != 1 {
		t.Fatalf("calls first=%d second=%d, want 1 and 1", first.calls, second.calls)
	}
}

func TestChainEmptyCandidatesIsUnsupported(t *testing.T) {
	t.Parallel()

	probe := videoStrategy("probe", 1, succeedWith("/tmp/n.mp4"))
	chain := NewChain(nil, NewRegistry(probe))

	_, err := chain.Run(context.Background(), Request{
		Platform: PlatformYouTube, ContentType: ContentImage,
	})
	if KindOf(err) != KindUnsupported {
		t.Fatalf("kind = %q, want %q", KindOf(err), KindUnsupported)
	}
	if probe.calls != 0 {
		t.Fatalf("no strategy should run for an unsupported pair, got %d calls", probe.calls)
	}
}

func TestChainAggregatesAllFailures(t *testing.T) {
	t.Parallel()

	a := videoStrategy("a", 3, failWith(Errorf(KindTimeout, "slow")))
	b := videoStrategy("b", 2, failWith(RemoteRejected("error.api.fetch")))
	c := videoStrategy("c", 1, failWith(errors.New("plain failure")))
	chain := NewChain(nil, NewRegistry(a, b, c))

	_, err := chain.Run(context.Background(), Request{
		Platform: PlatformInstagram, ContentType: ContentVideo,
	})

	var agg *Error
	if !errors.As(err, &agg) || agg.Kind != KindAllFailed {
		t.Fatalf("expected an aggregate failure, got %v", err)
	}
	if len(agg.Attempts) != 3 {
		t.Fatalf("attempts = %d, want 3", len(agg.Attempts))
	}
	wantStrategies := []string{"a", "b", "c"}
	wantKinds := []Kind{KindTimeout, KindRemoteRejected, KindNetwork}
	for i, attempt := range agg.Attempts {
		if attempt.Strategy != wantStrategies[i] {
			t.Fatalf("attempt %d strategy = %q, want %q", i, attempt.Strategy, wantStrategies[i])
		}
		if attempt.Kind != wantKinds[i] {
			t.Fatalf("attempt %d kind = %q, want %q", i, attempt.Kind, wantKinds[i])
		}
	}
}

func TestChainStopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	first := videoStrategy("first", 2, func(ctx context.Context, req Request) (Artifact, error) {
		cancel()
		return Artifact{}, Errorf(KindNetwork, "down")
	})
	second := videoStrategy("second", 1, succeedWith("/tmp/late.mp4"))
	chain := NewChain(nil, NewRegistry(first, second))

	_, err := chain.Run(ctx, Request{Platform: PlatformYouTube, ContentType: ContentVideo})
	if KindOf(err) != KindAllFailed {
		t.Fatalf("kind = %q, want %q", KindOf(err), KindAllFailed)
	}
	if second.calls != 0 {
		t.Fatal("no further strategy should run once the budget is gone")
	}
}

func TestRegistryResolveOrdersByPriority(t *testing.T) {
	t.Parallel()

	low := videoStrategy("low", 1, nil)
	mid := videoStrategy("mid", 5, nil)
	highA := videoStrategy("high-a", 9, nil)
	highB := videoStrategy("high-b", 9, nil)
	reg := NewRegistry(low, highA, mid, highB)

	resolved := reg.Resolve(PlatformYouTube, ContentVideo)
	got := make([]string, 0, len(resolved))
	for _, s := range resolved {
		got = append(got, s.Descriptor().Name)
	}
	want := []string{"high-a", "high-b", "mid", "low"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

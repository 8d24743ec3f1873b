package hooks

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pagegen/internal/errors"
)

type importEntry struct {
	Name string
	As   string
	From string
}

var extendImports = Hook[*[]importEntry]{Name: "autoImports:extend"}

func TestSequentialCallbacksAppendInRegistrationOrder(t *testing.T) {
	r := NewRegistry(nil)

	On(r, extendImports, func(_ context.Context, list *[]importEntry) error {
		*list = append(*list, importEntry{Name: "useRouter", As: "useRouter", From: "composables"})
		return nil
	})
	On(r, extendImports, func(_ context.Context, list *[]importEntry) error {
		*list = append(*list, importEntry{Name: "useRoute", As: "useRoute", From: "composables"})
		return nil
	})

	list := []importEntry{{Name: "ref", As: "ref", From: "vue"}}
	require.NoError(t, Call(context.Background(), r, extendImports, &list))

	require.Len(t, list, 3)
	assert.Equal(t, "ref", list[0].Name)
	assert.Equal(t, "useRouter", list[1].Name)
	assert.Equal(t, "useRoute", list[2].Name)
}

type shell struct{ Main string }

func TestLastWriterInRegistrationOrderWins(t *testing.T) {
	r := NewRegistry(nil)
	resolve := Hook[*shell]{Name: "app:resolve"}

	var observed []string
	On(r, resolve, func(_ context.Context, s *shell) error {
		observed = append(observed, s.Main)
		s.Main = "first.vue"
		return nil
	})
	On(r, resolve, func(_ context.Context, s *shell) error {
		observed = append(observed, s.Main)
		s.Main = "second.vue"
		return nil
	})

	s := &shell{Main: "welcome.vue"}
	require.NoError(t, Call(context.Background(), r, resolve, s))

	assert.Equal(t, []string{"welcome.vue", "first.vue"}, observed)
	assert.Equal(t, "second.vue", s.Main)
}

func TestSequentialErrorAbortsRemainingCallbacks(t *testing.T) {
	r := NewRegistry(nil)
	var calls []int

	r.Register("pages:extend", func(context.Context, any) error {
		calls = append(calls, 0)
		return nil
	})
	r.Register("pages:extend", func(context.Context, any) error {
		calls = append(calls, 1)
		return fmt.Errorf("cannot extend")
	})
	r.Register("pages:extend", func(context.Context, any) error {
		calls = append(calls, 2)
		return nil
	})

	err := r.Fire(context.Background(), "pages:extend", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrHookCallback))
	assert.Contains(t, err.Error(), "#1")
	assert.Equal(t, []int{0, 1}, calls)

	// Another hook is unaffected by the failure above.
	ran := false
	r.Register("prepare:types", func(context.Context, any) error {
		ran = true
		return nil
	})
	require.NoError(t, r.Fire(context.Background(), "prepare:types", nil))
	assert.True(t, ran)
}

func TestPanicBecomesHookCallbackError(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("builder:generateApp", func(context.Context, any) error {
		panic("kaboom")
	})

	err := r.Fire(context.Background(), "builder:generateApp", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrHookCallback))
	assert.Contains(t, err.Error(), "kaboom")
}

func TestParallelHookAwaitsAllCallbacks(t *testing.T) {
	r := NewRegistry(nil)
	watch := Hook[string]{Name: "builder:watch", Mode: Parallel}

	var count atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		On(r, watch, func(_ context.Context, path string) error {
			wg.Done()
			// Every callback must be running at the same time for this to return.
			wg.Wait()
			count.Add(1)
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- Call(context.Background(), r, watch, "pages/a.vue") }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("parallel callbacks did not run concurrently")
	}
	assert.Equal(t, int32(3), count.Load())
}

func TestRegistrationOrdinals(t *testing.T) {
	r := NewRegistry(nil)
	a := r.Register("x", func(context.Context, any) error { return nil })
	b := r.Register("x", func(context.Context, any) error { return nil })
	c := r.Register("y", func(context.Context, any) error { return nil })

	assert.Equal(t, 0, a.Ordinal)
	assert.Equal(t, 1, b.Ordinal)
	assert.Equal(t, 0, c.Ordinal)
	assert.Len(t, r.Registrations("x"), 2)
	assert.Empty(t, r.Registrations("missing"))
}

func TestTypedPayloadMismatch(t *testing.T) {
	r := NewRegistry(nil)
	On(r, Hook[*shell]{Name: "app:resolve"}, func(context.Context, *shell) error { return nil })

	err := r.Fire(context.Background(), "app:resolve", "not a shell")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payload has type string")
}

package deploy

import "testing"

func TestGuard_AcquireRelease(t *testing.T) {
	g := NewGuard()

	if !g.TryAcquire("shop/prod/web") {
		t.Fatal("first acquire refused")
	}
	if g.TryAcquire("shop/prod/web") {
		t.Error("second acquire of held key succeeded")
	}
	if !g.TryAcquire("shop/prod/worker") {
		t.Error("acquire of a different key refused")
	}

	g.Release("shop/prod/web")
	if !g.TryAcquire("shop/prod/web") {
		t.Error("re-acquire after release refused")
	}
}

func TestGuard_ReleaseWithoutAcquire(t *testing.T) {
	g := NewGuard()

	// Must not panic for keys that are not held, whether never
	// acquired or already released.
	g.Release("shop/prod/web")

	if !g.TryAcquire("shop/prod/web") {
		t.Fatal("acquire refused")
	}
	g.Release("shop/prod/web")
	g.Release("shop/prod/web")

	if !g.TryAcquire("shop/prod/web") {
		t.Error("re-acquire after double release refused")
	}
}

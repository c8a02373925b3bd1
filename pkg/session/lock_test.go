package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/birocrat/pkg/domain"
)

type nopStore struct{}

func (nopStore) Save(context.Context, string, *domain.Snapshot) error { return nil }
func (nopStore) Load(context.Context, string) (*domain.Snapshot, error) {
	return &domain.Snapshot{}, nil
}
func (nopStore) Delete(context.Context, string) error   { return nil }
func (nopStore) List(context.Context) ([]string, error) { return nil, nil }

func TestManager_LockEntriesDoNotLeak(t *testing.T) {
	mgr := NewManager(nopStore{})
	ctx := context.Background()

	for i := 0; i < 10000; i++ {
		sid := fmt.Sprintf("session-%d", i)
		_ = mgr.Save(ctx, sid, &domain.Snapshot{})
		_ = mgr.Delete(ctx, sid)
	}

	if n := len(mgr.locks); n != 0 {
		t.Errorf("%d lock entries remaining after all sessions released", n)
	}
}

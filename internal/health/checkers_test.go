package health

import (
	"context"
	"testing"

	"github.com/Naqued/speechlink/internal/kvstore"
	ltsmock "github.com/Naqued/speechlink/pkg/provider/localtts/mock"
)

func TestKVStoreChecker_MissingKeyIsHealthy(t *testing.T) {
	c := KVStoreChecker(kvstore.NewMemStore())
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("check on empty store should pass, got %v", err)
	}
}

func TestLocalEngineChecker(t *testing.T) {
	if err := LocalEngineChecker(&ltsmock.Engine{}).Check(context.Background()); err != nil {
		t.Errorf("available engine should pass, got %v", err)
	}
	if err := LocalEngineChecker(&ltsmock.Engine{Unavailable: true}).Check(context.Background()); err == nil {
		t.Error("unavailable engine should fail the check")
	}
	if err := LocalEngineChecker(nil).Check(context.Background()); err == nil {
		t.Error("nil engine should fail the check")
	}
}

package memory_test

import (
	"testing"

	"github.com/warp/workforce-billing/billing"
	"github.com/warp/workforce-billing/store/memory"
	"github.com/warp/workforce-billing/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) billing.TxStore { return memory.New() })
}

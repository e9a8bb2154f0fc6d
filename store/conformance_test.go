package store_test

import (
	"testing"

	"go.uber.org/zap"

	"github.com/cchangelabs/openepd/store"
	"github.com/cchangelabs/openepd/store/storetest"
)

func TestMemoryConformance(t *testing.T) {
	storetest.Conformance(t, store.NewMemory(), "")
}

func TestFileSystemConformance(t *testing.T) {
	storetest.Conformance(t, store.NewFileSystem(t.TempDir(), zap.NewNop()), "")
}

func TestPrefixConformance(t *testing.T) {
	storetest.Conformance(t, store.NewWithPrefix(store.NewMemory(), "ns-"), "")
}

func TestMemoryStress(t *testing.T) {
	if testing.Short() {
		t.Skip("stress test")
	}
	storetest.Stress(t, store.NewMemory(), 20*1000*1000)
}

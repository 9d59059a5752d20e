package syncbuffer

import (
	"fmt"
	"sync"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

func TestSyncBuffer(t *testing.T) {
	var b SyncBuffer

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fmt.Fprintf(&b, "line %d\n", i)
			assert.Check(t, err)
		}()
	}
	wg.Wait()

	assert.Check(t, cmp.Len(b.Lines(), 10))
	assert.Check(t, cmp.DeepEqual([]string{"line 7"}, b.Matching("7")))
}

func TestSyncBuffer_PartialLine(t *testing.T) {
	var b SyncBuffer
	assert.Check(t, cmp.Len(b.Lines(), 0))

	_, _ = b.Write([]byte("first\nsecond"))
	assert.Check(t, cmp.DeepEqual([]string{"first"}, b.Lines()))
	assert.Check(t, cmp.Equal("first\nsecond", b.String()))
}

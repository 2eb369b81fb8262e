package redis

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Aleph-Alpha/gravity/v1/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testObserver struct {
	mu         sync.Mutex
	operations []observability.OperationContext
}

func (t *testObserver) ObserveOperation(ctx observability.OperationContext) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.operations = append(t.operations, ctx)
}

func TestObserveOperationNilObserverNoPanic(t *testing.T) {
	r := &RedisClient{}
	assert.NotPanics(t, func() {
		r.observeOperation("get", "k", time.Now(), nil, 0, nil)
	})
}

func TestObserveOperation(t *testing.T) {
	obs := &testObserver{}
	r := &RedisClient{observer: obs}

	r.observeOperation("set", "my-key", time.Now(), nil, 100, map[string]interface{}{"ttl": "60s"})
	r.observeOperation("get", "missing", time.Now(), Nil, 0, nil)
	r.observeOperation("get", "broken", time.Now(), errors.New("conn reset"), 0, nil)

	require.Len(t, obs.operations, 3)
	assert.Equal(t, "redis", obs.operations[0].Component)
	assert.Equal(t, "set", obs.operations[0].Operation)
	assert.Equal(t, "my-key", obs.operations[0].Resource)
	assert.Equal(t, int64(100), obs.operations[0].Size)

	assert.NoError(t, obs.operations[1].Error)
	assert.Equal(t, true, obs.operations[1].Metadata["miss"])

	assert.Error(t, obs.operations[2].Error)
}

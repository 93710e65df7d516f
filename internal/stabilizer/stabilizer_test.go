package stabilizer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDepthParams(t *testing.T) {
	seed := DepthParams(0)
	assert.Equal(t, Params{QuietMS: 6000, TimeoutMS: 12000, MinSignatureIntervalMS: 400}, seed)

	deeper := DepthParams(1)
	assert.Equal(t, Params{QuietMS: 4000, TimeoutMS: 8000, MinSignatureIntervalMS: 400}, deeper)
}

func TestConvergeReturnsOnQuietWindow(t *testing.T) {
	p := Params{QuietMS: 50, TimeoutMS: 2000, MinSignatureIntervalMS: 10}

	start := time.Now()
	err := converge(context.Background(), p, func() (string, error) {
		return "stable", nil
	})
	elapsed := time.Since(start)

	assert.NoError(t, err)
	assert.Less(t, elapsed, 500*time.Millisecond, "should return well before timeout once quiet")
}

func TestConvergeTimesOutAsSuccessOnPerpetualChange(t *testing.T) {
	p := Params{QuietMS: 10000, TimeoutMS: 150, MinSignatureIntervalMS: 10}

	var counter int64
	err := converge(context.Background(), p, func() (string, error) {
		n := atomic.AddInt64(&counter, 1)
		return time.Duration(n).String(), nil // always different
	})

	assert.NoError(t, err, "timeout must be treated as success, never an error")
}

func TestConvergeReturnsNilWhenReaderAlwaysErrors(t *testing.T) {
	p := Params{QuietMS: 10, TimeoutMS: 50, MinSignatureIntervalMS: 5}
	err := converge(context.Background(), p, func() (string, error) {
		return "", assertErr
	})
	assert.NoError(t, err)
}

func TestConvergeHonoursContextCancellation(t *testing.T) {
	p := Params{QuietMS: 10000, TimeoutMS: 10000, MinSignatureIntervalMS: 5}
	ctx, cancel := context.WithCancel(context.Background())

	var counter int64
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := converge(ctx, p, func() (string, error) {
		n := atomic.AddInt64(&counter, 1)
		return time.Duration(n).String(), nil
	})
	elapsed := time.Since(start)

	assert.NoError(t, err)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

var assertErr = errTest("eval failed")

type errTest string

func (e errTest) Error() string { return string(e) }

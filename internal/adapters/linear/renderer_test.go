package linear_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/wasmblock/internal/adapters/linear"
)

func TestRenderer_Lifecycle(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr)
	require.NoError(t, r.Start(context.Background()))

	r.OnPlanEmit([]string{"add", "greet"})
	assert.Contains(t, stderr.String(), "Building 2 block(s): add, greet\n")

	start := time.Now()
	r.OnBlockStart("span1", "", "add", start)
	assert.Contains(t, stderr.String(), "[add] Building...\n")

	r.OnBlockLog("span1", []byte("Compiling add v0.1.0\nFinished"))
	r.OnBlockLog("span1", []byte(" release\n"))
	assert.Equal(t, "[add] Compiling add v0.1.0\n[add] Finished release\n", stdout.String())

	r.OnBlockComplete("span1", start.Add(1500*time.Millisecond), false, nil)
	assert.Contains(t, stderr.String(), "[add] ✓ Built in 1.5s\n")

	require.NoError(t, r.Stop())
	require.NoError(t, r.Wait())
}

func TestRenderer_CachedAndFailed(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr)

	start := time.Now()
	r.OnBlockStart("a", "", "add", start)
	r.OnBlockStart("b", "", "greet", start)

	r.OnBlockComplete("a", start, true, nil)
	r.OnBlockLog("b", []byte("error[E0425]: cannot find value `x`"))
	r.OnBlockComplete("b", start.Add(time.Second), false, errors.New("build failure"))

	assert.Contains(t, stderr.String(), "[add] ↺ Restored from cache\n")
	assert.Contains(t, stderr.String(), "[greet] ✗ Failed after 1s: build failure\n")
	assert.Equal(t, "[greet] error[E0425]: cannot find value `x`\n", stdout.String())
}

func TestRenderer_UnknownSpan(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr)

	r.OnBlockLog("missing", []byte("ignored\n"))
	r.OnBlockComplete("missing", time.Now(), false, nil)

	assert.Empty(t, stdout.String())
	assert.Empty(t, stderr.String())
}

func TestRenderer_StopFlushesPartialLines(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr)

	r.OnBlockStart("span1", "", "zig", time.Now())
	r.OnBlockLog("span1", []byte("no newline"))
	assert.Empty(t, stdout.String())

	require.NoError(t, r.Stop())
	assert.Equal(t, "[zig] no newline\n", stdout.String())
}

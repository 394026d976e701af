package ir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskKey_Deterministic(t *testing.T) {
	k1, err := TaskKey("graph-1", "chunk", 3)
	require.NoError(t, err)
	k2, err := TaskKey("graph-1", "chunk", 3)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.True(t, strings.HasPrefix(k1, "chunk-"))
	assert.Len(t, k1, len("chunk-")+12)
}

func TestTaskKey_DistinctInputs(t *testing.T) {
	base := MustTaskKey("graph-1", "chunk", 1)
	assert.NotEqual(t, base, MustTaskKey("graph-2", "chunk", 1))
	assert.NotEqual(t, base, MustTaskKey("graph-1", "chunk", 2))
	assert.NotEqual(t, base, MustTaskKey("graph-1", "merge", 1))
}

func TestDigest_DomainSeparation(t *testing.T) {
	obj := IRObject{"a": IRInt(1)}
	d1, err := Digest(DomainDataset, obj)
	require.NoError(t, err)
	d2, err := Digest(DomainTask, obj)
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2)
	assert.Len(t, d1, 64)
}

func TestDispatchSpec_Defaults(t *testing.T) {
	var d DispatchSpec
	assert.True(t, d.MergeEnabled())
	assert.True(t, d.EagerEnabled())

	off := false
	d.Merge = &off
	d.Eager = &off
	assert.False(t, d.MergeEnabled())
	assert.False(t, d.EagerEnabled())
}

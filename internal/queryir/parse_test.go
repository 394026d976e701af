package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/geochunk/internal/ir"
)

func TestParseFilter(t *testing.T) {
	got, err := ParseFilter([]string{"kind=failed", " task_seq = 2 ", "task_name=chunk-1"})
	require.NoError(t, err)

	want := And{Predicates: []Predicate{
		Equals{Field: FieldKind, Value: ir.IRString("failed")},
		Equals{Field: FieldTaskSeq, Value: ir.IRInt(2)},
		Equals{Field: FieldTaskName, Value: ir.IRString("chunk-1")},
	}}
	assert.Equal(t, want, got)
	assert.NoError(t, Validate(Select{From: Events, Filter: got}))
}

func TestParseFilter_Empty(t *testing.T) {
	got, err := ParseFilter(nil)
	require.NoError(t, err)
	assert.Empty(t, got.Predicates)
}

func TestParseFilter_ValueMayContainEquals(t *testing.T) {
	got, err := ParseFilter([]string{"task_key=a=b"})
	require.NoError(t, err)
	require.Len(t, got.Predicates, 1)
	assert.Equal(t, Equals{Field: FieldTaskKey, Value: ir.IRString("a=b")}, got.Predicates[0])
}

func TestParseFilter_Errors(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"kind", `filter "kind": want field=value`},
		{"=failed", `filter "=failed": want field=value`},
		{"status=ok", `filter "status=ok": unknown field "status"`},
		{"seq=first", `filter "seq=first": seq wants an integer`},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := ParseFilter([]string{tt.expr})
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

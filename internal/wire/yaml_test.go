package wire

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/harpoon/internal/fragment"
)

func TestDecodeYAMLFragments(t *testing.T) {
	t.Parallel()

	doc := `
- path: a.py
  idx: 0
  lines: "1-2"
  body: |
    def f():
        return 1
- path: notes.txt
  idx: 7
  lines: ""
  body: x
`
	in, err := DecodeYAMLFragments([]byte(doc))
	require.NoError(t, err)
	require.Equal(t, []fragment.Input{
		{Path: "a.py", Idx: 0, Lines: "1-2", Body: "def f():\n    return 1\n"},
		{Path: "notes.txt", Idx: 7, Lines: "", Body: "x"},
	}, in)
}

func TestDecodeYAMLFragmentsWrapped(t *testing.T) {
	t.Parallel()

	in, err := DecodeYAMLFragments([]byte("fragments:\n  - {path: a, idx: 1, lines: '', body: ''}\n"))
	require.NoError(t, err)
	require.Equal(t, []fragment.Input{{Path: "a", Idx: 1}}, in)
}

func TestDecodeYAMLFragmentsShapeErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input string
		field string
	}{
		{"empty document", ``, "$"},
		{"scalar root", `hello`, "$"},
		{"mapping without fragments", `other: []`, "fragments"},
		{"item not mapping", `- 3`, "[0]"},
		{"numeric path", `- {path: 12, idx: 0, lines: '', body: ''}`, "[0].path"},
		{"missing body", `- {path: a, idx: 0, lines: ''}`, "[0].body"},
		{"null body", `- {path: a, idx: 0, lines: '', body: ~}`, "[0].body"},
		{"string idx", `- {path: a, idx: "0", lines: '', body: ''}`, "[0].idx"},
		{"negative idx", `- {path: a, idx: -4, lines: '', body: ''}`, "[0].idx"},
		{"wrapped bad item", "fragments:\n  - {path: a, lines: '', body: ''}\n", "fragments[0].idx"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := DecodeYAMLFragments([]byte(tc.input))
			require.ErrorIs(t, err, ErrShape)
			var shape *ShapeError
			require.True(t, errors.As(err, &shape))
			assert.Equal(t, tc.field, shape.Field)
		})
	}
}

package metadata

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssemblerStrictNesting(t *testing.T) {
	tests := []struct {
		name    string
		paths   []string
		wantErr bool
	}{
		{name: "root to leaf", paths: []string{"/A", "/A/B", "/A/B/C"}},
		{name: "revisit same path", paths: []string{"/A", "/A/B", "/A/B/"}},
		{name: "skip a level", paths: []string{"/A", "/A/B/C"}},
		{name: "child then parent", paths: []string{"/A/B", "/A"}, wantErr: true},
		{name: "sibling", paths: []string{"/A/B", "/A/C"}, wantErr: true},
		{name: "shared prefix is not nesting", paths: []string{"/A/B", "/A/BC"}, wantErr: true},
		{name: "relative paths are made absolute", paths: []string{"A", "A/B"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			a := NewAssembler("doc", ModeStrict)
			var err error
			for _, p := range tt.paths {
				if err = a.AppendNode(p); err != nil {
					break
				}
			}
			if !tt.wantErr {
				require.NoError(err)
				return
			}
			var orderErr *PathOrderingError
			require.True(errors.As(err, &orderErr))
		})
	}
}

func TestAssemblerParentAfterChild(t *testing.T) {
	t.Run("strict", func(t *testing.T) {
		require := require.New(t)
		a := NewAssembler("doc", ModeStrict)
		require.NoError(a.AppendNode("/A/B"))

		err := a.AppendNode("/A")
		var orderErr *PathOrderingError
		require.True(errors.As(err, &orderErr))
		require.Equal("/A/B", orderErr.Previous)
		require.Equal("/A", orderErr.Path)
		require.Equal(1, a.Len())
	})

	t.Run("legacy", func(t *testing.T) {
		require := require.New(t)
		a := NewAssembler("doc", ModeLegacy)
		require.NoError(a.AppendNode("/A/B"))
		require.NoError(a.AppendNode("/A"))

		tree, err := a.Finalize()
		require.NoError(err)
		require.Equal([]string{"/A/B", "/A"}, tree.Paths())
	})
}

func TestAssemblerFinalize(t *testing.T) {
	require := require.New(t)
	a := NewAssembler("doc", ModeStrict)
	require.NoError(a.AppendNode("/archive/P1", NewEntry("project", "P1")))
	require.NoError(a.AppendNode("/archive/P1/S1", NewEntry("sample", "S1"), MissingEntry("tissue")))
	require.NoError(a.AppendNode("/archive/P1/S1", NewEntry("run", "1")))
	require.NoError(a.SetObject("/archive/P1/S1/reads.fastq.gz", NewEntry("format", "fastq")))
	require.NoError(a.AddObjectEntries(NewEntry("paired", "true")))

	tree, err := a.Finalize()
	require.NoError(err)
	require.True(a.Closed())
	require.Equal("doc", tree.Tenant)
	require.Equal("/archive/P1/S1/reads.fastq.gz", tree.Destination)
	require.Len(tree.Nodes, 3)
	require.Equal([]string{"/archive/P1", "/archive/P1/S1"}, tree.Paths())
	require.True(tree.Nodes[1].Entries[1].Missing())

	leaf, ok := tree.Leaf()
	require.True(ok)
	require.Equal("/archive/P1/S1", leaf.Path)
	v, ok := tree.ObjectValue("paired")
	require.True(ok)
	require.Equal("true", v)

	for _, op := range []func() error{
		func() error { return a.AppendNode("/archive/P1/S1/x") },
		func() error { return a.SetObject("/archive/P1/S1/y") },
		func() error { return a.AddObjectEntries(NewEntry("k", "v")) },
		func() error { _, err := a.Finalize(); return err },
	} {
		err := op()
		require.ErrorIs(err, ErrAssemblerClosed)
		var closedErr *AssemblerClosedError
		require.True(errors.As(err, &closedErr))
	}
}

func TestAssemblerTreeIsDetached(t *testing.T) {
	require := require.New(t)
	entries := []Entry{NewEntry("organism", "Human")}
	a := NewAssembler("doc", ModeStrict)
	object := []Entry{NewEntry("run", "run1")}
	require.NoError(a.AppendNode("/A", entries...))
	require.NoError(a.SetObject("/A/f.txt"))
	require.NoError(a.AddObjectEntries(object...))
	*entries[0].Value = "Mouse"
	*object[0].Value = "run2"

	tree, err := a.Finalize()
	require.NoError(err)
	v, ok := tree.Nodes[0].Get("organism")
	require.True(ok)
	require.Equal("Human", v)
	v, ok = tree.ObjectValue("run")
	require.True(ok)
	require.Equal("run1", v)
}

func TestAssemblerObjectMustBeNested(t *testing.T) {
	require := require.New(t)
	a := NewAssembler("doc", ModeStrict)
	require.NoError(a.AppendNode("/A/B"))

	var orderErr *PathOrderingError
	require.True(errors.As(a.SetObject("/A/C/file.txt"), &orderErr))
	require.NoError(a.SetObject("/A/B/file.txt"))
	require.ErrorIs(a.AppendNode(" "), ErrEmptyPath)
}

func TestDropMissing(t *testing.T) {
	require := require.New(t)
	kept := DropMissing([]Entry{NewEntry("a", "1"), MissingEntry("b"), NewEntry("c", "")})
	require.Equal([]string{"a=1", "c="}, []string{kept[0].String(), kept[1].String()})
	require.Equal("b=<missing>", MissingEntry("b").String())
}

package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/authzed/connector-archive/pkg/config"
	"github.com/authzed/connector-archive/pkg/mapping"
	"github.com/authzed/connector-archive/pkg/metadata"
	"github.com/authzed/connector-archive/pkg/source"
	"github.com/authzed/connector-archive/pkg/streams"
)

const tenants = `
tenants:
- name: lab
  root: /archive/lab
  lookup:
    source: samples.tsv
    key_columns: [sample]
  levels:
  - collection_type: Sample
    name:
      search: file
      lookup: sample
    templates: [required]
    attributes:
    - name: tissue
      search: file
      lookup: tissue
      required: true
`

const mappings = `
attributes:
- tenant: lab
  collection_type: Sample_Required
  collection_name: S1
  entries:
  - name: organism
    value: Human
`

func newOptions(t *testing.T) (*Options, *bytes.Buffer, *bytes.Buffer) {
	require := require.New(t)
	c, err := config.Parse([]byte(tenants))
	require.NoError(err)
	store, err := mapping.ParseStaticStore([]byte(mappings))
	require.NoError(err)

	s, in, out, _ := streams.NewTestIO()
	o := NewOptions(s)
	o.Config = c
	o.Store = store
	o.Fetcher = source.NewMemory(map[string][]byte{
		"/incoming/run1/samples.tsv": []byte("sample\ttissue\nS1\tLiver\n"),
	})
	return o, in, out
}

func TestIngestFromStdin(t *testing.T) {
	require := require.New(t)
	o, in, out := newOptions(t)
	in.WriteString("# run 1\nlab\t/incoming/run1/sample_S1_R1.fastq\n\nlab\t/incoming/run1/sample_S9_R1.fastq\n")

	require.NoError(o.Complete(context.Background(), nil))
	require.NoError(o.Run(context.Background()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(lines, 1)

	var tree metadata.Tree
	require.NoError(json.Unmarshal([]byte(lines[0]), &tree))
	require.Equal("/archive/lab/S1/sample_S1_R1.fastq", tree.Destination)
	require.Len(tree.Nodes, 1)
	got := make([]string, 0)
	for _, e := range tree.Nodes[0].Entries {
		got = append(got, e.String())
	}
	require.Equal([]string{"tissue=Liver", "organism=Human"}, got)
}

func TestIngestFromFileList(t *testing.T) {
	require := require.New(t)
	o, _, out := newOptions(t)
	o.Tenant = "lab"
	o.DryRun = true

	list := filepath.Join(t.TempDir(), "files.txt")
	require.NoError(os.WriteFile(list, []byte("/incoming/run1/sample_S1_R1.fastq\n"), 0o600))

	require.NoError(o.Complete(context.Background(), []string{list}))
	files, err := o.readFiles()
	require.NoError(err)
	require.Len(files, 1)
	require.Equal("lab", files[0].Tenant)
	require.NoError(o.Run(context.Background()))
	require.Empty(out.String())
}

func TestIngestRejectsBadFileList(t *testing.T) {
	o, in, _ := newOptions(t)
	in.WriteString("/incoming/run1/a.fastq\n")

	require.NoError(t, o.Complete(context.Background(), nil))
	require.ErrorContains(t, o.Run(context.Background()), "file list line 1")
}

func TestIngestUnknownOutput(t *testing.T) {
	o, _, _ := newOptions(t)
	o.Output = "carrier-pigeon"
	require.ErrorContains(t, o.Complete(context.Background(), nil), "unknown output")
}

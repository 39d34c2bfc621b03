package options

import (
	"fmt"
	"io"

	"github.com/authzed/connector-archive/pkg/write"
)

const (
	OutputJSON    = "json"
	OutputSpiceDB = "spicedb"
	OutputNone    = "none"
)

// OutputOptions selects where resolved trees are registered
type OutputOptions struct {
	SpiceDBOptions

	Output    string
	DryRun    bool
	BatchSize int

	Writer write.RegistrationWriter
}

// UsesSpiceDB reports whether a SpiceDB client is needed.
func (o *OutputOptions) UsesSpiceDB() bool {
	return o.Output == OutputSpiceDB && !o.DryRun
}

// Complete builds the registration writer. Dry runs log what would be
// registered without writing it anywhere.
func (o *OutputOptions) Complete(out io.Writer) error {
	if o.Writer != nil {
		return nil
	}
	if o.DryRun {
		o.Writer = write.NewDryRunRegistrationWriter()
		return nil
	}

	var w write.RegistrationWriter
	switch o.Output {
	case "", OutputJSON:
		w = write.NewJSONRegistrationWriter(out)
	case OutputSpiceDB:
		if err := o.SpiceDBOptions.Complete(true); err != nil {
			return err
		}
		w = o.RegistrationWriter()
	case OutputNone:
		w = write.DiscardingRegistrationWriter{}
	default:
		return fmt.Errorf("unknown output %q", o.Output)
	}
	if o.BatchSize > 0 {
		w = write.NewBatchingRegistrationWriter(w, o.BatchSize)
	}
	o.Writer = w
	return nil
}

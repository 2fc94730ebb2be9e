package sheets

import (
	"context"
)

// Ports for outbound adapters.
type (
	// Table is a rectangular block of values with a header row.
	Table struct {
		Name   string
		Header []string
		Rows   [][]any
	}

	// TablePublisher replaces the contents of the named table.
	TablePublisher interface {
		PublishTable(ctx context.Context, t Table) (ref string, err error)
	}
)

// Package admin provides administrative operations on imported tables.
package admin

import (
	"context"
	"fmt"
	"time"
)

// DropTimeout is the maximum duration for one DropTables call.
const DropTimeout = 30 * time.Second

// Dropper is the part of core.Service that can remove tables.
type Dropper interface {
	DropTable(ctx context.Context, tableName string) (string, error)
}

// DropTables removes each named table in order and returns the sanitized
// names that were dropped. It stops at the first failure.
// This is a destructive operation - use with caution.
func DropTables(ctx context.Context, d Dropper, names []string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, DropTimeout)
	defer cancel()

	dropped := make([]string, 0, len(names))
	for _, name := range names {
		table, err := d.DropTable(ctx, name)
		if err != nil {
			return dropped, fmt.Errorf("drop %q: %w", name, err)
		}
		dropped = append(dropped, table)
	}
	return dropped, nil
}

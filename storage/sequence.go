package storage

import (
	"context"
	"fmt"
	"regexp"

	"github.com/syssam/curator/dialect/sql"
)

// validSequenceRe validates sequence identifiers (alphanumeric,
// underscores, dots for schema.name).
var validSequenceRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

// NextSequence allocates the next value of the named database sequence,
// formatted as "S" followed by the zero-padded 6-digit decimal
// (e.g. S000042).
func (s *Store) NextSequence(ctx context.Context, name string) (string, error) {
	if name == "" || len(name) > 128 || !validSequenceRe.MatchString(name) {
		return "", fmt.Errorf("storage: invalid sequence name %q", name)
	}
	query := fmt.Sprintf(`SELECT TO_CHAR(nextval('%s'), '"S"fm000000')`, name)
	var rows sql.Rows
	if err := s.drv.Query(ctx, query, []any{}, &rows); err != nil {
		return "", mapError(err)
	}
	value, err := sql.ScanString(&rows)
	if err != nil {
		return "", mapError(err)
	}
	return value, nil
}

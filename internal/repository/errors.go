// This file defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// orchestrator and handlers to distinguish between different failure
// scenarios. ErrDuplicate in particular marks a broken uniqueness invariant:
// the showing upsert is atomic, so a duplicate-key error surfacing anyway
// means the schema and the code disagree and an operator needs to look.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrDuplicate is returned when an insert violates a uniqueness constraint
// that the calling code believed it had already satisfied. Callers should
// treat this as fatal for the affected job and log it loudly.
var ErrDuplicate = errors.New("duplicate key")

// mysqlDuplicateEntry is the server error number for ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// isDuplicateKey reports whether err is a MySQL duplicate-entry error.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

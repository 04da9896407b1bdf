package accessscope

import (
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Predicate is a filter fragment safe to splice into a larger WHERE clause: it
// is empty or starts with " AND ", and values travel only through named
// arguments, never through the SQL text.
type Predicate struct {
	SQL  string
	Args pgx.NamedArgs
}

// Rep-code column bindings per protected entity. The scope algebra is
// identical for all of them; only the binding differs.
const (
	partnerRepColumn    = "par.codvend"
	visitRepColumn      = "vis.codvend"
	receivableRepColumn = "fin.codvend"
)

func ForPartners(s Scope) Predicate    { return forRepColumn(s, partnerRepColumn, "partner_rep") }
func ForVisits(s Scope) Predicate      { return forRepColumn(s, visitRepColumn, "visit_rep") }
func ForReceivables(s Scope) Predicate { return forRepColumn(s, receivableRepColumn, "receivable_rep") }

func forRepColumn(s Scope, column, param string) Predicate {
	if s.IsAdmin {
		return Predicate{Args: pgx.NamedArgs{}}
	}
	if s.OwnRepCode == nil {
		// Non-admin without rep linkage sees nothing.
		return Predicate{SQL: " AND 1 = 0", Args: pgx.NamedArgs{}}
	}
	if len(s.TeamRepCodes) == 0 {
		return Predicate{
			SQL:  fmt.Sprintf(" AND %s = @%s", column, param),
			Args: pgx.NamedArgs{param: *s.OwnRepCode},
		}
	}
	return Predicate{
		SQL:  fmt.Sprintf(" AND %s = ANY(@%s)", column, param),
		Args: pgx.NamedArgs{param: s.VisibleRepCodes()},
	}
}

// EnsureRepVisible is the cross-entity check for ad-hoc single-record lookups
// where a predicate cannot be cheaply applied. Skipping it opens privilege
// escalation across sales territories.
func EnsureRepVisible(s Scope, repCode int) error {
	if s.IsAdmin {
		return nil
	}
	for _, c := range s.VisibleRepCodes() {
		if c == repCode {
			return nil
		}
	}
	return &ScopeViolationError{UserID: s.UserID, RepCode: repCode}
}

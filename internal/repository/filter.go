package repository

import (
	"fmt"
	"strings"

	"vdl-backend/internal/domain"
)

// whereClause collects numbered Postgres conditions and their arguments
type whereClause struct {
	conds []string
	args  []any
}

// add appends a condition; cond contains one %d verb for the placeholder number
func (w *whereClause) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(cond, len(w.args)))
}

func (w *whereClause) addRange(column string, rng *domain.DateRange) {
	if rng == nil {
		return
	}
	w.add(column+" >= $%d", rng.Start)
	w.add(column+" <= $%d", rng.End)
}

func (w *whereClause) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

package sqlite

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"vdl-backend/internal/domain"
)

// timeLayout is fixed width so lexical order matches time order
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type scanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

// revenueToUnits converts an amount to the integer units of 10^-RevenueScale
// stored in revenue columns
func revenueToUnits(d decimal.Decimal) int64 {
	return d.Shift(domain.RevenueScale).Round(0).IntPart()
}

func revenueFromUnits(units int64) decimal.Decimal {
	return decimal.New(units, -domain.RevenueScale)
}

// where collects "?" conditions and their arguments
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, arg any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, arg)
}

func (w *where) addRange(column string, rng *domain.DateRange) {
	if rng == nil {
		return
	}
	w.add(column+" >= ?", formatTime(rng.Start))
	w.add(column+" <= ?", formatTime(rng.End))
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

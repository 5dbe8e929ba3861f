package config

import (
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrUnguardedStatusUpdate = errors.New("status update without a status condition")

// StatusGuardPlugin rejects UPDATEs that write the status column of a guarded
// table without a WHERE condition on status. Lifecycle writes must be
// compare-and-set so concurrent deliveries cannot race past each other.
//
// NOTE: Raw/Exec SQL is not inspected.
type StatusGuardPlugin struct {
	tables map[string]bool
}

func NewStatusGuardPlugin(tables ...string) *StatusGuardPlugin {
	m := make(map[string]bool, len(tables))
	for _, t := range tables {
		m[strings.ToLower(t)] = true
	}
	return &StatusGuardPlugin{tables: m}
}

func (p *StatusGuardPlugin) Name() string { return "status_guard" }

func (p *StatusGuardPlugin) Initialize(db *gorm.DB) error {
	return db.Callback().Update().Before("gorm:update").Register("status_guard:update", p.check)
}

func (p *StatusGuardPlugin) check(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	if !p.tables[strings.ToLower(db.Statement.Table)] {
		return
	}
	if !setsStatus(db.Statement.Dest) {
		return
	}
	if whereHasStatus(db.Statement.Clauses["WHERE"]) {
		return
	}
	_ = db.AddError(ErrUnguardedStatusUpdate)
}

func setsStatus(dest any) bool {
	switch v := dest.(type) {
	case map[string]interface{}:
		_, ok := v["status"]
		return ok
	case *map[string]interface{}:
		if v == nil {
			return false
		}
		_, ok := (*v)["status"]
		return ok
	default:
		return false
	}
}

func whereHasStatus(c clause.Clause) bool {
	if c.Expression == nil {
		return false
	}
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasStatus(e) {
			return true
		}
	}
	return false
}

func exprHasStatus(e clause.Expression) bool {
	switch v := e.(type) {
	case clause.Eq:
		return colIsStatus(v.Column)
	case clause.IN:
		return colIsStatus(v.Column)
	case clause.AndConditions:
		for _, x := range v.Exprs {
			if exprHasStatus(x) {
				return true
			}
		}
		return false
	case clause.Expr:
		// Best-effort for raw expressions.
		return strings.Contains(strings.ToLower(v.SQL), "status")
	default:
		return false
	}
}

func colIsStatus(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, "status")
	case clause.Column:
		return strings.EqualFold(c.Name, "status")
	default:
		return false
	}
}

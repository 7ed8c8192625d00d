package errors

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// PGDiagnostics carries the postgres-level detail behind a failed query so
// constraint violations can be logged without parsing driver messages.
type PGDiagnostics struct {
	Code       string `json:"pg_code"`
	Constraint string `json:"pg_constraint,omitempty"`
	Table      string `json:"pg_table,omitempty"`
	Column     string `json:"pg_column,omitempty"`
	Detail     string `json:"pg_detail,omitempty"`
}

// DiagnosePG reports the postgres error details buried in err's chain. It
// understands both the pgx driver used by the ORM and lib/pq errors surfaced
// by the migration tooling. The second return is false when err did not
// originate from postgres.
func DiagnosePG(err error) (PGDiagnostics, bool) {
	if err == nil {
		return PGDiagnostics{}, false
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return PGDiagnostics{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
		}, true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return PGDiagnostics{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
		}, true
	}

	return PGDiagnostics{}, false
}

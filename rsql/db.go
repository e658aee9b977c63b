package rsql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
)

// isMySQLErrDupEntry returns true if the error is a duplicate key violation.
//   - 1062: ER_DUP_ENTRY
func isMySQLErrDupEntry(err error) bool {
	return isMySQLErr(err, 1062)
}

// See https://dev.mysql.com/doc/refman/5.6/en/error-messages-server.html#error_er_dup_entry
func isMySQLErr(err error, nums ...uint16) bool {
	if err == nil {
		return false
	}

	me := new(mysql.MySQLError)
	if !errors.As(err, &me) {
		return false
	}

	for _, num := range nums {
		if me.Number == num {
			return true
		}
	}
	return false
}

func (s ctableSchema) selectQuery() string {
	return fmt.Sprintf("select %s, %s from %s where %s=?",
		s.cursorField, s.timeField, s.name, s.idField)
}

func (s ctableSchema) updateQuery() string {
	return fmt.Sprintf("update %s set %s=?, %s=now() where %s=? and %s<?",
		s.name, s.cursorField, s.timeField, s.idField, s.cursorField)
}

func (s ctableSchema) insertQuery() string {
	return fmt.Sprintf("insert into %s set %s=?, %s=?, %s=now()",
		s.name, s.idField, s.cursorField, s.timeField)
}

func (s ctableSchema) createQuery() string {
	return fmt.Sprintf(`create table if not exists %s (
  %s varchar(255) not null,
  %s bigint not null,
  %s datetime not null,

  primary key (%s)
);`, s.name, s.idField, s.cursorField, s.timeField, s.idField)
}

func getCursor(ctx context.Context, dbc *sql.DB, schema ctableSchema, id string) (int64, time.Time, bool, error) {
	var (
		cursor int64
		ts     time.Time
	)
	err := dbc.QueryRowContext(ctx, schema.selectQuery(), id).Scan(&cursor, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, time.Time{}, false, nil
	} else if err != nil {
		return 0, time.Time{}, false, errors.Wrap(err, "query cursor error")
	}
	return cursor, ts, true, nil
}

// setCursor sets the consumer's last successfully processed event index.
// It only ever moves the cursor forward.
func setCursor(ctx context.Context, dbc *sql.DB, schema ctableSchema,
	id string, cursor int64,
) error {
	opts := []errors.Option{j.KS("consumer", id), j.KV("cursor", cursor)}

	res, err := dbc.ExecContext(ctx, schema.updateQuery(), cursor, id, cursor)
	if err != nil {
		return errors.Wrap(err, "set cursor error", opts...)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected error", opts...)
	} else if rows > 1 {
		return errors.New("invalid rows affected error", opts...)
	} else if rows == 1 {
		// done
		return nil
	}

	// Insert since rows == 0
	_, err = dbc.ExecContext(ctx, schema.insertQuery(), id, cursor)
	if isMySQLErrDupEntry(err) {
		existing, updatedAt, _, getErr := getCursor(ctx, dbc, schema, id)
		if getErr != nil {
			return errors.Wrap(getErr, "lookup existing cursor", opts...)
		} else if existing == cursor {
			// Setting the same cursor is a no-op.
			return nil
		}
		opts = append(opts, j.MKV{"existing": existing, "updated_at": updatedAt})
		return errors.Wrap(ErrStaleCursor, "", opts...)
	} else if err != nil {
		return errors.Wrap(err, "insert cursor error", opts...)
	}

	return nil
}

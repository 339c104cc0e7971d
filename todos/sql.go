package todos

import (
	"context"
	"fmt"

	"github.com/circleci/todo/db"
	"github.com/circleci/todo/errs"
	"github.com/circleci/todo/o11y"
)

const todoEntity db.Entity = "todo"

// The column lists of these queries and rowToTodo must change together.

// language=PostgreSQL
const listTodosSQL = `
SELECT
	id,
	name,
	checked
FROM
	todo
ORDER BY
	id ASC
;`

// language=PostgreSQL
const insertTodoSQL = `
INSERT INTO todo (
	name,
	checked
)
VALUES (
	$1,
	$2
)
RETURNING
	id,
	name,
	checked
;`

type scanner interface {
	Scan(dest ...any) error
}

// rowToTodo maps the (id, name, checked) columns, in that order.
func rowToTodo(row scanner) (Todo, error) {
	var t Todo
	if err := row.Scan(&t.ID, &t.Name, &t.Checked); err != nil {
		return Todo{}, errs.New(errs.Decode, "todos: map row", err)
	}
	return t, nil
}

func execSchema(ctx context.Context, q db.Querier, schema string) (err error) {
	ctx, span := todoEntity.Span(ctx, "init_schema")
	defer o11y.End(span, &err)

	// no args, so the whole file goes to the server as one simple protocol batch
	if _, err = q.ExecContext(ctx, schema); err != nil {
		return errs.New(errs.SchemaExec, "todos: exec schema", err)
	}
	return nil
}

func queryListTodos(ctx context.Context, q db.Querier) (todos []Todo, err error) {
	ctx, span := todoEntity.Span(ctx, "list")
	defer o11y.End(span, &err)

	rows, err := q.QueryContext(ctx, listTodosSQL)
	if err != nil {
		return nil, errs.New(errs.Query, "todos: query list", err)
	}
	defer rows.Close()

	todos = []Todo{}
	for rows.Next() {
		t, err := rowToTodo(rows)
		if err != nil {
			return nil, err
		}
		todos = append(todos, t)
	}
	if err = rows.Err(); err != nil {
		return nil, errs.New(errs.Query, "todos: query list", db.MapError(err))
	}
	db.AddRows(span, len(todos))
	return todos, nil
}

func queryInsertTodo(ctx context.Context, q db.Querier, name string) (todo Todo, err error) {
	ctx, span := todoEntity.Span(ctx, "insert")
	defer o11y.End(span, &err)

	rows, err := q.QueryContext(ctx, insertTodoSQL, name, false)
	if err != nil {
		return Todo{}, errs.New(errs.Query, "todos: query insert", err)
	}
	defer rows.Close()

	if !rows.Next() {
		err = db.MapError(rows.Err())
		if err == nil {
			err = fmt.Errorf("insert returned no row: %w", db.ErrNop)
		}
		return Todo{}, errs.New(errs.Query, "todos: query insert", err)
	}
	db.AddRows(span, 1)
	return rowToTodo(rows)
}

package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/xpbd/internal/querysql"
	"github.com/roach88/xpbd/internal/store"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Database string
	Run      string
	Where    []string
	Columns  []string
	Limit    int
}

// QueryResult holds the rows of a query in column order.
type QueryResult struct {
	Table   string   `json:"table"`
	RunID   string   `json:"run_id,omitempty"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <runs|frames|samples|events>",
		Short: "Query trace tables",
		Long: `Select rows from one trace table.

Filters take the form field<op>value with op one of = != < <= > >=, and
are joined with AND. Rows come back in the table's natural order.

Examples:
  xpbd query frames --db ./trace.db --run latest --where 'step>=10' --limit 5
  xpbd query samples --db ./trace.db --run latest --where actor=rope --where particle=6
  xpbd query events --db ./trace.db --columns seq,step,kind --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Run, "run", "", "restrict to one run: ID, unique prefix or \"latest\"")
	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "filter expression (repeatable)")
	cmd.Flags().StringSliceVar(&opts.Columns, "columns", nil, "columns to return (default: all)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum rows (0: no limit)")

	return cmd
}

func runQuery(opts *QueryOptions, tableName string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	table, err := querysql.ParseTable(tableName)
	if err != nil {
		_ = formatter.Error(ErrCodeBadQuery, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid query", err)
	}
	filter, err := querysql.ParseFilter(opts.Where)
	if err != nil {
		_ = formatter.Error(ErrCodeBadQuery, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid query", err)
	}

	st, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	compiler := querysql.NewSQLCompiler()
	if opts.Run != "" {
		if compiler.RunID, err = resolveRun(ctx, st, opts.Run); err != nil {
			_ = formatter.Error(storeErrorCode(err), err.Error(), nil)
			return err
		}
	}

	q := querysql.Query{From: table, Columns: opts.Columns, Filter: filter, Limit: opts.Limit}
	query, params, err := compiler.Compile(q)
	if err != nil {
		_ = formatter.Error(ErrCodeBadQuery, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid query", err)
	}
	formatter.VerboseLog("SQL: %s %v", query, params)

	result, err := execQuery(ctx, st, query, params)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "query failed", err)
	}
	result.Table = string(table)
	result.RunID = compiler.RunID

	if formatter.JSON() {
		return formatter.Success(result)
	}
	rows := make([][]string, len(result.Rows))
	for i, row := range result.Rows {
		rows[i] = make([]string, len(row))
		for j, v := range row {
			rows[i][j] = formatCell(v)
		}
	}
	if err := formatter.Table(result.Columns, rows); err != nil {
		return err
	}
	formatter.VerboseLog("%d row(s)", len(rows))
	return nil
}

func execQuery(ctx context.Context, st *store.Store, query string, params []any) (*QueryResult, error) {
	rows, err := st.Query(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	result := &QueryResult{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case float64:
		return strconv.FormatFloat(val, 'g', 10, 64)
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

// Package querysql compiles trace queries to parameterized SQLite SQL.
//
// A Query selects columns of one trace table (runs, frames, samples,
// events) under a predicate tree. Column names are checked against the
// table's schema before they reach the SQL text; values never do, they are
// always bound as parameters. Every compiled query ends in an ORDER BY on
// the table's logical key, so results are identical across replays.
//
// ParseFilter turns command-line expressions such as "step>=10" or
// "actor=rope" into predicates.
package querysql

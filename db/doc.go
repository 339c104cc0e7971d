/*
Package db contains tools for working safely with a pooled PostgreSQL database.

There are tools for:
- opening the pool over the pgx driver
- leasing a connection for the duration of one operation, released on every exit path
- translating driver errors into the errors defined in this package
- observability (both for queries and pool usage)
- health checks
*/
package db

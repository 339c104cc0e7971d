/*
Package healthcheck serves the admin API: the liveness and readiness checks built from the
registered system.HealthChecker values, and the Go runtime pprof handlers.
*/
package healthcheck

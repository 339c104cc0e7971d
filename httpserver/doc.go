/*
Package httpserver runs the todo HTTP listeners with graceful shutdown.

Each server tracks its accepted connections, and reports them as gauges through the
system metrics reporter.
*/
package httpserver

/*
Package system runs the long lived parts of the todo service and shuts them down together.

Services, health checks, metric producers and cleanups are registered while the
service is wired up, then Run blocks until one of the services fails or the process
is told to stop. Each service runs under its own span, named after the service.
Cleanups run after Run returns, last added first, so a resource is released before
the ones it was built on.
*/
package system

/*
Package proxy implements a REST API for authenticating against the Rivian cloud service,
reading vehicle telemetry, and sending remote commands to vehicles.

Commands execute asynchronously: the cloud service acknowledges a dispatch with a command ID and
the proxy tracks the command's lifecycle in an in-memory cache, reconciling non-terminal entries
against the cloud service on demand.
*/
package proxy

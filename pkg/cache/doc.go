// Package cache tracks the lifecycle of commands issued to vehicles through the cloud service.
//
// Sending a command is asynchronous: the cloud service acknowledges the request with a command
// ID and executes it in the background, possibly after waking the vehicle. The [CommandCache]
// remembers each issued command so that clients can poll its progress without the proxy
// re-querying the cloud service once a command has reached a terminal state ([StatusCompleted]
// or [StatusFailed]).
//
// The cache lives in process memory only. Command history is best-effort and ephemeral; a proxy
// restart clears it. A periodic sweep evicts terminal and stale records so that the cache size
// tracks recent activity rather than total uptime.
package cache

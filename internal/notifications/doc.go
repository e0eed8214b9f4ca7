// Package notifications reports ingestion outcomes via ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// the pipeline can always call it. Success and failure messages are gated by
// the on_success and on_failure settings; TestNotification always sends.
package notifications

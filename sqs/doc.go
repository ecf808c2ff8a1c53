// Package sqs publishes project and resource change events to an AWS SQS
// queue.
//
// [Publisher] implements [github.com/slackmgr/projectindex/notify.Publisher]
// and supports both FIFO and standard queues. For FIFO queues every event for
// a project shares a message group, so consumers see a project's changes in
// the order they were made, and the deduplication ID is derived from a
// SHA-256 hash of the event fields.
//
//	pub, err := sqs.NewPublisher(&awsCfg, "project-events.fifo", logger,
//	    sqs.WithSqsAPIMaxRetryAttempts(3),
//	).Init(ctx)
//
//	err = pub.Publish(ctx, &notify.Event{Type: notify.ProjectCreated, ProjectID: id})
//
// # Configuration
//
// Options are passed to [NewPublisher] and take effect when [Publisher.Init]
// is called. See the With* functions for available settings and defaults.
package sqs

// Package pubsub publishes project and resource change events to Google Cloud
// Pub/Sub topics.
//
// [Publisher] implements [github.com/slackmgr/projectindex/notify.Publisher].
// One underlying Pub/Sub publisher is created per topic and cached for the
// lifetime of the Publisher; call [Publisher.Close] to flush and stop them.
// When ordering is enabled the project ID is used as the ordering key, so
// subscribers see a project's changes in the order they were made.
//
//	pub, err := pubsub.NewPublisher(client, "projects/acme-prod/topics/project-events", true, logger,
//	    pubsub.WithEventTopic(notify.ResourceVersionStored, "projects/acme-prod/topics/resource-uploads"),
//	).Init(ctx)
//	defer pub.Close()
package pubsub

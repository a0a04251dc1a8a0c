// Package notify delivers push notifications to registered devices.
//
// A Dispatcher fans one message out to every device token through a
// Sender. Each token is delivered independently; one failure never stops
// the others, and nothing is retried. Go schedules a batch in the
// background so callers such as the door toggle never wait on the network.
//
// Senders:
//   - APNsSender: Apple Push Notification service, token-based auth
//   - WebPushSender: browser push with VAPID
//   - LogSender: writes the message to the log (development)
package notify

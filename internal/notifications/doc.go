// Package notifications pushes merge outcomes to an ntfy topic.
//
// Failed merges always alert; published merges alert only when
// notifications.notify_published is set; client rejections never do. When no
// topic is configured NewService returns a no-op, so callers never branch on
// whether alerts are enabled. Recorder decorates the merge ledger so every
// recorded outcome is also considered for an alert.
package notifications

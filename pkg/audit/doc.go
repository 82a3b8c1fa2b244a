// Package audit records governance decisions for compliance review.
//
// The Trail accepts entries without ever blocking message processing:
// a bounded queue feeds a single writer goroutine, shedding the oldest
// entry under pressure. Storage is pluggable between an in-memory ring
// and a sqlite database; Retention prunes aged entries on a cron
// schedule.
package audit

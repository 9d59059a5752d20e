/*
Package rabbit serves bus operations over RabbitMQ.

Each registered operation consumes from a durable queue named after the
operation. Requests are JSON bodies; the reply is published to the request's
ReplyTo queue with its CorrelationId, so callers can use RabbitMQ's direct
reply-to (see Client). A failed operation replies with an x-error header and a
JSON body of the form {"error": "..."}.
*/
package rabbit

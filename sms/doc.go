// Package sms delivers one-time codes through an external SMS gateway.
//
// Delivery is decoupled from the request that produced the code: callers
// enqueue a [Message] on a [Dispatcher] and return immediately. Each message
// is attempted at most once; failures are logged and counted, never retried
// and never reported back to the enqueuing request.
package sms

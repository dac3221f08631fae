// Package lock provides document lockers that serialize state transitions
// on one quote, order or invoice.
//
// RedisDocumentLocker spans processes through redsync; LocalDocumentLocker
// covers a single process when Redis is disabled.
package lock

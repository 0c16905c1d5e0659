// Package audit provides the audit event model and asynchronous dispatch for
// sessionkit.
//
// # Architecture boundaries
//
// This package owns the [Event] shape, the [Sink] contract, and the buffered
// [Dispatcher]. Which lifecycle transitions emit events is decided at the
// root; sinks are supplied by the host application.
//
// # What this package must NOT do
//
//   - Block a lifecycle operation on a slow sink when DropIfFull is set.
//   - Import sessionkit or any sibling package.
//   - Carry token material in events. Events identify users and phases, never
//     credentials.
package audit

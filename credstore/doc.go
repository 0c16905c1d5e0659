// Package credstore defines the durable, confidential key-value contract the
// session core persists credentials through, plus memory, redis, and bbolt
// implementations.
//
// # Contract
//
// Writes are durable before Save returns; Delete is idempotent. There are no
// multi-key transactions: each key is written independently, and callers must
// tolerate a crash between two writes. The session core relies on that
// tolerance by treating the refresh token as the durable credential.
//
// # What this package must NOT do
//
//   - Interpret key names or values. Key layout belongs to the root package.
//   - Cache. Implementations answer from their backing store on every call so
//     the store stays the single source of truth.
package credstore

// Package gena implements the client (control point) side of UPnP's
// Generic Event Notification Architecture.
//
// A control point subscribes to a publisher's event URL with SUBSCRIBE,
// receives asynchronous NOTIFY requests carrying an XML property set, and
// renews the subscription before it expires with a second SUBSCRIBE request
// carrying the previously-issued SID. UNSUBSCRIBE ends it.
//
// # Components
//
//   - HandleTable / ClientState: per control-point-handle subscription
//     tables, keyed by server-issued SID.
//   - Transport: synchronous SUBSCRIBE/UNSUBSCRIBE request issuer.
//   - ParsePropertySet: streaming XML extraction of a NOTIFY body.
//   - Receiver: validates and correlates inbound NOTIFY transactions.
//   - Scheduler: arms a one-shot renewal timer ahead of each TIMEOUT.
//   - Manager: orchestrates Subscribe/Renew/Unsubscribe/UnregisterClient
//     under the SubscribeLock/HandleLock protocol described under Locking
//     below.
//
// # Locking
//
// Two mutexes coordinate state: SubscribeLock (held across the outbound
// SUBSCRIBE round trip and the NOTIFY seq==0 recovery path) and HandleLock
// (short critical sections over the handle table). SubscribeLock is always
// acquired before HandleLock. No network call is ever made with HandleLock
// held; callers snapshot state, drop locks, perform I/O, then re-acquire
// and re-validate before mutating the table.
package gena

// Package session turns the inbound event stream into correctly-ordered,
// exactly-once-processed dialogue state.
//
// A Thread is the in-memory view of one conversation session: the durable
// session record plus its append-only event log and the distributed lock
// held while processing. The Manager mediates every mutation: it acquires
// the conversation lock (extending an already-held lock when swapping
// sessions), loads or creates the session, applies the inactivity timeout
// policy, appends events, and commits exactly once per lock acquisition.
//
// Multiple bot processes may race on the same conversation; the lock is
// the only thing preventing double-processing, so nothing here assumes a
// lease is still valid after its TTL.
package session

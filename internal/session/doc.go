// SPDX-License-Identifier: MPL-2.0

// Package session holds the durable state of one shell session: the ordered
// stack of active packages with their op-logs and dependency edges.
//
// Every command runs inside Manager.Do, which locks the record, loads it,
// lets the caller mutate a copy and persists the copy only when the caller
// succeeds. Records live in a Store: FileStore writes one JSON document per
// session with write-then-rename, SQLiteStore keeps all sessions in a single
// database.
package session

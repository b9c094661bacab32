// Package database provides the PostgreSQL connection pool and schema for
// the action archive.
//
// Every routed action is stored as one row of chat_actions, with the
// decoded action serialized to a JSONB column.
package database

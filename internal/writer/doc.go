// Package writer implements the batch writer that archives routed actions.
//
// The action writer drains a router buffer, accumulates rows and inserts
// them into chat_actions with COPY. Rows are append-only.
package writer

// Package store provides durable persistence for conversation sessions,
// their append-only event logs, and the team data (bots, users, replies)
// the dialogue flows consult.
package store

// Package bot is the conversation engine: it claims inbound events,
// normalizes them, runs them through the session middleware, and
// dispatches them to the flows in priority order.
//
// Flow priority is fixed: greet, help, welcome, welcome_admin, human,
// infer, feedback. The infer flow doubles as the answer entry point;
// when no continuation can be inferred from the session's last flow
// marker, the message is treated as a fresh knowledge-base query.
package bot

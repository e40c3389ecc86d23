// Package gateway authorizes withdrawals that arrive from remote execution
// domains. A message is only acted on when it comes from the trusted peer
// configured for its source domain.
package gateway

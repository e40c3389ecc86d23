// Package core holds the vesting ledger: stream records, rate accounting,
// the withdrawal state machine and the serialized Service facade. Storage,
// token and messaging collaborators are consumed through the interfaces in
// contracts.go; core must not depend on any adapter package.
package core

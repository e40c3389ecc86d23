// Package token provides an in-process fungible token ledger that satisfies
// core.TokenLedger for local deployments and tests.
package token

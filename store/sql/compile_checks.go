package sqlstore

import "github.com/jshuaaaa/lz-stable-streaming/core"

var (
	_ core.StreamStore       = (*StreamStore)(nil)
	_ core.WithdrawalHistory = (*StreamStore)(nil)
	_ core.StreamTx          = (*streamTx)(nil)
	_ core.TrustedPeerStore  = (*TrustedPeerStore)(nil)
	_ core.TrustedPeerStore  = (*CachedTrustedPeerStore)(nil)
	_ core.ReplayLedger      = (*ReceiptStore)(nil)
)

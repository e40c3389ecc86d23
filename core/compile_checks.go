package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ StreamStore  = (*MemoryStreamStore)(nil)
	_ ReplayLedger = (*MemoryReplayLedger)(nil)
	_ Withdrawer   = (*Service)(nil)

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)

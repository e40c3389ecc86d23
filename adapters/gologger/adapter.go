package gologger

import (
	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/jshuaaaa/lz-stable-streaming/core"
)

const DefaultLoggerName = "streaming"

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// ToJobProvider maps a glog provider to the go-job logger provider contract.
func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

// ToJobLogger maps a glog logger to the go-job logger contract.
func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// ResolveForJob resolves glog logger/provider then returns equivalent go-job adapters.
func ResolveForJob(
	name string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(name, provider, logger)
	return resolvedProvider, resolvedLogger, ToJobProvider(resolvedProvider), ToJobLogger(resolvedLogger)
}

// ForService bridges the logger a streaming service resolved at build time
// into go-job, so queue workers log through the same sink. Named loggers
// come from the service provider and fall back to the service logger.
func ForService(svc *core.Service) (job.LoggerProvider, job.Logger) {
	if svc == nil {
		_, _, provider, logger := ResolveForJob(DefaultLoggerName, nil, nil)
		return provider, logger
	}
	deps := svc.Dependencies()
	logger := glog.Ensure(deps.Logger)
	provider := glog.ProviderWithFallback(deps.LoggerProvider, logger)
	return ToJobProvider(provider), ToJobLogger(logger)
}

package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/jshuaaaa/lz-stable-streaming/core"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db *bun.DB

	streamStore      *StreamStore
	trustedPeerStore core.TrustedPeerStore
	receiptStore     *ReceiptStore

	peerCache repositorycache.CacheService
}

type FactoryOption func(*RepositoryFactory)

// WithTrustedPeerCache fronts the trusted peer store with cacheService.
func WithTrustedPeerCache(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		f.peerCache = cacheService
	}
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.streamStore != nil && f.trustedPeerStore != nil {
		return nil
	}
	return f.initStores()
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) StreamStore() *StreamStore {
	if f == nil {
		return nil
	}
	return f.streamStore
}

func (f *RepositoryFactory) TrustedPeerStore() core.TrustedPeerStore {
	if f == nil {
		return nil
	}
	return f.trustedPeerStore
}

func (f *RepositoryFactory) ReceiptStore() *ReceiptStore {
	if f == nil {
		return nil
	}
	return f.receiptStore
}

func (f *RepositoryFactory) initStores() error {
	streamStore, err := NewStreamStore(f.db)
	if err != nil {
		return err
	}
	f.streamStore = streamStore

	peerStore, err := NewTrustedPeerStore(f.db)
	if err != nil {
		return err
	}
	f.trustedPeerStore = peerStore
	if f.peerCache != nil {
		cached, cacheErr := NewCachedTrustedPeerStore(peerStore, f.peerCache)
		if cacheErr != nil {
			return cacheErr
		}
		f.trustedPeerStore = cached
	}

	receiptStore, err := NewReceiptStore(f.db, 0)
	if err != nil {
		return err
	}
	f.receiptStore = receiptStore
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}

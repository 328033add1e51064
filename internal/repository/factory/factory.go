package factory

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/migueljbento/percenseo/internal/config"
	"github.com/migueljbento/percenseo/internal/infra/db"
	"github.com/migueljbento/percenseo/internal/repository"
	"github.com/migueljbento/percenseo/internal/repository/memory"
	pgrepo "github.com/migueljbento/percenseo/internal/repository/postgres"
	scyllarepo "github.com/migueljbento/percenseo/internal/repository/scylla"
	"github.com/migueljbento/percenseo/pkg/logger"
)

const (
	SchemePostgres   = "postgres"
	SchemePostgreSQL = "postgresql"
	SchemeScylla     = "scylla"
	SchemeMemory     = "memory"
)

var (
	memoryMu     sync.Mutex
	memoryStores = map[string]*memory.ResultStore{}
)

// MemoryStore returns the process-wide in-memory store registered under name,
// creating it on first use. memory://name locations resolve to it.
func MemoryStore(name string) *memory.ResultStore {
	memoryMu.Lock()
	defer memoryMu.Unlock()

	store, ok := memoryStores[name]
	if !ok {
		store = memory.NewResultStore()
		memoryStores[name] = store
	}
	return store
}

// Location is a parsed store location.
type Location struct {
	Scheme   string
	DSN      string
	Hosts    []string
	Keyspace string
	Name     string
}

// ParseLocation splits a store location into its backend parameters.
func ParseLocation(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, fmt.Errorf("store location is empty: %w", repository.ErrStore)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("parse store location: %w: %w", repository.ErrStore, err)
	}

	loc := Location{Scheme: strings.ToLower(u.Scheme)}
	switch loc.Scheme {
	case SchemePostgres, SchemePostgreSQL:
		loc.DSN = raw
	case SchemeScylla:
		for _, h := range strings.Split(u.Host, ",") {
			if h = strings.TrimSpace(h); h != "" {
				loc.Hosts = append(loc.Hosts, h)
			}
		}
		loc.Keyspace = strings.Trim(u.Path, "/")
		if len(loc.Hosts) == 0 || loc.Keyspace == "" {
			return Location{}, fmt.Errorf("scylla location needs hosts and a keyspace: %w", repository.ErrStore)
		}
	case SchemeMemory:
		loc.Name = u.Host + strings.TrimRight(u.Path, "/")
	default:
		return Location{}, fmt.Errorf("unsupported store scheme %q: %w", u.Scheme, repository.ErrStore)
	}
	return loc, nil
}

// NewOpener returns an Opener routing locations by scheme. cfg supplies the
// pool and session tuning for the networked backends.
func NewOpener(cfg config.StoreConfig, lg *logger.Logger) repository.Opener {
	if lg == nil {
		lg = logger.NewNop()
	}
	lg = lg.Named("store")

	return func(ctx context.Context, raw string) (repository.ResultStore, error) {
		loc, err := ParseLocation(raw)
		if err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}

		switch loc.Scheme {
		case SchemePostgres, SchemePostgreSQL:
			pgCfg := cfg.Postgres
			pgCfg.DSN = loc.DSN
			pg, err := db.NewPostgres(ctx, pgCfg)
			if err != nil {
				return nil, fmt.Errorf("store: %w: %w", repository.ErrStore, err)
			}
			store, err := pgrepo.NewResultStore(ctx, pg.DB(), pg.Close)
			if err != nil {
				_ = pg.Close()
				return nil, fmt.Errorf("store: %w", err)
			}
			lg.Info("postgres result store opened")
			return store, nil

		case SchemeScylla:
			scCfg := cfg.Scylla
			scCfg.Hosts = loc.Hosts
			scCfg.Keyspace = loc.Keyspace
			sc, err := db.NewScylla(scCfg)
			if err != nil {
				return nil, fmt.Errorf("store: %w: %w", repository.ErrStore, err)
			}
			store, err := scyllarepo.NewResultStore(ctx, sc.Session(), !scCfg.DisableInitSchema, sc.Close)
			if err != nil {
				_ = sc.Close()
				return nil, fmt.Errorf("store: %w", err)
			}
			lg.Info("scylla result store opened", zap.Strings("hosts", loc.Hosts), zap.String("keyspace", loc.Keyspace))
			return store, nil

		default:
			store := MemoryStore(loc.Name)
			store.Reopen()
			lg.Info("memory result store opened", zap.String("name", loc.Name))
			return store, nil
		}
	}
}

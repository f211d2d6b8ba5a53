package shared

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolconnect/core"
	"github.com/trezcool/schoolconnect/core/auth"
	"github.com/trezcool/schoolconnect/core/content"
	"github.com/trezcool/schoolconnect/core/school"
	"github.com/trezcool/schoolconnect/core/user"
	"github.com/trezcool/schoolconnect/services/gateway"
	"github.com/trezcool/schoolconnect/services/schoolapi"
	"github.com/trezcool/schoolconnect/storage/database"
	sqlxrepos "github.com/trezcool/schoolconnect/storage/database/sqlx"
	"github.com/trezcool/schoolconnect/storage/memory"
	redisrepos "github.com/trezcool/schoolconnect/storage/redis"
	"github.com/trezcool/schoolconnect/storage/vault"
)

type (
	// Options tune the graph built by NewDeps. Zero values use the configured services.
	Options struct {
		Conf    *core.Config
		Logger  core.Logger
		Backend school.Backend // defaults to the schoolapi client
		Vault   user.Vault     // defaults to the configured vault engine
		KV      user.KVStore   // defaults to the configured storage engine
	}

	// Deps is the dependency graph shared by the API server and the CLI.
	Deps struct {
		Conf    *core.Config
		Logger  core.Logger
		Bus     *core.EventBus
		Store   *user.Store
		Backend school.Backend
		Session *auth.Session
		Syncer  *content.Syncer
		Gateway *gateway.Client
		DB      *sqlx.DB // nil unless a SQL storage engine is configured

		closers []func() error
	}
)

// NewDeps wires the storage engines, the credential store, the backend clients, the
// session and the content syncer. Close releases what it opened.
func NewDeps(ctx context.Context, opts Options) (*Deps, error) {
	if opts.Conf == nil {
		return nil, errors.New("missing configuration")
	}
	if opts.Logger == nil {
		opts.Logger = core.NopLogger{}
	}
	conf := opts.Conf
	d := &Deps{
		Conf:   conf,
		Logger: opts.Logger,
		Bus:    core.NewEventBus(opts.Logger),
	}

	vlt := opts.Vault
	if vlt == nil {
		var err error
		if vlt, err = NewVault(conf.Vault); err != nil {
			return nil, errors.Wrap(err, "setting up vault")
		}
	}

	kv := opts.KV
	if kv == nil {
		var err error
		if kv, err = d.newKVStore(ctx, conf.Storage); err != nil {
			_ = d.Close()
			return nil, errors.Wrap(err, "setting up storage")
		}
	}

	d.Store = user.NewStore(vlt, kv, d.Logger)

	d.Backend = opts.Backend
	if d.Backend == nil {
		d.Backend = schoolapi.NewClient(conf.API, d.Store, d.Logger)
	}

	d.Session = auth.NewSession(auth.Options{
		Store:    d.Store,
		Backend:  d.Backend,
		Bus:      d.Bus,
		Logger:   d.Logger,
		PageSize: conf.Content.PageSize,
		Timeout:  conf.API.LoginTimeout(),
	})
	d.Syncer = content.NewSyncer(content.Options{
		Backend:  d.Backend,
		Cache:    d.Store,
		Logger:   d.Logger,
		PageSize: conf.Content.PageSize,
		Timeout:  conf.API.LoginTimeout(),
	})
	d.Syncer.Listen(d.Bus)

	d.Gateway = gateway.NewClient(conf.API, d.Logger)
	return d, nil
}

// NewVault opens the configured credential vault.
func NewVault(conf core.VaultConfig) (user.Vault, error) {
	switch conf.Engine {
	case core.EngineMemory:
		return memory.NewVault(), nil
	case core.EngineFile:
		v, err := vault.NewFileVault(conf.Path, conf.Passphrase)
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, errors.Errorf("unknown vault engine %q", conf.Engine)
	}
}

func (d *Deps) newKVStore(ctx context.Context, conf core.StorageConfig) (user.KVStore, error) {
	switch conf.Engine {
	case core.EngineMemory:
		return memory.NewKVStore(), nil

	case core.EngineSQLite, core.EnginePostgres:
		db, err := database.Open(ctx, conf)
		if err != nil {
			return nil, errors.Wrap(err, "opening database")
		}
		d.closers = append(d.closers, db.Close)
		if err = database.Migrate(db); err != nil {
			return nil, errors.Wrap(err, "migrating database")
		}
		d.DB = db
		return sqlxrepos.NewKVStore(db), nil

	case core.EngineRedis:
		client, err := redisrepos.NewClient(ctx, conf)
		if err != nil {
			return nil, errors.Wrap(err, "connecting to redis")
		}
		d.closers = append(d.closers, client.Close)
		return redisrepos.NewKVStore(client, conf.RedisPrefix), nil

	default:
		return nil, errors.Errorf("unknown storage engine %q", conf.Engine)
	}
}

// Close releases the storage connections, newest first.
func (d *Deps) Close() error {
	var firstErr error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	d.closers = nil
	return firstErr
}

// Identity is the gateway identity of the active session.
func (d *Deps) Identity() (gateway.Identity, error) {
	p := d.Session.Current()
	if p == nil {
		return gateway.Identity{}, content.ErrNoSession
	}
	return gateway.IdentityFrom(p)
}

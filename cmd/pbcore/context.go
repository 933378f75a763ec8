package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/jacentio/pbcore/archive"
	"github.com/jacentio/pbcore/internal/config"
	"github.com/jacentio/pbcore/internal/dynamo"
	"github.com/jacentio/pbcore/internal/logging"
	"github.com/jacentio/pbcore/picklist"
	"github.com/jacentio/pbcore/picklist/sqlitedb"
	"github.com/jacentio/pbcore/store"
	"github.com/jacentio/pbcore/xmlmap"
)

type commandContext struct {
	configFlag string

	// client overrides the DynamoDB client built from configuration.
	client store.Client

	// backend overrides the picklist backend selected by configuration.
	backend picklist.Backend

	configOnce sync.Once
	config     *config.Config
	configErr  error

	logger   *slog.Logger
	store    *store.Store
	registry *picklist.Registry
	closers  []io.Closer
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger(cmd *cobra.Command) (*slog.Logger, error) {
	if c.logger != nil {
		return c.logger, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	c.logger = logger
	return logger, nil
}

func (c *commandContext) ensureStore(ctx context.Context) (*store.Store, error) {
	if c.store != nil {
		return c.store, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	client := c.client
	if client == nil {
		ddb, err := dynamo.NewClient(ctx, cfg.DynamoDB)
		if err != nil {
			return nil, err
		}
		client = ddb
	}
	c.store = dynamo.NewStore(client, cfg.DynamoDB)
	return c.store, nil
}

func (c *commandContext) repository(cmd *cobra.Command) (*archive.Repository, error) {
	logger, err := c.ensureLogger(cmd)
	if err != nil {
		return nil, err
	}
	s, err := c.ensureStore(cmd.Context())
	if err != nil {
		return nil, err
	}
	return archive.NewRepository(s, dynamo.Tables(c.config.DynamoDB), logger), nil
}

func (c *commandContext) picklists(cmd *cobra.Command) (*picklist.Registry, error) {
	if c.registry != nil {
		return c.registry, nil
	}
	logger, err := c.ensureLogger(cmd)
	if err != nil {
		return nil, err
	}

	backend := c.backend
	switch {
	case backend != nil:
	case c.config.Picklists.Backend == config.BackendMemory:
		backend = picklist.NewMemoryBackend()
	case c.config.Picklists.Backend == config.BackendSQLite:
		db, err := sqlitedb.Open(cmd.Context(), c.config.Picklists.SQLitePath)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, db)
		backend = db
	case c.config.Picklists.Backend == config.BackendDynamoDB:
		s, err := c.ensureStore(cmd.Context())
		if err != nil {
			return nil, err
		}
		backend = archive.NewPicklistBackend(s, dynamo.Tables(c.config.DynamoDB))
	default:
		return nil, fmt.Errorf("picklists.backend: unsupported value %q", c.config.Picklists.Backend)
	}

	c.registry = picklist.NewRegistry(backend, logger)
	return c.registry, nil
}

func (c *commandContext) codec(cmd *cobra.Command) (*xmlmap.Codec, error) {
	registry, err := c.picklists(cmd)
	if err != nil {
		return nil, err
	}
	logger := c.logger
	return xmlmap.NewCodec(registry, logger, xmlmap.WithSyncHook(func(element string, report xmlmap.SyncReport) {
		if len(report.Destroyed) == 0 {
			return
		}
		logger.Info("removing collection items",
			"element", element,
			"ids", report.Destroyed,
		)
	})), nil
}

func (c *commandContext) close() error {
	var errs []error
	for _, closer := range c.closers {
		errs = append(errs, closer.Close())
	}
	c.closers = nil
	// The registry, store and logger may hold closed handles or the
	// previous command's output streams.
	c.registry = nil
	c.store = nil
	c.logger = nil
	return errors.Join(errs...)
}

// openInput returns the file named by args[0], or stdin when args is empty or "-".
func openInput(cmd *cobra.Command, args []string) (io.ReadCloser, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}

package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"git.home.luguber.info/inful/mdcompile/internal/cache"
	"git.home.luguber.info/inful/mdcompile/internal/config"
	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
)

// CacheCmd groups cache maintenance commands.
type CacheCmd struct {
	List       CacheListCmd       `cmd:"" help:"List cached artifacts"`
	Invalidate CacheInvalidateCmd `cmd:"" help:"Remove every cached artifact of a unit"`
	GC         CacheGCCmd         `cmd:"" name:"gc" help:"Remove stored sources no artifact references"`
}

func openCacheForMaintenance(root *CLI) (*cache.SQLiteCache, error) {
	cfg, err := root.loadConfig()
	if err != nil {
		return nil, err
	}
	return openCacheDir(cfg)
}

func openCacheDir(cfg *config.Config) (*cache.SQLiteCache, error) {
	if _, err := os.Stat(cfg.Cache.Directory); err != nil {
		return nil, errors.CacheError("no cache found").WithCause(err).WithContext("path", cfg.Cache.Directory).Build()
	}
	return cache.OpenSQLite(cfg.Cache.Directory)
}

// CacheListCmd implements 'cache list'.
type CacheListCmd struct {
	Unit string `short:"u" help:"Only list entries of this unit"`
}

func (c *CacheListCmd) Run(_ *Global, root *CLI) error {
	store, err := openCacheForMaintenance(root)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	entries, err := store.List(context.Background())
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "UNIT\tFINGERPRINT\tVERDICT\tSIZE\tCREATED\n")
	n := 0
	for _, e := range entries {
		if c.Unit != "" && e.Unit != c.Unit {
			continue
		}
		n++
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", e.Unit, e.Fingerprint.Short(), e.Verdict, e.Size, e.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d entries\n", n)
	return nil
}

// CacheInvalidateCmd implements 'cache invalidate'.
type CacheInvalidateCmd struct {
	Unit string `arg:"" help:"Unit whose entries are removed"`
}

func (c *CacheInvalidateCmd) Run(_ *Global, root *CLI) error {
	store, err := openCacheForMaintenance(root)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	n, err := store.Invalidate(context.Background(), c.Unit)
	if err != nil {
		return err
	}
	fmt.Printf("removed %d entries of unit %s\n", n, c.Unit)
	return nil
}

// CacheGCCmd implements 'cache gc'.
type CacheGCCmd struct{}

func (c *CacheGCCmd) Run(_ *Global, root *CLI) error {
	store, err := openCacheForMaintenance(root)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	n, err := store.GC(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("removed %d unreferenced objects\n", n)
	return nil
}

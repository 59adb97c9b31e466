// Command backuptool is a content-addressed, deduplicating incremental
// backup tool. It snapshots a directory tree into a single SQLite database,
// lists existing snapshots with size accounting, restores a snapshot to an
// output directory, and prunes a snapshot while reclaiming storage held
// only by it.
package main

import (
	"context"
	"fmt"
	"os"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/arumry/backuptool/internal/backuplog"
	"github.com/arumry/backuptool/internal/lister"
	"github.com/arumry/backuptool/internal/pruner"
	"github.com/arumry/backuptool/internal/restorer"
	"github.com/arumry/backuptool/internal/snapshotter"
	"github.com/arumry/backuptool/internal/store"
)

const defaultDatabase = "backups.db"

func main() {
	app := cli.NewApp()
	app.Name = "backuptool"
	app.Usage = "content-addressed incremental backup tool"
	app.Commands = []cli.Command{
		snapshotCommand,
		listCommand,
		restoreCommand,
		pruneCommand,
	}

	if err := app.Run(os.Args); err != nil {
		backuplog.Error(err.Error())
		os.Exit(1)
	}
}

var snapshotCommand = cli.Command{
	Name:  "snapshot",
	Usage: "create a new snapshot of a directory",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "target-directory", Usage: "directory to snapshot", Required: true},
		cli.StringFlag{Name: "database", Usage: "path to the backup database", Value: defaultDatabase},
	},
	Action: func(c *cli.Context) error {
		s, err := openStore(c.String("database"))
		if err != nil {
			return err
		}
		defer s.Close()

		if _, err := snapshotter.Create(context.Background(), s, c.String("target-directory")); err != nil {
			return err
		}
		fmt.Println("Snapshot created successfully")
		return nil
	},
}

var listCommand = cli.Command{
	Name:  "list",
	Usage: "list existing snapshots",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "database", Usage: "path to the backup database", Value: defaultDatabase},
	},
	Action: func(c *cli.Context) error {
		s, err := openStore(c.String("database"))
		if err != nil {
			return err
		}
		defer s.Close()

		return lister.List(context.Background(), s, os.Stdout)
	},
}

var restoreCommand = cli.Command{
	Name:  "restore",
	Usage: "restore a snapshot to an output directory",
	Flags: []cli.Flag{
		cli.IntFlag{Name: "snapshot-number", Usage: "ID of the snapshot to restore", Required: true},
		cli.StringFlag{Name: "output-directory", Usage: "directory to restore into", Required: true},
		cli.StringFlag{Name: "database", Usage: "path to the backup database", Value: defaultDatabase},
	},
	Action: func(c *cli.Context) error {
		snapshotID := c.Int("snapshot-number")
		if snapshotID < 0 {
			return fmt.Errorf("backuptool: --snapshot-number must not be negative")
		}

		s, err := openStore(c.String("database"))
		if err != nil {
			return err
		}
		defer s.Close()

		_, err = restorer.Restore(context.Background(), s, int64(snapshotID), c.String("output-directory"))
		return err
	},
}

var pruneCommand = cli.Command{
	Name:  "prune",
	Usage: "remove a snapshot and reclaim storage it alone held",
	Flags: []cli.Flag{
		cli.IntFlag{Name: "snapshot", Usage: "ID of the snapshot to prune", Required: true},
		cli.StringFlag{Name: "database", Usage: "path to the backup database", Value: defaultDatabase},
	},
	Action: func(c *cli.Context) error {
		snapshotID := c.Int("snapshot")
		if snapshotID < 0 {
			return fmt.Errorf("backuptool: --snapshot must not be negative")
		}

		s, err := openStore(c.String("database"))
		if err != nil {
			return err
		}
		defer s.Close()

		return pruner.Prune(context.Background(), s, int64(snapshotID))
	},
}

func openStore(path string) (*store.Store, error) {
	s, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Package storage persists object dictionary storage groups across device
// restarts.
//
// A storage group is a contiguous block of bytes the dictionary's objects
// slice into (the dcf loader lays groups out that way; hand-built
// dictionaries may pass any backing block). Save snapshots a block into a
// local bbolt file after syncing application-held values back into it;
// Restore copies the saved bytes over the block in place, so object views
// into it observe the restored values without any table rebuild.
//
// Snapshots are msgpack envelopes carrying an xxhash64 checksum; a corrupt
// or truncated snapshot fails Restore and leaves the block, and therefore
// the device's defaults, untouched.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"github.com/candevkit/od"
)

var (
	ErrNotSaved = errors.New("group never saved")
	ErrCorrupt  = errors.New("saved group is corrupt")
	ErrMismatch = errors.New("saved group does not match the device layout")
)

// Group pairs a storage group tag with the block of bytes backing that
// group's objects.
type Group struct {
	Tag  uint8
	Data []byte
}

type Options struct {
	Context  context.Context
	Logger   *slog.Logger
	FileMode os.FileMode
	NoSync   bool // skip fsync, for tests; not crash-safe
}

// Store is a bbolt-backed snapshot store for storage groups. It is safe for
// concurrent use.
type Store struct {
	bdb     *bbolt.DB
	context context.Context
	logger  *slog.Logger
}

const snapshotVersion = 1

var groupsBucket = []byte("groups")

// envelope is the msgpack document stored per group.
type envelope struct {
	Version int    `msgpack:"v"`
	Tag     uint8  `msgpack:"g"`
	SavedAt int64  `msgpack:"t"`
	Size    int    `msgpack:"n"`
	Sum     uint64 `msgpack:"x"`
	Data    []byte `msgpack:"d"`
}

func Open(path string, opt Options) (*Store, error) {
	if opt.Context == nil {
		opt.Context = context.Background()
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.FileMode == 0 {
		opt.FileMode = 0o666
	}
	bopt := *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.NoSync {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
	}

	bdb, err := bbolt.Open(path, opt.FileMode, &bopt)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	err = bdb.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(groupsBucket)
		return err
	})
	if err != nil {
		bdb.Close()
		return nil, fmt.Errorf("storage: %w", err)
	}
	return &Store{bdb: bdb, context: opt.Context, logger: opt.Logger}, nil
}

func (s *Store) Close() error {
	return s.bdb.Close()
}

// Bolt exposes the underlying database handle.
func (s *Store) Bolt() *bbolt.DB {
	return s.bdb
}

// Save syncs application-held values of the group back into its block, then
// persists the block in one write transaction: either the new snapshot
// replaces the old one entirely or the old one stays.
func (s *Store) Save(d *od.Dictionary, g Group) error {
	if g.Data == nil {
		return fmt.Errorf("storage: group %d has no block", g.Tag)
	}
	if failed := d.SyncGroup(g.Tag); failed > 0 {
		s.logger.LogAttrs(s.context, slog.LevelWarn, "storage: group sync incomplete",
			slog.Int("group", int(g.Tag)), slog.Int("failed", failed))
	}
	env := envelope{
		Version: snapshotVersion,
		Tag:     g.Tag,
		SavedAt: time.Now().Unix(),
		Size:    len(g.Data),
		Sum:     xxhash.Sum64(g.Data),
		Data:    g.Data,
	}
	raw, err := msgpack.Marshal(&env)
	if err != nil {
		return fmt.Errorf("storage: group %d: %w", g.Tag, err)
	}
	err = s.bdb.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(groupsBucket).Put(groupKey(g.Tag), raw)
	})
	if err != nil {
		return fmt.Errorf("storage: group %d: %w", g.Tag, err)
	}
	s.logger.LogAttrs(s.context, slog.LevelDebug, "storage: group saved",
		slog.Int("group", int(g.Tag)), slog.Int("bytes", len(g.Data)))
	return nil
}

// Restore copies the saved bytes of the group back over its block. The block
// must have the size the snapshot was taken from. A group that was never
// saved reports ErrNotSaved; a snapshot that fails its checks reports
// ErrCorrupt. The block keeps its defaults on any failure.
func (s *Store) Restore(g Group) error {
	if g.Data == nil {
		return fmt.Errorf("storage: group %d has no block", g.Tag)
	}
	var raw []byte
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(groupsBucket).Get(groupKey(g.Tag))
		if v == nil {
			return fmt.Errorf("storage: group %d: %w", g.Tag, ErrNotSaved)
		}
		raw = bytes.Clone(v)
		return nil
	})
	if err != nil {
		return err
	}

	var env envelope
	if err := msgpack.Unmarshal(raw, &env); err != nil {
		s.logger.LogAttrs(s.context, slog.LevelWarn, "storage: undecodable group snapshot",
			slog.Int("group", int(g.Tag)), slog.Any("err", err))
		return fmt.Errorf("storage: group %d: %w", g.Tag, ErrCorrupt)
	}
	if env.Version != snapshotVersion {
		return fmt.Errorf("storage: group %d: unsupported snapshot version %d", g.Tag, env.Version)
	}
	if env.Size != len(env.Data) || env.Sum != xxhash.Sum64(env.Data) {
		s.logger.LogAttrs(s.context, slog.LevelWarn, "storage: group snapshot failed checksum",
			slog.Int("group", int(g.Tag)))
		return fmt.Errorf("storage: group %d: %w", g.Tag, ErrCorrupt)
	}
	if len(env.Data) != len(g.Data) {
		return fmt.Errorf("storage: group %d: snapshot holds %d bytes, block holds %d: %w",
			g.Tag, len(env.Data), len(g.Data), ErrMismatch)
	}
	copy(g.Data, env.Data)
	s.logger.LogAttrs(s.context, slog.LevelDebug, "storage: group restored",
		slog.Int("group", int(g.Tag)), slog.Int("bytes", len(g.Data)))
	return nil
}

// SaveAll saves every group, continuing past failures. It returns the number
// of groups saved plus the joined errors.
func (s *Store) SaveAll(d *od.Dictionary, groups []Group) (int, error) {
	saved := 0
	var errs []error
	for _, g := range groups {
		if err := s.Save(d, g); err != nil {
			errs = append(errs, err)
		} else {
			saved++
		}
	}
	return saved, errors.Join(errs...)
}

// RestoreAll restores every group that has a snapshot, continuing past
// failures. Groups that were never saved keep their defaults and are not
// errors; anything else joins the returned error.
func (s *Store) RestoreAll(groups []Group) (int, error) {
	restored := 0
	var errs []error
	for _, g := range groups {
		switch err := s.Restore(g); {
		case err == nil:
			restored++
		case errors.Is(err, ErrNotSaved):
		default:
			errs = append(errs, err)
		}
	}
	return restored, errors.Join(errs...)
}

// Drop forgets the saved snapshot of a group, so the device boots with its
// built-in defaults next time.
func (s *Store) Drop(tag uint8) error {
	err := s.bdb.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(groupsBucket).Delete(groupKey(tag))
	})
	if err != nil {
		return fmt.Errorf("storage: group %d: %w", tag, err)
	}
	return nil
}

// SavedAt reports when the group was last saved, or ErrNotSaved.
func (s *Store) SavedAt(tag uint8) (time.Time, error) {
	var raw []byte
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(groupsBucket).Get(groupKey(tag))
		if v == nil {
			return fmt.Errorf("storage: group %d: %w", tag, ErrNotSaved)
		}
		raw = bytes.Clone(v)
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}
	var env envelope
	if err := msgpack.Unmarshal(raw, &env); err != nil {
		return time.Time{}, fmt.Errorf("storage: group %d: %w", tag, ErrCorrupt)
	}
	return time.Unix(env.SavedAt, 0), nil
}

// GroupTags lists the tags of every saved group in ascending order.
func (s *Store) GroupTags() ([]uint8, error) {
	var tags []uint8
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(groupsBucket).ForEach(func(k, v []byte) error {
			if len(k) == 1 {
				tags = append(tags, k[0])
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	return tags, nil
}

func groupKey(tag uint8) []byte {
	return []byte{tag}
}

// Package database is the reference object database for the MTP
// server. Object metadata lives in SQLite so handles and persistent
// identifiers survive restarts; an in-memory B-tree maps paths to
// handles for the lookups the protocol does on every transaction.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/btree"
	_ "modernc.org/sqlite"

	"github.com/hanwen/go-mtpd/log"
	"github.com/hanwen/go-mtpd/mtp"
	"github.com/hanwen/go-mtpd/server"
)

// Options configures a DB.
type Options struct {
	// Path is the SQLite file, or ":memory:".
	Path string

	// Defaults for the writable device properties.
	FriendlyName string
	SyncPartner  string

	// PerceivedDeviceType is reported read-only, 0 is generic.
	PerceivedDeviceType uint32

	// BatteryPath names a file holding the battery percentage, as
	// found under /sys/class/power_supply. Empty reports 100.
	BatteryPath string

	Log *log.ChildLogger
}

// object is one row of the objects table.
type object struct {
	Handle   uint32
	Storage  uint32
	Parent   uint32
	Format   uint16
	Path     string
	Name     string
	Size     int64
	Created  time.Time
	Modified time.Time
	Added    time.Time
	UUID     uuid.UUID
	Pending  bool
}

// DB implements server.Database.
type DB struct {
	opts Options
	log  *log.ChildLogger

	mu  sync.Mutex
	sql *sql.DB

	// path -> handle, for every row of the objects table.
	paths *btree.Map[string, uint32]
	roots map[uint32]string

	// Destinations of moves between BeginMoveObject and EndMoveObject.
	moves map[uint32]string

	notifier server.Notifier
}

var _ server.Database = (*DB)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS objects (
	handle INTEGER PRIMARY KEY,
	storage_id INTEGER NOT NULL,
	parent INTEGER NOT NULL,
	format INTEGER NOT NULL,
	path TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	size INTEGER NOT NULL DEFAULT 0,
	date_created INTEGER NOT NULL,
	date_modified INTEGER NOT NULL,
	date_added INTEGER NOT NULL,
	uuid BLOB NOT NULL,
	pending INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_objects_parent ON objects(storage_id, parent);

CREATE TABLE IF NOT EXISTS object_refs (
	handle INTEGER NOT NULL,
	position INTEGER NOT NULL,
	ref INTEGER NOT NULL,
	PRIMARY KEY (handle, position)
);

CREATE TABLE IF NOT EXISTS device_props (
	code INTEGER PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Open opens or creates the database and loads the path index.
func Open(opts Options) (*DB, error) {
	if opts.Path == "" {
		opts.Path = ":memory:"
	}
	if opts.Log == nil {
		opts.Log = log.Quiet().DB
	}
	sqlDB, err := sql.Open("sqlite", opts.Path)
	if err != nil {
		return nil, err
	}
	// Every connection to ":memory:" is a separate database.
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec("PRAGMA journal_mode = WAL"); err != nil {
		sqlDB.Close()
		return nil, err
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("schema: %w", err)
	}
	// Objects half-registered when the last run stopped are gone.
	if _, err := sqlDB.Exec("DELETE FROM objects WHERE pending = 1"); err != nil {
		sqlDB.Close()
		return nil, err
	}

	db := &DB{
		opts:  opts,
		log:   opts.Log,
		sql:   sqlDB,
		paths: btree.NewMap[string, uint32](0),
		roots: map[uint32]string{},
		moves: map[uint32]string{},
	}
	if err := db.loadIndex(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) loadIndex() error {
	rows, err := db.sql.Query("SELECT path, handle FROM objects")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var path string
		var handle uint32
		if err := rows.Scan(&path, &handle); err != nil {
			return err
		}
		db.paths.Set(path, handle)
	}
	return rows.Err()
}

func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.paths.Clear()
	return db.sql.Close()
}

// SetNotifier sets the receiver of objects found or lost by Rescan.
func (db *DB) SetNotifier(n server.Notifier) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.notifier = n
}

const objectColumns = `handle, storage_id, parent, format, path, name, size,
	date_created, date_modified, date_added, uuid, pending`

type scanner interface {
	Scan(dest ...any) error
}

func scanObject(row scanner) (*object, error) {
	var o object
	var created, modified, added int64
	var id []byte
	if err := row.Scan(&o.Handle, &o.Storage, &o.Parent, &o.Format, &o.Path, &o.Name, &o.Size,
		&created, &modified, &added, &id, &o.Pending); err != nil {
		return nil, err
	}
	o.Created = time.Unix(created, 0)
	o.Modified = time.Unix(modified, 0)
	o.Added = time.Unix(added, 0)
	copy(o.UUID[:], id)
	return &o, nil
}

// get loads an object. Pending objects are visible only when
// withPending is set.
func (db *DB) get(handle uint32, withPending bool) (*object, error) {
	o, err := scanObject(db.sql.QueryRow("SELECT "+objectColumns+" FROM objects WHERE handle = ?", handle))
	if errors.Is(err, sql.ErrNoRows) || (err == nil && o.Pending && !withPending) {
		return nil, mtp.RCError(mtp.RC_InvalidObjectHandle)
	}
	return o, err
}

func (db *DB) query(where string, args ...any) ([]*object, error) {
	rows, err := db.sql.Query("SELECT "+objectColumns+" FROM objects WHERE "+where+" ORDER BY handle", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var r []*object
	for rows.Next() {
		o, err := scanObject(rows)
		if err != nil {
			return nil, err
		}
		r = append(r, o)
	}
	return r, rows.Err()
}

func (db *DB) insert(o *object) error {
	if o.UUID == uuid.Nil {
		o.UUID = uuid.Must(uuid.NewV7())
	}
	res, err := db.sql.Exec(`INSERT INTO objects (storage_id, parent, format, path, name, size,
		date_created, date_modified, date_added, uuid, pending) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.Storage, o.Parent, o.Format, o.Path, o.Name, o.Size,
		o.Created.Unix(), o.Modified.Unix(), o.Added.Unix(), o.UUID[:], o.Pending)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.Handle = uint32(id)
	db.paths.Set(o.Path, o.Handle)
	return nil
}

// remove drops an object, everything below it and its references.
func (db *DB) remove(o *object) error {
	victims := append(db.descendants(o.Path), o.Handle)
	tx, err := db.sql.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, h := range victims {
		if _, err := tx.Exec("DELETE FROM objects WHERE handle = ?", h); err != nil {
			return err
		}
		if _, err := tx.Exec("DELETE FROM object_refs WHERE handle = ? OR ref = ?", h, h); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	db.dropIndex(o.Path)
	return nil
}

// descendants lists the handles stored below dir.
func (db *DB) descendants(dir string) []uint32 {
	var r []uint32
	prefix := dir + string(filepath.Separator)
	db.paths.Ascend(prefix, func(path string, handle uint32) bool {
		if !strings.HasPrefix(path, prefix) {
			return false
		}
		r = append(r, handle)
		return true
	})
	return r
}

func (db *DB) dropIndex(path string) {
	prefix := path + string(filepath.Separator)
	var drop []string
	db.paths.Ascend(prefix, func(p string, _ uint32) bool {
		if !strings.HasPrefix(p, prefix) {
			return false
		}
		drop = append(drop, p)
		return true
	})
	for _, p := range drop {
		db.paths.Delete(p)
	}
	db.paths.Delete(path)
}

// relocate points an object and everything below it at a new path,
// parent and storage.
func (db *DB) relocate(o *object, newPath string, parent, storage uint32) error {
	oldPrefix := o.Path + string(filepath.Separator)
	type move struct {
		handle   uint32
		from, to string
	}
	moves := []move{{o.Handle, o.Path, newPath}}
	db.paths.Ascend(oldPrefix, func(p string, h uint32) bool {
		if !strings.HasPrefix(p, oldPrefix) {
			return false
		}
		moves = append(moves, move{h, p, filepath.Join(newPath, p[len(oldPrefix):])})
		return true
	})

	tx, err := db.sql.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec("UPDATE objects SET parent = ? WHERE handle = ?", parent, o.Handle); err != nil {
		return err
	}
	for _, m := range moves {
		if _, err := tx.Exec("UPDATE objects SET path = ?, name = ?, storage_id = ? WHERE handle = ?",
			m.to, filepath.Base(m.to), storage, m.handle); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	for _, m := range moves {
		db.paths.Delete(m.from)
	}
	for _, m := range moves {
		db.paths.Set(m.to, m.handle)
	}
	return nil
}

// dir returns the directory of a parent handle on a storage.
func (db *DB) dir(storage, parent uint32) (string, error) {
	if parent == 0 {
		root, ok := db.roots[storage]
		if !ok {
			return "", mtp.RCError(mtp.RC_InvalidStorageId)
		}
		return root, nil
	}
	p, err := db.get(parent, false)
	if err != nil {
		return "", mtp.RCError(mtp.RC_InvalidParentObject)
	}
	return p.Path, nil
}

// AddStorage registers a storage root and indexes its contents.
func (db *DB) AddStorage(id uint32, root string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	root = filepath.Clean(root)
	db.roots[id] = root
	_, err := db.scan(id, root)
	return err
}

// RemoveStorage forgets a storage and all its objects.
func (db *DB) RemoveStorage(id uint32) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	objs, err := db.query("storage_id = ?", id)
	if err != nil {
		return err
	}
	if _, err := db.sql.Exec("DELETE FROM objects WHERE storage_id = ?", id); err != nil {
		return err
	}
	for _, o := range objs {
		db.paths.Delete(o.Path)
	}
	delete(db.roots, id)
	return nil
}

// Rescan brings a storage in line with the filesystem and tells the
// notifier what changed.
func (db *DB) Rescan(id uint32) error {
	db.mu.Lock()
	root, ok := db.roots[id]
	if !ok {
		db.mu.Unlock()
		return fmt.Errorf("storage 0x%08x not found", id)
	}
	changes, err := db.scan(id, root)
	n := db.notifier
	db.mu.Unlock()

	if n != nil {
		for _, h := range changes.added {
			n.SendObjectAdded(h)
		}
		for _, h := range changes.removed {
			n.SendObjectRemoved(h)
		}
		for _, h := range changes.changed {
			n.SendObjectInfoChanged(h)
		}
	}
	return err
}

type scanResult struct {
	added, removed, changed []uint32
}

func fileFormat(d fs.DirEntry) uint16 {
	if d.IsDir() {
		return mtp.OFC_Association
	}
	return FormatForName(d.Name())
}

// scan walks root and syncs the objects of storage id with it.
func (db *DB) scan(id uint32, root string) (scanResult, error) {
	var res scanResult
	seen := map[uint32]bool{}
	now := time.Now()

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			db.log.Warningf("scan %s: %v", path, err)
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if path == root || !(d.IsDir() || d.Type().IsRegular()) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		var size int64
		if !d.IsDir() {
			size = fi.Size()
		}

		parent := uint32(0)
		if dir := filepath.Dir(path); dir != root {
			parent, _ = db.paths.Get(dir)
		}

		if h, ok := db.paths.Get(path); ok {
			seen[h] = true
			o, err := db.get(h, true)
			if err != nil {
				return err
			}
			if o.Size != size || o.Modified.Unix() != fi.ModTime().Unix() {
				if _, err := db.sql.Exec("UPDATE objects SET size = ?, date_modified = ? WHERE handle = ?",
					size, fi.ModTime().Unix(), h); err != nil {
					return err
				}
				res.changed = append(res.changed, h)
			}
			return nil
		}

		o := &object{
			Storage:  id,
			Parent:   parent,
			Format:   fileFormat(d),
			Path:     path,
			Name:     d.Name(),
			Size:     size,
			Created:  fi.ModTime(),
			Modified: fi.ModTime(),
			Added:    now,
		}
		if err := db.insert(o); err != nil {
			return err
		}
		seen[o.Handle] = true
		res.added = append(res.added, o.Handle)
		return nil
	})
	if err != nil {
		return res, err
	}

	objs, err := db.query("storage_id = ? AND pending = 0", id)
	if err != nil {
		return res, err
	}
	for _, o := range objs {
		if seen[o.Handle] {
			continue
		}
		if _, ok := db.paths.Get(o.Path); !ok {
			// Removed with an ancestor already.
			continue
		}
		if err := db.remove(o); err != nil {
			return res, err
		}
		res.removed = append(res.removed, o.Handle)
	}
	db.log.Debugf("scanned storage 0x%08x: %d added, %d removed, %d changed",
		id, len(res.added), len(res.removed), len(res.changed))
	return res, nil
}

// SessionStarted and SessionEnded bracket an initiator session.
func (db *DB) SessionStarted() {
	db.log.Debug("session started")
}

func (db *DB) SessionEnded() {
	db.log.Debug("session ended")
}

// statObject refreshes size and modification time from the file.
func (db *DB) statObject(handle uint32, path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	size := fi.Size()
	if fi.IsDir() {
		size = 0
	}
	_, err = db.sql.Exec("UPDATE objects SET size = ?, date_modified = ?, pending = 0 WHERE handle = ?",
		size, fi.ModTime().Unix(), handle)
	return err
}

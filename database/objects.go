package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/hanwen/go-mtpd/mtp"
	"github.com/hanwen/go-mtpd/server"
)

// BeginSendObject registers a pending object for a file the initiator
// is about to send.
func (db *DB) BeginSendObject(path string, format uint16, parent, storage uint32, size int64, modified time.Time) (uint32, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	path = filepath.Clean(path)
	if h, ok := db.paths.Get(path); ok {
		return 0, fmt.Errorf("%s already registered as 0x%x", path, h)
	}
	now := time.Now()
	if modified.IsZero() {
		modified = now
	}
	o := &object{
		Storage:  storage,
		Parent:   parent,
		Format:   format,
		Path:     path,
		Name:     filepath.Base(path),
		Size:     max(size, 0),
		Created:  now,
		Modified: modified,
		Added:    now,
		Pending:  true,
	}
	if err := db.insert(o); err != nil {
		return 0, err
	}
	db.log.Debugf("begin send 0x%x %s", o.Handle, path)
	return o.Handle, nil
}

// EndSendObject commits the object with the file's real size, or drops
// it.
func (db *DB) EndSendObject(path string, handle uint32, format uint16, succeeded bool) {
	db.mu.Lock()
	defer db.mu.Unlock()

	o, err := db.get(handle, true)
	if err != nil {
		db.log.Warningf("end send 0x%x: %v", handle, err)
		return
	}
	if succeeded {
		if err = db.statObject(handle, o.Path); err == nil {
			return
		}
		db.log.Warningf("end send 0x%x: %v", handle, err)
	}
	if err := db.remove(o); err != nil {
		db.log.Errorf("drop 0x%x: %v", handle, err)
	}
}

func (db *DB) RescanFile(path string, handle uint32, format uint16) {
	db.mu.Lock()
	err := db.statObject(handle, path)
	n := db.notifier
	db.mu.Unlock()

	if err != nil {
		db.log.Warningf("rescan 0x%x %s: %v", handle, path, err)
		return
	}
	if n != nil {
		n.SendObjectInfoChanged(handle)
	}
}

func (db *DB) listWhere(storage uint32, format uint16, parent uint32) (string, []any) {
	where := "pending = 0 AND parent = ?"
	args := []any{parent}
	if storage != 0 && storage != mtp.AllHandles {
		where += " AND storage_id = ?"
		args = append(args, storage)
	}
	if format != 0 {
		where += " AND format = ?"
		args = append(args, format)
	}
	return where, args
}

func (db *DB) GetObjectList(storage uint32, format uint16, parent uint32) ([]uint32, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if parent != 0 {
		if _, err := db.get(parent, false); err != nil {
			return nil, err
		}
	}
	where, args := db.listWhere(storage, format, parent)
	objs, err := db.query(where, args...)
	if err != nil {
		return nil, err
	}
	handles := make([]uint32, 0, len(objs))
	for _, o := range objs {
		handles = append(handles, o.Handle)
	}
	return handles, nil
}

func (db *DB) GetNumObjects(storage uint32, format uint16, parent uint32) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if parent != 0 {
		if _, err := db.get(parent, false); err != nil {
			return -1, nil
		}
	}
	where, args := db.listWhere(storage, format, parent)
	var n int
	err := db.sql.QueryRow("SELECT COUNT(*) FROM objects WHERE "+where, args...).Scan(&n)
	return n, err
}

func (db *DB) GetObjectInfo(handle uint32, info *mtp.ObjectInfo) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	o, err := db.get(handle, false)
	if err != nil {
		return err
	}
	*info = mtp.ObjectInfo{
		StorageID:        o.Storage,
		ObjectFormat:     o.Format,
		CompressedSize:   mtp.ClampSize(o.Size),
		ParentObject:     o.Parent,
		Filename:         o.Name,
		CaptureDate:      o.Created,
		ModificationDate: o.Modified,
	}
	if o.Format == mtp.OFC_Association {
		info.AssociationType = mtp.AT_GenericFolder
	}
	return nil
}

// GetThumbnail returns nothing: thumbnails are not generated.
func (db *DB) GetThumbnail(handle uint32) ([]byte, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, err := db.get(handle, false)
	return nil, err
}

func (db *DB) GetObjectFilePath(handle uint32) (server.ObjectFile, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	o, err := db.get(handle, false)
	if err != nil {
		return server.ObjectFile{}, err
	}
	return server.ObjectFile{Path: o.Path, Length: o.Size, Format: o.Format}, nil
}

func (db *DB) BeginDeleteObject(handle uint32) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, err := db.get(handle, false)
	return err
}

func (db *DB) EndDeleteObject(handle uint32, succeeded bool) {
	if !succeeded {
		return
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	o, err := db.get(handle, true)
	if err != nil {
		return
	}
	if err := db.remove(o); err != nil {
		db.log.Errorf("delete 0x%x: %v", handle, err)
	}
}

func (db *DB) GetObjectReferences(handle uint32) ([]uint32, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.get(handle, false); err != nil {
		return nil, err
	}
	rows, err := db.sql.Query("SELECT ref FROM object_refs WHERE handle = ? ORDER BY position", handle)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var refs []uint32
	for rows.Next() {
		var r uint32
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

// SetObjectReferences replaces the references of handle. Unknown
// handles in refs are skipped.
func (db *DB) SetObjectReferences(handle uint32, refs []uint32) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.get(handle, false); err != nil {
		return err
	}
	// The transaction holds the only connection, so lookups go first.
	var valid []uint32
	for _, r := range refs {
		if _, err := db.get(r, false); err == nil {
			valid = append(valid, r)
		}
	}

	tx, err := db.sql.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec("DELETE FROM object_refs WHERE handle = ?", handle); err != nil {
		return err
	}
	for pos, r := range valid {
		if _, err := tx.Exec("INSERT INTO object_refs (handle, position, ref) VALUES (?, ?, ?)", handle, pos, r); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// BeginMoveObject checks the move and remembers its destination. The
// row changes only when the move succeeds.
func (db *DB) BeginMoveObject(handle, newParent, newStorage uint32) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	o, err := db.get(handle, false)
	if err != nil {
		return err
	}
	dir, err := db.dir(newStorage, newParent)
	if err != nil {
		return err
	}
	db.moves[handle] = filepath.Join(dir, o.Name)
	return nil
}

func (db *DB) EndMoveObject(oldParent, newParent, oldStorage, newStorage, handle uint32, succeeded bool) {
	db.mu.Lock()
	defer db.mu.Unlock()

	dst, ok := db.moves[handle]
	delete(db.moves, handle)
	if !ok || !succeeded {
		return
	}
	o, err := db.get(handle, false)
	if err != nil {
		return
	}
	if err := db.relocate(o, dst, newParent, newStorage); err != nil {
		db.log.Errorf("move 0x%x to %s: %v", handle, dst, err)
	}
}

// BeginCopyObject registers the copy as a pending object.
func (db *DB) BeginCopyObject(handle, newParent, newStorage uint32) (uint32, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	o, err := db.get(handle, false)
	if err != nil {
		return 0, err
	}
	dir, err := db.dir(newStorage, newParent)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	c := &object{
		Storage:  newStorage,
		Parent:   newParent,
		Format:   o.Format,
		Path:     filepath.Join(dir, o.Name),
		Name:     o.Name,
		Size:     o.Size,
		Created:  now,
		Modified: o.Modified,
		Added:    now,
		UUID:     uuid.Must(uuid.NewV7()),
		Pending:  true,
	}
	if _, ok := db.paths.Get(c.Path); ok {
		return 0, fmt.Errorf("%s already registered", c.Path)
	}
	if err := db.insert(c); err != nil {
		return 0, err
	}
	return c.Handle, nil
}

// EndCopyObject commits the copy. A copied folder has its contents
// registered too.
func (db *DB) EndCopyObject(handle uint32, succeeded bool) {
	db.mu.Lock()
	defer db.mu.Unlock()

	o, err := db.get(handle, true)
	if err != nil {
		return
	}
	if !succeeded {
		if err := db.remove(o); err != nil {
			db.log.Errorf("drop copy 0x%x: %v", handle, err)
		}
		return
	}
	if err := db.statObject(handle, o.Path); err != nil {
		db.log.Warningf("copy 0x%x: %v", handle, err)
		return
	}
	if o.Format == mtp.OFC_Association {
		if err := db.scanSubtree(o); err != nil {
			db.log.Warningf("register copied folder %s: %v", o.Path, err)
		}
	}
}

// scanSubtree registers the contents of a new folder.
func (db *DB) scanSubtree(dir *object) error {
	now := time.Now()
	return filepath.WalkDir(dir.Path, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dir.Path || !(d.IsDir() || d.Type().IsRegular()) {
			return nil
		}
		if _, ok := db.paths.Get(path); ok {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		parent, _ := db.paths.Get(filepath.Dir(path))
		var size int64
		if !d.IsDir() {
			size = fi.Size()
		}
		return db.insert(&object{
			Storage:  dir.Storage,
			Parent:   parent,
			Format:   fileFormat(d),
			Path:     path,
			Name:     d.Name(),
			Size:     size,
			Created:  fi.ModTime(),
			Modified: fi.ModTime(),
			Added:    now,
		})
	})
}

package secretfs

import (
	"iter"
	"os"
)

// pendingFolder is a folder whose entries have not been read yet
type pendingFolder struct {
	loc  Location
	path string
}

// List enumerates the entries under loc. Physical entries whose names do not
// decode or decrypt are foreign to this repository and are skipped without
// error. Files are always yielded; folders are yielded when
// opts.IncludeFolders is set and descended into when opts.Recursively is
// set. Dotted entries, and everything below a dotted folder, are left out
// unless opts.IncludeDottedFilesAndFolders is set.
//
// The sequence is lazy: one folder is read per step, from a stack of pending
// folders. Ranging over it again re-reads the live filesystem. Order follows
// the filesystem and is not guaranteed; use SortLocations when it matters.
//
// A folder that cannot be read is reported as an error; listing continues
// with the next pending folder if the consumer keeps ranging.
func (r *Repository) List(loc Location, opts ListOptions) iter.Seq2[Location, error] {
	return func(yield func(Location, error) bool) {
		start, err := r.FilesystemPath(loc)
		if err != nil {
			yield(Location{}, err)
			return
		}

		log := r.log.With().Str("op", "list").Stringer("location", loc).Logger()
		sep := r.base.Separator()
		pending := []pendingFolder{{loc: loc, path: start}}

		for len(pending) > 0 {
			folder := pending[len(pending)-1]
			pending = pending[:len(pending)-1]

			infos, err := r.readFolder(folder)
			if err != nil {
				if !yield(Location{}, err) {
					return
				}
				continue
			}

			for _, info := range infos {
				name, err := r.decryptName(info.Name())
				if err != nil {
					log.Trace().Str("entry", info.Name()).Err(err).Msg("skipping foreign entry")
					continue
				}
				if name.IsDotted() && !opts.IncludeDottedFilesAndFolders {
					continue
				}

				child := folder.loc.Down(name)
				if !info.IsDir() {
					if !yield(child, nil) {
						return
					}
					continue
				}

				if opts.IncludeFolders && !yield(child, nil) {
					return
				}
				if opts.Recursively {
					pending = append(pending, pendingFolder{
						loc:  child,
						path: joinPhysical(sep, folder.path, info.Name()),
					})
				}
			}
		}
	}
}

// ListAll collects List into a slice, stopping at the first error
func (r *Repository) ListAll(loc Location, opts ListOptions) ([]Location, error) {
	var locations []Location
	for l, err := range r.List(loc, opts) {
		if err != nil {
			return locations, err
		}
		locations = append(locations, l)
	}
	return locations, nil
}

func (r *Repository) readFolder(folder pendingFolder) ([]os.FileInfo, error) {
	dir, err := r.base.Open(folder.path)
	if err != nil {
		if isNotExist(err) {
			return nil, notFound("list", folder.loc)
		}
		return nil, NewIOError("open", folder.loc.String(), err)
	}
	defer dir.Close()

	infos, err := dir.Readdir(-1)
	if err != nil {
		return nil, NewIOError("readdir", folder.loc.String(), err)
	}
	return infos, nil
}

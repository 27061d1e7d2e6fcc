/*
Copyright © 2020 the floodctx authors.
This file is part of floodctx.

floodctx is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

floodctx is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with floodctx.  If not, see <http://www.gnu.org/licenses/>.
*/

package cloud

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// ExpandShp returns the given file + associated [.dbf, .shx, .prj]
// files if the given file has the .shp extension, and returns the given
// file otherwise.
func ExpandShp(filename string) []string {
	o := []string{filename}
	if filepath.Ext(filename) != ".shp" {
		return o
	}
	for _, newExt := range []string{".dbf", ".shx", ".prj"} {
		o = append(o, filename[0:len(filename)-4]+newExt)
	}
	return o
}

// optional reports whether a file in a shapefile set may be missing.
func optional(filename string) bool {
	return filepath.Ext(filename) == ".prj"
}

// Download copies the blob at path, along with any shapefile support
// files, into directory dir and returns the local path of the
// downloaded file.
func Download(ctx context.Context, path, dir string) (string, error) {
	bucketName, key, err := splitBlob(path)
	if err != nil {
		return "", err
	}
	bucket, err := OpenBucket(ctx, bucketName)
	if err != nil {
		return "", err
	}
	defer bucket.Close()

	keys := ExpandShp(key)
	for _, k := range keys {
		err := readBlob(ctx, bucket, k, filepath.Join(dir, filepath.Base(k)))
		if gcerrors.Code(err) == gcerrors.NotFound && optional(k) {
			continue
		} else if err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, filepath.Base(keys[0])), nil
}

// readBlob copies the given blob to the local file fileName.
func readBlob(ctx context.Context, bucket *blob.Bucket, key, fileName string) error {
	r, err := bucket.NewReader(ctx, key, nil)
	if err != nil {
		return err
	}
	defer r.Close()
	w, err := os.Create(fileName)
	if err != nil {
		return fmt.Errorf("cloud: creating file for download: %w", err)
	}
	if _, err = io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("cloud: reading blob key %s: %w", key, err)
	}
	return w.Close()
}

// Upload copies the local file fileName, along with any shapefile
// support files, to the blob at path.
func Upload(ctx context.Context, fileName, path string) error {
	bucketName, key, err := splitBlob(path)
	if err != nil {
		return err
	}
	bucket, err := OpenBucket(ctx, bucketName)
	if err != nil {
		return err
	}
	defer bucket.Close()

	files, keys := ExpandShp(fileName), ExpandShp(key)
	if len(files) != len(keys) {
		return fmt.Errorf("cloud: cannot upload '%s' to '%s': file types differ", fileName, path)
	}
	for i, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) && optional(f) {
			continue
		}
		if err := writeBlob(ctx, bucket, keys[i], f); err != nil {
			return err
		}
	}
	return nil
}

// writeBlob copies the local file fileName to the given bucket.
func writeBlob(ctx context.Context, bucket *blob.Bucket, key, fileName string) error {
	r, err := os.Open(fileName)
	if err != nil {
		return fmt.Errorf("cloud: opening file '%s' for upload: %w", fileName, err)
	}
	defer r.Close()
	w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{})
	if err != nil {
		return fmt.Errorf("cloud: creating writer for blob %s: %w", key, err)
	}
	if _, err = io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("cloud: copying blob %s: %w", key, err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("cloud: writing blob %s: %w", key, err)
	}
	return nil
}

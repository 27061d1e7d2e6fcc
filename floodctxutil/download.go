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

package floodctxutil

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/floodctx/cloud"
)

// downloader fetches remote input files into a temporary directory.
type downloader struct {
	dir string
	log logrus.FieldLogger
}

// tempDir returns the download directory, creating it if necessary.
func (dl *downloader) tempDir() (string, error) {
	if dl.dir != "" {
		return dl.dir, nil
	}
	var err error
	dl.dir, err = ioutil.TempDir("", "floodctx")
	if err != nil {
		return "", fmt.Errorf("floodctxutil: creating temporary download directory: %w", err)
	}
	return dl.dir, nil
}

// cleanup removes any downloaded files.
func (dl *downloader) cleanup() {
	if dl.dir != "" {
		os.RemoveAll(dl.dir)
	}
}

// maybeDownload checks if the input is an existing file locally.
// If not, it checks if the file is a URL or blob path.
// If it is, it downloads the file and returns the path to the
// downloaded file. For shapefiles, it downloads all associated files
// and returns the path to the file with the ".shp" extension. Zip
// archives are extracted and the path to the first shapefile inside
// is returned.
func (dl *downloader) maybeDownload(ctx context.Context, path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return path, nil
	}
	var local string
	switch {
	case strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://"):
		dir, err := dl.tempDir()
		if err != nil {
			return "", err
		}
		if local, err = dl.downloadHTTP(ctx, path, dir); err != nil {
			return "", err
		}
	case cloud.IsBlob(path):
		dir, err := dl.tempDir()
		if err != nil {
			return "", err
		}
		if local, err = cloud.Download(ctx, path, dir); err != nil {
			return "", fmt.Errorf("floodctxutil: downloading %s: %w", path, err)
		}
	default:
		return path, nil
	}
	dl.log.WithFields(logrus.Fields{"from": path, "to": local}).Info("downloaded file")
	if filepath.Ext(local) == ".zip" {
		return unzipShp(local)
	}
	return local, nil
}

// downloadHTTP downloads a file and any shapefile support files from
// the specified URL into dir and returns the path to the downloaded
// file. Failed requests are retried.
func (dl *downloader) downloadHTTP(ctx context.Context, url, dir string) (string, error) {
	urls := expandShpURL(url)
	var first string
	for i, u := range urls {
		fname := filepath.Join(dir, filepath.Base(stripQuery(u)))
		if i == 0 {
			first = fname
		}
		var missing bool
		err := backoff.RetryNotify(
			func() error {
				err := getFile(ctx, u, fname)
				if err == errNotFound {
					missing = true
					return nil
				}
				return err
			},
			backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4),
			func(err error, d time.Duration) {
				dl.log.WithError(err).Warnf("retrying download in %v", d)
			},
		)
		if missing && filepath.Ext(fname) == ".prj" {
			// Projection files are optional.
			continue
		} else if missing {
			err = errNotFound
		}
		if err != nil {
			return "", fmt.Errorf("floodctxutil: downloading %s: %w", u, err)
		}
	}
	return first, nil
}

func stripQuery(url string) string {
	return strings.SplitN(url, "?", 2)[0]
}

// expandShpURL is like cloud.ExpandShp but keeps any URL query.
func expandShpURL(url string) []string {
	base := stripQuery(url)
	query := strings.TrimPrefix(url, base)
	files := cloud.ExpandShp(base)
	for i := range files {
		files[i] += query
	}
	return files
}

var errNotFound = errors.New("file not found")

func getFile(ctx context.Context, url, fname string) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req.WithContext(ctx))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	} else if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", url, resp.Status)
	}
	w, err := os.Create(fname)
	if err != nil {
		return fmt.Errorf("creating file for download: %w", err)
	}
	if _, err = io.Copy(w, resp.Body); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// unzipShp extracts the given zip archive into a directory next to it
// and returns the path to the first shapefile in the archive.
func unzipShp(fname string) (string, error) {
	r, err := zip.OpenReader(fname)
	if err != nil {
		return "", fmt.Errorf("floodctxutil: opening zip archive: %w", err)
	}
	defer r.Close()
	dir := strings.TrimSuffix(fname, ".zip")
	var shpFile string
	for _, f := range r.File {
		path := filepath.Join(dir, f.Name)
		if !strings.HasPrefix(path, filepath.Clean(dir)+string(os.PathSeparator)) {
			return "", fmt.Errorf("floodctxutil: invalid file path in zip archive: %s", f.Name)
		}
		if f.FileInfo().IsDir() {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
			return "", err
		}
		if err := extract(f, path); err != nil {
			return "", err
		}
		if shpFile == "" && filepath.Ext(path) == ".shp" {
			shpFile = path
		}
	}
	if shpFile == "" {
		return "", fmt.Errorf("floodctxutil: no shapefile in zip archive %s", fname)
	}
	return shpFile, nil
}

func extract(f *zip.File, path string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	w, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, rc); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

/*
Copyright © 2026 the tminzonal authors.
This file is part of tminzonal.

tminzonal is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

tminzonal is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with tminzonal.  If not, see <http://www.gnu.org/licenses/>.
*/

package cloud

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// expandShp returns the given file + associated [.dbf, .shx, .prj]
// files if the given file has the .shp extension, and returns the given
// file otherwise
func expandShp(filename string) []string {
	o := []string{filename}
	ext := filepath.Ext(filename)
	if !strings.EqualFold(ext, ".shp") {
		return o
	}
	for _, newExt := range []string{".dbf", ".shx", ".prj"} {
		o = append(o, filename[0:len(filename)-len(ext)]+newExt)
	}
	return o
}

// Fetch copies the blob at path into dir and returns the local path of
// the copy. Shapefiles are copied along with their .dbf, .shx and .prj
// files; a missing .prj is skipped. Paths that are not blobs are returned
// unchanged.
func Fetch(ctx context.Context, path, dir string) (string, error) {
	if !IsBlob(path) {
		return path, nil
	}
	bucketName, key, err := splitBlob(path)
	if err != nil {
		return "", err
	}
	bucket, err := OpenBucket(ctx, bucketName)
	if err != nil {
		return "", err
	}
	defer bucket.Close()

	keys := expandShp(key)
	for i, k := range keys {
		dst := filepath.Join(dir, filepath.Base(k))
		err := download(ctx, bucket, k, dst)
		if err != nil && i > 0 && strings.EqualFold(filepath.Ext(k), ".prj") && gcerrors.Code(err) == gcerrors.NotFound {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("cloud: fetching %s: %v", path, err)
		}
	}
	return filepath.Join(dir, filepath.Base(key)), nil
}

func download(ctx context.Context, bucket *blob.Bucket, key, dst string) error {
	r, err := bucket.NewReader(ctx, key, nil)
	if err != nil {
		return err
	}
	defer r.Close()
	w, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err = io.Copy(w, r); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// List returns the blob paths directly under the blob directory dirURL,
// sorted by name.
func List(ctx context.Context, dirURL string) ([]string, error) {
	bucketName, prefix, err := splitBlob(dirURL)
	if err != nil {
		return nil, err
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	bucket, err := OpenBucket(ctx, bucketName)
	if err != nil {
		return nil, err
	}
	defer bucket.Close()

	iter := bucket.List(&blob.ListOptions{
		Prefix:    prefix,
		Delimiter: "/",
	})
	var o []string
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("cloud: listing %s: %v", dirURL, err)
		}
		if obj.IsDir {
			continue
		}
		o = append(o, bucketName+"/"+obj.Key)
	}
	sort.Strings(o)
	return o, nil
}

// Stager gives local paths for output files that may be destined for
// blob storage. Files with blob destinations are written to a temporary
// directory and uploaded by Commit.
type Stager struct {
	dir string

	// files is a set of file path pairs. The first of each pair
	// is a local file path and the second is a blob storage
	// path where it should be uploaded to.
	files [][2]string
}

// NewStager returns a Stager for outputs under outputDir, which may be
// a local directory or a blob directory such as "s3://bucket/outputs".
// Local directories are created if they do not exist.
func NewStager(outputDir string) (*Stager, error) {
	s := new(Stager)
	if !IsBlob(outputDir) {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return nil, fmt.Errorf("cloud: creating output directory: %v", err)
		}
		s.dir = outputDir
		return s, nil
	}
	dir, err := ioutil.TempDir("", "tminzonal-out")
	if err != nil {
		return nil, fmt.Errorf("cloud: creating staging directory: %v", err)
	}
	s.dir = dir
	s.files = [][2]string{{"", strings.TrimSuffix(outputDir, "/")}}
	return s, nil
}

// Remote reports whether outputs are uploaded to blob storage.
func (s *Stager) Remote() bool { return len(s.files) > 0 }

// Path returns the local path to write output file name to.
func (s *Stager) Path(name string) string {
	local := filepath.Join(s.dir, name)
	if s.Remote() {
		s.files = append(s.files, [2]string{local, s.files[0][1] + "/" + name})
	}
	return local
}

// Destination returns where output file name ends up after Commit.
func (s *Stager) Destination(name string) string {
	if s.Remote() {
		return s.files[0][1] + "/" + name
	}
	return filepath.Join(s.dir, name)
}

// Commit uploads the staged files to blob storage. Files that were never
// written are skipped.
func (s *Stager) Commit(ctx context.Context) error {
	if !s.Remote() {
		return nil
	}
	bucketName, _, err := splitBlob(s.files[0][1])
	if err != nil {
		return err
	}
	bucket, err := OpenBucket(ctx, bucketName)
	if err != nil {
		return err
	}
	defer bucket.Close()
	for _, f := range s.files[1:] {
		if _, err := os.Stat(f[0]); os.IsNotExist(err) {
			continue
		}
		_, key, err := splitBlob(f[1])
		if err != nil {
			return err
		}
		if err := upload(ctx, bucket, f[0], key); err != nil {
			return fmt.Errorf("cloud: uploading %s to %s: %v", f[0], f[1], err)
		}
	}
	return nil
}

func upload(ctx context.Context, bucket *blob.Bucket, src, key string) error {
	r, err := os.Open(src)
	if err != nil {
		return err
	}
	defer r.Close()
	w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{})
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// Close removes the staging directory of a remote Stager.
func (s *Stager) Close() error {
	if !s.Remote() {
		return nil
	}
	return os.RemoveAll(s.dir)
}

// Exists reports whether the file or blob at path exists.
func Exists(ctx context.Context, path string) (bool, error) {
	if !IsBlob(path) {
		_, err := os.Stat(path)
		if os.IsNotExist(err) {
			return false, nil
		}
		return err == nil, err
	}
	bucketName, key, err := splitBlob(path)
	if err != nil {
		return false, err
	}
	bucket, err := OpenBucket(ctx, bucketName)
	if err != nil {
		return false, err
	}
	defer bucket.Close()
	return bucket.Exists(ctx, key)
}

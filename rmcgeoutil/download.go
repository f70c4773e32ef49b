/*
Copyright © 2025 the RMCGeo authors.
This file is part of RMCGeo.

RMCGeo is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

RMCGeo is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with RMCGeo.  If not, see <http://www.gnu.org/licenses/>.
*/

package rmcgeoutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/cenkalti/backoff"
	"github.com/google/go-cloud/blob"
	"github.com/google/go-cloud/blob/fileblob"
	"github.com/google/go-cloud/blob/gcsblob"
	"github.com/google/go-cloud/blob/s3blob"
	"github.com/google/go-cloud/gcp"
	"github.com/sirupsen/logrus"
)

// downloadRetries is the number of times a failed http request is retried.
var downloadRetries uint64 = 3

// maybeDownload checks if the input is an existing file locally.
// If not, it checks if the file is a URL or a blob storage location.
// If so, it downloads the file and returns the path to the downloaded file.
// For shapefiles, it downloads all associated files and
// returns the path to the file with the ".shp" extension.
func maybeDownload(ctx context.Context, path string) (string, error) {
	// Check if local file exists. If it does, return the given path.
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return path, nil
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return downloadHTTP(ctx, path)
	}
	if IsBlob(path) {
		return downloadBlob(ctx, path)
	}
	return path, nil
}

// errNotFound is returned by fetch when the server has no such file.
type errNotFound struct{ url string }

func (e errNotFound) Error() string { return fmt.Sprintf("rmcgeo: %s not found", e.url) }

// fetch writes the body of a GET request to w, retrying failed requests
// with exponential backoff.
func fetch(ctx context.Context, rawurl string, w io.Writer) error {
	var notFound bool
	var b bytes.Buffer
	err := backoff.RetryNotify(
		func() error {
			req, err := http.NewRequest("GET", rawurl, nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req.WithContext(ctx))
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			switch {
			case resp.StatusCode == http.StatusNotFound:
				notFound = true
				return nil
			case resp.StatusCode >= 300:
				return fmt.Errorf("rmcgeo: downloading %s: %s", rawurl, resp.Status)
			}
			b.Reset()
			_, err = io.Copy(&b, resp.Body)
			return err
		},
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), downloadRetries),
		func(err error, d time.Duration) {
			logrus.WithField("url", rawurl).Warnf("%v: retrying in %v", err, d)
		},
	)
	if err != nil {
		return err
	}
	if notFound {
		return errNotFound{url: rawurl}
	}
	_, err = w.Write(b.Bytes())
	return err
}

// downloadHTTP downloads a file from the specified URL and returns
// the path to the downloaded file. Missing shapefile support files
// are skipped.
func downloadHTTP(ctx context.Context, path string) (string, error) {
	dir, err := ioutil.TempDir("", "rmcgeo")
	if err != nil {
		return path, fmt.Errorf("rmcgeo: creating temporary download directory: %v", err)
	}
	fnames := expandShp(path)
	for i, fname := range fnames {
		local := filepath.Join(dir, filepath.Base(fname))
		w, err := os.Create(local)
		if err != nil {
			return path, fmt.Errorf("rmcgeo: creating file for download: %v", err)
		}
		err = fetch(ctx, fname, w)
		w.Close()
		if _, missing := err.(errNotFound); missing && i > 0 {
			os.Remove(local)
			continue
		}
		if err != nil {
			return path, err
		}
		logrus.WithFields(logrus.Fields{"url": fname, "file": local}).Debug("downloaded")
	}
	return filepath.Join(dir, filepath.Base(fnames[0])), nil
}

// IsBlob returns whether the given filename represents a blob.
// (i.e., if it starts with `gs://`, 's3://', or 'file://').
func IsBlob(path string) bool {
	return strings.HasPrefix(path, "gs://") || strings.HasPrefix(path, "s3://") || strings.HasPrefix(path, "file://")
}

// OpenBucket returns the blob storage bucket specified by bucketName,
// where bucketName must be in the format 'provider://name' where provider
// is the name of the storage provider and name is the name of the bucket.
// Even if name contains subdirectories, only the base directory name will be
// used when opening the bucket.
// The currently accepted storage providers are "file" for the local filesystem
// (e.g., for testing), "gs" for Google Cloud Storage, and "s3" for AWS S3.
func OpenBucket(ctx context.Context, bucketName string) (*blob.Bucket, error) {
	url, err := url.Parse(bucketName)
	if err != nil {
		return nil, fmt.Errorf("rmcgeoutil.OpenBucket: %v", err)
	}
	switch url.Scheme {
	case "file":
		return fileblob.NewBucket(url.Hostname())
	case "gs":
		return gsBucket(ctx, url.Hostname())
	case "s3":
		return s3Bucket(ctx, url.Hostname())
	default:
		return nil, fmt.Errorf("rmcgeoutil.OpenBucket: invalid provider %s", url.Scheme)
	}
}

func gsBucket(ctx context.Context, name string) (*blob.Bucket, error) {
	// See here for information on credentials:
	// https://cloud.google.com/docs/authentication/getting-started
	creds, err := gcp.DefaultCredentials(ctx)
	if err != nil {
		return nil, err
	}
	c, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
	if err != nil {
		return nil, err
	}
	return gcsblob.OpenBucket(ctx, name, c)
}

// s3Bucket opens an s3 storage bucket. It assumes the following
// environment variables are set: AWS_REGION, AWS_ACCESS_KEY_ID, and
// AWS_SECRET_ACCESS_KEY.
func s3Bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "sa-east-1"
	}
	c := &aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewEnvCredentials(),
	}
	s, err := session.NewSession(c)
	if err != nil {
		return nil, err
	}
	return s3blob.OpenBucket(ctx, s, name)
}

// downloadBlob downloads the specified file from blob storage. Missing
// shapefile support files are skipped.
func downloadBlob(ctx context.Context, path string) (string, error) {
	url, err := url.Parse(path)
	if err != nil {
		return path, err
	}
	bucket, err := OpenBucket(ctx, url.Scheme+"://"+url.Host)
	if err != nil {
		return path, err
	}
	dir, err := ioutil.TempDir("", "rmcgeo")
	if err != nil {
		return path, fmt.Errorf("rmcgeo: creating temporary download directory: %v", err)
	}
	fnames := expandShp(strings.TrimPrefix(url.Path, "/"))
	for i, key := range fnames {
		r, err := bucket.NewReader(ctx, key)
		if err != nil {
			if i > 0 {
				continue
			}
			return path, fmt.Errorf("rmcgeo: opening %s: %v", path, err)
		}
		w, err := os.Create(filepath.Join(dir, filepath.Base(key)))
		if err != nil {
			r.Close()
			return path, fmt.Errorf("rmcgeo: creating file for download: %v", err)
		}
		_, err = io.Copy(w, r)
		r.Close()
		w.Close()
		if err != nil {
			return path, fmt.Errorf("rmcgeo: downloading %s: %v", key, err)
		}
	}
	return filepath.Join(dir, filepath.Base(fnames[0])), nil
}

// expandShp returns the given file + associated [.dbf, .shx, .prj]
// files if the given file has the .shp extension, and returns the given
// file otherwise
func expandShp(filename string) []string {
	o := []string{filename}
	ext := filepath.Ext(filename)
	if ext != ".shp" {
		return o
	}
	for _, newExt := range []string{".dbf", ".shx", ".prj"} {
		o = append(o, filename[0:len(filename)-4]+newExt)
	}
	return o
}

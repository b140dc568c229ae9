package fontconvert

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
)

// chunkSize is the read buffer size used when streaming a download to disk.
const chunkSize = 8192

// Download fetches the given URL and streams the response body to dst in
// fixed-size chunks. There is no retry; any transport failure or non-2xx
// status is a NetworkError.
func (c *Converter) Download(ctx context.Context, rawurl, dst string) error {
	c.debugf("downloading %s", rawurl)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return &NetworkError{rawurl, err}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return &NetworkError{rawurl, err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || 300 <= resp.StatusCode {
		return &NetworkError{rawurl, fmt.Errorf("unexpected status %s", resp.Status)}
	}

	f, err := os.Create(dst)
	if err != nil {
		return &NetworkError{rawurl, err}
	}
	buf := make([]byte, chunkSize)
	for {
		n, err := resp.Body.Read(buf)
		if 0 < n {
			if _, werr := f.Write(buf[:n]); werr != nil {
				f.Close()
				return &NetworkError{rawurl, werr}
			}
		}
		if err == io.EOF {
			break
		} else if err != nil {
			f.Close()
			return &NetworkError{rawurl, err}
		}
	}
	if err := f.Close(); err != nil {
		return &NetworkError{rawurl, err}
	}
	c.debugf("downloaded %s", dst)
	return nil
}

// filenameFromURL derives a local filename from the last path segment of the
// URL, with the query string stripped.
func filenameFromURL(rawurl string) string {
	name := ""
	if u, err := url.Parse(rawurl); err == nil {
		name = path.Base(u.Path)
	}
	if name == "" || name == "." || name == "/" || strings.ContainsAny(name, `\:`) {
		name = "font"
	}
	return name
}

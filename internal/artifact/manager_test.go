package artifact

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

var (
	testFile         = []byte("test-file")
	testFileChecksum = "3fa65313f3ee7c23d31896e7f57af67618b88dff00f6eb7c3aba2d968d6d4b32"
)

func getTestServer(t *testing.T, failingRequests int) *httptest.Server {
	cnt := 0
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cnt++
		if cnt <= failingRequests {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if r.Header.Get("User-Agent") != DefaultUserAgent || r.Header.Get("Authorization") != "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, err := w.Write(testFile)
		require.NoError(t, err)
	}))
}

func newTestManager(t *testing.T, withDir bool) (*Manager, afero.Fs) {
	fs := afero.NewMemMapFs()
	if withDir {
		require.NoError(t, fs.MkdirAll("plugins", 0o755))
	}
	client := NewRetryableClient(2, 10*time.Second)
	client.RetryWaitMin = time.Millisecond
	client.RetryWaitMax = 5 * time.Millisecond
	return NewManager(fs, "plugins", NewDownloader(client, "")), fs
}

func readFile(t *testing.T, fs afero.Fs, name string) []byte {
	data, err := afero.ReadFile(fs, name)
	require.NoError(t, err)
	return data
}

func TestDownload(t *testing.T) {
	ts := getTestServer(t, 0)
	defer ts.Close()

	var sb strings.Builder
	n, checksum, err := NewDownloader(nil, "").Download(context.Background(), ts.URL, &sb)
	require.NoError(t, err)
	require.Equal(t, int64(len(testFile)), n)
	require.Equal(t, testFileChecksum, checksum)
	require.Equal(t, string(testFile), sb.String())
}

func TestInstall(t *testing.T) {
	ts := getTestServer(t, 0)
	defer ts.Close()
	m, fs := newTestManager(t, true)

	res, err := m.Install(context.Background(), ts.URL, "widget.jar", nil)
	require.NoError(t, err)
	require.Equal(t, testFileChecksum, res.Checksum)
	require.Equal(t, int64(len(testFile)), res.Size)
	require.Equal(t, testFile, readFile(t, fs, "plugins/widget.jar"))

	entries, err := afero.ReadDir(fs, "plugins")
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestInstallRetry(t *testing.T) {
	ts := getTestServer(t, 1)
	defer ts.Close()
	m, fs := newTestManager(t, true)

	_, err := m.Install(context.Background(), ts.URL, "widget.jar", nil)
	require.NoError(t, err)
	require.Equal(t, testFile, readFile(t, fs, "plugins/widget.jar"))
}

func TestInstallDownloadFailureLeavesNoFile(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()
	m, fs := newTestManager(t, true)

	_, err := m.Install(context.Background(), ts.URL, "widget.jar", nil)
	var artifactErr *Error
	require.True(t, errors.As(err, &artifactErr))
	require.Equal(t, "download", artifactErr.Op)
	require.ErrorContains(t, err, "unexpected status code: 404")

	entries, err := afero.ReadDir(fs, "plugins")
	require.NoError(t, err)
	require.Empty(t, entries)
}

type chmodFailingFs struct {
	afero.Fs
}

func (chmodFailingFs) Chmod(string, os.FileMode) error {
	return errors.New("operation not permitted")
}

func TestInstallChmodFailureKeepsExistingFile(t *testing.T) {
	ts := getTestServer(t, 0)
	defer ts.Close()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("plugins", 0o755))
	require.NoError(t, afero.WriteFile(fs, "plugins/widget.jar", []byte("old"), 0o755))
	m := NewManager(chmodFailingFs{fs}, "plugins", NewDownloader(NewRetryableClient(0, 5*time.Second), ""))

	_, err := m.Install(context.Background(), ts.URL, "widget.jar", func(string) (bool, error) {
		return true, nil
	})
	var artifactErr *Error
	require.True(t, errors.As(err, &artifactErr))
	require.Equal(t, "write", artifactErr.Op)
	require.ErrorContains(t, err, "operation not permitted")
	require.Equal(t, []byte("old"), readFile(t, fs, "plugins/widget.jar"))

	entries, err := afero.ReadDir(fs, "plugins")
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestInstallConflict(t *testing.T) {
	ts := getTestServer(t, 0)
	defer ts.Close()
	m, fs := newTestManager(t, true)
	require.NoError(t, afero.WriteFile(fs, "plugins/widget.jar", []byte("old"), 0o644))

	asked := 0
	_, err := m.Install(context.Background(), ts.URL, "widget.jar", func(fileName string) (bool, error) {
		asked++
		require.Equal(t, "widget.jar", fileName)
		return false, nil
	})
	require.ErrorIs(t, err, ErrAbandoned)
	require.Equal(t, 1, asked)
	require.Equal(t, []byte("old"), readFile(t, fs, "plugins/widget.jar"))

	_, err = m.Install(context.Background(), ts.URL, "widget.jar", nil)
	require.ErrorIs(t, err, ErrAbandoned)

	_, err = m.Install(context.Background(), ts.URL, "widget.jar", func(string) (bool, error) {
		return true, nil
	})
	require.NoError(t, err)
	require.Equal(t, testFile, readFile(t, fs, "plugins/widget.jar"))
}

func TestInstallResolverError(t *testing.T) {
	m, fs := newTestManager(t, true)
	require.NoError(t, afero.WriteFile(fs, "plugins/widget.jar", []byte("old"), 0o644))
	_, err := m.Install(context.Background(), "http://127.0.0.1:1", "widget.jar", func(string) (bool, error) {
		return false, io.EOF
	})
	require.ErrorIs(t, err, io.EOF)
}

func TestPluginsDirMissing(t *testing.T) {
	m, _ := newTestManager(t, false)
	_, err := m.Install(context.Background(), "http://127.0.0.1:1", "widget.jar", nil)
	require.ErrorIs(t, err, ErrPluginsDirMissing)
	require.ErrorIs(t, m.Delete("widget.jar"), ErrPluginsDirMissing)
	require.ErrorIs(t, m.CheckDir(), ErrPluginsDirMissing)
}

func TestDelete(t *testing.T) {
	m, fs := newTestManager(t, true)
	require.NoError(t, afero.WriteFile(fs, "plugins/widget.jar", testFile, 0o644))

	require.NoError(t, m.Delete("widget.jar"))
	exists, err := m.Exists("widget.jar")
	require.NoError(t, err)
	require.False(t, exists)

	require.ErrorIs(t, m.Delete("widget.jar"), ErrArtifactNotFound)
}

func TestInvalidFileName(t *testing.T) {
	m, _ := newTestManager(t, true)
	for _, name := range []string{"", ".", "..", "../mngr.toml", `sub\file.jar`} {
		require.ErrorIs(t, m.Delete(name), ErrInvalidFileName, name)
		_, err := m.Install(context.Background(), "http://127.0.0.1:1", name, nil)
		require.ErrorIs(t, err, ErrInvalidFileName, name)
	}
}

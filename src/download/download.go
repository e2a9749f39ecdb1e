// Package download implements the host-sharded, connection-reusing,
// size/SHA1-verifying batch downloader.
package download

import (
	"crypto/sha1"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/kestrel-project/launchcore/src/events"
)

// MaxRetries bounds per-entry verification retries.
const MaxRetries = 3

// ErrInvalidScheme mirrors httpclient's scheme check for download URLs.
var ErrInvalidScheme = errors.New("download: url scheme must be http or https")

// ErrDownloadFailed wraps a persistently failing entry.
type ErrDownloadFailed struct {
	Entry Entry
	Cause error
}

func (e *ErrDownloadFailed) Error() string {
	return errors.Wrapf(e.Cause, "download: %q failed verification", e.Entry.DisplayName).Error()
}

func (e *ErrDownloadFailed) Unwrap() error { return e.Cause }

// Entry describes one file to download.
type Entry struct {
	URL          string
	Destination  string
	ExpectedSize int64 // checked only when HasSize is set
	HasSize      bool
	ExpectedSHA1 string
	DisplayName  string
}

// hostKey returns "{0|1}{netloc}": the scheme-tagged host a URL downloads
// from, used to group entries so each host gets one reused connection.
func hostKey(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.Wrap(ErrInvalidScheme, err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errors.Wrapf(ErrInvalidScheme, "%q", u.Scheme)
	}
	prefix := "0"
	if u.Scheme == "https" {
		prefix = "1"
	}
	return prefix + u.Host, nil
}

// List groups entries by host key and holds the finalize callbacks run after
// every entry across every host succeeds.
type List struct {
	byHost    map[string][]Entry
	hostOrder []string
	callbacks []func() error
	Count     int
	Size      int64
}

// NewList creates an empty List.
func NewList() *List {
	return &List{byHost: map[string][]Entry{}}
}

// Add appends entry to its host-key bucket. Append-only during planning.
func (l *List) Add(entry Entry) error {
	key, err := hostKey(entry.URL)
	if err != nil {
		return err
	}
	if _, ok := l.byHost[key]; !ok {
		l.hostOrder = append(l.hostOrder, key)
	}
	l.byHost[key] = append(l.byHost[key], entry)
	l.Count++
	if entry.HasSize {
		l.Size += entry.ExpectedSize
	}
	return nil
}

// AddFinalizeCallback registers a callback run, in FIFO order, once every
// entry has downloaded and verified successfully.
func (l *List) AddFinalizeCallback(cb func() error) {
	l.callbacks = append(l.callbacks, cb)
}

// IsEmpty reports whether the list has no entries queued.
func (l *List) IsEmpty() bool {
	return l.Count == 0
}

// Executor runs a List to completion: sequential-per-host-key, parallel
// across host keys, bounded worker count.
type Executor struct {
	MaxWorkers int
	Watcher    events.Watcher
	log        *logrus.Entry
}

// NewExecutor builds an Executor. maxWorkers<=0 means "one worker per host key".
func NewExecutor(maxWorkers int, watcher events.Watcher) *Executor {
	if watcher == nil {
		watcher = events.NopWatcher
	}
	// Host workers run concurrently; serialize their events so the watcher
	// never sees concurrent Notify calls.
	var mu sync.Mutex
	inner := watcher
	watcher = events.WatcherFunc(func(ev events.Event) {
		mu.Lock()
		defer mu.Unlock()
		inner.Notify(ev)
	})
	return &Executor{MaxWorkers: maxWorkers, Watcher: watcher, log: logrus.WithField("component", "download")}
}

// Run downloads every entry in list, then runs the finalize callbacks in
// FIFO order. A callback error aborts the phase.
func (e *Executor) Run(list *List) error {
	e.Watcher.Notify(events.DownloadListStarted{Count: list.Count, Size: list.Size})

	maxWorkers := e.MaxWorkers
	if maxWorkers <= 0 || maxWorkers > len(list.hostOrder) {
		maxWorkers = len(list.hostOrder)
	}
	if maxWorkers == 0 {
		return e.runCallbacks(list)
	}

	sem := make(chan struct{}, maxWorkers)
	var wg sync.WaitGroup
	errCh := make(chan error, len(list.hostOrder))

	for _, key := range list.hostOrder {
		key := key
		entries := list.byHost[key]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := e.runHostQueue(key, entries); err != nil {
				errCh <- err
			}
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			return err
		}
	}

	return e.runCallbacks(list)
}

func (e *Executor) runCallbacks(list *List) error {
	for _, cb := range list.callbacks {
		if err := cb(); err != nil {
			return errors.Wrap(err, "download: finalize callback failed")
		}
	}
	return nil
}

// runHostQueue downloads every entry for one host key sequentially over a
// single reused client, preserving enqueue order.
func (e *Executor) runHostQueue(hostKey string, entries []Entry) error {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = 0 // retries are driven per-entry by verification below, not by transport-level retry

	for _, entry := range entries {
		if err := e.downloadOne(client, hostKey, entry); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) downloadOne(client *retryablehttp.Client, hostKey string, entry Entry) error {
	var lastErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		e.Watcher.Notify(events.DownloadStarted{HostKey: hostKey, DisplayName: entry.DisplayName, Size: entry.ExpectedSize})

		status, tmpPath, sum, size, err := e.stream(client, entry)
		if err != nil {
			lastErr = err
			continue
		}
		if status == http.StatusNotFound {
			// Terminal: caller (e.g. installer suffix probing) branches on this.
			return &statusError{status: status}
		}
		if status >= 400 {
			// Non-404 4xx/5xx: not retried.
			return errors.Errorf("download: %q returned status %d", entry.DisplayName, status)
		}
		if entry.HasSize && size != entry.ExpectedSize {
			os.Remove(tmpPath)
			lastErr = errors.Errorf("download: %q size mismatch: got %d want %d", entry.DisplayName, size, entry.ExpectedSize)
			continue
		}
		if entry.ExpectedSHA1 != "" && sum != entry.ExpectedSHA1 {
			os.Remove(tmpPath)
			lastErr = errors.Errorf("download: %q sha1 mismatch: got %s want %s", entry.DisplayName, sum, entry.ExpectedSHA1)
			continue
		}

		if err := os.Rename(tmpPath, entry.Destination); err != nil {
			lastErr = err
			continue
		}

		e.Watcher.Notify(events.DownloadCompleted{HostKey: hostKey, DisplayName: entry.DisplayName})
		return nil
	}

	e.Watcher.Notify(events.DownloadFailed{HostKey: hostKey, DisplayName: entry.DisplayName, Err: lastErr})
	return &ErrDownloadFailed{Entry: entry, Cause: lastErr}
}

// statusError carries a raw HTTP status through to callers that need to
// branch on it (e.g. 404 during installer suffix probing).
type statusError struct{ status int }

func (s *statusError) Error() string { return errors.Errorf("download: status %d", s.status).Error() }

// Status returns the raw HTTP status code carried by err, if any.
func Status(err error) (int, bool) {
	var se *statusError
	if errors.As(err, &se) {
		return se.status, true
	}
	return 0, false
}

// stream downloads entry to a temp file next to its destination and returns
// the temp path along with the observed status/sha1/size. The caller decides
// whether to rename the temp file into place or discard it.
func (e *Executor) stream(client *retryablehttp.Client, entry Entry) (status int, tmpPath string, sha1Hex string, size int64, err error) {
	if err := os.MkdirAll(filepath.Dir(entry.Destination), 0o755); err != nil {
		return 0, "", "", 0, err
	}

	req, err := retryablehttp.NewRequest(http.MethodGet, entry.URL, nil)
	if err != nil {
		return 0, "", "", 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return resp.StatusCode, "", "", 0, nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(entry.Destination), ".download-*")
	if err != nil {
		return 0, "", "", 0, err
	}
	tmpPath = tmp.Name()

	hasher := sha1.New()
	counter := &countingWriter{}
	written, err := io.Copy(io.MultiWriter(tmp, hasher, counter), resp.Body)
	tmp.Close()
	if err != nil {
		os.Remove(tmpPath)
		return 0, "", "", 0, err
	}

	e.Watcher.Notify(events.DownloadProgress{DisplayName: entry.DisplayName, BytesDelta: written})

	return resp.StatusCode, tmpPath, hex.EncodeToString(hasher.Sum(nil)), counter.n, nil
}

type countingWriter struct{ n int64 }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}

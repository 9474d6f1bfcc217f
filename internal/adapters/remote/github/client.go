// Package github stores the workbook in a GitHub repository through the contents API.
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/SscSPs/kiosc_finance_app/internal/apperrors"
	portsrepo "github.com/SscSPs/kiosc_finance_app/internal/core/ports/repositories"
	"github.com/SscSPs/kiosc_finance_app/internal/middleware"
	"golang.org/x/oauth2"
)

// DriverName identifies this driver in configuration.
const DriverName = "github"

const apiVersion = "2022-11-28"

// spreadsheetExtensions lists the file types surfaced by ListFiles.
var spreadsheetExtensions = []string{".xlsx", ".xls", ".xlsm", ".xlsb"}

// Config locates the repository directory that holds the workbook.
type Config struct {
	Owner      string
	Repository string
	Branch     string
	DataPath   string
	Token      string
	APIBaseURL string
	RawBaseURL string
	Timeout    time.Duration
	// Transport overrides the base HTTP transport (tests).
	Transport http.RoundTripper
}

// Client is a RemoteStore backed by the GitHub contents API.
// Writes are conditional on the blob sha observed by the last read or write.
type Client struct {
	cfg       Config
	api       *http.Client
	raw       *http.Client
	mu        sync.Mutex
	revisions map[string]revision
}

// revision is the repository file a filename resolved to and its last known blob sha.
type revision struct {
	name string
	sha  string
}

var _ portsrepo.RemoteStore = (*Client)(nil)

type contentItem struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Sha         string `json:"sha"`
	Size        int64  `json:"size"`
	Type        string `json:"type"`
	DownloadURL string `json:"download_url"`
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch,omitempty"`
	Sha     string `json:"sha,omitempty"`
}

type putResponse struct {
	Content struct {
		Sha string `json:"sha"`
	} `json:"content"`
	Commit struct {
		Sha string `json:"sha"`
	} `json:"commit"`
}

// NewClient creates a GitHub contents client. An empty token yields an
// unauthenticated client that can only read public repositories.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Owner == "" || cfg.Repository == "" {
		return nil, fmt.Errorf("%w: github owner and repository are required", apperrors.ErrValidation)
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.github.com"
	}
	if cfg.RawBaseURL == "" {
		cfg.RawBaseURL = "https://raw.githubusercontent.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	cfg.RawBaseURL = strings.TrimRight(cfg.RawBaseURL, "/")
	cfg.DataPath = strings.Trim(cfg.DataPath, "/")

	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	apiTransport := base
	if cfg.Token != "" {
		apiTransport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"}),
			Base:   base,
		}
	}

	return &Client{
		cfg:       cfg,
		api:       &http.Client{Timeout: cfg.Timeout, Transport: apiTransport},
		raw:       &http.Client{Timeout: cfg.Timeout, Transport: base},
		revisions: make(map[string]revision),
	}, nil
}

// Driver implements RemoteStore.
func (c *Client) Driver() string { return DriverName }

// Ping checks that the repository is reachable with the configured credentials.
func (c *Client) Ping(ctx context.Context) error {
	target := fmt.Sprintf("%s/repos/%s/%s", c.cfg.APIBaseURL, url.PathEscape(c.cfg.Owner), url.PathEscape(c.cfg.Repository))
	resp, err := c.do(ctx, c.api, http.MethodGet, target, nil)
	if err != nil {
		return apperrors.NewRemoteError(apperrors.ErrTransport, "ping", c.repoPath(), 0, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return c.statusError("ping", c.repoPath(), resp)
	}
	return nil
}

// ListFiles lists the spreadsheet files in the data directory.
func (c *Client) ListFiles(ctx context.Context) ([]portsrepo.RemoteFile, error) {
	items, err := c.listDirectory(ctx)
	if err != nil {
		return nil, err
	}
	files := make([]portsrepo.RemoteFile, 0, len(items))
	for _, item := range items {
		files = append(files, portsrepo.RemoteFile{
			Name:        item.Name,
			Path:        item.Path,
			Size:        item.Size,
			Revision:    item.Sha,
			DownloadURL: item.DownloadURL,
		})
	}
	return files, nil
}

// FileExists reports whether the data directory holds a case-insensitive match.
func (c *Client) FileExists(ctx context.Context, filename string) (bool, error) {
	items, err := c.listDirectory(ctx)
	if err != nil {
		return false, err
	}
	_, ok := matchFile(items, filename)
	return ok, nil
}

// FetchFile downloads the named file. The public raw URL is tried first;
// on failure the authenticated download URL from the listing is used.
func (c *Client) FetchFile(ctx context.Context, filename string) ([]byte, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	items, err := c.listDirectory(ctx)
	if err != nil {
		return nil, err
	}
	item, ok := matchFile(items, filename)
	if !ok {
		return nil, apperrors.NewRemoteError(apperrors.ErrFileNotFound, "fetch", c.filePath(filename), 0, nil)
	}

	rawURL := fmt.Sprintf("%s/%s/%s/%s/%s", c.cfg.RawBaseURL, url.PathEscape(c.cfg.Owner), url.PathEscape(c.cfg.Repository),
		url.PathEscape(c.cfg.Branch), escapePath(c.filePath(item.Name)))
	data, rawErr := c.download(ctx, c.raw, rawURL, item.Path)
	if rawErr == nil {
		c.remember(filename, item.Name, item.Sha)
		return data, nil
	}
	logger.Debug("Raw download failed, falling back to contents API",
		slog.String("file", item.Path), slog.String("error", rawErr.Error()))

	if item.DownloadURL == "" {
		return nil, rawErr
	}
	data, err = c.download(ctx, c.api, item.DownloadURL, item.Path)
	if err != nil {
		return nil, err
	}
	c.remember(filename, item.Name, item.Sha)
	return data, nil
}

// PutFile creates or updates the file. It writes to the repository file the
// name last resolved to; when nothing has been observed yet the data directory
// is searched case-insensitively and a missing file is created.
func (c *Client) PutFile(ctx context.Context, filename string, content []byte, commitMessage string) (string, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	target, known := c.lastSeen(filename)
	if !known {
		resolved, err := c.resolve(ctx, filename)
		if err != nil {
			return "", err
		}
		target = resolved
	}
	filePath := c.filePath(target.name)
	sha := target.sha
	if commitMessage == "" {
		commitMessage = "Update data file: " + target.name
	}

	body, err := json.Marshal(putRequest{
		Message: commitMessage,
		Content: base64.StdEncoding.EncodeToString(content),
		Branch:  c.cfg.Branch,
		Sha:     sha,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := c.do(ctx, c.api, http.MethodPut, c.contentsURL(filePath, false), bytes.NewReader(body))
	if err != nil {
		return "", apperrors.NewRemoteError(apperrors.ErrTransport, "put", filePath, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", c.statusError("put", filePath, resp)
	}

	var out putResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperrors.NewRemoteError(apperrors.ErrTransport, "put", filePath, resp.StatusCode, fmt.Errorf("failed to decode response: %w", err))
	}
	c.remember(filename, target.name, out.Content.Sha)

	logger.Info("Workbook committed", slog.String("file", filePath), slog.String("commit", out.Commit.Sha))
	if out.Commit.Sha != "" {
		return out.Commit.Sha, nil
	}
	return out.Content.Sha, nil
}

func (c *Client) listDirectory(ctx context.Context) ([]contentItem, error) {
	dir := c.cfg.DataPath
	resp, err := c.do(ctx, c.api, http.MethodGet, c.contentsURL(dir, true), nil)
	if err != nil {
		return nil, apperrors.NewRemoteError(apperrors.ErrTransport, "list", dir, 0, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError("list", dir, resp)
	}

	var items []contentItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, apperrors.NewRemoteError(apperrors.ErrTransport, "list", dir, resp.StatusCode, fmt.Errorf("failed to decode response: %w", err))
	}
	files := items[:0]
	for _, item := range items {
		if item.Type == "file" && isSpreadsheet(item.Name) {
			files = append(files, item)
		}
	}
	return files, nil
}

// resolve finds the directory entry matching filename. A missing entry, or a
// missing data directory, resolves to a new file under the given name.
func (c *Client) resolve(ctx context.Context, filename string) (revision, error) {
	items, err := c.listDirectory(ctx)
	if err != nil {
		var remoteErr *apperrors.RemoteError
		if errors.As(err, &remoteErr) && remoteErr.StatusCode == http.StatusNotFound {
			return revision{name: filename}, nil
		}
		return revision{}, err
	}
	if item, ok := matchFile(items, filename); ok {
		return revision{name: item.Name, sha: item.Sha}, nil
	}
	return revision{name: filename}, nil
}

func (c *Client) download(ctx context.Context, client *http.Client, target, filePath string) ([]byte, error) {
	resp, err := c.do(ctx, client, http.MethodGet, target, nil)
	if err != nil {
		return nil, apperrors.NewRemoteError(apperrors.ErrTransport, "fetch", filePath, 0, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError("fetch", filePath, resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewRemoteError(apperrors.ErrTransport, "fetch", filePath, resp.StatusCode, err)
	}
	return data, nil
}

func (c *Client) do(ctx context.Context, client *http.Client, method, target string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return client.Do(req)
}

// statusError maps an unexpected response to a RemoteError.
func (c *Client) statusError(op, filePath string, resp *http.Response) error {
	kind := apperrors.ErrTransport
	switch resp.StatusCode {
	case http.StatusConflict, http.StatusUnprocessableEntity:
		kind = apperrors.ErrConflict
	case http.StatusNotFound:
		if op == "fetch" {
			kind = apperrors.ErrFileNotFound
		}
	}
	var apiErr struct {
		Message string `json:"message"`
	}
	msg := resp.Status
	if b, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); err == nil && json.Unmarshal(b, &apiErr) == nil && apiErr.Message != "" {
		msg = apiErr.Message
	}
	return apperrors.NewRemoteError(kind, op, filePath, resp.StatusCode, errors.New(msg))
}

func (c *Client) contentsURL(p string, withRef bool) string {
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.cfg.APIBaseURL, url.PathEscape(c.cfg.Owner), url.PathEscape(c.cfg.Repository), escapePath(p))
	if withRef && c.cfg.Branch != "" {
		u += "?ref=" + url.QueryEscape(c.cfg.Branch)
	}
	return u
}

func (c *Client) filePath(filename string) string {
	if c.cfg.DataPath == "" {
		return filename
	}
	return path.Join(c.cfg.DataPath, filename)
}

func (c *Client) repoPath() string {
	return c.cfg.Owner + "/" + c.cfg.Repository
}

func (c *Client) remember(filename, name, sha string) {
	if sha == "" {
		return
	}
	c.mu.Lock()
	c.revisions[strings.ToLower(filename)] = revision{name: name, sha: sha}
	c.mu.Unlock()
}

func (c *Client) lastSeen(filename string) (revision, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rev, ok := c.revisions[strings.ToLower(filename)]
	return rev, ok
}

func matchFile(items []contentItem, filename string) (contentItem, bool) {
	for _, item := range items {
		if strings.EqualFold(item.Name, filename) {
			return item, true
		}
	}
	return contentItem{}, false
}

func isSpreadsheet(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range spreadsheetExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
)

const (
	// itemSelect is the field set requested for listing-shaped responses.
	itemSelect = "name,id,size,lastModifiedDateTime,folder,file,video,image"
	// metaSelect additionally pulls the pre-authenticated download URL.
	// Selecting the download URL on its own fails on some OneDrive
	// deployments, so it is always requested alongside other fields.
	metaSelect = itemSelect + ",@microsoft.graph.downloadUrl"
	// idSelect is the field set for lookups by item id.
	idSelect = "id,name,parentReference,file,folder,lastModifiedDateTime"
)

var skipTokenPattern = regexp.MustCompile(`(?i)[?&]\$skiptoken=([^&]+)`)

// Client talks to the Microsoft Graph drive API.
type Client struct {
	httpClient    *http.Client
	endpoint      string
	tokens        TokenSource
	baseDirectory string
	logger        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client, including its timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseDirectory roots every path below the given drive subdirectory.
func WithBaseDirectory(dir string) Option {
	return func(c *Client) { c.baseDirectory = dir }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger.With("component", "drive") }
}

// NewClient creates a Graph drive client. endpoint is the drive root URL
// without trailing slash, e.g. https://graph.microsoft.com/v1.0/me/drive.
func NewClient(endpoint string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		httpClient:    http.DefaultClient,
		endpoint:      strings.TrimSuffix(endpoint, "/"),
		tokens:        tokens,
		baseDirectory: "/",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default().With("component", "drive")
	}
	return c
}

// EncodePath converts an index path to the Graph path-addressing suffix:
// an empty string for the drive root, otherwise ":" followed by the
// segment-escaped absolute path inside the drive.
func (c *Client) EncodePath(p string) string {
	joined := path.Join("/", c.baseDirectory, p)
	if joined == "/" {
		return ""
	}
	joined = strings.TrimSuffix(joined, "/")
	segments := strings.Split(joined, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return ":" + strings.Join(segments, "/")
}

// AbsolutePath converts a parentReference.path such as "/drive/root:/sub/dir"
// into the directory path as presented by the index, relative to the base
// directory. Returns "" when the path lies outside the base directory.
func (c *Client) AbsolutePath(parentPath string) string {
	sep := "root:"
	if c.baseDirectory != "/" {
		sep = c.baseDirectory
	}
	_, rest, found := strings.Cut(parentPath, sep)
	if !found {
		return ""
	}
	segments := strings.Split(rest, "/")
	for i, s := range segments {
		if unescaped, err := url.PathUnescape(s); err == nil {
			segments[i] = unescaped
		}
	}
	return strings.Join(segments, "/")
}

func (c *Client) itemURL(p string) string {
	return c.endpoint + "/root" + c.EncodePath(p)
}

// ItemByPath fetches an item's metadata, including its download URL.
func (c *Client) ItemByPath(ctx context.Context, p string) (*Item, error) {
	var item Item
	q := url.Values{"select": {metaSelect}}
	if err := c.getJSON(ctx, c.itemURL(p), q, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// ItemByID fetches an item's metadata by its raw Graph id.
func (c *Client) ItemByID(ctx context.Context, id string) (*Item, error) {
	var item Item
	q := url.Values{"select": {idSelect}}
	u := c.endpoint + "/items/" + url.PathEscape(id)
	if err := c.getJSON(ctx, u, q, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// Children lists one page of a folder, with optional paging token and
// OData orderby clause.
func (c *Client) Children(ctx context.Context, p string, top int, skipToken, orderby string) (*Page, error) {
	u := c.itemURL(p)
	if c.EncodePath(p) != "" {
		u += ":"
	}
	u += "/children"

	q := url.Values{
		"select": {itemSelect},
		"$top":   {strconv.Itoa(top)},
	}
	if skipToken != "" {
		q.Set("$skipToken", skipToken)
	}
	if orderby != "" {
		q.Set("$orderby", orderby)
	}

	var folder struct {
		Value    []*Item `json:"value"`
		NextLink string  `json:"@odata.nextLink"`
	}
	if err := c.getJSON(ctx, u, q, &folder); err != nil {
		return nil, err
	}

	page := &Page{Items: folder.Value}
	if m := skipTokenPattern.FindStringSubmatch(folder.NextLink); m != nil {
		if tok, err := url.QueryUnescape(m[1]); err == nil {
			page.NextToken = tok
		} else {
			page.NextToken = m[1]
		}
	}
	return page, nil
}

// Search queries the drive under the base directory.
func (c *Client) Search(ctx context.Context, query string, top int) ([]*Item, error) {
	enc := c.EncodePath("/")
	u := c.endpoint + "/root" + enc
	if enc != "" {
		u += ":"
	}
	u += "/search(q='" + url.PathEscape(sanitiseQuery(query)) + "')"

	q := url.Values{
		"select": {"id,name,file,parentReference"},
		"top":    {strconv.Itoa(top)},
	}
	var result struct {
		Value []*Item `json:"value"`
	}
	if err := c.getJSON(ctx, u, q, &result); err != nil {
		return nil, err
	}
	return result.Value, nil
}

// Content fetches a file's raw bytes by path: metadata lookup for the
// download handle, then the content itself. maxSize of 0 means unlimited.
func (c *Client) Content(ctx context.Context, p string, maxSize int64) ([]byte, error) {
	item, err := c.ItemByPath(ctx, p)
	if err != nil {
		return nil, err
	}
	if item.IsFolder() {
		return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	if item.DownloadURL == "" {
		return nil, &UpstreamError{StatusCode: http.StatusBadGateway, Message: "item has no download URL"}
	}
	if maxSize > 0 && item.Size > maxSize {
		return nil, fmt.Errorf("drive: %s exceeds maximum content size %d", p, maxSize)
	}

	resp, err := c.Download(ctx, item.DownloadURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var r io.Reader = resp.Body
	if maxSize > 0 {
		r = io.LimitReader(resp.Body, maxSize)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading content of %s: %w", p, err)
	}
	return data, nil
}

// Download fetches a pre-authenticated download URL. The caller must close
// the response body.
func (c *Client) Download(ctx context.Context, downloadURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading content: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, query url.Values, out any) error {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return err
	}

	u := rawURL
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building drive request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling drive API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding drive response: %w", err)
	}
	return nil
}

// statusError maps an HTTP error response to the adapter's error taxonomy:
// 404 is a definitive not-found, everything else is an UpstreamError.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var graphErr struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &graphErr)

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return &UpstreamError{
		StatusCode: resp.StatusCode,
		Code:       graphErr.Error.Code,
		Message:    graphErr.Error.Message,
	}
}

// sanitiseQuery rewrites a user search query so it can be embedded in the
// Graph search expression: single quotes are doubled, angle brackets are
// spelled out, and separators that confuse the path parser become spaces.
func sanitiseQuery(query string) string {
	r := strings.NewReplacer(
		"'", "''",
		"<", " &lt; ",
		">", " &gt; ",
		"?", " ",
		"/", " ",
		"\\", " ",
	)
	return r.Replace(query)
}

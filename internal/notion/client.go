package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go-swan/internal/fetch"
)

// maxChildren 为单次请求可携带的子块上限。
const maxChildren = 100

// API 为 seed/sync 流水线依赖的远端接口，测试中可替换。
type API interface {
	ListChildren(ctx context.Context, blockID string) ([]Block, error)
	QueryDatabase(ctx context.Context, databaseID string, q *Query) ([]Page, error)
	RetrieveDatabase(ctx context.Context, databaseID string) (*Database, error)
	CreateDatabase(ctx context.Context, req CreateDatabaseRequest) (*Database, error)
	UpdateDatabase(ctx context.Context, databaseID string, req UpdateDatabaseRequest) (*Database, error)
	CreatePage(ctx context.Context, req CreatePageRequest) (*Page, error)
	UpdatePage(ctx context.Context, pageID string, props map[string]PropertyValue) (*Page, error)
	AppendBlocks(ctx context.Context, blockID string, blocks []Block) ([]Block, error)
}

// Options 为客户端构造参数。
type Options struct {
	BaseURL  string
	Token    string
	Version  string
	PageSize int
}

// Client 基于带重试的 fetch.Client 访问工作区 API，可并发使用。
type Client struct {
	http     *fetch.Client
	base     string
	token    string
	version  string
	pageSize int
}

var _ API = (*Client)(nil)

func New(hc *fetch.Client, opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://api.notion.com/v1"
	}
	if opts.Version == "" {
		opts.Version = "2022-06-28"
	}
	if opts.PageSize <= 0 || opts.PageSize > 100 {
		opts.PageSize = 100
	}
	return &Client{http: hc, base: base, token: opts.Token, version: opts.Version, pageSize: opts.PageSize}
}

// ListChildren 返回页面或块的全部子块（自动翻页）。
func (c *Client) ListChildren(ctx context.Context, blockID string) ([]Block, error) {
	op := "list children " + blockID
	return paginate(op, func(cursor string) (listResponse[Block], error) {
		q := url.Values{}
		q.Set("page_size", strconv.Itoa(c.pageSize))
		if cursor != "" {
			q.Set("start_cursor", cursor)
		}
		var out listResponse[Block]
		err := c.do(ctx, op, http.MethodGet, "/blocks/"+url.PathEscape(blockID)+"/children?"+q.Encode(), nil, &out)
		return out, err
	})
}

// QueryDatabase 返回匹配 q 的全部行；q 为 nil 时按远端默认顺序返回所有行。
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, q *Query) ([]Page, error) {
	op := "query database " + databaseID
	return paginate(op, func(cursor string) (listResponse[Page], error) {
		body := queryRequest{StartCursor: cursor, PageSize: c.pageSize}
		if q != nil {
			body.Filter = q.Filter
			body.Sorts = q.Sorts
		}
		var out listResponse[Page]
		err := c.do(ctx, op, http.MethodPost, "/databases/"+url.PathEscape(databaseID)+"/query", body, &out)
		return out, err
	})
}

func (c *Client) RetrieveDatabase(ctx context.Context, databaseID string) (*Database, error) {
	var db Database
	if err := c.do(ctx, "retrieve database "+databaseID, http.MethodGet, "/databases/"+url.PathEscape(databaseID), nil, &db); err != nil {
		return nil, err
	}
	return &db, nil
}

func (c *Client) CreateDatabase(ctx context.Context, req CreateDatabaseRequest) (*Database, error) {
	var db Database
	if err := c.do(ctx, "create database "+PlainText(req.Title), http.MethodPost, "/databases", req, &db); err != nil {
		return nil, err
	}
	return &db, nil
}

func (c *Client) UpdateDatabase(ctx context.Context, databaseID string, req UpdateDatabaseRequest) (*Database, error) {
	var db Database
	if err := c.do(ctx, "update database "+databaseID, http.MethodPatch, "/databases/"+url.PathEscape(databaseID), req, &db); err != nil {
		return nil, err
	}
	return &db, nil
}

// CreatePage 创建页面；超出单次上限的子块在创建后追加。
func (c *Client) CreatePage(ctx context.Context, req CreatePageRequest) (*Page, error) {
	rest := []Block(nil)
	if len(req.Children) > maxChildren {
		rest = req.Children[maxChildren:]
		req.Children = req.Children[:maxChildren]
	}
	var p Page
	if err := c.do(ctx, "create page", http.MethodPost, "/pages", req, &p); err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		if _, err := c.AppendBlocks(ctx, p.ID, rest); err != nil {
			return &p, err
		}
	}
	return &p, nil
}

func (c *Client) UpdatePage(ctx context.Context, pageID string, props map[string]PropertyValue) (*Page, error) {
	var p Page
	if err := c.do(ctx, "update page "+pageID, http.MethodPatch, "/pages/"+url.PathEscape(pageID), updatePageRequest{Properties: props}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// AppendBlocks 按单次上限分批追加子块，返回远端创建的块。
func (c *Client) AppendBlocks(ctx context.Context, blockID string, blocks []Block) ([]Block, error) {
	op := "append blocks " + blockID
	var created []Block
	for start := 0; start < len(blocks); start += maxChildren {
		end := min(start+maxChildren, len(blocks))
		var out listResponse[Block]
		if err := c.do(ctx, op, http.MethodPatch, "/blocks/"+url.PathEscape(blockID)+"/children", appendRequest{Children: blocks[start:end]}, &out); err != nil {
			return created, err
		}
		created = append(created, out.Results...)
	}
	return created, nil
}

// paginate 沿 next_cursor 翻页直到为空，按到达顺序拼接结果，不做重排。
func paginate[T any](op string, page func(cursor string) (listResponse[T], error)) ([]T, error) {
	var all []T
	cursor := ""
	seen := map[string]bool{}
	for {
		resp, err := page(cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, resp.Results...)
		if resp.NextCursor == nil || *resp.NextCursor == "" {
			return all, nil
		}
		next := *resp.NextCursor
		if seen[next] {
			return nil, fmt.Errorf("%s: cursor %q repeated", op, next)
		}
		seen[next] = true
		cursor = next
	}
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = b
	}
	resp, err := c.http.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		var r io.Reader
		if body != nil {
			r = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Notion-Version", c.version)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	})
	if err != nil {
		return classify(op, err)
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &UnavailableError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var se *fetch.StatusError
	if errors.As(err, &se) {
		if se.Transient() {
			return &UnavailableError{Op: op, Err: se}
		}
		if ae, ok := parseAPIError(se.StatusCode, se.Body); ok {
			return &RejectedError{Op: op, Status: ae.Status, Code: ae.Code, Message: ae.Message}
		}
		return &RejectedError{Op: op, Status: se.StatusCode, Message: strings.TrimSpace(string(se.Body))}
	}
	return &UnavailableError{Op: op, Err: err}
}

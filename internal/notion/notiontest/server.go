// 包 notiontest 提供内存版工作区 API（httptest），实现客户端用到的全部端点，
// 用于在测试中经由真实 HTTP 客户端跑通 seed -> sync。
//   - 游标分页，页大小可配置
//   - 校验数据库 schema 与属性类型，不合法时返回 400 错误体
//   - 支持故障注入（指定前缀的请求返回给定状态码）与静态文件托管
package notiontest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"go-swan/internal/notion"
)

const Token = "secret_test"

type fault struct {
	prefix string
	status int
	left   int
}

type asset struct {
	contentType string
	body        []byte
}

// Server 为内存工作区。所有导出方法并发安全。
type Server struct {
	*httptest.Server
	// PageSize 为服务端单页上限，请求的 page_size 更大时以它为准
	PageSize int

	t        testing.TB
	mu       sync.Mutex
	clock    time.Time
	root     string
	pages    map[string]*notion.Page
	dbs      map[string]*notion.Database
	rows     map[string][]string
	blocks   map[string]*notion.Block
	children map[string][]string
	// refs 记录页面/数据库在父容器中的 child_page/child_database 块
	refs     map[string]string
	assets   map[string]asset
	faults   []*fault
	requests []string
}

// New 启动服务并创建名为 Root 的空根页面，测试结束时自动关闭。
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		PageSize: 100,
		t:        t,
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		pages:    map[string]*notion.Page{},
		dbs:      map[string]*notion.Database{},
		rows:     map[string][]string{},
		blocks:   map[string]*notion.Block{},
		children: map[string][]string{},
		refs:     map[string]string{},
		assets:   map[string]asset{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/blocks/{id}/children", s.handleListChildren)
	mux.HandleFunc("PATCH /v1/blocks/{id}/children", s.handleAppend)
	mux.HandleFunc("POST /v1/databases/{id}/query", s.handleQuery)
	mux.HandleFunc("GET /v1/databases/{id}", s.handleRetrieveDatabase)
	mux.HandleFunc("PATCH /v1/databases/{id}", s.handleUpdateDatabase)
	mux.HandleFunc("POST /v1/databases", s.handleCreateDatabase)
	mux.HandleFunc("POST /v1/pages", s.handleCreatePage)
	mux.HandleFunc("PATCH /v1/pages/{id}", s.handleUpdatePage)
	mux.HandleFunc("GET /files/{name}", s.handleFile)
	s.Server = httptest.NewServer(s.middleware(mux))
	t.Cleanup(s.Close)

	s.root = s.newID()
	s.pages[s.root] = &notion.Page{
		Object: "page", ID: s.root, CreatedTime: s.now(), LastEditedTime: s.now(),
		Properties: map[string]notion.PropertyValue{"title": notion.TitleValue("Root")},
	}
	return s
}

// BaseURL 为客户端应使用的 API 根地址。
func (s *Server) BaseURL() string { return s.URL + "/v1" }

// Root 返回根页面 ID。
func (s *Server) Root() string { return s.root }

// Fail 使接下来 n 个 "METHOD /path" 以 prefix 开头的请求返回 status。
func (s *Server) Fail(prefix string, status, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, &fault{prefix: prefix, status: status, left: n})
}

// Requests 返回以 prefix 开头的已收到请求数（含被注入故障的请求）。
func (s *Server) Requests(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

// Writes 返回写请求（POST 创建、PATCH）的数量，不含查询。
func (s *Server) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if strings.HasPrefix(r, "PATCH ") || (strings.HasPrefix(r, "POST ") && !strings.HasSuffix(r, "/query")) {
			n++
		}
	}
	return n
}

// ServeFile 托管一个静态文件并返回其 URL。
func (s *Server) ServeFile(name, contentType string, body []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[name] = asset{contentType: contentType, body: body}
	return s.URL + "/files/" + name
}

// AddPage 直接创建子页面（不经 HTTP）。
func (s *Server) AddPage(parentID, title string) string {
	s.t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	p, apiErr := s.createPage(notion.CreatePageRequest{
		Parent:     notion.PageParent(parentID),
		Properties: map[string]notion.PropertyValue{"title": notion.TitleValue(title)},
	})
	if apiErr != nil {
		s.t.Fatalf("notiontest: add page %q: %s", title, apiErr.Message)
	}
	return p.ID
}

// AddDatabase 直接在页面下创建数据库。
func (s *Server) AddDatabase(parentID, title string, props map[string]notion.PropertySchema) string {
	s.t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	db, apiErr := s.createDatabase(notion.CreateDatabaseRequest{
		Parent: notion.PageParent(parentID), Title: notion.Text(title), Properties: props,
	})
	if apiErr != nil {
		s.t.Fatalf("notiontest: add database %q: %s", title, apiErr.Message)
	}
	return db.ID
}

// AddRow 直接向数据库插入一行，可附带正文。
func (s *Server) AddRow(dbID string, props map[string]notion.PropertyValue, body ...notion.Block) string {
	s.t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	p, apiErr := s.createPage(notion.CreatePageRequest{
		Parent: notion.DatabaseParent(dbID), Properties: props, Children: body,
	})
	if apiErr != nil {
		s.t.Fatalf("notiontest: add row: %s", apiErr.Message)
	}
	return p.ID
}

// AddBlocks 直接向页面/块追加子块，返回新块 ID。
func (s *Server) AddBlocks(parentID string, blocks ...notion.Block) []string {
	s.t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	created, apiErr := s.appendChildren(parentID, blocks)
	if apiErr != nil {
		s.t.Fatalf("notiontest: add blocks: %s", apiErr.Message)
	}
	ids := make([]string, len(created))
	for i, b := range created {
		ids[i] = b.ID
	}
	return ids
}

// Children 返回容器的直接子块快照。
func (s *Server) Children(parentID string) []notion.Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]notion.Block, 0, len(s.children[parentID]))
	for _, id := range s.children[parentID] {
		out = append(out, *s.blocks[id])
	}
	return out
}

// Rows 返回数据库全部行（插入顺序）。
func (s *Server) Rows(dbID string) []notion.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]notion.Page, 0, len(s.rows[dbID]))
	for _, id := range s.rows[dbID] {
		if p := s.pages[id]; !p.Archived {
			out = append(out, *p)
		}
	}
	return out
}

// Database 返回数据库快照。
func (s *Server) Database(id string) (notion.Database, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, ok := s.dbs[id]
	if !ok {
		return notion.Database{}, false
	}
	return *db, true
}

// Archive 将行或页面标记为已归档，查询与子块列表中不再出现。
func (s *Server) Archive(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pages[id]; ok {
		p.Archived = true
	}
	if ref, ok := s.refs[id]; ok {
		s.children[s.parentOf(ref)] = slices.DeleteFunc(s.children[s.parentOf(ref)], func(b string) bool { return b == ref })
	}
}

// SetTitle 修改页面/行的标题属性并刷新 last_edited_time。
func (s *Server) SetTitle(id, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[id]
	if !ok {
		s.t.Fatalf("notiontest: no page %s", id)
	}
	for k, v := range p.Properties {
		if v.Type == notion.TypeTitle {
			p.Properties[k] = notion.TitleValue(title)
		}
	}
	p.LastEditedTime = s.now()
	if ref, ok := s.refs[id]; ok {
		s.blocks[ref].ChildPage = &notion.ChildRef{Title: title}
		s.blocks[ref].LastEditedTime = p.LastEditedTime
	}
}

// ---- HTTP ----

func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		s.mu.Lock()
		s.requests = append(s.requests, key)
		var injected int
		for _, f := range s.faults {
			if f.left > 0 && strings.HasPrefix(key, f.prefix) {
				f.left--
				injected = f.status
				break
			}
		}
		s.mu.Unlock()
		if injected != 0 {
			writeError(w, &apiError{Status: injected, Code: "injected", Message: "injected failure"})
			return
		}
		if strings.HasPrefix(r.URL.Path, "/v1/") {
			if r.Header.Get("Authorization") != "Bearer "+Token {
				writeError(w, &apiError{Status: http.StatusUnauthorized, Code: "unauthorized", Message: "API token is invalid."})
				return
			}
			if r.Header.Get("Notion-Version") == "" {
				writeError(w, &apiError{Status: http.StatusBadRequest, Code: "missing_version", Message: "Notion-Version header failed validation."})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type apiError struct {
	Status  int
	Code    string
	Message string
}

func badRequest(format string, args ...any) *apiError {
	return &apiError{Status: http.StatusBadRequest, Code: "validation_error", Message: fmt.Sprintf(format, args...)}
}

func notFound(id string) *apiError {
	return &apiError{Status: http.StatusNotFound, Code: "object_not_found", Message: fmt.Sprintf("Could not find object with ID: %s.", id)}
}

func writeError(w http.ResponseWriter, e *apiError) {
	writeJSON(w, e.Status, map[string]any{"object": "error", "status": e.Status, "code": e.Code, "message": e.Message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type list[T any] struct {
	Object     string  `json:"object"`
	Results    []T     `json:"results"`
	NextCursor *string `json:"next_cursor"`
	HasMore    bool    `json:"has_more"`
}

// paginate 以下一项的 ID 作为游标。
func paginate[T any](items []T, ids []string, cursor string, size int) (list[T], *apiError) {
	start := 0
	if cursor != "" {
		start = slices.Index(ids, cursor)
		if start < 0 {
			return list[T]{}, badRequest("start_cursor %s is invalid", cursor)
		}
	}
	end := min(start+size, len(items))
	out := list[T]{Object: "list", Results: items[start:end]}
	if out.Results == nil {
		out.Results = []T{}
	}
	if end < len(items) {
		next := ids[end]
		out.NextCursor = &next
		out.HasMore = true
	}
	return out, nil
}

func (s *Server) pageSize(requested int) int {
	if requested <= 0 || requested > s.PageSize {
		return s.PageSize
	}
	return requested
}

func (s *Server) handleListChildren(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isContainer(id) {
		writeError(w, notFound(id))
		return
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	ids := s.children[id]
	items := make([]notion.Block, len(ids))
	for i, bid := range ids {
		items[i] = *s.blocks[bid]
	}
	out, apiErr := paginate(items, ids, r.URL.Query().Get("start_cursor"), s.pageSize(size))
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Children []notion.Block `json:"children"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, badRequest("body failed validation: %v", err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	created, apiErr := s.appendChildren(r.PathValue("id"), req.Children)
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}
	writeJSON(w, http.StatusOK, list[notion.Block]{Object: "list", Results: created})
}

type queryBody struct {
	Filter      json.RawMessage `json:"filter"`
	Sorts       []notion.Sort   `json:"sorts"`
	StartCursor string          `json:"start_cursor"`
	PageSize    int             `json:"page_size"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, badRequest("body failed validation: %v", err))
		return
	}
	id := r.PathValue("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	db, ok := s.dbs[id]
	if !ok {
		writeError(w, notFound(id))
		return
	}
	var rows []notion.Page
	for _, rid := range s.rows[id] {
		if p := s.pages[rid]; !p.Archived {
			rows = append(rows, *p)
		}
	}
	if len(req.Filter) > 0 && string(req.Filter) != "null" {
		filtered, apiErr := applyFilter(db, rows, req.Filter)
		if apiErr != nil {
			writeError(w, apiErr)
			return
		}
		rows = filtered
	}
	for _, srt := range req.Sorts {
		if srt.Property != "" {
			if _, ok := db.Properties[srt.Property]; !ok {
				writeError(w, badRequest("Could not find sort property with name or id: %s", srt.Property))
				return
			}
		}
	}
	if len(req.Sorts) > 0 {
		slices.SortStableFunc(rows, func(a, b notion.Page) int { return compareRows(a, b, req.Sorts) })
	}
	ids := make([]string, len(rows))
	for i, p := range rows {
		ids[i] = p.ID
	}
	out, apiErr := paginate(rows, ids, req.StartCursor, s.pageSize(req.PageSize))
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// applyFilter 仅支持 {"property": X, "checkbox": {"equals": bool}}。
func applyFilter(db *notion.Database, rows []notion.Page, raw json.RawMessage) ([]notion.Page, *apiError) {
	var f struct {
		Property string `json:"property"`
		Checkbox *struct {
			Equals bool `json:"equals"`
		} `json:"checkbox"`
	}
	if err := json.Unmarshal(raw, &f); err != nil || f.Checkbox == nil {
		return nil, badRequest("unsupported filter: %s", raw)
	}
	if sch, ok := db.Properties[f.Property]; !ok || sch.Type != notion.TypeCheckbox {
		return nil, badRequest("Could not find property with name or id: %s", f.Property)
	}
	out := rows[:0:0]
	for _, p := range rows {
		if p.Properties[f.Property].Checkbox == f.Checkbox.Equals {
			out = append(out, p)
		}
	}
	return out, nil
}

func compareRows(a, b notion.Page, sorts []notion.Sort) int {
	for _, srt := range sorts {
		var c int
		if srt.Timestamp != "" {
			c = strings.Compare(timestamp(a, srt.Timestamp), timestamp(b, srt.Timestamp))
		} else {
			c = compareValues(a.Properties[srt.Property], b.Properties[srt.Property])
		}
		if srt.Direction == "descending" {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

func timestamp(p notion.Page, kind string) string {
	if kind == "last_edited_time" {
		return p.LastEditedTime
	}
	return p.CreatedTime
}

// compareValues 空值排在最后。
func compareValues(a, b notion.PropertyValue) int {
	switch a.Type {
	case notion.TypeNumber:
		switch {
		case a.Number == nil && b.Number == nil:
			return 0
		case a.Number == nil:
			return 1
		case b.Number == nil:
			return -1
		case *a.Number < *b.Number:
			return -1
		case *a.Number > *b.Number:
			return 1
		}
		return 0
	case notion.TypeCheckbox:
		switch {
		case a.Checkbox == b.Checkbox:
			return 0
		case !a.Checkbox:
			return -1
		}
		return 1
	}
	as, bs := valueText(a), valueText(b)
	switch {
	case as == bs:
		return 0
	case as == "":
		return 1
	case bs == "":
		return -1
	}
	return strings.Compare(as, bs)
}

func valueText(v notion.PropertyValue) string {
	switch v.Type {
	case notion.TypeTitle:
		return notion.PlainText(v.Title)
	case notion.TypeRichText:
		return notion.PlainText(v.RichText)
	case notion.TypeSelect:
		if v.Select != nil {
			return v.Select.Name
		}
	case notion.TypeURL:
		if v.URL != nil {
			return *v.URL
		}
	}
	return ""
}

func (s *Server) handleRetrieveDatabase(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	db, ok := s.dbs[id]
	if !ok {
		writeError(w, notFound(id))
		return
	}
	writeJSON(w, http.StatusOK, db)
}

func (s *Server) handleCreateDatabase(w http.ResponseWriter, r *http.Request) {
	var req notion.CreateDatabaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, badRequest("body failed validation: %v", err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	db, apiErr := s.createDatabase(req)
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}
	writeJSON(w, http.StatusOK, db)
}

func (s *Server) handleUpdateDatabase(w http.ResponseWriter, r *http.Request) {
	var req notion.UpdateDatabaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, badRequest("body failed validation: %v", err))
		return
	}
	id := r.PathValue("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	db, ok := s.dbs[id]
	if !ok {
		writeError(w, notFound(id))
		return
	}
	for name, sch := range req.Properties {
		if sch.Type == notion.TypeTitle {
			if old, ok := db.Properties[name]; !ok || old.Type != notion.TypeTitle {
				writeError(w, badRequest("Cannot create new title property %s.", name))
				return
			}
		}
		sch.Name = name
		db.Properties[name] = sch
	}
	if len(req.Title) > 0 {
		db.Title = req.Title
		if ref, ok := s.refs[id]; ok {
			s.blocks[ref].ChildDatabase = &notion.ChildRef{Title: notion.PlainText(req.Title)}
		}
	}
	if req.Icon != nil {
		db.Icon = req.Icon
	}
	writeJSON(w, http.StatusOK, db)
}

func (s *Server) handleCreatePage(w http.ResponseWriter, r *http.Request) {
	var req notion.CreatePageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, badRequest("body failed validation: %v", err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, apiErr := s.createPage(req)
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdatePage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Properties map[string]notion.PropertyValue `json:"properties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, badRequest("body failed validation: %v", err))
		return
	}
	id := r.PathValue("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[id]
	if !ok {
		writeError(w, notFound(id))
		return
	}
	if p.Parent != nil && p.Parent.DatabaseID != "" {
		if apiErr := s.checkRow(s.dbs[p.Parent.DatabaseID], req.Properties); apiErr != nil {
			writeError(w, apiErr)
			return
		}
	}
	for k, v := range req.Properties {
		p.Properties[k] = v
	}
	p.LastEditedTime = s.now()
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	a, ok := s.assets[r.PathValue("name")]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", a.contentType)
	_, _ = w.Write(a.body)
}

// ---- 存储（调用方持有 s.mu） ----

func (s *Server) newID() string { return uuid.NewString() }

// now 每次调用前进一秒，时间戳可复现。
func (s *Server) now() string {
	s.clock = s.clock.Add(time.Second)
	return s.clock.Format("2006-01-02T15:04:05.000Z")
}

func (s *Server) isContainer(id string) bool {
	if _, ok := s.pages[id]; ok {
		return true
	}
	_, ok := s.blocks[id]
	return ok
}

func (s *Server) parentOf(blockID string) string {
	for parent, ids := range s.children {
		if slices.Contains(ids, blockID) {
			return parent
		}
	}
	return ""
}

func (s *Server) createDatabase(req notion.CreateDatabaseRequest) (*notion.Database, *apiError) {
	parent := req.Parent.PageID
	if _, ok := s.pages[parent]; !ok {
		return nil, notFound(parent)
	}
	titles := 0
	props := make(map[string]notion.PropertySchema, len(req.Properties))
	for name, sch := range req.Properties {
		if sch.Type == "" {
			return nil, badRequest("body.properties.%s should be defined", name)
		}
		if sch.Type == notion.TypeTitle {
			titles++
		}
		sch.ID = s.newID()[:4]
		sch.Name = name
		props[name] = sch
	}
	if titles != 1 {
		return nil, badRequest("Database must have exactly one title property, got %d.", titles)
	}
	db := &notion.Database{
		Object: "database", ID: s.newID(), Title: req.Title, IsInline: req.IsInline,
		Parent: &notion.Parent{Type: "page_id", PageID: parent}, Icon: req.Icon, Properties: props,
	}
	s.dbs[db.ID] = db
	ref := s.newBlock(parent, notion.Block{Type: "child_database", ChildDatabase: &notion.ChildRef{Title: notion.PlainText(req.Title)}})
	ref.ID = db.ID
	s.rekey(parent, ref)
	s.refs[db.ID] = db.ID
	return db, nil
}

func (s *Server) createPage(req notion.CreatePageRequest) (*notion.Page, *apiError) {
	p := &notion.Page{Object: "page", ID: s.newID(), Icon: req.Icon, Properties: map[string]notion.PropertyValue{}}
	switch {
	case req.Parent.DatabaseID != "":
		db, ok := s.dbs[req.Parent.DatabaseID]
		if !ok {
			return nil, notFound(req.Parent.DatabaseID)
		}
		if apiErr := s.checkRow(db, req.Properties); apiErr != nil {
			return nil, apiErr
		}
		for name, sch := range db.Properties {
			p.Properties[name] = emptyValue(sch.Type)
		}
		p.Parent = &notion.Parent{Type: "database_id", DatabaseID: db.ID}
	case req.Parent.PageID != "":
		if _, ok := s.pages[req.Parent.PageID]; !ok {
			return nil, notFound(req.Parent.PageID)
		}
		for name, v := range req.Properties {
			if name != "title" || v.Type != notion.TypeTitle {
				return nil, badRequest("Invalid property for page parent: %s", name)
			}
		}
		p.Parent = &notion.Parent{Type: "page_id", PageID: req.Parent.PageID}
	default:
		return nil, badRequest("body.parent should be defined")
	}
	for k, v := range req.Properties {
		p.Properties[k] = v
	}
	p.CreatedTime = s.now()
	p.LastEditedTime = p.CreatedTime
	s.pages[p.ID] = p
	if req.Parent.DatabaseID != "" {
		s.rows[req.Parent.DatabaseID] = append(s.rows[req.Parent.DatabaseID], p.ID)
	} else {
		title := notion.PlainText(req.Properties["title"].Title)
		ref := s.newBlock(req.Parent.PageID, notion.Block{Type: "child_page", ChildPage: &notion.ChildRef{Title: title}})
		ref.ID = p.ID
		s.rekey(req.Parent.PageID, ref)
		s.refs[p.ID] = p.ID
	}
	if len(req.Children) > 0 {
		if _, apiErr := s.appendChildren(p.ID, req.Children); apiErr != nil {
			return nil, apiErr
		}
	}
	return p, nil
}

// rekey 将刚创建的引用块改用其页面/数据库 ID（与真实 API 一致）。
func (s *Server) rekey(parent string, ref *notion.Block) {
	ids := s.children[parent]
	old := ids[len(ids)-1]
	delete(s.blocks, old)
	ids[len(ids)-1] = ref.ID
	s.blocks[ref.ID] = ref
}

func (s *Server) checkRow(db *notion.Database, props map[string]notion.PropertyValue) *apiError {
	for name, v := range props {
		sch, ok := db.Properties[name]
		if !ok {
			return badRequest("%s is not a property that exists.", name)
		}
		if sch.Type != v.Type {
			return badRequest("%s is expected to be %s.", name, sch.Type)
		}
		for _, rt := range append(slices.Clone(v.Title), v.RichText...) {
			if rt.Text != nil && len([]rune(rt.Text.Content)) > notion.MaxTextLength {
				return badRequest("body.properties.%s.length should be ≤ %d", name, notion.MaxTextLength)
			}
		}
		if v.Type == notion.TypeSelect && v.Select != nil {
			sel := sch.Select
			if sel == nil {
				sel = &notion.SelectSchema{}
			}
			if !slices.ContainsFunc(sel.Options, func(o notion.SelectOption) bool { return o.Name == v.Select.Name }) {
				sel.Options = append(sel.Options, notion.SelectOption{Name: v.Select.Name})
			}
			sch.Select = sel
			db.Properties[name] = sch
		}
	}
	return nil
}

func emptyValue(typ string) notion.PropertyValue {
	v := notion.PropertyValue{Type: typ}
	switch typ {
	case notion.TypeTitle:
		v.Title = []notion.RichText{}
	case notion.TypeRichText:
		v.RichText = []notion.RichText{}
	case notion.TypeMultiSelect:
		v.MultiSelect = []notion.SelectOption{}
	case notion.TypeFiles:
		v.Files = []notion.File{}
	}
	return v
}

func (s *Server) newBlock(parent string, b notion.Block) *notion.Block {
	nb := b
	nb.Object = "block"
	nb.ID = s.newID()
	nb.CreatedTime = s.now()
	nb.LastEditedTime = nb.CreatedTime
	s.blocks[nb.ID] = &nb
	s.children[parent] = append(s.children[parent], nb.ID)
	return &nb
}

func (s *Server) appendChildren(parent string, blocks []notion.Block) ([]notion.Block, *apiError) {
	if !s.isContainer(parent) {
		return nil, notFound(parent)
	}
	if blk, ok := s.blocks[parent]; ok {
		blk.HasChildren = true
	}
	created := make([]notion.Block, 0, len(blocks))
	for _, b := range blocks {
		if b.Type == "" {
			return nil, badRequest("body.children should have a type")
		}
		if b.Type == "child_page" || b.Type == "child_database" {
			return nil, badRequest("body.children.%s is not supported; use create endpoints", b.Type)
		}
		if apiErr := checkBlockText(b); apiErr != nil {
			return nil, apiErr
		}
		var nested []notion.Block
		if tb := b.Text(); tb != nil {
			nested = tb.Children
			cp := *tb
			cp.Children = nil
			setText(&b, &cp)
		}
		nb := s.newBlock(parent, b)
		if len(nested) > 0 {
			if _, apiErr := s.appendChildren(nb.ID, nested); apiErr != nil {
				return nil, apiErr
			}
		}
		created = append(created, *s.blocks[nb.ID])
	}
	if p, ok := s.pages[parent]; ok {
		p.LastEditedTime = s.now()
	}
	return created, nil
}

func checkBlockText(b notion.Block) *apiError {
	var spans []notion.RichText
	if tb := b.Text(); tb != nil {
		spans = tb.RichText
	} else if b.Code != nil {
		spans = b.Code.RichText
	}
	for _, rt := range spans {
		if rt.Text != nil && len([]rune(rt.Text.Content)) > notion.MaxTextLength {
			return badRequest("body.children.%s.rich_text.text.content.length should be ≤ %d", b.Type, notion.MaxTextLength)
		}
	}
	return nil
}

func setText(b *notion.Block, tb *notion.TextBlock) {
	switch b.Type {
	case "paragraph":
		b.Paragraph = tb
	case "heading_1":
		b.Heading1 = tb
	case "heading_2":
		b.Heading2 = tb
	case "heading_3":
		b.Heading3 = tb
	case "bulleted_list_item":
		b.BulletedListItem = tb
	case "numbered_list_item":
		b.NumberedListItem = tb
	case "quote":
		b.Quote = tb
	case "callout":
		b.Callout = tb
	case "toggle":
		b.Toggle = tb
	}
}

// 包 store 提供同步状态库（SQLite）：运行记录、子步骤结果、已写出的文件与素材。
// 状态库只是本地文件的索引，删除后下一次 sync 会重建，不影响内容本身。
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"go-swan/internal/model"
)

// SQLite 封装 *sql.DB，基于 modernc.org/sqlite（纯 Go 实现）。
type SQLite struct {
	db *sql.DB
}

// OpenSQLite 打开 SQLite 数据库并执行自动迁移；父目录不存在时自动创建。
func OpenSQLite(path string) (*SQLite, error) {
	// 说明：modernc sqlite 的 DSN 可直接使用文件路径，或以 'file:...' 前缀表示
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir for sqlite %s: %w", path, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// Reset 清空全部状态表（不删除数据库文件）。
func (s *SQLite) Reset(ctx context.Context) error {
	for _, tbl := range []string{"assets", "artifacts", "steps", "runs"} {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM `+tbl); err != nil {
			return fmt.Errorf("delete %s: %w", tbl, err)
		}
	}
	return nil
}

// migrate 执行建表语句，保持幂等。
func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
            id TEXT PRIMARY KEY,
            kind TEXT,
            root TEXT,
            state TEXT,
            error TEXT,
            started_at TIMESTAMP,
            finished_at TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS steps (
            run_id TEXT,
            name TEXT,
            state TEXT,
            artifacts INTEGER,
            error TEXT,
            finished_at TIMESTAMP,
            PRIMARY KEY (run_id, name)
        );`,
		`CREATE TABLE IF NOT EXISTS artifacts (
            path TEXT PRIMARY KEY,
            scope TEXT,
            entity_id TEXT,
            run_id TEXT,
            written_at TIMESTAMP
        );`,
		`CREATE INDEX IF NOT EXISTS idx_artifacts_scope ON artifacts(scope);`,
		`CREATE TABLE IF NOT EXISTS assets (
            file TEXT PRIMARY KEY,
            remote_url TEXT,
            local_path TEXT,
            mime TEXT,
            size INTEGER,
            run_id TEXT,
            error TEXT,
            fetched_at TIMESTAMP
        );`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("exec migrate: %w", err)
		}
	}
	return nil
}

// BeginRun 登记一次运行，初始状态为 idle。
func (s *SQLite) BeginRun(ctx context.Context, r model.Run) error {
	if r.ID == "" {
		return errors.New("run.id required")
	}
	if r.State == "" {
		r.State = model.StateIdle
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO runs(id, kind, root, state, error, started_at) VALUES(?,?,?,?,?,?)`,
		r.ID, r.Kind, r.Root, r.State, r.Error, nowOr(r.StartedAt))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}
	return nil
}

// SetRunState 推进运行状态；进入 done/failed 时记录结束时间。
func (s *SQLite) SetRunState(ctx context.Context, runID, state, errMsg string) error {
	var finished any
	if state == model.StateDone || state == model.StateFailed {
		finished = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET state=?, error=?, finished_at=COALESCE(?, finished_at) WHERE id=?`,
		state, errMsg, finished, runID)
	if err != nil {
		return fmt.Errorf("update run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", runID, sql.ErrNoRows)
	}
	return nil
}

// RecordStep 写入（或覆盖）子步骤结果。
func (s *SQLite) RecordStep(ctx context.Context, st model.Step) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO steps(run_id, name, state, artifacts, error, finished_at)
        VALUES(?,?,?,?,?,?)
        ON CONFLICT(run_id, name) DO UPDATE SET state=excluded.state, artifacts=excluded.artifacts, error=excluded.error, finished_at=excluded.finished_at`,
		st.RunID, st.Name, st.State, st.Artifacts, st.Error, nowOr(st.FinishedAt))
	if err != nil {
		return fmt.Errorf("record step %s/%s: %w", st.RunID, st.Name, err)
	}
	return nil
}

// RecordArtifact 记录本次运行写出的文件；同一路径以最近一次写入为准。
func (s *SQLite) RecordArtifact(ctx context.Context, runID, scope, path, entityID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO artifacts(path, scope, entity_id, run_id, written_at)
        VALUES(?,?,?,?,?)
        ON CONFLICT(path) DO UPDATE SET scope=excluded.scope, entity_id=excluded.entity_id, run_id=excluded.run_id, written_at=excluded.written_at`,
		path, scope, entityID, runID, time.Now())
	if err != nil {
		return fmt.Errorf("record artifact %s: %w", path, err)
	}
	return nil
}

// RecordAsset 记录一次素材下载结果；errMsg 非空表示下载失败、页面引用的是远端地址。
func (s *SQLite) RecordAsset(ctx context.Context, runID, file, remoteURL, localPath, mime string, size int64, errMsg string) error {
	if file == "" {
		return errors.New("asset.file required")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO assets(file, remote_url, local_path, mime, size, run_id, error, fetched_at)
        VALUES(?,?,?,?,?,?,?,?)
        ON CONFLICT(file) DO UPDATE SET remote_url=excluded.remote_url, local_path=excluded.local_path, mime=excluded.mime,
            size=excluded.size, run_id=excluded.run_id, error=excluded.error, fetched_at=excluded.fetched_at`,
		file, remoteURL, localPath, mime, size, runID, errMsg, time.Now())
	if err != nil {
		return fmt.Errorf("record asset %s: %w", file, err)
	}
	return nil
}

// Scopes 返回以 prefix 开头的全部已知作用域（如 "collection:"）。
func (s *SQLite) Scopes(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT scope FROM artifacts WHERE substr(scope, 1, ?) = ? ORDER BY scope`, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("query scopes: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var sc string
		if err := rows.Scan(&sc); err != nil {
			return nil, fmt.Errorf("scan scopes: %w", err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scopes: %w", err)
	}
	return out, nil
}

// StaleArtifacts 返回作用域内不是由 runID 写出的文件，即远端已不存在的实体。
func (s *SQLite) StaleArtifacts(ctx context.Context, scope, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM artifacts WHERE scope = ? AND run_id <> ? ORDER BY path`, scope, runID)
	if err != nil {
		return nil, fmt.Errorf("query stale artifacts: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan stale artifacts: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale artifacts: %w", err)
	}
	return out, nil
}

// ForgetArtifact 在文件被删除后移除索引。
func (s *SQLite) ForgetArtifact(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE path = ?`, path); err != nil {
		return fmt.Errorf("forget artifact %s: %w", path, err)
	}
	return nil
}

// LastRun 返回最近开始的一次运行；没有记录时返回 nil。
func (s *SQLite) LastRun(ctx context.Context, kind string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, kind, root, state, COALESCE(error,''), started_at, finished_at
        FROM runs WHERE (? = '' OR kind = ?) ORDER BY started_at DESC, rowid DESC LIMIT 1`, kind, kind)
	var r model.Run
	var started, finished sql.NullTime
	if err := row.Scan(&r.ID, &r.Kind, &r.Root, &r.State, &r.Error, &started, &finished); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query last run: %w", err)
	}
	if started.Valid {
		r.StartedAt = started.Time
	}
	if finished.Valid {
		r.FinishedAt = finished.Time
	}
	return &r, nil
}

// Steps 返回运行的全部子步骤，按名称排序。
func (s *SQLite) Steps(ctx context.Context, runID string) ([]model.Step, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, name, state, artifacts, COALESCE(error,''), finished_at FROM steps WHERE run_id = ? ORDER BY name`, runID)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()
	var out []model.Step
	for rows.Next() {
		var st model.Step
		var finished sql.NullTime
		if err := rows.Scan(&st.RunID, &st.Name, &st.State, &st.Artifacts, &st.Error, &finished); err != nil {
			return nil, fmt.Errorf("scan steps: %w", err)
		}
		if finished.Valid {
			st.FinishedAt = finished.Time
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return out, nil
}

// Stats 统计汇总：运行次数、已索引文件数、素材数与失败素材数、最近一次运行。
func (s *SQLite) Stats(ctx context.Context) (model.Stats, error) {
	var st model.Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM runs`).Scan(&st.Runs); err != nil {
		return st, fmt.Errorf("count runs: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM artifacts`).Scan(&st.Artifacts); err != nil {
		return st, fmt.Errorf("count artifacts: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM assets`).Scan(&st.Assets); err != nil {
		return st, fmt.Errorf("count assets: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM assets WHERE error IS NOT NULL AND error <> ''`).Scan(&st.AssetsErr); err != nil {
		return st, fmt.Errorf("count failed assets: %w", err)
	}
	last, err := s.LastRun(ctx, "")
	if err != nil {
		return st, err
	}
	st.LastRun = last
	return st, nil
}

// CleanOldRuns 按天数阈值清理历史运行及其子步骤。
func (s *SQLite) CleanOldRuns(ctx context.Context, days int) error {
	if days <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM steps WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)`, cutoff); err != nil {
		return fmt.Errorf("clean old steps: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff); err != nil {
		return fmt.Errorf("clean old runs: %w", err)
	}
	return nil
}

func nowOr(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

package model

import "time"

// 流水线状态。
const (
	StateIdle      = "idle"
	StateResolving = "resolving-containers"
	StateConfig    = "syncing-config"
	StateHome      = "syncing-home"
	StateNavbar    = "syncing-navbar"
	StateCollect   = "syncing-collections"
	StateDone      = "done"
	StateFailed    = "failed"
)

// 子步骤结果。
const (
	StepOK      = "ok"
	StepFailed  = "failed"
	StepSkipped = "skipped"
)

// Run 为一次 seed/sync 运行的记录。
type Run struct {
	ID         string
	Kind       string // seed|sync
	Root       string
	State      string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Step 为运行中的一个子步骤（config/home/navbar/collection:<slug>）。
type Step struct {
	RunID      string
	Name       string
	State      string
	Artifacts  int
	Error      string
	FinishedAt time.Time
}

// Stats 状态库汇总。
type Stats struct {
	Runs      int
	Artifacts int
	Assets    int
	AssetsErr int
	LastRun   *Run
}

package analytics

import (
	"context"
	"fmt"
	"time"
)

// Entity 领域集合
type Entity string

const (
	EntityOrganizations        Entity = "organizations"
	EntityUsers                Entity = "users"
	EntityTeams                Entity = "teams"
	EntityInventories          Entity = "inventories"
	EntityProjects             Entity = "projects"
	EntityJobTemplates         Entity = "job_templates"
	EntityWorkflowJobTemplates Entity = "workflow_job_templates"
	EntityHosts                Entity = "hosts"
	EntitySchedules            Entity = "schedules"
)

// Entities 按输出顺序列出所有计数集合
var Entities = []Entity{
	EntityOrganizations,
	EntityUsers,
	EntityTeams,
	EntityInventories,
	EntityProjects,
	EntityJobTemplates,
	EntityWorkflowJobTemplates,
	EntityHosts,
	EntitySchedules,
}

// EntityCounter 集合的实时行数
type EntityCounter interface {
	CountEntities(ctx context.Context, e Entity) (int64, error)
}

// SessionCounts 活跃会话数
type SessionCounts struct {
	User      int64
	Anonymous int64
}

// All 全部活跃会话
func (s SessionCounts) All() int64 {
	return s.User + s.Anonymous
}

// SessionCounter 活跃会话计数
type SessionCounter interface {
	CountSessions(ctx context.Context) (SessionCounts, error)
}

// NodeCount 按节点分组的计数，Value 是分组维度的取值（状态或启动方式）
type NodeCount struct {
	Node  string
	Value string
	Count int64
}

// JobStats 作业执行统计
type JobStats interface {
	// CountJobsByStatus 按状态分组计数，未出现的状态可以缺省
	CountJobsByStatus(ctx context.Context) (map[string]int64, error)
	CountJobsByNodeStatus(ctx context.Context) ([]NodeCount, error)
	CountJobsByNodeLaunchType(ctx context.Context) ([]NodeCount, error)
}

// InstanceStats 一个工作节点的容量与资源，来自同一行读取
type InstanceStats struct {
	Hostname         string
	UUID             string
	Version          string
	NodeType         string
	Enabled          bool
	ManagedByPolicy  bool
	Capacity         int64
	ConsumedCapacity int64
	CPU              float64
	Memory           int64
}

// RemainingCapacity capacity - consumed，允许为负
func (s InstanceStats) RemainingCapacity() int64 {
	return s.Capacity - s.ConsumedCapacity
}

// InstanceSource 工作节点注册表
type InstanceSource interface {
	InstanceStats(ctx context.Context) ([]InstanceStats, error)
}

// LicenseFacts 许可证暴露的事实
type LicenseFacts struct {
	InstanceCount int64
	LicenseType   string
	Expiry        time.Time
}

// LicenseSource 许可证事实
type LicenseSource interface {
	LicenseFacts(ctx context.Context) (LicenseFacts, error)
}

// ConnectionCounter 当前进程持有的数据库连接数
type ConnectionCounter interface {
	DatabaseConnections(ctx context.Context) (int64, error)
}

// SubsystemSample 一个节点上报的子系统指标值
type SubsystemSample struct {
	Node   string
	Metric string
	Value  float64
}

// SubsystemSource 各节点上报的子系统指标
type SubsystemSource interface {
	SubsystemMetrics(ctx context.Context) ([]SubsystemSample, error)
}

// unavailable 把数据源错误标记为 ErrSourceUnavailable，同时保留原始原因
func unavailable(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, what, err)
}

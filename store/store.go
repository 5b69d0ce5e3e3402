// Package store 是指标计算规则背后的只读领域存储。
//
// Store 实现 analytics 的各个数据源接口与 auth.PrincipalLoader，所有查询都是只读的，
// 走 db.DB 绑定请求 Context 的会话，因此客户端断开时查询随之取消。
// 唯一的写操作是 AutoMigrate，只在 migrate 子命令中使用。
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/iwt-cmd/awx/analytics"
	"github.com/iwt-cmd/awx/auth"
	"github.com/iwt-cmd/awx/clog"
	"github.com/iwt-cmd/awx/db"
	"github.com/iwt-cmd/awx/xerrors"
)

// Store 领域存储
type Store struct {
	db     db.DB
	logger clog.Logger
	now    func() time.Time
}

var (
	_ analytics.EntityCounter     = (*Store)(nil)
	_ analytics.SessionCounter    = (*Store)(nil)
	_ analytics.JobStats          = (*Store)(nil)
	_ analytics.InstanceSource    = (*Store)(nil)
	_ analytics.ConnectionCounter = (*Store)(nil)
	_ auth.PrincipalLoader        = (*Store)(nil)
)

// New 创建 Store
func New(database db.DB, opts ...Option) (*Store, error) {
	if database == nil {
		return nil, ErrDatabaseRequired
	}
	o := options{logger: clog.Discard(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store{db: database, logger: o.logger, now: o.now}, nil
}

// Ping 探测数据库，失败意味着整个采集不可用
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("%w: store: %w", xerrors.ErrUnavailable, err)
	}
	return nil
}

// AutoMigrate 创建或更新表结构
func (s *Store) AutoMigrate(ctx context.Context) error {
	if err := s.db.DB(ctx).AutoMigrate(Models()...); err != nil {
		return xerrors.Wrap(err, "store: auto migrate")
	}
	s.logger.Info("schema migrated", clog.Int("tables", len(Models())), clog.String("driver", s.db.Driver()))
	return nil
}

// DB 返回底层数据库组件
func (s *Store) DB() db.DB {
	return s.db
}

var entityModels = map[analytics.Entity]any{
	analytics.EntityOrganizations:        &Organization{},
	analytics.EntityUsers:                &User{},
	analytics.EntityTeams:                &Team{},
	analytics.EntityInventories:          &Inventory{},
	analytics.EntityProjects:             &Project{},
	analytics.EntityJobTemplates:         &JobTemplate{},
	analytics.EntityWorkflowJobTemplates: &WorkflowJobTemplate{},
	analytics.EntityHosts:                &Host{},
	analytics.EntitySchedules:            &Schedule{},
}

// CountEntities 集合的实时行数
func (s *Store) CountEntities(ctx context.Context, e analytics.Entity) (int64, error) {
	model, ok := entityModels[e]
	if !ok {
		return 0, xerrors.Wrapf(ErrUnknownEntity, "%s", e)
	}
	var n int64
	if err := s.db.DB(ctx).Model(model).Count(&n).Error; err != nil {
		return 0, xerrors.Wrapf(err, "store: count %s", e)
	}
	return n, nil
}

// CountSessions 未过期会话数，按是否关联用户区分
func (s *Store) CountSessions(ctx context.Context) (analytics.SessionCounts, error) {
	var counts analytics.SessionCounts
	live := s.db.DB(ctx).Model(&Session{}).Where("expire_date > ?", s.now().UTC())
	if err := live.Session(&gorm.Session{}).Where("user_id IS NOT NULL").Count(&counts.User).Error; err != nil {
		return analytics.SessionCounts{}, xerrors.Wrap(err, "store: count user sessions")
	}
	if err := live.Session(&gorm.Session{}).Where("user_id IS NULL").Count(&counts.Anonymous).Error; err != nil {
		return analytics.SessionCounts{}, xerrors.Wrap(err, "store: count anonymous sessions")
	}
	return counts, nil
}

// CountJobsByStatus 按状态分组的作业数
func (s *Store) CountJobsByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		N      int64
	}
	err := s.db.DB(ctx).Model(&UnifiedJob{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, xerrors.Wrap(err, "store: count jobs by status")
	}

	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}

// CountJobsByNodeStatus 按执行节点与状态分组
func (s *Store) CountJobsByNodeStatus(ctx context.Context) ([]analytics.NodeCount, error) {
	return s.countJobsByNode(ctx, "status")
}

// CountJobsByNodeLaunchType 按执行节点与启动方式分组
func (s *Store) CountJobsByNodeLaunchType(ctx context.Context) ([]analytics.NodeCount, error) {
	return s.countJobsByNode(ctx, "launch_type")
}

func (s *Store) countJobsByNode(ctx context.Context, column string) ([]analytics.NodeCount, error) {
	var rows []struct {
		Node  string
		Value string
		N     int64
	}
	err := s.db.DB(ctx).Model(&UnifiedJob{}).
		Select(fmt.Sprintf("execution_node AS node, %s AS value, COUNT(*) AS n", column)).
		Where("execution_node <> ?", "").
		Group("execution_node, " + column).
		Order("execution_node, " + column).
		Scan(&rows).Error
	if err != nil {
		return nil, xerrors.Wrapf(err, "store: count jobs by node and %s", column)
	}

	out := make([]analytics.NodeCount, len(rows))
	for i, r := range rows {
		out[i] = analytics.NodeCount{Node: r.Node, Value: r.Value, Count: r.N}
	}
	return out, nil
}

// InstanceStats 读取全部节点。每个节点的容量、已用容量、CPU 与内存来自同一行
func (s *Store) InstanceStats(ctx context.Context) ([]analytics.InstanceStats, error) {
	var instances []Instance
	if err := s.db.DB(ctx).Order("hostname").Find(&instances).Error; err != nil {
		return nil, xerrors.Wrap(err, "store: list instances")
	}

	out := make([]analytics.InstanceStats, len(instances))
	for i, in := range instances {
		out[i] = analytics.InstanceStats{
			Hostname:         in.Hostname,
			UUID:             in.UUID,
			Version:          in.Version,
			NodeType:         in.NodeType,
			Enabled:          in.Enabled,
			ManagedByPolicy:  in.ManagedByPolicy,
			Capacity:         in.Capacity,
			ConsumedCapacity: in.ConsumedCapacity,
			CPU:              in.CPU,
			Memory:           in.Memory,
		}
	}
	return out, nil
}

// DatabaseConnections 当前进程持有的连接数。
// 统计期间占用一条连接，因此结果至少为 1。
func (s *Store) DatabaseConnections(ctx context.Context) (int64, error) {
	sqlDB, err := s.db.DB(ctx).DB()
	if err != nil {
		return 0, xerrors.Wrap(err, "store: sql handle")
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return 0, xerrors.Wrap(err, "store: acquire connection")
	}
	defer conn.Close()

	if err := conn.PingContext(ctx); err != nil {
		return 0, xerrors.Wrap(err, "store: ping connection")
	}
	return int64(sqlDB.Stats().OpenConnections), nil
}

// LoadPrincipal 加载用户及其组织角色。用户不存在或已停用时返回 auth.ErrUnknownPrincipal
func (s *Store) LoadPrincipal(ctx context.Context, userID uint) (*auth.Principal, error) {
	var user User
	err := s.db.DB(ctx).Where("id = ? AND is_active = ?", userID, true).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %d: %w", auth.ErrUnknownPrincipal, userID, ErrNotFound)
	}
	if err != nil {
		return nil, xerrors.Wrapf(err, "store: load user %d", userID)
	}

	var memberships []OrganizationMembership
	if err := s.db.DB(ctx).Where("user_id = ?", userID).Order("organization_id, role").Find(&memberships).Error; err != nil {
		return nil, xerrors.Wrapf(err, "store: load roles of user %d", userID)
	}

	p := &auth.Principal{
		UserID:          user.ID,
		Username:        user.Username,
		IsSuperuser:     user.IsSuperuser,
		IsSystemAuditor: user.IsSystemAuditor,
	}
	for _, m := range memberships {
		p.OrganizationRoles = append(p.OrganizationRoles, auth.OrganizationRole{
			OrganizationID: m.OrganizationID,
			Role:           m.Role,
		})
	}
	return p, nil
}

package analytics

import (
	"context"
	"sort"
	"strconv"
)

// 指标名是对外契约，看板与抓取方依赖它们，改名属于破坏性变更
const (
	MetricSystemInfo                = "awx_system_info"
	MetricOrganizationsTotal        = "awx_organizations_total"
	MetricUsersTotal                = "awx_users_total"
	MetricTeamsTotal                = "awx_teams_total"
	MetricInventoriesTotal          = "awx_inventories_total"
	MetricProjectsTotal             = "awx_projects_total"
	MetricJobTemplatesTotal         = "awx_job_templates_total"
	MetricWorkflowJobTemplatesTotal = "awx_workflow_job_templates_total"
	MetricHostsTotal                = "awx_hosts_total"
	MetricSchedulesTotal            = "awx_schedules_total"
	MetricSessionsTotal             = "awx_sessions_total"
	MetricStatusTotal               = "awx_status_total"
	MetricRunningJobsTotal          = "awx_running_jobs_total"
	MetricPendingJobsTotal          = "awx_pending_jobs_total"
	MetricInstanceCapacity          = "awx_instance_capacity"
	MetricInstanceConsumedCapacity  = "awx_instance_consumed_capacity"
	MetricInstanceRemainingCapacity = "awx_instance_remaining_capacity"
	MetricInstanceCPU               = "awx_instance_cpu"
	MetricInstanceMemory            = "awx_instance_memory"
	MetricInstanceInfo              = "awx_instance_info"
	MetricInstanceStatusTotal       = "awx_instance_status_total"
	MetricInstanceLaunchTypeTotal   = "awx_instance_launch_type_total"
	MetricLicenseInstanceTotal      = "awx_license_instance_total"
	MetricLicenseInstanceFree       = "awx_license_instance_free"
	MetricDatabaseConnectionsTotal  = "awx_database_connections_total"
)

// 子系统指标，由各节点写入 Redis
const (
	MetricCallbackReceiverEventsInsertDB     = "awx_callback_receiver_events_insert_db"
	MetricCallbackReceiverBatchEventsErrors  = "awx_callback_receiver_batch_events_errors"
	MetricCallbackReceiverEventsQueueSize    = "awx_callback_receiver_events_queue_size_redis"
	MetricTaskManagerScheduleCalls           = "awx_task_manager_schedule_calls"
	MetricTaskManagerTasksStarted            = "awx_task_manager_tasks_started"
	MetricSubsystemMetricsPipeExecuteCalls   = "awx_subsystem_metrics_pipe_execute_calls"
	MetricSubsystemMetricsPipeExecuteSeconds = "awx_subsystem_metrics_pipe_execute_seconds"
)

// 作业状态
const (
	JobStatusRunning = "running"
	JobStatusPending = "pending"
)

// SubsystemMetric 子系统指标的静态描述
type SubsystemMetric struct {
	Name      string
	Kind      Kind
	ValueType ValueType
	Help      string
}

// SubsystemMetrics 全部子系统指标，Recorder 只接受这里列出的名字
var SubsystemMetrics = []SubsystemMetric{
	{MetricCallbackReceiverEventsInsertDB, Counter, Integer, "Number of events batch inserted into database"},
	{MetricCallbackReceiverBatchEventsErrors, Counter, Integer, "Number of times batch insertion failed"},
	{MetricCallbackReceiverEventsQueueSize, Gauge, Integer, "Current number of events in redis queue"},
	{MetricTaskManagerScheduleCalls, Counter, Integer, "Number of calls to task manager schedule"},
	{MetricTaskManagerTasksStarted, Counter, Integer, "Number of tasks started by the task manager"},
	{MetricSubsystemMetricsPipeExecuteCalls, Counter, Integer, "Number of calls to pipe execute"},
	{MetricSubsystemMetricsPipeExecuteSeconds, Counter, Float, "Time spent saving metrics to redis"},
}

// LookupSubsystemMetric 按名字查找子系统指标
func LookupSubsystemMetric(name string) (SubsystemMetric, bool) {
	for _, m := range SubsystemMetrics {
		if m.Name == name {
			return m, true
		}
	}
	return SubsystemMetric{}, false
}

// SystemInfo awx_system_info 的进程级标签
type SystemInfo struct {
	InstallUUID string
	Version     string
	URLBase     string
}

// Sources 计算规则依赖的协作者。Subsystem 为 nil 时不注册子系统指标
type Sources struct {
	Entities    EntityCounter
	Jobs        JobStats
	Sessions    SessionCounter
	Instances   InstanceSource
	License     LicenseSource
	Connections ConnectionCounter
	Subsystem   SubsystemSource
}

var entityHelp = map[Entity]string{
	EntityOrganizations:        "Number of organizations",
	EntityUsers:                "Number of users",
	EntityTeams:                "Number of teams",
	EntityInventories:          "Number of inventories",
	EntityProjects:             "Number of projects",
	EntityJobTemplates:         "Number of job templates",
	EntityWorkflowJobTemplates: "Number of workflow job templates",
	EntityHosts:                "Number of hosts",
	EntitySchedules:            "Number of schedules",
}

var instanceLabels = []string{"hostname", "instance_uuid"}

type catalog struct {
	src  Sources
	info SystemInfo
}

// NewCatalog 返回完整的 AWX 指标集合，顺序即输出顺序
func NewCatalog(src Sources, info SystemInfo) []Definition {
	c := &catalog{src: src, info: info}

	defs := []Definition{{
		Name:      MetricSystemInfo,
		Help:      "AWX System Information",
		LabelKeys: []string{"install_uuid", "version", "license_type", "license_expiry", "url_base"},
		Source:    SourceStatic,
		Compute:   c.systemInfo,
	}}

	for _, e := range Entities {
		defs = append(defs, Definition{
			Name:    "awx_" + string(e) + "_total",
			Help:    entityHelp[e],
			Source:  SourceDatabase,
			Compute: c.entityTotal(e),
		})
	}

	defs = append(defs,
		Definition{
			Name:      MetricSessionsTotal,
			Help:      "Number of sessions",
			LabelKeys: []string{"type"},
			Source:    SourceDatabase,
			Compute:   c.sessions,
		},
		Definition{
			Name:      MetricStatusTotal,
			Help:      "Status of Job launched",
			LabelKeys: []string{"status"},
			Source:    SourceDatabase,
			Compute:   c.statusTotal,
		},
		Definition{
			Name:    MetricRunningJobsTotal,
			Help:    "Number of running jobs in the system",
			Source:  SourceDatabase,
			Compute: c.jobsInStatus(JobStatusRunning),
		},
		Definition{
			Name:    MetricPendingJobsTotal,
			Help:    "Number of pending jobs in the system",
			Source:  SourceDatabase,
			Compute: c.jobsInStatus(JobStatusPending),
		},
		Definition{
			Name:      MetricInstanceStatusTotal,
			Help:      "Status of Job launched per instance",
			LabelKeys: []string{"node", "status"},
			Source:    SourceDatabase,
			Compute:   c.nodeCounts("jobs:node_status", "status", c.jobsByNodeStatus),
		},
		Definition{
			Name:      MetricInstanceLaunchTypeTotal,
			Help:      "Type of Job launched per instance",
			LabelKeys: []string{"node", "launch_type"},
			Source:    SourceDatabase,
			Compute:   c.nodeCounts("jobs:node_launch_type", "launch_type", c.jobsByNodeLaunchType),
		},
		c.instanceGauge(MetricInstanceCapacity, "Capacity of each node in the system", Integer,
			func(s InstanceStats) float64 { return float64(s.Capacity) }),
		c.instanceGauge(MetricInstanceConsumedCapacity, "Consumed capacity of each node in the system", Integer,
			func(s InstanceStats) float64 { return float64(s.ConsumedCapacity) }),
		c.instanceGauge(MetricInstanceRemainingCapacity, "Remaining capacity of each node in the system", Integer,
			func(s InstanceStats) float64 { return float64(s.RemainingCapacity()) }),
		c.instanceGauge(MetricInstanceCPU, "CPU cores on each node in the system", Float,
			func(s InstanceStats) float64 { return s.CPU }),
		c.instanceGauge(MetricInstanceMemory, "RAM (Kb) on each node in the system", Integer,
			func(s InstanceStats) float64 { return float64(s.Memory) }),
		Definition{
			Name:      MetricInstanceInfo,
			Help:      "Info about each node in the system",
			LabelKeys: []string{"hostname", "instance_uuid", "version", "node_type", "enabled", "managed_by_policy"},
			Source:    SourceDatabase,
			Compute:   c.instanceInfo,
		},
		Definition{
			Name:    MetricLicenseInstanceTotal,
			Help:    "Total number of managed hosts provided by your license",
			Source:  SourceDatabase,
			Compute: c.licenseTotal,
		},
		Definition{
			Name:    MetricLicenseInstanceFree,
			Help:    "Number of remaining managed hosts provided by your license",
			Source:  SourceDatabase,
			Compute: c.licenseFree,
		},
		Definition{
			Name:    MetricDatabaseConnectionsTotal,
			Help:    "Number of connections to database",
			Source:  SourceDatabase,
			Compute: c.databaseConnections,
		},
	)

	if src.Subsystem != nil {
		for _, m := range SubsystemMetrics {
			defs = append(defs, Definition{
				Name:      m.Name,
				Kind:      m.Kind,
				ValueType: m.ValueType,
				Help:      m.Help,
				LabelKeys: []string{"node"},
				Source:    SourceSubsystem,
				Compute:   c.subsystem(m.Name),
			})
		}
	}
	return defs
}

func (c *catalog) licenseFacts(ctx context.Context) (LicenseFacts, error) {
	if c.src.License == nil {
		return LicenseFacts{}, nil
	}
	facts, err := shared(ctx, "license", c.src.License.LicenseFacts)
	if err != nil {
		return LicenseFacts{}, unavailable("license", err)
	}
	return facts, nil
}

func (c *catalog) systemInfo(ctx context.Context) ([]Sample, error) {
	facts, err := c.licenseFacts(ctx)
	if err != nil {
		return nil, err
	}
	expiry := "0"
	if !facts.Expiry.IsZero() {
		expiry = strconv.FormatInt(facts.Expiry.Unix(), 10)
	}
	return []Sample{Point(1,
		L("install_uuid", c.info.InstallUUID),
		L("version", c.info.Version),
		L("license_type", facts.LicenseType),
		L("license_expiry", expiry),
		L("url_base", c.info.URLBase),
	)}, nil
}

func (c *catalog) countEntity(ctx context.Context, e Entity) (int64, error) {
	if c.src.Entities == nil {
		return 0, unavailable(string(e), errNoSource)
	}
	n, err := shared(ctx, "entity:"+string(e), func(ctx context.Context) (int64, error) {
		return c.src.Entities.CountEntities(ctx, e)
	})
	if err != nil {
		return 0, unavailable(string(e), err)
	}
	return n, nil
}

func (c *catalog) entityTotal(e Entity) ComputeFunc {
	return func(ctx context.Context) ([]Sample, error) {
		n, err := c.countEntity(ctx, e)
		if err != nil {
			return nil, err
		}
		return []Sample{Point(float64(n))}, nil
	}
}

func (c *catalog) sessions(ctx context.Context) ([]Sample, error) {
	if c.src.Sessions == nil {
		return nil, unavailable("sessions", errNoSource)
	}
	s, err := c.src.Sessions.CountSessions(ctx)
	if err != nil {
		return nil, unavailable("sessions", err)
	}
	return []Sample{
		Point(float64(s.All()), L("type", "all")),
		Point(float64(s.User), L("type", "user")),
		Point(float64(s.Anonymous), L("type", "anonymous")),
	}, nil
}

func (c *catalog) jobsByStatus(ctx context.Context) (map[string]int64, error) {
	if c.src.Jobs == nil {
		return nil, unavailable("jobs", errNoSource)
	}
	m, err := shared(ctx, "jobs:status", c.src.Jobs.CountJobsByStatus)
	if err != nil {
		return nil, unavailable("jobs", err)
	}
	return m, nil
}

func (c *catalog) statusTotal(ctx context.Context) ([]Sample, error) {
	counts, err := c.jobsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	statuses := make([]string, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)

	out := make([]Sample, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, Point(float64(counts[s]), L("status", s)))
	}
	return out, nil
}

func (c *catalog) jobsInStatus(status string) ComputeFunc {
	return func(ctx context.Context) ([]Sample, error) {
		counts, err := c.jobsByStatus(ctx)
		if err != nil {
			return nil, err
		}
		return []Sample{Point(float64(counts[status]))}, nil
	}
}

func (c *catalog) jobsByNodeStatus(ctx context.Context) ([]NodeCount, error) {
	if c.src.Jobs == nil {
		return nil, errNoSource
	}
	return c.src.Jobs.CountJobsByNodeStatus(ctx)
}

func (c *catalog) jobsByNodeLaunchType(ctx context.Context) ([]NodeCount, error) {
	if c.src.Jobs == nil {
		return nil, errNoSource
	}
	return c.src.Jobs.CountJobsByNodeLaunchType(ctx)
}

func (c *catalog) nodeCounts(key, label string, read func(context.Context) ([]NodeCount, error)) ComputeFunc {
	return func(ctx context.Context) ([]Sample, error) {
		rows, err := shared(ctx, key, read)
		if err != nil {
			return nil, unavailable("jobs", err)
		}
		out := make([]Sample, 0, len(rows))
		for _, r := range rows {
			out = append(out, Point(float64(r.Count), L("node", r.Node), L(label, r.Value)))
		}
		return out, nil
	}
}

func (c *catalog) instances(ctx context.Context) ([]InstanceStats, error) {
	if c.src.Instances == nil {
		return nil, unavailable("instances", errNoSource)
	}
	rows, err := shared(ctx, "instances", c.src.Instances.InstanceStats)
	if err != nil {
		return nil, unavailable("instances", err)
	}
	return rows, nil
}

func (c *catalog) instanceGauge(name, help string, vt ValueType, value func(InstanceStats) float64) Definition {
	return Definition{
		Name:      name,
		ValueType: vt,
		Help:      help,
		LabelKeys: instanceLabels,
		Source:    SourceDatabase,
		Compute: func(ctx context.Context) ([]Sample, error) {
			rows, err := c.instances(ctx)
			if err != nil {
				return nil, err
			}
			out := make([]Sample, 0, len(rows))
			for _, r := range rows {
				out = append(out, Point(value(r), L("hostname", r.Hostname), L("instance_uuid", r.UUID)))
			}
			return out, nil
		},
	}
}

func (c *catalog) instanceInfo(ctx context.Context) ([]Sample, error) {
	rows, err := c.instances(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Sample, 0, len(rows))
	for _, r := range rows {
		out = append(out, Point(1,
			L("hostname", r.Hostname),
			L("instance_uuid", r.UUID),
			L("version", r.Version),
			L("node_type", r.NodeType),
			L("enabled", strconv.FormatBool(r.Enabled)),
			L("managed_by_policy", strconv.FormatBool(r.ManagedByPolicy)),
		))
	}
	return out, nil
}

func (c *catalog) licenseTotal(ctx context.Context) ([]Sample, error) {
	facts, err := c.licenseFacts(ctx)
	if err != nil {
		return nil, err
	}
	return []Sample{Point(float64(facts.InstanceCount))}, nil
}

func (c *catalog) licenseFree(ctx context.Context) ([]Sample, error) {
	facts, err := c.licenseFacts(ctx)
	if err != nil {
		return nil, err
	}
	hosts, err := c.countEntity(ctx, EntityHosts)
	if err != nil {
		return nil, err
	}
	return []Sample{Point(float64(max(facts.InstanceCount-hosts, 0)))}, nil
}

func (c *catalog) databaseConnections(ctx context.Context) ([]Sample, error) {
	if c.src.Connections == nil {
		return nil, unavailable("connections", errNoSource)
	}
	n, err := c.src.Connections.DatabaseConnections(ctx)
	if err != nil {
		return nil, unavailable("connections", err)
	}
	return []Sample{Point(float64(max(n, 1)))}, nil
}

func (c *catalog) subsystem(name string) ComputeFunc {
	return func(ctx context.Context) ([]Sample, error) {
		all, err := shared(ctx, "subsystem", c.src.Subsystem.SubsystemMetrics)
		if err != nil {
			return nil, unavailable("subsystem", err)
		}
		var out []Sample
		for _, s := range all {
			if s.Metric == name {
				out = append(out, Point(s.Value, L("node", s.Node)))
			}
		}
		return out, nil
	}
}

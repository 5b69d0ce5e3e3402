package store

import "time"

// 表名沿用 AWX 的 Django 表名，便于直接指向现有数据库

// Organization 组织
type Organization struct {
	ID      uint   `gorm:"primaryKey"`
	Name    string `gorm:"size:512;uniqueIndex"`
	Created time.Time
}

func (Organization) TableName() string { return "main_organization" }

// User 用户
type User struct {
	ID              uint   `gorm:"primaryKey"`
	Username        string `gorm:"size:150;uniqueIndex"`
	IsSuperuser     bool
	IsSystemAuditor bool
	IsActive        bool
	DateJoined      time.Time
}

func (User) TableName() string { return "auth_user" }

// OrganizationMembership 用户在组织内的角色
type OrganizationMembership struct {
	ID             uint   `gorm:"primaryKey"`
	UserID         uint   `gorm:"index"`
	OrganizationID uint   `gorm:"index"`
	Role           string `gorm:"size:32"`
}

func (OrganizationMembership) TableName() string { return "main_organization_membership" }

// Team 团队
type Team struct {
	ID             uint   `gorm:"primaryKey"`
	Name           string `gorm:"size:512"`
	OrganizationID uint   `gorm:"index"`
}

func (Team) TableName() string { return "main_team" }

// Inventory 清单
type Inventory struct {
	ID             uint   `gorm:"primaryKey"`
	Name           string `gorm:"size:512"`
	OrganizationID uint   `gorm:"index"`
}

func (Inventory) TableName() string { return "main_inventory" }

// Project 项目
type Project struct {
	ID             uint   `gorm:"primaryKey"`
	Name           string `gorm:"size:512"`
	OrganizationID uint   `gorm:"index"`
	SCMType        string `gorm:"size:8"`
}

func (Project) TableName() string { return "main_project" }

// Credential 凭据，只用于构造作业模板
type Credential struct {
	ID             uint   `gorm:"primaryKey"`
	Name           string `gorm:"size:512"`
	OrganizationID uint   `gorm:"index"`
	Kind           string `gorm:"size:32"`
}

func (Credential) TableName() string { return "main_credential" }

// JobTemplate 作业模板
type JobTemplate struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"size:512"`
	InventoryID  uint   `gorm:"index"`
	ProjectID    uint   `gorm:"index"`
	CredentialID uint
	Playbook     string `gorm:"size:1024"`
}

func (JobTemplate) TableName() string { return "main_jobtemplate" }

// WorkflowJobTemplate 工作流模板
type WorkflowJobTemplate struct {
	ID             uint   `gorm:"primaryKey"`
	Name           string `gorm:"size:512"`
	OrganizationID uint   `gorm:"index"`
}

func (WorkflowJobTemplate) TableName() string { return "main_workflowjobtemplate" }

// Host 受管主机
type Host struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"size:512"`
	InventoryID uint   `gorm:"index"`
}

func (Host) TableName() string { return "main_host" }

// Schedule 调度
type Schedule struct {
	ID                   uint   `gorm:"primaryKey"`
	Name                 string `gorm:"size:512"`
	UnifiedJobTemplateID uint   `gorm:"index"`
	RRule                string `gorm:"size:255"`
	Enabled              bool
}

func (Schedule) TableName() string { return "main_schedule" }

// Session 登录会话，UserID 为空表示匿名会话
type Session struct {
	SessionKey string    `gorm:"primaryKey;size:40"`
	UserID     *uint     `gorm:"index"`
	ExpireDate time.Time `gorm:"index"`
}

func (Session) TableName() string { return "django_session" }

// UnifiedJob 作业执行
type UnifiedJob struct {
	ID            uint   `gorm:"primaryKey"`
	Name          string `gorm:"size:512"`
	Status        string `gorm:"size:20;index"`
	LaunchType    string `gorm:"size:20"`
	ExecutionNode string `gorm:"size:512;index"`
	Created       time.Time
	Finished      *time.Time
}

func (UnifiedJob) TableName() string { return "main_unifiedjob" }

// Instance 工作节点。容量相关列在同一行内，读取时一次取出
type Instance struct {
	ID               uint   `gorm:"primaryKey"`
	Hostname         string `gorm:"size:250;uniqueIndex"`
	UUID             string `gorm:"size:40"`
	Version          string `gorm:"size:120"`
	NodeType         string `gorm:"size:16"`
	Enabled          bool
	ManagedByPolicy  bool
	Capacity         int64
	ConsumedCapacity int64
	CPU              float64
	Memory           int64
}

func (Instance) TableName() string { return "main_instance" }

// Models 返回全部模型，供迁移使用
func Models() []any {
	return []any{
		&Organization{},
		&User{},
		&OrganizationMembership{},
		&Team{},
		&Inventory{},
		&Project{},
		&Credential{},
		&JobTemplate{},
		&WorkflowJobTemplate{},
		&Host{},
		&Schedule{},
		&Session{},
		&UnifiedJob{},
		&Instance{},
	}
}

package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/iwt-cmd/awx/db"
	"github.com/iwt-cmd/awx/store"
)

// Fixture 已知的最小数据集：每类实体各一条，无活跃会话，无运行中或排队作业
type Fixture struct {
	Organization store.Organization
	Admin        store.User
	Instance     store.Instance
}

// FixtureInstance 固定数据集中的唯一节点
var FixtureInstance = store.Instance{
	Hostname:         "awx-1",
	UUID:             "1b4e28ba-2fa1-11d2-883f-0016d3cca427",
	Version:          "24.6.1",
	NodeType:         "hybrid",
	Enabled:          true,
	ManagedByPolicy:  true,
	Capacity:         100,
	ConsumedCapacity: 30,
	CPU:              4,
	Memory:           8 << 30,
}

// SeedFixture 在一个事务内写入固定数据集
func SeedFixture(t *testing.T, database db.DB) *Fixture {
	t.Helper()
	now := time.Now().UTC()
	f := &Fixture{Instance: FixtureInstance}

	err := database.Transaction(context.Background(), func(ctx context.Context, tx *gorm.DB) error {
		f.Organization = store.Organization{Name: "Default", Created: now}
		if err := tx.Create(&f.Organization).Error; err != nil {
			return err
		}
		f.Admin = store.User{Username: "admin", IsSuperuser: true, IsActive: true, DateJoined: now}
		if err := tx.Create(&f.Admin).Error; err != nil {
			return err
		}

		orgID := f.Organization.ID
		inventory := store.Inventory{Name: "Demo Inventory", OrganizationID: orgID}
		project := store.Project{Name: "Demo Project", OrganizationID: orgID, SCMType: "git"}
		credential := store.Credential{Name: "Demo Credential", OrganizationID: orgID, Kind: "ssh"}
		for _, v := range []any{
			&store.Team{Name: "Operators", OrganizationID: orgID},
			&inventory,
			&project,
			&credential,
			&store.WorkflowJobTemplate{Name: "Demo Workflow", OrganizationID: orgID},
		} {
			if err := tx.Create(v).Error; err != nil {
				return err
			}
		}

		jt := store.JobTemplate{
			Name:         "Demo Job Template",
			InventoryID:  inventory.ID,
			ProjectID:    project.ID,
			CredentialID: credential.ID,
			Playbook:     "hello_world.yml",
		}
		if err := tx.Create(&jt).Error; err != nil {
			return err
		}

		finished := now.Add(-time.Minute)
		for _, v := range []any{
			&store.Host{Name: "localhost", InventoryID: inventory.ID},
			&store.Schedule{Name: "Nightly", UnifiedJobTemplateID: jt.ID, RRule: "FREQ=DAILY", Enabled: true},
			&store.Session{SessionKey: "expired-" + NewID(), UserID: &f.Admin.ID, ExpireDate: now.Add(-time.Hour)},
			&store.UnifiedJob{Name: jt.Name, Status: "successful", LaunchType: "manual",
				ExecutionNode: f.Instance.Hostname, Created: now.Add(-2 * time.Minute), Finished: &finished},
			&f.Instance,
		} {
			if err := tx.Create(v).Error; err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err, "failed to seed fixture")
	return f
}

// CreateUser 新增一个用户，可选择加入组织并授予角色
func CreateUser(t *testing.T, database db.DB, u store.User, roles ...store.OrganizationMembership) store.User {
	t.Helper()
	ctx := context.Background()
	if u.DateJoined.IsZero() {
		u.DateJoined = time.Now().UTC()
	}
	require.NoError(t, database.DB(ctx).Create(&u).Error)
	for _, r := range roles {
		r.UserID = u.ID
		require.NoError(t, database.DB(ctx).Create(&r).Error)
	}
	return u
}

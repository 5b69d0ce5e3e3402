package auth

import "context"

// OrganizationRole 组织内角色，只用于展示，不参与指标访问判定
type OrganizationRole struct {
	OrganizationID uint
	Role           string
}

// 组织角色
const (
	RoleOrgAdmin   = "admin"
	RoleOrgAuditor = "auditor"
	RoleOrgMember  = "member"
)

// Principal 发起请求的用户及其角色属性
type Principal struct {
	UserID            uint
	Username          string
	IsSuperuser       bool
	IsSystemAuditor   bool
	OrganizationRoles []OrganizationRole
}

// HasOrganizationRole 是否在任一组织中拥有 role
func (p *Principal) HasOrganizationRole(role string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.OrganizationRoles {
		if r.Role == role {
			return true
		}
	}
	return false
}

// PrincipalLoader 按用户主键加载最新的 Principal。
// 用户不存在时返回 ErrUnknownPrincipal。
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, userID uint) (*Principal, error)
}

// PrincipalLoaderFunc 函数适配器
type PrincipalLoaderFunc func(ctx context.Context, userID uint) (*Principal, error)

// LoadPrincipal 实现 PrincipalLoader
func (f PrincipalLoaderFunc) LoadPrincipal(ctx context.Context, userID uint) (*Principal, error) {
	return f(ctx, userID)
}

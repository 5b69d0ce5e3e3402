package auth

// Decision 访问判定结果
type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// rule 判定表中的一行，按顺序匹配，第一个命中者决定结果
type rule struct {
	name     string
	match    func(*Principal) bool
	decision Decision
}

// policy 指标读取权限是系统级能力，组织管理员与组织审计员都不能委派
var policy = []rule{
	{name: "superuser", match: func(p *Principal) bool { return p.IsSuperuser }, decision: Allow},
	{name: "system_auditor", match: func(p *Principal) bool { return p.IsSystemAuditor }, decision: Allow},
}

// Authorize 判定 p 能否读取指标。纯函数，不做 I/O，不缓存。
func Authorize(p *Principal) Decision {
	d, _ := Explain(p)
	return d
}

// Explain 与 Authorize 相同，额外返回命中的规则名，默认拒绝时为 "default"
func Explain(p *Principal) (Decision, string) {
	if p == nil {
		return Deny, "anonymous"
	}
	for _, r := range policy {
		if r.match(p) {
			return r.decision, r.name
		}
	}
	return Deny, "default"
}

package auth

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iwt-cmd/awx/clog"
	"github.com/iwt-cmd/awx/xerrors"
)

type fakeLoader struct {
	principals map[uint]*Principal
	err        error
	calls      int
}

func (f *fakeLoader) LoadPrincipal(_ context.Context, userID uint) (*Principal, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.principals[userID]
	if !ok {
		return nil, ErrUnknownPrincipal
	}
	cp := *p
	return &cp, nil
}

func newTestRouter(t *testing.T, loader PrincipalLoader, logger clog.Logger) (*gin.Engine, Authenticator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	authn := createTestAuthenticator(t)
	router := gin.New()
	router.GET("/metrics", RequireMetricsReader(authn, loader, WithLogger(logger)), func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		require.True(t, ok)
		c.String(http.StatusOK, p.Username)
	})
	return router, authn
}

func doRequest(router http.Handler, method, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/metrics", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequireMetricsReader(t *testing.T) {
	loader := &fakeLoader{principals: map[uint]*Principal{
		1: {UserID: 1, Username: "admin", IsSuperuser: true},
		2: {UserID: 2, Username: "auditor", IsSystemAuditor: true},
		3: {UserID: 3, Username: "org-admin", OrganizationRoles: []OrganizationRole{{OrganizationID: 1, Role: RoleOrgAdmin}}},
		4: {UserID: 4, Username: "org-auditor", OrganizationRoles: []OrganizationRole{{OrganizationID: 1, Role: RoleOrgAuditor}}},
		5: {UserID: 5, Username: "member", OrganizationRoles: []OrganizationRole{{OrganizationID: 1, Role: RoleOrgMember}}},
	}}
	router, authn := newTestRouter(t, loader, clog.Discard())
	ctx := context.Background()

	tests := []struct {
		name   string
		userID uint
		want   int
	}{
		{"superuser", 1, http.StatusOK},
		{"system auditor", 2, http.StatusOK},
		{"organization admin", 3, http.StatusForbidden},
		{"organization auditor", 4, http.StatusForbidden},
		{"plain member", 5, http.StatusForbidden},
		{"unknown user", 99, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := authn.GenerateToken(ctx, tt.userID, "")
			require.NoError(t, err)
			w := doRequest(router, http.MethodGet, token)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusForbidden {
				assert.Contains(t, w.Body.String(), detailForbidden)
			}
		})
	}
}

func TestRequireMetricsReaderMissingOrInvalidToken(t *testing.T) {
	loader := &fakeLoader{}
	router, _ := newTestRouter(t, loader, clog.Discard())

	assert.Equal(t, http.StatusUnauthorized, doRequest(router, http.MethodGet, "").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(router, http.MethodGet, "garbage").Code)
	assert.Zero(t, loader.calls, "principal must not be loaded without a valid token")
}

func TestRequireMetricsReaderReloadsPrincipal(t *testing.T) {
	loader := &fakeLoader{principals: map[uint]*Principal{
		7: {UserID: 7, Username: "late-auditor"},
	}}
	router, authn := newTestRouter(t, loader, clog.Discard())

	token, err := authn.GenerateToken(context.Background(), 7, "late-auditor")
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, doRequest(router, http.MethodGet, token).Code)

	loader.principals[7].IsSystemAuditor = true
	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, token).Code)
	assert.Equal(t, 2, loader.calls)
}

func TestRequireMetricsReaderStoreUnavailable(t *testing.T) {
	loader := &fakeLoader{err: xerrors.Wrap(xerrors.ErrUnavailable, "db down")}
	router, authn := newTestRouter(t, loader, clog.Discard())

	token, err := authn.GenerateToken(context.Background(), 1, "admin")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, doRequest(router, http.MethodGet, token).Code)
}

func TestRequireMetricsReaderLogsDenyAtInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, err := clog.New(&clog.Config{Level: "debug", Format: "json"}, clog.WithWriter(&buf))
	require.NoError(t, err)

	loader := &fakeLoader{principals: map[uint]*Principal{3: {UserID: 3, Username: "org-admin"}}}
	router, authn := newTestRouter(t, loader, logger)

	token, err := authn.GenerateToken(context.Background(), 3, "org-admin")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, doRequest(router, http.MethodGet, token).Code)

	out := buf.String()
	assert.Contains(t, out, "metrics access denied")
	assert.Contains(t, out, `"level":"INFO"`)
	assert.NotContains(t, out, `"level":"ERROR"`)
}

func TestHeadDenyHasNoBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	authn := createTestAuthenticator(t)
	router := gin.New()
	router.HEAD("/metrics", RequireMetricsReader(authn, &fakeLoader{}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := doRequest(router, http.MethodHead, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, w.Body.Len())
}

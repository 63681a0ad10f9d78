package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/clusterdeck/internal/common"
	"github.com/dmitrijs2005/clusterdeck/internal/logging"
	"github.com/dmitrijs2005/clusterdeck/internal/server/auth"
	"github.com/dmitrijs2005/clusterdeck/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	users      map[int64]*models.User
	userErr    error
	clusters   map[int64]*models.ClusterWithMembers
	clusterErr error
	userCalls  int
}

func (f *fakeDirectory) UserByID(_ context.Context, id int64) (*models.User, error) {
	f.userCalls++
	if f.userErr != nil {
		return nil, f.userErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (f *fakeDirectory) ClusterForUser(_ context.Context, userID int64) (*models.ClusterWithMembers, error) {
	if f.clusterErr != nil {
		return nil, f.clusterErr
	}
	c, ok := f.clusters[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return c, nil
}

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T, dir *fakeDirectory) (*Manager, *auth.Codec) {
	t.Helper()
	codec := auth.NewCodec(auth.StaticKey("test-secret"), 24*time.Hour)
	m := NewManager(codec, dir, logging.Nop(), "/sign-in", CookieOptions{Secure: true})
	m.now = func() time.Time { return testNow }
	return m, codec
}

func requestWithToken(token string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	if token != "" {
		r.AddCookie(&http.Cookie{Name: common.SessionCookieName, Value: token})
	}
	return r
}

func tokenFor(t *testing.T, userID int64, expires time.Time) string {
	t.Helper()
	tok, err := auth.GenerateToken(userID, []byte("test-secret"), expires.Add(-24*time.Hour), expires)
	require.NoError(t, err)
	return tok
}

func TestCurrentUser(t *testing.T) {
	alice := &models.User{ID: 1, Email: "alice@example.com"}
	deleted := time.Now()
	ghost := &models.User{ID: 3, Email: "ghost@example.com", DeletedAt: &deleted}
	dir := &fakeDirectory{users: map[int64]*models.User{1: alice, 3: ghost}}
	m, _ := newTestManager(t, dir)

	badSig, err := auth.GenerateToken(1, []byte("other-secret"), testNow, testNow.Add(time.Hour))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  *models.User
	}{
		{"no cookie", "", nil},
		{"garbage", "not-a-token", nil},
		{"bad signature", badSig, nil},
		{"expired", tokenFor(t, 1, testNow.Add(-time.Minute)), nil},
		{"unknown user", tokenFor(t, 2, testNow.Add(time.Hour)), nil},
		{"soft deleted user", tokenFor(t, 3, testNow.Add(time.Hour)), nil},
		{"valid", tokenFor(t, 1, testNow.Add(time.Hour)), alice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.CurrentUser(requestWithToken(tt.token)))
		})
	}
}

func TestCurrentUser_LookupErrorIsNoUser(t *testing.T) {
	dir := &fakeDirectory{userErr: errors.New("db down")}
	m, _ := newTestManager(t, dir)

	assert.Nil(t, m.CurrentUser(requestWithToken(tokenFor(t, 1, testNow.Add(time.Hour)))))
}

func TestResolve_CachesUserInScope(t *testing.T) {
	alice := &models.User{ID: 1}
	dir := &fakeDirectory{users: map[int64]*models.User{1: alice}}
	m, _ := newTestManager(t, dir)

	var got *models.User
	h := m.Resolve(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = m.CurrentUser(r)
		assert.Equal(t, alice, UserFrom(r.Context()))
	}))
	h.ServeHTTP(httptest.NewRecorder(), requestWithToken(tokenFor(t, 1, testNow.Add(time.Hour))))

	assert.Equal(t, alice, got)
	assert.Equal(t, 1, dir.userCalls, "user must be loaded once per request")
}

func TestRequireUser(t *testing.T) {
	alice := &models.User{ID: 1}
	dir := &fakeDirectory{users: map[int64]*models.User{1: alice}}
	m, _ := newTestManager(t, dir)

	called := false
	h := m.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, alice, FromContext(r.Context()).User)
	}))

	t.Run("anonymous is redirected", func(t *testing.T) {
		called = false
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestWithToken(""))
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/sign-in", rec.Header().Get("Location"))
		assert.False(t, called)
	})

	t.Run("signed in passes through", func(t *testing.T) {
		called = false
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestWithToken(tokenFor(t, 1, testNow.Add(time.Hour))))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, called)
	})
}

func TestRequireCluster(t *testing.T) {
	alice := &models.User{ID: 1}
	bob := &models.User{ID: 2}
	cluster := &models.ClusterWithMembers{Cluster: models.Cluster{ID: 10, Name: "Team"}}
	dir := &fakeDirectory{
		users:    map[int64]*models.User{1: alice, 2: bob},
		clusters: map[int64]*models.ClusterWithMembers{1: cluster},
	}
	m, _ := newTestManager(t, dir)

	var scope *Scope
	h := m.RequireCluster(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope = FromContext(r.Context())
	}))

	t.Run("member gets cluster in scope", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestWithToken(tokenFor(t, 1, testNow.Add(time.Hour))))
		require.NotNil(t, scope)
		assert.Equal(t, alice, scope.User)
		assert.Equal(t, cluster, scope.Cluster)
	})

	t.Run("anonymous is redirected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestWithToken(""))
		assert.Equal(t, http.StatusSeeOther, rec.Code)
	})

	t.Run("user without cluster panics", func(t *testing.T) {
		defer func() {
			r := recover()
			require.NotNil(t, r)
			err, ok := r.(error)
			require.True(t, ok)
			assert.ErrorIs(t, err, common.ErrClusterNotFound)
		}()
		h.ServeHTTP(httptest.NewRecorder(), requestWithToken(tokenFor(t, 2, testNow.Add(time.Hour))))
	})
}

func TestRequireCluster_LookupError(t *testing.T) {
	dir := &fakeDirectory{
		users:      map[int64]*models.User{1: {ID: 1}},
		clusterErr: errors.New("db down"),
	}
	m, _ := newTestManager(t, dir)

	h := m.RequireCluster(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next must not run")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestWithToken(tokenFor(t, 1, testNow.Add(time.Hour))))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCookies(t *testing.T) {
	m, _ := newTestManager(t, &fakeDirectory{})

	rec := httptest.NewRecorder()
	expires := testNow.Add(24 * time.Hour)
	m.SetCookie(rec, "tok", expires)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "session", c.Name)
	assert.Equal(t, "tok", c.Value)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, "/", c.Path)
	assert.True(t, c.Expires.Equal(expires))

	rec = httptest.NewRecorder()
	m.ClearCookie(rec)
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

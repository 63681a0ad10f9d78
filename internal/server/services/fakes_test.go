package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/clusterdeck/internal/common"
	"github.com/dmitrijs2005/clusterdeck/internal/dbx"
	"github.com/dmitrijs2005/clusterdeck/internal/server/auth"
	"github.com/dmitrijs2005/clusterdeck/internal/server/models"
	"github.com/dmitrijs2005/clusterdeck/internal/server/repositories/activity"
	"github.com/dmitrijs2005/clusterdeck/internal/server/repositories/clusters"
	"github.com/dmitrijs2005/clusterdeck/internal/server/repositories/invitations"
	"github.com/dmitrijs2005/clusterdeck/internal/server/repositories/members"
	"github.com/dmitrijs2005/clusterdeck/internal/server/repositories/secrets"
	"github.com/dmitrijs2005/clusterdeck/internal/server/repositories/users"
)

// --- in-memory store behind the fake repositories ---

type memStore struct {
	mu          sync.Mutex
	seq         int64
	users       map[int64]*models.User
	clusters    map[int64]*models.Cluster
	members     map[int64]*models.ClusterMember
	invitations map[int64]*models.Invitation
	activity    []models.ActivityLog
	fail        map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		users:       map[int64]*models.User{},
		clusters:    map[int64]*models.Cluster{},
		members:     map[int64]*models.ClusterMember{},
		invitations: map[int64]*models.Invitation{},
		fail:        map[string]error{},
	}
}

func (s *memStore) nextID() int64 {
	s.seq++
	return s.seq
}

func (s *memStore) actions(userID int64) []models.ActivityType {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ActivityType
	for _, a := range s.activity {
		if a.UserID == userID {
			out = append(out, a.Action)
		}
	}
	return out
}

func (s *memStore) userByEmail(email string) *models.User {
	for _, u := range s.users {
		if u.Email == email && u.DeletedAt == nil {
			return u
		}
	}
	return nil
}

type fakeUsers struct{ s *memStore }

func (f fakeUsers) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.fail["users.Create"]; err != nil {
		return nil, err
	}
	if f.s.userByEmail(u.Email) != nil {
		return nil, common.ErrorAlreadyExists
	}
	c := *u
	c.ID = f.s.nextID()
	c.CreatedAt, c.UpdatedAt = time.Now(), time.Now()
	f.s.users[c.ID] = &c
	out := c
	return &out, nil
}

func (f fakeUsers) GetByID(ctx context.Context, id int64) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, ok := f.s.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, common.ErrorNotFound
	}
	out := *u
	return &out, nil
}

func (f fakeUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.fail["users.GetByEmail"]; err != nil {
		return nil, err
	}
	u := f.s.userByEmail(email)
	if u == nil {
		return nil, common.ErrorNotFound
	}
	out := *u
	return &out, nil
}

func (f fakeUsers) UpdatePassword(ctx context.Context, id int64, hash string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, ok := f.s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f fakeUsers) UpdateAccount(ctx context.Context, id int64, name, email string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if other := f.s.userByEmail(email); other != nil && other.ID != id {
		return common.ErrorAlreadyExists
	}
	u, ok := f.s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.Name, u.Email = name, email
	return nil
}

func (f fakeUsers) SoftDelete(ctx context.Context, id int64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, ok := f.s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	now := time.Now()
	u.DeletedAt = &now
	u.Email = fmt.Sprintf("%s-%d-deleted", u.Email, u.ID)
	return nil
}

type fakeClusters struct{ s *memStore }

func (f fakeClusters) Create(ctx context.Context, name string) (*models.Cluster, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	c := &models.Cluster{ID: f.s.nextID(), Name: name, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	f.s.clusters[c.ID] = c
	out := *c
	return &out, nil
}

func (f fakeClusters) GetByID(ctx context.Context, id int64) (*models.Cluster, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	c, ok := f.s.clusters[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *c
	return &out, nil
}

func (f fakeClusters) GetForUser(ctx context.Context, userID int64) (*models.Cluster, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.fail["clusters.GetForUser"]; err != nil {
		return nil, err
	}
	var first *models.ClusterMember
	for _, m := range f.s.members {
		if m.UserID == userID && (first == nil || m.ID < first.ID) {
			first = m
		}
	}
	if first == nil {
		return nil, common.ErrorNotFound
	}
	out := *f.s.clusters[first.ClusterID]
	return &out, nil
}

type fakeMembers struct{ s *memStore }

func (f fakeMembers) Create(ctx context.Context, m *models.ClusterMember) (*models.ClusterMember, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, e := range f.s.members {
		if e.UserID == m.UserID && e.ClusterID == m.ClusterID {
			return nil, common.ErrorAlreadyExists
		}
	}
	c := *m
	c.ID = f.s.nextID()
	c.JoinedAt = time.Now()
	f.s.members[c.ID] = &c
	out := c
	return &out, nil
}

func (f fakeMembers) ListByCluster(ctx context.Context, clusterID int64) ([]models.MemberWithUser, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []models.MemberWithUser
	for _, m := range f.s.members {
		if m.ClusterID != clusterID {
			continue
		}
		u := f.s.users[m.UserID]
		out = append(out, models.MemberWithUser{
			ClusterMember: *m,
			User:          models.MemberUser{ID: u.ID, Name: u.Name, Email: u.Email},
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeMembers) ExistsByEmail(ctx context.Context, clusterID int64, email string) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u := f.s.userByEmail(email)
	if u == nil {
		return false, nil
	}
	for _, m := range f.s.members {
		if m.UserID == u.ID && m.ClusterID == clusterID {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeMembers) DeleteInCluster(ctx context.Context, memberID, clusterID int64) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	m, ok := f.s.members[memberID]
	if !ok || m.ClusterID != clusterID {
		return 0, nil
	}
	delete(f.s.members, memberID)
	return 1, nil
}

func (f fakeMembers) DeleteUserFromCluster(ctx context.Context, userID, clusterID int64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for id, m := range f.s.members {
		if m.UserID == userID && m.ClusterID == clusterID {
			delete(f.s.members, id)
		}
	}
	return nil
}

type fakeInvitations struct{ s *memStore }

func (f fakeInvitations) Create(ctx context.Context, inv *models.Invitation) (*models.Invitation, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, e := range f.s.invitations {
		if e.ClusterID == inv.ClusterID && e.Email == inv.Email && e.Status == models.InvitationPending {
			return nil, common.ErrorAlreadyExists
		}
	}
	c := *inv
	c.ID = f.s.nextID()
	c.Status = models.InvitationPending
	c.InvitedAt = time.Now()
	f.s.invitations[c.ID] = &c
	out := c
	return &out, nil
}

func (f fakeInvitations) FindPending(ctx context.Context, id int64, email string) (*models.Invitation, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	inv, ok := f.s.invitations[id]
	if !ok || inv.Email != email || inv.Status != models.InvitationPending {
		return nil, common.ErrorNotFound
	}
	out := *inv
	return &out, nil
}

func (f fakeInvitations) HasPending(ctx context.Context, clusterID int64, email string) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, e := range f.s.invitations {
		if e.ClusterID == clusterID && e.Email == email && e.Status == models.InvitationPending {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeInvitations) Accept(ctx context.Context, id int64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	inv, ok := f.s.invitations[id]
	if !ok || inv.Status != models.InvitationPending {
		return common.ErrorNotFound
	}
	inv.Status = models.InvitationAccepted
	return nil
}

type fakeActivity struct{ s *memStore }

func (f fakeActivity) Create(ctx context.Context, e *models.ActivityLog) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.fail["activity.Create"]; err != nil {
		return err
	}
	e.ID = f.s.nextID()
	e.Timestamp = time.Now()
	f.s.activity = append(f.s.activity, *e)
	return nil
}

func (f fakeActivity) ListForUser(ctx context.Context, userID int64, limit int) ([]models.ActivityEntry, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []models.ActivityEntry{}
	for i := len(f.s.activity) - 1; i >= 0 && len(out) < limit; i-- {
		a := f.s.activity[i]
		if a.UserID != userID {
			continue
		}
		out = append(out, models.ActivityEntry{
			ID: a.ID, Action: a.Action, Timestamp: a.Timestamp,
			IPAddress: a.IPAddress, UserName: f.s.users[a.UserID].Name,
		})
	}
	return out, nil
}

func (f fakeActivity) ListForCluster(ctx context.Context, clusterID int64) ([]models.ActivityLog, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.fail["activity.ListForCluster"]; err != nil {
		return nil, err
	}
	var out []models.ActivityLog
	for _, a := range f.s.activity {
		if a.ClusterID == clusterID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeRepoManager struct{ s *memStore }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error        { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) users.Repository                 { return fakeUsers{m.s} }
func (m *fakeRepoManager) Clusters(db dbx.DBTX) clusters.Repository           { return fakeClusters{m.s} }
func (m *fakeRepoManager) Members(db dbx.DBTX) members.Repository             { return fakeMembers{m.s} }
func (m *fakeRepoManager) Invitations(db dbx.DBTX) invitations.Repository     { return fakeInvitations{m.s} }
func (m *fakeRepoManager) Activity(db dbx.DBTX) activity.Repository           { return fakeActivity{m.s} }
func (m *fakeRepoManager) Secrets(db dbx.DBTX) secrets.Repository             { return nil }

// --- session issuer ---

type fakeIssuer struct {
	mu    sync.Mutex
	err   error
	users []int64
}

func (f *fakeIssuer) Issue(ctx context.Context, userID int64) (*auth.Issued, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.users = append(f.users, userID)
	return &auth.Issued{Token: fmt.Sprintf("token-%d", userID), Expires: time.Now().Add(time.Hour)}, nil
}

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// seedUser stores a user with a real bcrypt hash of password.
func seedUser(t *testing.T, s *memStore, email, password string) *models.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u, err := fakeUsers{s}.Create(context.Background(), &models.User{Email: email, PasswordHash: hash, Role: models.RoleOwner})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

// seedCluster creates a cluster and adds each user to it with role.
func seedCluster(t *testing.T, s *memStore, name, role string, us ...*models.User) *models.Cluster {
	t.Helper()
	c, _ := fakeClusters{s}.Create(context.Background(), name)
	for _, u := range us {
		if _, err := (fakeMembers{s}).Create(context.Background(), &models.ClusterMember{UserID: u.ID, ClusterID: c.ID, Role: role}); err != nil {
			t.Fatalf("seed member: %v", err)
		}
	}
	return c
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func itoa(n int64) string { return fmt.Sprintf("%d", n) }

package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/repository"
)

// InMemoryConfigRepository はメモリ上の ConfigRepository 実装。
type InMemoryConfigRepository struct {
	mu      sync.RWMutex
	entries map[string]*model.ConfigEntry
}

// NewInMemoryConfigRepository は新しい InMemoryConfigRepository を作成する。
func NewInMemoryConfigRepository() *InMemoryConfigRepository {
	return &InMemoryConfigRepository{entries: make(map[string]*model.ConfigEntry)}
}

func (r *InMemoryConfigRepository) GetByID(_ context.Context, id string) (*model.ConfigEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return e.Clone(), nil
}

func (r *InMemoryConfigRepository) GetByKey(_ context.Context, scope model.Scope, key string) (*model.ConfigEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.Scope() == scope && e.Key == key {
			return e.Clone(), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *InMemoryConfigRepository) List(_ context.Context, params repository.ConfigListParams) ([]*model.ConfigEntry, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	search := strings.ToLower(params.Search)
	var matched []*model.ConfigEntry
	for _, e := range r.entries {
		if e.Scope() != params.Scope {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(e.Key), search) &&
			!strings.Contains(strings.ToLower(e.Description), search) {
			continue
		}
		matched = append(matched, e.Clone())
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Key < matched[j].Key })
	return paginate(matched, params.Page, params.PageSize), len(matched), nil
}

func (r *InMemoryConfigRepository) Create(_ context.Context, entry *model.ConfigEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[entry.ID]; ok {
		return repository.ErrAlreadyExists
	}
	for _, e := range r.entries {
		if e.UniqueKey() == entry.UniqueKey() {
			return repository.ErrAlreadyExists
		}
	}
	r.entries[entry.ID] = entry.Clone()
	return nil
}

func (r *InMemoryConfigRepository) Update(_ context.Context, entry *model.ConfigEntry, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.entries[entry.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return repository.ErrVersionConflict
	}
	r.entries[entry.ID] = entry.Clone()
	return nil
}

func (r *InMemoryConfigRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.entries, id)
	return nil
}

// InMemoryFeatureFlagRepository はメモリ上の FeatureFlagRepository 実装。
type InMemoryFeatureFlagRepository struct {
	mu    sync.RWMutex
	flags map[string]*model.FeatureFlag
}

// NewInMemoryFeatureFlagRepository は新しい InMemoryFeatureFlagRepository を作成する。
func NewInMemoryFeatureFlagRepository() *InMemoryFeatureFlagRepository {
	return &InMemoryFeatureFlagRepository{flags: make(map[string]*model.FeatureFlag)}
}

func (r *InMemoryFeatureFlagRepository) GetByID(_ context.Context, id string) (*model.FeatureFlag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.flags[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return f.Clone(), nil
}

func (r *InMemoryFeatureFlagRepository) GetByName(_ context.Context, scope model.Scope, name string) (*model.FeatureFlag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.flags {
		if f.Scope() == scope && f.Name == name {
			return f.Clone(), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *InMemoryFeatureFlagRepository) List(_ context.Context, scope model.Scope) ([]*model.FeatureFlag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*model.FeatureFlag{}
	for _, f := range r.flags {
		if f.Scope() == scope {
			out = append(out, f.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *InMemoryFeatureFlagRepository) Create(_ context.Context, flag *model.FeatureFlag) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.flags {
		if f.ID == flag.ID || (f.Scope() == flag.Scope() && f.Name == flag.Name) {
			return repository.ErrAlreadyExists
		}
	}
	r.flags[flag.ID] = flag.Clone()
	return nil
}

func (r *InMemoryFeatureFlagRepository) Update(_ context.Context, flag *model.FeatureFlag) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.flags[flag.ID]; !ok {
		return repository.ErrNotFound
	}
	r.flags[flag.ID] = flag.Clone()
	return nil
}

func (r *InMemoryFeatureFlagRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.flags[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.flags, id)
	return nil
}

// InMemoryDeploymentRepository はメモリ上の DeploymentRepository 実装。
type InMemoryDeploymentRepository struct {
	mu          sync.RWMutex
	deployments map[string]*model.Deployment
}

// NewInMemoryDeploymentRepository は新しい InMemoryDeploymentRepository を作成する。
func NewInMemoryDeploymentRepository() *InMemoryDeploymentRepository {
	return &InMemoryDeploymentRepository{deployments: make(map[string]*model.Deployment)}
}

func (r *InMemoryDeploymentRepository) GetByID(_ context.Context, id string) (*model.Deployment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.deployments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return d.Clone(), nil
}

func (r *InMemoryDeploymentRepository) List(_ context.Context, params repository.DeploymentListParams) ([]*model.Deployment, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []*model.Deployment
	for _, d := range r.deployments {
		if params.Environment != "" && d.Environment != params.Environment {
			continue
		}
		if params.Application != "" && d.Application != params.Application {
			continue
		}
		if params.Status != "" && d.Status != params.Status {
			continue
		}
		matched = append(matched, d.Clone())
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return paginate(matched, params.Page, params.PageSize), len(matched), nil
}

func (r *InMemoryDeploymentRepository) Create(_ context.Context, d *model.Deployment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.deployments[d.ID]; ok {
		return repository.ErrAlreadyExists
	}
	r.deployments[d.ID] = d.Clone()
	return nil
}

func (r *InMemoryDeploymentRepository) Update(_ context.Context, d *model.Deployment, expectedStatus model.DeploymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.deployments[d.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Status != expectedStatus {
		return repository.ErrStatusConflict
	}
	r.deployments[d.ID] = d.Clone()
	return nil
}

// InMemorySnapshotRepository はメモリ上の SnapshotRepository 実装。
type InMemorySnapshotRepository struct {
	mu        sync.RWMutex
	snapshots map[string]*model.ConfigurationSnapshot
}

// NewInMemorySnapshotRepository は新しい InMemorySnapshotRepository を作成する。
func NewInMemorySnapshotRepository() *InMemorySnapshotRepository {
	return &InMemorySnapshotRepository{snapshots: make(map[string]*model.ConfigurationSnapshot)}
}

func (r *InMemorySnapshotRepository) Create(_ context.Context, s *model.ConfigurationSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.snapshots[s.ID]; ok {
		return repository.ErrAlreadyExists
	}
	r.snapshots[s.ID] = cloneSnapshot(s)
	return nil
}

func (r *InMemorySnapshotRepository) GetByID(_ context.Context, id string) (*model.ConfigurationSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.snapshots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneSnapshot(s), nil
}

func (r *InMemorySnapshotRepository) List(_ context.Context, scope model.Scope) ([]*model.ConfigurationSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*model.ConfigurationSnapshot{}
	for _, s := range r.snapshots {
		if s.Scope() == scope {
			out = append(out, cloneSnapshot(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func cloneSnapshot(s *model.ConfigurationSnapshot) *model.ConfigurationSnapshot {
	c := *s
	c.ConfigurationData = make(map[string]string, len(s.ConfigurationData))
	for k, v := range s.ConfigurationData {
		c.ConfigurationData[k] = v
	}
	c.FeatureFlagData = make(map[string]bool, len(s.FeatureFlagData))
	for k, v := range s.FeatureFlagData {
		c.FeatureFlagData[k] = v
	}
	c.EncryptedKeys = append([]string(nil), s.EncryptedKeys...)
	return &c
}

// InMemoryAuditLogRepository はメモリ上の AuditLogRepository 実装。追記順を保持する。
type InMemoryAuditLogRepository struct {
	mu      sync.RWMutex
	entries []*model.AuditLogEntry
}

// NewInMemoryAuditLogRepository は新しい InMemoryAuditLogRepository を作成する。
func NewInMemoryAuditLogRepository() *InMemoryAuditLogRepository {
	return &InMemoryAuditLogRepository{}
}

func (r *InMemoryAuditLogRepository) Create(_ context.Context, entry *model.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *entry
	r.entries = append(r.entries, &c)
	return nil
}

func (r *InMemoryAuditLogRepository) Search(_ context.Context, params repository.AuditLogSearchParams) ([]*model.AuditLogEntry, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []*model.AuditLogEntry
	// 新しい順に走査する
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if params.EntityType != "" && e.EntityType != params.EntityType {
			continue
		}
		if params.EntityID != "" && e.EntityID != params.EntityID {
			continue
		}
		if params.Action != "" && e.Action != params.Action {
			continue
		}
		if params.UserID != "" && e.UserID != params.UserID {
			continue
		}
		if params.From != nil && e.Timestamp.Before(*params.From) {
			continue
		}
		if params.To != nil && e.Timestamp.After(*params.To) {
			continue
		}
		c := *e
		matched = append(matched, &c)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Timestamp.After(matched[j].Timestamp) })
	return paginate(matched, params.Page, params.PageSize), len(matched), nil
}

// Entries は記録順の監査ログを返す。
func (r *InMemoryAuditLogRepository) Entries() []*model.AuditLogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.AuditLogEntry, len(r.entries))
	for i, e := range r.entries {
		c := *e
		out[i] = &c
	}
	return out
}

// paginate は 1 始まりのページを切り出す。pageSize が 0 以下の場合は全件を返す。
func paginate[T any](items []T, page, pageSize int) []T {
	if pageSize <= 0 {
		if items == nil {
			return []T{}
		}
		return items
	}
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []T{}
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

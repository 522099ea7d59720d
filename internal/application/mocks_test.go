package application_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ericfisherdev/focal/internal/domain/model"
	"github.com/ericfisherdev/focal/internal/domain/port/driven"
)

// --- In-memory store ---

// memStore backs the project, iteration and metric fakes. Its transactor
// serializes units of work and restores a snapshot when one fails, the way
// the SQLite writer connection does.
type memStore struct {
	mu         sync.Mutex
	txMu       sync.Mutex
	nextID     int64
	projects   map[int64]model.Project
	iterations []model.Iteration
	metrics    []model.Metric

	failOffset  error
	failMetric  error
	failList    error
	failGet     map[int64]error
	offsetCalls int
}

func newMemStore() *memStore {
	return &memStore{projects: map[int64]model.Project{}}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) addProject(p model.Project) model.Project {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.id()
	m.projects[p.ID] = p
	return p
}

func (m *memStore) project(id int64) model.Project {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.projects[id]
}

func (m *memStore) iterationsOf(projectID int64) []model.Iteration {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Iteration
	for _, it := range m.iterations {
		if it.ProjectID == projectID {
			out = append(out, it)
		}
	}
	return out
}

func (m *memStore) metricsOf(iterationID int64) []model.Metric {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Metric
	for _, mt := range m.metrics {
		if mt.IterationID == iterationID {
			out = append(out, mt)
		}
	}
	return out
}

type memTx struct{ *memStore }

func (t memTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.txMu.Lock()
	defer t.txMu.Unlock()

	t.mu.Lock()
	projects := make(map[int64]model.Project, len(t.projects))
	for k, v := range t.projects {
		projects[k] = v
	}
	iterations := append([]model.Iteration(nil), t.iterations...)
	metrics := append([]model.Metric(nil), t.metrics...)
	t.mu.Unlock()

	if err := fn(ctx); err != nil {
		t.mu.Lock()
		t.projects, t.iterations, t.metrics = projects, iterations, metrics
		t.mu.Unlock()
		return err
	}
	return nil
}

type memProjects struct{ *memStore }

func (p memProjects) Create(_ context.Context, project model.Project) (model.Project, error) {
	return p.addProject(project), nil
}

func (p memProjects) Update(_ context.Context, project model.Project) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	existing, ok := p.projects[project.ID]
	if !ok {
		return driven.ErrProjectNotFound
	}
	project.UTCOffset = existing.UTCOffset
	p.projects[project.ID] = project
	return nil
}

func (p memProjects) Delete(_ context.Context, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.projects[id]; !ok {
		return driven.ErrProjectNotFound
	}
	delete(p.projects, id)
	return nil
}

func (p memProjects) Get(_ context.Context, id int64) (*model.Project, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failGet[id]; err != nil {
		return nil, err
	}
	project, ok := p.projects[id]
	if !ok {
		return nil, nil
	}
	return &project, nil
}

func (p memProjects) List(_ context.Context) ([]model.Project, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failList != nil {
		return nil, p.failList
	}
	out := make([]model.Project, 0, len(p.projects))
	for _, project := range p.projects {
		out = append(out, project)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p memProjects) ListRefs(ctx context.Context) ([]model.ProjectRef, error) {
	projects, err := p.List(ctx)
	if err != nil {
		return nil, err
	}
	refs := make([]model.ProjectRef, 0, len(projects))
	for _, project := range projects {
		refs = append(refs, model.ProjectRef{ID: project.ID, Name: project.Name})
	}
	return refs, nil
}

func (p memProjects) UpdateUTCOffset(_ context.Context, id int64, offset int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offsetCalls++
	if p.failOffset != nil {
		return p.failOffset
	}
	project, ok := p.projects[id]
	if !ok {
		return driven.ErrProjectNotFound
	}
	project.UTCOffset = offset
	p.projects[id] = project
	return nil
}

type memIterations struct{ *memStore }

func (s memIterations) FindByRemoteID(_ context.Context, projectID, remoteID int64) (*model.Iteration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.iterations {
		if it.ProjectID == projectID && it.RemoteID == remoteID {
			return &it, nil
		}
	}
	return nil, nil
}

func (s memIterations) Create(_ context.Context, it model.Iteration) (model.Iteration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.iterations {
		if existing.ProjectID == it.ProjectID && (existing.RemoteID == it.RemoteID || existing.Number == it.Number) {
			return model.Iteration{}, fmt.Errorf("iteration %d: %w", it.Number, driven.ErrDuplicateKey)
		}
	}
	it.ID = s.id()
	s.iterations = append(s.iterations, it)
	return it, nil
}

func (s memIterations) ListByProject(_ context.Context, projectID int64) ([]model.Iteration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Iteration{}
	for _, it := range s.iterations {
		if it.ProjectID == projectID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	return out, nil
}

func (s memIterations) GetByNumber(_ context.Context, projectID int64, number int) (*model.Iteration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.iterations {
		if it.ProjectID == projectID && it.Number == number {
			return &it, nil
		}
	}
	return nil, nil
}

func (s memIterations) Current(ctx context.Context, projectID int64) (*model.Iteration, error) {
	all, _ := s.ListByProject(ctx, projectID)
	if len(all) == 0 {
		return nil, nil
	}
	return &all[0], nil
}

type memMetrics struct{ *memStore }

func (s memMetrics) FindByDate(_ context.Context, iterationID int64, day model.Date) (*model.Metric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.metrics {
		if m.IterationID == iterationID && m.CapturedOn == day {
			return &m, nil
		}
	}
	return nil, nil
}

func (s memMetrics) CreateOrUpdate(_ context.Context, metric model.Metric) (model.Metric, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failMetric != nil {
		return model.Metric{}, false, s.failMetric
	}
	for i, m := range s.metrics {
		if m.IterationID == metric.IterationID && m.CapturedOn == metric.CapturedOn {
			s.metrics[i].Counters = metric.Counters
			return s.metrics[i], false, nil
		}
	}
	metric.ID = s.id()
	s.metrics = append(s.metrics, metric)
	return metric, true, nil
}

func (s memMetrics) ListByIteration(_ context.Context, iterationID int64) ([]model.Metric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Metric{}
	for _, m := range s.metrics {
		if m.IterationID == iterationID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CapturedOn.Before(out[j].CapturedOn) })
	return out, nil
}

func (s memMetrics) ListByProject(ctx context.Context, projectID int64) ([]model.Metric, error) {
	var out []model.Metric
	iterations, _ := memIterations(s).ListByProject(ctx, projectID)
	for i := len(iterations) - 1; i >= 0; i-- {
		ms, _ := s.ListByIteration(ctx, iterations[i].ID)
		out = append(out, ms...)
	}
	return out, nil
}

func (s memMetrics) Latest(ctx context.Context, iterationID int64) (*model.Metric, error) {
	all, _ := s.ListByIteration(ctx, iterationID)
	if len(all) == 0 {
		return nil, nil
	}
	return &all[len(all)-1], nil
}

// --- Remote fakes ---

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	fetch func(ctx context.Context, creds model.TrackerCredentials) (model.Snapshot, error)
}

func (f *fakeFetcher) Fetch(ctx context.Context, creds model.TrackerCredentials) (model.Snapshot, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fetch(ctx, creds)
}

func fetcherReturning(snap model.Snapshot) *fakeFetcher {
	return &fakeFetcher{fetch: func(context.Context, model.TrackerCredentials) (model.Snapshot, error) {
		return snap, nil
	}}
}

type notifyCall struct {
	Chat    model.ChatSettings
	Message string
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
	err   error
}

func (n *fakeNotifier) Notify(_ context.Context, chat model.ChatSettings, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{Chat: chat, Message: message})
	return n.err
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

var errBoom = errors.New("boom")

package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"atelier/internal/model"
	"atelier/pkg/apperrors"
	"atelier/pkg/constants"
	"atelier/pkg/lifecycle"

	"github.com/google/uuid"
)

type projectRepo struct{ s *Store }

func (r *projectRepo) Create(ctx context.Context, p *model.Project) error {
	return r.s.with(ctx, func(st *state) error {
		if _, ok := st.projects[p.ID]; ok {
			return apperrors.Invalid("project %s already exists", p.ID)
		}
		now := time.Now().UTC()
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.UpdatedAt = now
		st.projects[p.ID] = p.Clone()
		return nil
	})
}

func (r *projectRepo) Get(ctx context.Context, projectID string) (*model.Project, error) {
	var out *model.Project
	err := r.s.with(ctx, func(st *state) error {
		out = st.projects[projectID].Clone()
		return nil
	})
	return out, err
}

// GetForUpdate is Get: transactions are already serialized by the store mutex
func (r *projectRepo) GetForUpdate(ctx context.Context, projectID string) (*model.Project, error) {
	return r.Get(ctx, projectID)
}

func (r *projectRepo) Save(ctx context.Context, p *model.Project) error {
	return r.s.with(ctx, func(st *state) error {
		cur, ok := st.projects[p.ID]
		if !ok {
			return apperrors.NotFound("project", p.ID)
		}
		if cur.Version != p.Version {
			return fmt.Errorf("project %s version %d: %w", p.ID, p.Version, apperrors.ErrConcurrentUpdate)
		}
		p.Version++
		p.UpdatedAt = time.Now().UTC()
		p.CreatedAt = cur.CreatedAt
		st.projects[p.ID] = p.Clone()
		return nil
	})
}

func (r *projectRepo) List(ctx context.Context, f model.ProjectFilter) ([]*model.Project, int64, error) {
	var out []*model.Project
	var total int64
	err := r.s.with(ctx, func(st *state) error {
		matched := make([]*model.Project, 0)
		for _, p := range st.projects {
			if f.Status != "" && p.Status != f.Status {
				continue
			}
			if f.ClientID != "" && p.ClientID != f.ClientID {
				continue
			}
			if f.WorkerID != "" && p.WorkerID != f.WorkerID {
				continue
			}
			if f.Skill != "" && p.Skill != f.Skill {
				continue
			}
			matched = append(matched, p)
		}
		sort.Slice(matched, func(i, j int) bool {
			if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
				return matched[i].CreatedAt.After(matched[j].CreatedAt)
			}
			return matched[i].ID > matched[j].ID
		})
		total = int64(len(matched))
		for _, p := range page(len(matched), f.Limit, f.Offset, matched) {
			out = append(out, p.Clone())
		}
		return nil
	})
	return out, total, err
}

func (r *projectRepo) ListExpiredAssignments(ctx context.Context, now time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	var ids []string
	err := r.s.with(ctx, func(st *state) error {
		expired := make([]*model.Project, 0)
		for _, p := range st.projects {
			if p.Status == lifecycle.StatusAssigned && p.AssignmentDeadline != nil && p.AssignmentDeadline.Before(now) {
				expired = append(expired, p)
			}
		}
		sort.Slice(expired, func(i, j int) bool {
			return expired[i].AssignmentDeadline.Before(*expired[j].AssignmentDeadline)
		})
		for i, p := range expired {
			if i == limit {
				break
			}
			ids = append(ids, p.ID)
		}
		return nil
	})
	return ids, err
}

type workerRepo struct{ s *Store }

func (r *workerRepo) Create(ctx context.Context, w *model.Worker) error {
	return r.s.with(ctx, func(st *state) error {
		if _, ok := st.workers[w.ID]; ok {
			return apperrors.Invalid("worker %s already exists", w.ID)
		}
		now := time.Now().UTC()
		w.CreatedAt, w.UpdatedAt = now, now
		st.workers[w.ID] = w.Clone()
		return nil
	})
}

func (r *workerRepo) Get(ctx context.Context, workerID string) (*model.Worker, error) {
	var out *model.Worker
	err := r.s.with(ctx, func(st *state) error {
		out = st.workers[workerID].Clone()
		return nil
	})
	return out, err
}

func (r *workerRepo) UpdateProfile(ctx context.Context, w *model.Worker) error {
	return r.s.with(ctx, func(st *state) error {
		cur, ok := st.workers[w.ID]
		if !ok {
			return apperrors.NotFound("worker", w.ID)
		}
		cur.Name = w.Name
		cur.Skills = append([]string(nil), w.Skills...)
		cur.Available = w.Available
		cur.Rating = w.Rating
		cur.MaxProjectLimit = w.MaxProjectLimit
		cur.PriceTier = w.PriceTier
		cur.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (r *workerRepo) List(ctx context.Context, f model.WorkerFilter) ([]*model.Worker, int64, error) {
	var out []*model.Worker
	var total int64
	err := r.s.with(ctx, func(st *state) error {
		matched := make([]*model.Worker, 0)
		for _, w := range st.workers {
			if f.Skill != "" && !w.HasSkill(f.Skill) {
				continue
			}
			if f.AvailableOnly && !w.Available {
				continue
			}
			matched = append(matched, w)
		}
		sortWorkers(matched)
		total = int64(len(matched))
		for _, w := range page(len(matched), f.Limit, f.Offset, matched) {
			out = append(out, w.Clone())
		}
		return nil
	})
	return out, total, err
}

func (r *workerRepo) ListCandidates(ctx context.Context, skill string) ([]*model.Worker, error) {
	var out []*model.Worker
	err := r.s.with(ctx, func(st *state) error {
		for _, w := range st.workers {
			if w.Available && w.ActiveProjectCount < w.MaxProjectLimit && w.HasSkill(constants.Skill(skill)) {
				out = append(out, w.Clone())
			}
		}
		sortWorkers(out)
		return nil
	})
	return out, err
}

func (r *workerRepo) ClaimSlot(ctx context.Context, workerID string) error {
	return r.s.with(ctx, func(st *state) error {
		w, ok := st.workers[workerID]
		if !ok {
			return apperrors.NotFound("worker", workerID)
		}
		if w.ActiveProjectCount >= w.MaxProjectLimit {
			return fmt.Errorf("worker %s: %w", workerID, apperrors.ErrCapacityExceeded)
		}
		w.ActiveProjectCount++
		w.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (r *workerRepo) ReleaseSlot(ctx context.Context, workerID string) error {
	return r.s.with(ctx, func(st *state) error {
		if w, ok := st.workers[workerID]; ok && w.ActiveProjectCount > 0 {
			w.ActiveProjectCount--
			w.UpdatedAt = time.Now().UTC()
		}
		return nil
	})
}

func (r *workerRepo) IncrementCompleted(ctx context.Context, workerID string) error {
	return r.s.with(ctx, func(st *state) error {
		if w, ok := st.workers[workerID]; ok {
			w.CompletedCount++
		}
		return nil
	})
}

type rotationRepo struct{ s *Store }

func rotationKey(workerID, skill string) string {
	return workerID + "|" + skill
}

func (r *rotationRepo) ListBySkill(ctx context.Context, skill string, workerIDs []string) (map[string]*model.RotationRecord, error) {
	out := make(map[string]*model.RotationRecord, len(workerIDs))
	err := r.s.with(ctx, func(st *state) error {
		for _, id := range workerIDs {
			if rec, ok := st.rotation[rotationKey(id, skill)]; ok {
				c := *rec
				out[id] = &c
			}
		}
		return nil
	})
	return out, err
}

func (r *rotationRepo) Touch(ctx context.Context, workerID, skill string, at time.Time) error {
	return r.s.with(ctx, func(st *state) error {
		key := rotationKey(workerID, skill)
		rec, ok := st.rotation[key]
		if !ok {
			st.rotation[key] = &model.RotationRecord{WorkerID: workerID, Skill: skill, LastAssignedAt: at, AssignmentCount: 1}
			return nil
		}
		if at.After(rec.LastAssignedAt) {
			rec.LastAssignedAt = at
		}
		rec.AssignmentCount++
		return nil
	})
}

type agreementRepo struct{ s *Store }

func (r *agreementRepo) Create(ctx context.Context, a *model.Agreement) error {
	return r.s.with(ctx, func(st *state) error {
		now := time.Now().UTC()
		a.CreatedAt, a.UpdatedAt = now, now
		st.agreements[a.ID] = a.Clone()
		st.agreeOrder = append(st.agreeOrder, a.ID)
		return nil
	})
}

func (r *agreementRepo) Get(ctx context.Context, agreementID string) (*model.Agreement, error) {
	var out *model.Agreement
	err := r.s.with(ctx, func(st *state) error {
		out = st.agreements[agreementID].Clone()
		return nil
	})
	return out, err
}

func (r *agreementRepo) Update(ctx context.Context, a *model.Agreement) error {
	return r.s.with(ctx, func(st *state) error {
		cur, ok := st.agreements[a.ID]
		if !ok {
			return apperrors.NotFound("agreement", a.ID)
		}
		a.UpdatedAt = time.Now().UTC()
		a.CreatedAt = cur.CreatedAt
		st.agreements[a.ID] = a.Clone()
		return nil
	})
}

func (r *agreementRepo) GetActive(ctx context.Context, projectID string) (*model.Agreement, error) {
	var out *model.Agreement
	err := r.s.with(ctx, func(st *state) error {
		for i := len(st.agreeOrder) - 1; i >= 0; i-- {
			a := st.agreements[st.agreeOrder[i]]
			if a.ProjectID == projectID && !a.Superseded {
				out = a.Clone()
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *agreementRepo) SupersedeActive(ctx context.Context, projectID string) error {
	return r.s.with(ctx, func(st *state) error {
		for _, a := range st.agreements {
			if a.ProjectID == projectID && !a.Superseded {
				a.Superseded = true
				a.UpdatedAt = time.Now().UTC()
			}
		}
		return nil
	})
}

func (r *agreementRepo) ListByProject(ctx context.Context, projectID string) ([]*model.Agreement, error) {
	var out []*model.Agreement
	err := r.s.with(ctx, func(st *state) error {
		for _, id := range st.agreeOrder {
			if a := st.agreements[id]; a.ProjectID == projectID {
				out = append(out, a.Clone())
			}
		}
		return nil
	})
	return out, err
}

type paymentRepo struct{ s *Store }

func (r *paymentRepo) Create(ctx context.Context, p *model.Payment) error {
	return r.s.with(ctx, func(st *state) error {
		for _, cur := range st.payments {
			if cur.ProjectID == p.ProjectID && cur.ExternalRef == p.ExternalRef {
				return fmt.Errorf("payment ref %s: %w", p.ExternalRef, apperrors.ErrDuplicatePayment)
			}
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now().UTC()
		}
		c := *p
		st.payments = append(st.payments, &c)
		return nil
	})
}

func (r *paymentRepo) GetByExternalRef(ctx context.Context, projectID, externalRef string) (*model.Payment, error) {
	var out *model.Payment
	err := r.s.with(ctx, func(st *state) error {
		for _, p := range st.payments {
			if p.ProjectID == projectID && p.ExternalRef == externalRef {
				c := *p
				out = &c
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *paymentRepo) ListByProject(ctx context.Context, projectID string) ([]*model.Payment, error) {
	var out []*model.Payment
	err := r.s.with(ctx, func(st *state) error {
		for _, p := range st.payments {
			if p.ProjectID == projectID {
				c := *p
				out = append(out, &c)
			}
		}
		return nil
	})
	return out, err
}

func (r *paymentRepo) CountByProject(ctx context.Context, projectID string) (int64, error) {
	var n int64
	err := r.s.with(ctx, func(st *state) error {
		for _, p := range st.payments {
			if p.ProjectID == projectID {
				n++
			}
		}
		return nil
	})
	return n, err
}

type eventRepo struct{ s *Store }

func (r *eventRepo) Record(ctx context.Context, e *model.ProjectEvent) error {
	return r.s.with(ctx, func(st *state) error {
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.EventTime.IsZero() {
			e.EventTime = time.Now().UTC()
		}
		c := *e
		st.events = append(st.events, &c)
		return nil
	})
}

func (r *eventRepo) ListByProject(ctx context.Context, projectID string) ([]*model.ProjectEvent, error) {
	var out []*model.ProjectEvent
	err := r.s.with(ctx, func(st *state) error {
		for _, e := range st.events {
			if e.ProjectID == projectID {
				c := *e
				out = append(out, &c)
			}
		}
		return nil
	})
	return out, err
}

type exclusionRepo struct{ s *Store }

func (r *exclusionRepo) Add(ctx context.Context, e *model.WorkerExclusion) error {
	return r.s.with(ctx, func(st *state) error {
		for _, cur := range st.exclusions {
			if cur.ProjectID == e.ProjectID && cur.Attempt == e.Attempt && cur.WorkerID == e.WorkerID {
				return nil
			}
		}
		c := *e
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now().UTC()
		}
		st.exclusions = append(st.exclusions, &c)
		return nil
	})
}

func (r *exclusionRepo) ListForAttempt(ctx context.Context, projectID string, attempt int) ([]string, error) {
	var ids []string
	err := r.s.with(ctx, func(st *state) error {
		for _, e := range st.exclusions {
			if e.ProjectID == projectID && e.Attempt == attempt {
				ids = append(ids, e.WorkerID)
			}
		}
		return nil
	})
	return ids, err
}

func sortWorkers(ws []*model.Worker) {
	sort.Slice(ws, func(i, j int) bool { return ws[i].ID < ws[j].ID })
}

func page[T any](n, limit, offset int, items []T) []T {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= n {
		return nil
	}
	end := offset + limit
	if end > n {
		end = n
	}
	return items[offset:end]
}

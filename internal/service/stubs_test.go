package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"path"
	"sort"
	"time"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

func strPtr(v string) *string { return &v }

func boolPtr(v bool) *bool { return &v }

func intPtr(v int) *int { return &v }

func num(v float64) *float64 { return &v }

func fixedNow() time.Time {
	return time.Date(2024, 3, 31, 10, 0, 0, 0, time.UTC)
}

func record(studentID, date string, status models.AttendanceStatus) models.AttendanceRecord {
	return models.AttendanceRecord{ID: studentID + "-" + date, StudentID: studentID, Date: date, Status: status}
}

type studentRepoStub struct {
	students map[string]models.Student
	err      error
	deleted  []string
}

func newStudentRepoStub(students ...models.Student) *studentRepoStub {
	m := make(map[string]models.Student, len(students))
	for _, s := range students {
		m[s.ID] = s
	}
	return &studentRepoStub{students: m}
}

func (r *studentRepoStub) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	all, err := r.All(ctx)
	return all, len(all), err
}

func (r *studentRepoStub) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if r.err != nil {
		return nil, r.err
	}
	s, ok := r.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (r *studentRepoStub) FindByIDs(ctx context.Context, ids []string) ([]models.Student, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := []models.Student{}
	for _, id := range ids {
		if s, ok := r.students[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *studentRepoStub) All(ctx context.Context) ([]models.Student, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := make([]models.Student, 0, len(r.students))
	for _, s := range r.students {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *studentRepoStub) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = "generated"
	}
	r.students[student.ID] = *student
	return nil
}

func (r *studentRepoStub) Update(ctx context.Context, student *models.Student) (bool, error) {
	if _, ok := r.students[student.ID]; !ok {
		return false, nil
	}
	r.students[student.ID] = *student
	return true, nil
}

func (r *studentRepoStub) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := r.students[id]; !ok {
		return false, nil
	}
	delete(r.students, id)
	r.deleted = append(r.deleted, id)
	return true, nil
}

type attendanceRepoStub struct {
	records   []models.AttendanceRecord
	queries   []models.AttendanceQuery
	saved     []models.AttendanceRecord
	overrides []bool
	outcome   models.SaveOutcome
	saveErr   error
}

func (r *attendanceRepoStub) Find(ctx context.Context, q models.AttendanceQuery) ([]models.AttendanceRecord, error) {
	r.queries = append(r.queries, q)
	ids := map[string]bool{}
	for _, id := range q.StudentIDs {
		ids[id] = true
	}
	out := []models.AttendanceRecord{}
	for _, rec := range r.records {
		if len(ids) > 0 && !ids[rec.StudentID] {
			continue
		}
		if q.DateFrom != "" && rec.Date < q.DateFrom {
			continue
		}
		if q.DateTo != "" && rec.Date > q.DateTo {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *attendanceRepoStub) FindByStudent(ctx context.Context, studentID string) ([]models.AttendanceRecord, error) {
	return r.Find(ctx, models.AttendanceQuery{StudentIDs: []string{studentID}})
}

func (r *attendanceRepoStub) SaveBatch(ctx context.Context, date string, records []models.AttendanceRecord, override bool) (models.SaveOutcome, error) {
	r.overrides = append(r.overrides, override)
	if r.saveErr != nil {
		return models.SaveOutcome{}, r.saveErr
	}
	r.saved = append(r.saved, records...)
	if r.outcome.UpdatedIDs == nil && r.outcome.Created == 0 && r.outcome.Updated == 0 {
		return models.SaveOutcome{Created: len(records), UpdatedIDs: map[string]bool{}}, nil
	}
	return r.outcome, nil
}

type classRepoStub struct {
	classes map[string]models.Class
	added   []string
	err     error
}

func newClassRepoStub(classes ...models.Class) *classRepoStub {
	m := make(map[string]models.Class, len(classes))
	for _, c := range classes {
		m[c.ID] = c
	}
	return &classRepoStub{classes: m}
}

func (r *classRepoStub) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	out := make([]models.Class, 0, len(r.classes))
	for _, c := range r.classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (r *classRepoStub) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if r.err != nil {
		return nil, r.err
	}
	c, ok := r.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	c.StudentIDs = append([]string{}, c.StudentIDs...)
	return &c, nil
}

func (r *classRepoStub) StudentIDs(ctx context.Context, classID string) ([]string, error) {
	c, ok := r.classes[classID]
	if !ok {
		return []string{}, nil
	}
	return append([]string{}, c.StudentIDs...), nil
}

func (r *classRepoStub) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = "class-generated"
	}
	r.classes[class.ID] = *class
	return nil
}

func (r *classRepoStub) Update(ctx context.Context, class *models.Class) (bool, error) {
	prev, ok := r.classes[class.ID]
	if !ok {
		return false, nil
	}
	if class.StudentIDs == nil {
		class.StudentIDs = prev.StudentIDs
	}
	r.classes[class.ID] = *class
	return true, nil
}

func (r *classRepoStub) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := r.classes[id]; !ok {
		return false, nil
	}
	delete(r.classes, id)
	return true, nil
}

func (r *classRepoStub) AddStudent(ctx context.Context, classID, studentID string) error {
	c := r.classes[classID]
	for _, id := range c.StudentIDs {
		if id == studentID {
			return nil
		}
	}
	c.StudentIDs = append(c.StudentIDs, studentID)
	r.classes[classID] = c
	r.added = append(r.added, studentID)
	return nil
}

func (r *classRepoStub) RemoveStudent(ctx context.Context, classID, studentID string) (bool, error) {
	c, ok := r.classes[classID]
	if !ok {
		return false, nil
	}
	for i, id := range c.StudentIDs {
		if id == studentID {
			c.StudentIDs = append(c.StudentIDs[:i], c.StudentIDs[i+1:]...)
			r.classes[classID] = c
			return true, nil
		}
	}
	return false, nil
}

type dayOffRepoStub struct {
	days []models.DayOff
}

func (r *dayOffRepoStub) List(ctx context.Context, filter models.DayOffFilter) ([]models.DayOff, error) {
	out := []models.DayOff{}
	for _, d := range r.days {
		if filter.From != "" && d.Date < filter.From {
			continue
		}
		if filter.To != "" && d.Date > filter.To {
			continue
		}
		if d.ClassID != nil && filter.ClassID != "" && *d.ClassID != filter.ClassID {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (r *dayOffRepoStub) FindByID(ctx context.Context, id string) (*models.DayOff, error) {
	for _, d := range r.days {
		if d.ID == id {
			return &d, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *dayOffRepoStub) Create(ctx context.Context, day *models.DayOff) error {
	if day.ID == "" {
		day.ID = "day-generated"
	}
	r.days = append(r.days, *day)
	return nil
}

func (r *dayOffRepoStub) Delete(ctx context.Context, id string) (bool, error) {
	for i, d := range r.days {
		if d.ID == id {
			r.days = append(r.days[:i], r.days[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r *dayOffRepoStub) IsDayOff(ctx context.Context, date, classID string) (bool, error) {
	for _, d := range r.days {
		if d.Date != date {
			continue
		}
		if d.ClassID == nil || (classID != "" && *d.ClassID == classID) {
			return true, nil
		}
	}
	return false, nil
}

type thresholdRepoStub struct {
	set   *models.ThresholdSet
	gets  int
	saves int
}

func (r *thresholdRepoStub) Get(ctx context.Context) (*models.ThresholdSet, error) {
	r.gets++
	if r.set == nil {
		return nil, sql.ErrNoRows
	}
	copied := *r.set
	return &copied, nil
}

func (r *thresholdRepoStub) Save(ctx context.Context, set *models.ThresholdSet) error {
	r.saves++
	now := fixedNow()
	set.UpdatedAt = &now
	copied := *set
	r.set = &copied
	return nil
}

type staticThresholds struct {
	set models.ThresholdSet
}

func (s staticThresholds) Get(ctx context.Context) (models.ThresholdSet, error) {
	return s.set, nil
}

type cacheRepoStub struct {
	entries map[string][]byte
	gets    int
	sets    int
}

func newCacheRepoStub() *cacheRepoStub {
	return &cacheRepoStub{entries: map[string][]byte{}}
}

func (c *cacheRepoStub) Get(ctx context.Context, key string, dest interface{}) error {
	c.gets++
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *cacheRepoStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.sets++
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func (c *cacheRepoStub) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	removed := 0
	for key := range c.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(c.entries, key)
			removed++
		}
	}
	return removed, nil
}

type invalidatorStub struct {
	calls int
}

func (i *invalidatorStub) InvalidateCache(ctx context.Context) error {
	i.calls++
	return nil
}

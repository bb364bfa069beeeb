package resolver_test

import (
	"context"
	"database/sql/driver"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/syssam/curator"
	"github.com/syssam/curator/acl"
	"github.com/syssam/curator/dialect"
	sqld "github.com/syssam/curator/dialect/sql"
	"github.com/syssam/curator/graph"
	"github.com/syssam/curator/model"
	"github.com/syssam/curator/pubsub"
	"github.com/syssam/curator/resolver"
	"github.com/syssam/curator/storage"
	"github.com/syssam/curator/validation"
	"github.com/syssam/curator/workflow"
)

var fixedNow = time.Date(2024, 5, 13, 10, 30, 0, 0, time.UTC)

func boolPtr(b bool) *bool { return &b }
func intPtr(n int) *int    { return &n }

func ownerSubject() *curator.Subject {
	return &curator.Subject{ID: "u-1", Email: "owner@example.org", EmailVerified: true}
}

func foreignSubject() *curator.Subject {
	return &curator.Subject{ID: "u-2", Email: "other@example.org", EmailVerified: true}
}

func adminSubject() *curator.Subject {
	return &curator.Subject{ID: "adm-1", Email: "staff@example.org", EmailVerified: true, Admin: true}
}

// manuscriptDef declares the entity type the operation tests run
// against: an owned, workflow-backed type with state, sequence and
// datetime fields and a layered ACL.
func manuscriptDef() *model.Definition {
	return &model.Definition{
		Name:       "Manuscript",
		Input:      true,
		ProcessKey: "manuscript-review",
		Elements: []model.Element{
			{Field: "title", ListingFilter: true, ListingSortable: true},
			{
				Field: "state", State: true,
				ListingFilter: true, ListingFilterMultiple: true,
				DefaultEnum: "ManuscriptState", DefaultEnumKey: "Draft",
			},
			{Field: "author", Owner: true, Type: "User", JoinField: "author_id"},
			{Field: "journal", Type: "Journal", JoinField: "journal_id", ListingFilter: true},
			{Field: "serial", IDSequence: "manuscript_serials", Input: boolPtr(false)},
			{Field: "decidedAt", Datetime: true, Input: boolPtr(false)},
			{Field: "archived", ListingFilter: true},
			{Field: "submittedAt", Datetime: true, ListingSortable: true},
		},
		Enums: map[string]model.Enum{
			"ManuscriptState": {Values: map[string]any{"Draft": "draft", "Accepted": "accepted"}},
		},
		ACL: &acl.Policy{Rules: []acl.Rule{
			{
				Description: "anonymous requests are rejected",
				Targets:     []acl.Target{acl.TargetAnonymous},
				Actions:     []acl.Action{acl.ActionAccess, acl.ActionRead},
			},
			{
				Description:  "signed-in users reach manuscripts they own",
				Targets:      []acl.Target{acl.TargetUser},
				Actions:      []acl.Action{acl.ActionAccess, acl.ActionCreate, acl.ActionTask},
				Allow:        true,
				Restrictions: []acl.Restriction{acl.RestrictionOwner},
				Tasks:        []string{"review-manuscript"},
			},
			{
				Description: "signed-in users see the public fields",
				Targets:     []acl.Target{acl.TargetUser},
				Actions:     []acl.Action{acl.ActionRead},
				Allow:       true,
				Fields:      []string{"title", "state", "journal", "author"},
			},
			{
				Description: "owners manage their manuscripts",
				Targets:     []acl.Target{acl.TargetOwner},
				Actions:     []acl.Action{acl.ActionRead, acl.ActionWrite, acl.ActionDestroy},
				Allow:       true,
			},
			{
				Description:  "administrators operate across all rows",
				Targets:      []acl.Target{acl.TargetAdministrator},
				Actions:      []acl.Action{acl.ActionAccess, acl.ActionWrite, acl.ActionDestroy, acl.ActionTask},
				Allow:        true,
				Restrictions: []acl.Restriction{acl.RestrictionAll},
			},
		}},
		Forms: []model.Form{{
			Form: "Review",
			Outcomes: []model.Outcome{
				{
					Type:                       "Accept",
					Result:                     "Complete",
					RequiresValidatedSubmitter: true,
					State: map[string]model.StateDirective{
						"state": {Type: "enum", Value: "ManuscriptState.Accepted"},
					},
					SequenceAssignment: []string{"serial"},
					DateAssignments:    []model.DateAssignment{{Field: "decidedAt"}},
					Validation: &validation.Set{Rules: []validation.Rule{
						{Binding: "title", Op: validation.OpNonEmpty, Message: "a title is required"},
					}},
				},
				{Type: "Reject", Result: "Abort"},
				{Type: "Acknowledge", Result: "Complete"},
			},
		}},
	}
}

// journalDef is a minimal related type without an ACL or input support.
func journalDef() *model.Definition {
	return &model.Definition{
		Name: "Journal",
		Elements: []model.Element{
			{Field: "name"},
			{Field: "issn"},
		},
	}
}

// fakeEngine records engine calls and serves canned tasks and instances.
type fakeEngine struct {
	mu        sync.Mutex
	tasks     []workflow.Task
	instances []workflow.ProcessInstance
	started   []workflow.StartProcessRequest
	completed map[string]workflow.Variables
	deleted   []string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{completed: make(map[string]workflow.Variables)}
}

func (f *fakeEngine) StartProcess(_ context.Context, req workflow.StartProcessRequest) (*workflow.ProcessInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, req)
	return &workflow.ProcessInstance{ID: "pi-" + req.BusinessKey, BusinessKey: req.BusinessKey}, nil
}

func (f *fakeEngine) ListTasks(context.Context, workflow.TaskQuery) ([]workflow.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]workflow.Task, len(f.tasks))
	copy(out, f.tasks)
	return out, nil
}

func (f *fakeEngine) ListProcessInstances(context.Context, workflow.InstanceQuery) ([]workflow.ProcessInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]workflow.ProcessInstance, len(f.instances))
	copy(out, f.instances)
	return out, nil
}

func (f *fakeEngine) DeleteProcessInstance(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeEngine) CompleteTask(_ context.Context, taskID string, vars workflow.Variables) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[taskID] = vars
	return nil
}

func (f *fakeEngine) startedRequests() []workflow.StartProcessRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]workflow.StartProcessRequest, len(f.started))
	copy(out, f.started)
	return out
}

func (f *fakeEngine) deletedInstances() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.deleted))
	copy(out, f.deleted)
	return out
}

func (f *fakeEngine) completedVars(taskID string) (workflow.Variables, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.completed[taskID]
	return v, ok
}

// fixture wires a manuscript and a journal resolver over a mocked
// database, a fake engine and the in-process bus. The subject field is
// consulted on every identity resolution, so tests switch callers by
// assigning it.
type fixture struct {
	mock          sqlmock.Sqlmock
	store         *storage.Store
	engine        *fakeEngine
	bus           *pubsub.Bus
	manuscripts   *resolver.Resolver
	journals      *resolver.Resolver
	subject       *curator.Subject
	identityCalls int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	fx := &fixture{
		mock:   mock,
		store:  storage.New(sqld.OpenDB(dialect.Postgres, db), storage.WithLogger(quietLogger())),
		engine: newFakeEngine(),
		bus:    pubsub.NewBus(),
	}
	t.Cleanup(fx.bus.Stop)

	registry := resolver.NewRegistry()
	identity := resolver.IdentityFunc(func(context.Context) (*curator.Subject, error) {
		fx.identityCalls++
		return fx.subject, nil
	})
	base := resolver.Config{
		Store:    fx.store,
		Engine:   fx.engine,
		Notifier: fx.bus,
		Identity: identity,
		Registry: registry,
		Logger:   quietLogger(),
		Clock:    func() time.Time { return fixedNow },
		NewID:    func() string { return "m-created" },
	}

	cfg := base
	cfg.Definition = manuscriptDef()
	fx.manuscripts, err = resolver.New(cfg)
	require.NoError(t, err)

	cfg = base
	cfg.Definition = journalDef()
	fx.journals, err = resolver.New(cfg)
	require.NoError(t, err)
	return fx
}

func (fx *fixture) expectManuscript(id string, columns []string, values ...[]driver.Value) {
	rows := sqlmock.NewRows(columns)
	for _, v := range values {
		rows.AddRow(v...)
	}
	fx.mock.ExpectQuery("SELECT * FROM manuscripts WHERE id = $1 LIMIT 1").
		WithArgs(id).
		WillReturnRows(rows)
}

func row(values ...driver.Value) []driver.Value { return values }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func selection(names ...string) context.Context {
	return graph.WithFields(context.Background(), graph.Fields(names...))
}

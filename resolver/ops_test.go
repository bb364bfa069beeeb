package resolver_test

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/syssam/curator"
	"github.com/syssam/curator/acl"
	sqld "github.com/syssam/curator/dialect/sql"
	"github.com/syssam/curator/graph"
	"github.com/syssam/curator/model"
	"github.com/syssam/curator/resolver"
	"github.com/syssam/curator/workflow"
)

// listingHooks exercises all three listing extension points.
type listingHooks struct{}

func (listingHooks) FilterField(s *sqld.Selector, field string, value any) (*sqld.Selector, bool) {
	if field != "title" {
		return s, false
	}
	return s.Where(sqld.EQ("title_normalized", value)), true
}

func (listingHooks) FilterAll(s *sqld.Selector, _ map[string]any) *sqld.Selector {
	return s.Where(sqld.NotNull("reviewed_at"))
}

func (listingHooks) Listing(s *sqld.Selector) *sqld.Selector {
	return s.OrderBy("id ASC")
}

func TestGet(t *testing.T) {
	t.Run("OwnerSeesEveryRequestedField", func(t *testing.T) {
		fx := newFixture(t)
		fx.subject = ownerSubject()
		fx.mock.ExpectQuery("SELECT id, title, serial, author_id FROM manuscripts WHERE id = $1 LIMIT 1").
			WithArgs("m-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "title", "serial", "author_id"}).
				AddRow("m-1", "On Bees", "S000007", "u-1"))

		got, err := fx.manuscripts.Get(selection("id", "title", "serial"), "m-1")
		require.NoError(t, err)
		require.Equal(t, curator.Entity{"id": "m-1", "title": "On Bees", "serial": "S000007"}, got)
		require.NoError(t, fx.mock.ExpectationsWereMet())
	})

	t.Run("NonOwnerReaderGetsRestrictedFields", func(t *testing.T) {
		fx := newFixture(t)
		fx.subject = adminSubject()
		fx.mock.ExpectQuery("SELECT id, title, serial, author_id FROM manuscripts WHERE id = $1 LIMIT 1").
			WithArgs("m-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "title", "serial", "author_id"}).
				AddRow("m-1", "On Bees", "S000007", "u-1"))

		got, err := fx.manuscripts.Get(selection("id", "title", "serial"), "m-1")
		require.NoError(t, err)
		require.Equal(t, curator.Entity{
			"id":               "m-1",
			"title":            "On Bees",
			"restrictedFields": []string{"serial"},
		}, got)
		require.NoError(t, fx.mock.ExpectationsWereMet())
	})

	t.Run("AnonymousIsDenied", func(t *testing.T) {
		fx := newFixture(t)
		fx.expectManuscript("m-1", []string{"id", "author_id"}, row("m-1", "u-1"))

		_, err := fx.manuscripts.Get(context.Background(), "m-1")
		require.True(t, curator.IsAuthorization(err))
		require.NoError(t, fx.mock.ExpectationsWereMet())
	})

	t.Run("ForeignUserIsDenied", func(t *testing.T) {
		fx := newFixture(t)
		fx.subject = foreignSubject()
		fx.expectManuscript("m-1", []string{"id", "author_id"}, row("m-1", "u-1"))

		_, err := fx.manuscripts.Get(context.Background(), "m-1")
		require.True(t, curator.IsAuthorization(err))
	})

	t.Run("MissingID", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.manuscripts.Get(context.Background(), "")
		require.True(t, curator.IsUserInput(err))
		require.NoError(t, fx.mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		fx := newFixture(t)
		fx.subject = ownerSubject()
		fx.mock.ExpectQuery("SELECT * FROM manuscripts WHERE id = $1 LIMIT 1").
			WithArgs("m-404").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := fx.manuscripts.Get(context.Background(), "m-404")
		require.True(t, curator.IsNotFound(err))
	})

	t.Run("EagerLoadsRequestedRelation", func(t *testing.T) {
		fx := newFixture(t)
		fx.subject = ownerSubject()
		fx.mock.ExpectQuery("SELECT id, title, journal_id, author_id FROM manuscripts WHERE id = $1 LIMIT 1").
			WithArgs("m-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "title", "journal_id", "author_id"}).
				AddRow("m-1", "On Bees", "j-1", "u-1"))
		fx.mock.ExpectQuery("SELECT name, id FROM journals WHERE id IN ($1)").
			WithArgs("j-1").
			WillReturnRows(sqlmock.NewRows([]string{"name", "id"}).AddRow("Nature", "j-1"))

		ctx := graph.WithFields(context.Background(), []graph.Field{
			{Name: "id"},
			{Name: "title"},
			{Name: "journal", Selections: graph.Fields("name")},
		})
		got, err := fx.manuscripts.Get(ctx, "m-1")
		require.NoError(t, err)
		require.Equal(t, "On Bees", got["title"])
		journal, ok := got["journal"].(curator.Entity)
		require.True(t, ok)
		require.Equal(t, "Nature", journal["name"])
		require.NoError(t, fx.mock.ExpectationsWereMet())
	})

	t.Run("ReadDenialExposesOnlyID", func(t *testing.T) {
		fx := newFixture(t)
		def := manuscriptDef()
		def.ACL = &acl.Policy{Rules: []acl.Rule{{
			Targets:      []acl.Target{acl.TargetAnonymous},
			Actions:      []acl.Action{acl.ActionAccess},
			Allow:        true,
			Restrictions: []acl.Restriction{acl.RestrictionAll},
		}}}
		open, err := resolver.New(resolver.Config{
			Definition: def,
			Store:      fx.store,
			Engine:     fx.engine,
			Notifier:   fx.bus,
			Logger:     quietLogger(),
		})
		require.NoError(t, err)

		fx.mock.ExpectQuery("SELECT id, title, author_id FROM manuscripts WHERE id = $1 LIMIT 1").
			WithArgs("m-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "title", "author_id"}).
				AddRow("m-1", "On Bees", "u-1"))

		got, err := open.Get(selection("id", "title"), "m-1")
		require.NoError(t, err)
		require.Equal(t, curator.Entity{"id": "m-1", "restrictedFields": []string{"title"}}, got)
	})
}

func TestList(t *testing.T) {
	t.Run("OwnerScopedListing", func(t *testing.T) {
		fx := newFixture(t)
		fx.subject = ownerSubject()
		fx.mock.ExpectQuery("SELECT id, title, state, author_id, COUNT(*) OVER() AS internal_full_count FROM manuscripts WHERE (state = $1 AND (archived = FALSE OR archived IS NULL) AND author_id = $2) ORDER BY title DESC LIMIT 2 OFFSET 0").
			WithArgs("submitted", "u-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "title", "state", "author_id", "internal_full_count"}).
				AddRow("m-2", "On Wasps", "submitted", "u-1", int64(41)).
				AddRow("m-1", "On Bees", "submitted", "u-1", int64(41)))

		ctx := graph.WithFields(context.Background(), []graph.Field{
			{Name: "results", Selections: graph.Fields("id", "title", "state")},
			{Name: "pageInfo"},
		})
		page, err := fx.manuscripts.List(ctx, resolver.ListInput{
			Filter:  map[string]any{"state": "submitted", "archived": false},
			Sorting: map[string]any{"title": true},
			First:   intPtr(2),
		})
		require.NoError(t, err)
		require.Equal(t, resolver.PageInfo{TotalCount: 41, Offset: 0, PageSize: 2}, page.PageInfo)
		require.Equal(t, []curator.Entity{
			{"id": "m-2", "title": "On Wasps", "state": "submitted"},
			{"id": "m-1", "title": "On Bees", "state": "submitted"},
		}, page.Results)
		require.NoError(t, fx.mock.ExpectationsWereMet())
	})

	t.Run("UnscopedAdminWithNullAndArrayFilters", func(t *testing.T) {
		fx := newFixture(t)
		fx.subject = adminSubject()
		fx.mock.ExpectQuery("SELECT *, COUNT(*) OVER() AS internal_full_count FROM manuscripts WHERE (state IN ($1, $2) AND journal_id IS NULL) LIMIT 200 OFFSET 0").
			WithArgs("draft", "submitted").
			WillReturnRows(sqlmock.NewRows([]string{"id", "title", "state", "internal_full_count"}).
				AddRow("m-3", "Unfiled", "draft", int64(3)))

		page, err := fx.manuscripts.List(context.Background(), resolver.ListInput{
			Filter: map[string]any{"journal": nil, "state": []any{"draft", "submitted"}},
		})
		require.NoError(t, err)
		require.Equal(t, resolver.PageInfo{TotalCount: 3, Offset: 0, PageSize: 200}, page.PageInfo)
		require.Equal(t, []curator.Entity{{"id": "m-3", "title": "Unfiled", "state": "draft"}}, page.Results)
		require.NoError(t, fx.mock.ExpectationsWereMet())
	})

	t.Run("AnonymousIsDenied", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.manuscripts.List(context.Background(), resolver.ListInput{})
		require.True(t, curator.IsAuthorization(err))
		require.NoError(t, fx.mock.ExpectationsWereMet())
	})

	t.Run("ZeroPageSizeYieldsEmptyPageAndZeroTotal", func(t *testing.T) {
		fx := newFixture(t)
		fx.subject = adminSubject()
		fx.mock.ExpectQuery("SELECT *, COUNT(*) OVER() AS internal_full_count FROM manuscripts LIMIT 0 OFFSET 0").
			WillReturnRows(sqlmock.NewRows([]string{"id", "internal_full_count"}))

		// The window total rides on result rows, so a zero-size page
		// reports a zero total rather than the unpaged count.
		page, err := fx.manuscripts.List(context.Background(), resolver.ListInput{First: intPtr(0)})
		require.NoError(t, err)
		require.Empty(t, page.Results)
		require.Equal(t, resolver.PageInfo{TotalCount: 0, Offset: 0, PageSize: 0}, page.PageInfo)
		require.NoError(t, fx.mock.ExpectationsWereMet())
	})

	t.Run("ExtensionsHookIntoPlanning", func(t *testing.T) {
		fx := newFixture(t)
		fx.subject = adminSubject()
		def := manuscriptDef()
		def.Extensions = []model.Extension{listingHooks{}}
		extended, err := resolver.New(resolver.Config{
			Definition: def,
			Store:      fx.store,
			Engine:     fx.engine,
			Notifier:   fx.bus,
			Identity:   resolver.IdentityFunc(func(context.Context) (*curator.Subject, error) { return fx.subject, nil }),
			Logger:     quietLogger(),
		})
		require.NoError(t, err)

		// The field hook replaces the default title predicate, the
		// whole-filter hook appends its own, the listing hook reorders.
		fx.mock.ExpectQuery("SELECT *, COUNT(*) OVER() AS internal_full_count FROM manuscripts WHERE (title_normalized = $1 AND reviewed_at IS NOT NULL) ORDER BY id ASC LIMIT 200 OFFSET 0").
			WithArgs("on bees").
			WillReturnRows(sqlmock.NewRows([]string{"id", "title", "internal_full_count"}).
				AddRow("m-1", "On Bees", int64(1)))

		_, err = extended.List(context.Background(), resolver.ListInput{
			Filter: map[string]any{"title": "on bees"},
		})
		require.NoError(t, err)
		require.NoError(t, fx.mock.ExpectationsWereMet())
	})

	t.Run("OwnerScopeWithoutSubjectFails", func(t *testing.T) {
		fx := newFixture(t)
		def := manuscriptDef()
		def.ACL = &acl.Policy{Rules: []acl.Rule{{
			Targets:      []acl.Target{acl.TargetAnonymous},
			Actions:      []acl.Action{acl.ActionAccess},
			Allow:        true,
			Restrictions: []acl.Restriction{acl.RestrictionOwner},
		}}}
		guests, err := resolver.New(resolver.Config{
			Definition: def,
			Store:      fx.store,
			Engine:     fx.engine,
			Notifier:   fx.bus,
			Logger:     quietLogger(),
		})
		require.NoError(t, err)

		_, err = guests.List(context.Background(), resolver.ListInput{})
		require.True(t, curator.IsAuthorization(err))
		require.NoError(t, fx.mock.ExpectationsWereMet())
	})
}

func TestResolveRelation(t *testing.T) {
	t.Run("ReusesEagerlyLoadedValue", func(t *testing.T) {
		fx := newFixture(t)
		fx.subject = ownerSubject()
		parent := curator.Entity{
			"id":         "m-1",
			"journal_id": "j-1",
			"journal":    curator.Entity{"id": "j-1", "name": "Nature"},
		}
		got, err := fx.manuscripts.ResolveRelation(selection("id", "name"), parent, "journal")
		require.NoError(t, err)
		require.Equal(t, curator.Entity{"id": "j-1", "name": "Nature"}, got)
		require.NoError(t, fx.mock.ExpectationsWereMet())
	})

	t.Run("FetchesByJoinColumn", func(t *testing.T) {
		fx := newFixture(t)
		fx.subject = ownerSubject()
		fx.mock.ExpectQuery("SELECT id, name FROM journals WHERE id = $1 LIMIT 1").
			WithArgs("j-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("j-1", "Nature"))

		parent := curator.Entity{"id": "m-1", "journal_id": "j-1"}
		got, err := fx.manuscripts.ResolveRelation(selection("name"), parent, "journal")
		require.NoError(t, err)
		require.Equal(t, "Nature", got["name"])
		require.NoError(t, fx.mock.ExpectationsWereMet())
	})

	t.Run("NilWhenJoinColumnEmpty", func(t *testing.T) {
		fx := newFixture(t)
		fx.subject = ownerSubject()
		got, err := fx.manuscripts.ResolveRelation(context.Background(), curator.Entity{"id": "m-1"}, "journal")
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("UnknownRelation", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.manuscripts.ResolveRelation(context.Background(), curator.Entity{"id": "m-1"}, "title")
		require.True(t, curator.IsLogic(err))
	})

	t.Run("UnregisteredTargetType", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.manuscripts.ResolveRelation(context.Background(), curator.Entity{"id": "m-1"}, "author")
		require.True(t, curator.IsLogic(err))
	})
}

func TestCreate(t *testing.T) {
	t.Run("StampsOwnerDefaultsAndProcess", func(t *testing.T) {
		fx := newFixture(t)
		fx.subject = ownerSubject()
		created, stop, err := fx.manuscripts.SubscribeCreated(context.Background())
		require.NoError(t, err)
		defer stop()

		fx.mock.ExpectExec("INSERT INTO manuscripts (author_id, created, id, state, updated) VALUES ($1, $2, $3, $4, $5)").
			WithArgs("u-1", fixedNow, "m-created", "draft", fixedNow).
			WillReturnResult(sqlmock.NewResult(1, 1))

		got, err := fx.manuscripts.Create(selection("id", "state"))
		require.NoError(t, err)
		require.Equal(t, curator.Entity{"id": "m-created", "state": "draft"}, got)

		started := fx.engine.startedRequests()
		require.Len(t, started, 1)
		require.Equal(t, workflow.StartProcessRequest{Key: "manuscript-review", BusinessKey: "m-created"}, started[0])

		select {
		case ev := <-created:
			require.Equal(t, "Manuscript.created", ev.Topic)
			require.Equal(t, map[string]any{"createdManuscript": "m-created"}, ev.Payload)
		default:
			t.Fatal("no created event published")
		}
		require.NoError(t, fx.mock.ExpectationsWereMet())
	})

	t.Run("NamelessElementContributesNoColumn", func(t *testing.T) {
		fx := newFixture(t)
		fx.subject = ownerSubject()
		def := manuscriptDef()
		def.Elements = append(def.Elements, model.Element{DefaultValue: "stray"})
		rs, err := resolver.New(resolver.Config{
			Definition: def,
			Store:      fx.store,
			Engine:     fx.engine,
			Notifier:   fx.bus,
			Identity:   resolver.IdentityFunc(func(context.Context) (*curator.Subject, error) { return fx.subject, nil }),
			Logger:     quietLogger(),
			Clock:      func() time.Time { return fixedNow },
			NewID:      func() string { return "m-created" },
		})
		require.NoError(t, err)

		fx.mock.ExpectExec("INSERT INTO manuscripts (author_id, created, id, state, updated) VALUES ($1, $2, $3, $4, $5)").
			WithArgs("u-1", fixedNow, "m-created", "draft", fixedNow).
			WillReturnResult(sqlmock.NewResult(1, 1))

		_, err = rs.Create(selection("id"))
		require.NoError(t, err)
		require.NoError(t, fx.mock.ExpectationsWereMet())
	})

	t.Run("AnonymousCannotCreate", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.manuscripts.Create(context.Background())
		require.True(t, curator.IsAuthorization(err))
		require.NoError(t, fx.mock.ExpectationsWereMet())
	})
}

func TestUpdate(t *testing.T) {
	t.Run("OwnerUpdatesAllowedField", func(t *testing.T) {
		fx := newFixture(t)
		fx.subject = ownerSubject()
		updated, stop, err := fx.manuscripts.SubscribeUpdated(context.Background())
		require.NoError(t, err)
		defer stop()

		fx.expectManuscript("m-1", []string{"id", "title", "state", "author_id"},
			row("m-1", "On Bees", "submitted", "u-1"))
		fx.mock.ExpectExec("UPDATE manuscripts SET title = $1, updated = $2 WHERE id = $3").
			WithArgs("On Bumblebees", fixedNow, "m-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		got, err := fx.manuscripts.Update(selection("id", "title"), "m-1", map[string]any{"title": "On Bumblebees"})
		require.NoError(t, err)
		require.Equal(t, curator.Entity{"id": "m-1", "title": "On Bumblebees"}, got)

		select {
		case ev := <-updated:
			require.Equal(t, map[string]any{"modifiedManuscript": "m-1"}, ev.Payload)
		default:
			t.Fatal("no updated event published")
		}
		require.NoError(t, fx.mock.ExpectationsWereMet())
	})

	t.Run("DisallowedFieldsFailTheWholeInput", func(t *testing.T) {
		fx := newFixture(t)
		fx.subject = ownerSubject()
		fx.expectManuscript("m-1", []string{"id", "title", "author_id"}, row("m-1", "On Bees", "u-1"))

		_, err := fx.manuscripts.Update(context.Background(), "m-1", map[string]any{
			"title":     "On Bumblebees",
			"serial":    "S000001",
			"decidedAt": "2024-05-01",
		})
		require.True(t, curator.IsAuthorization(err))
		require.EqualError(t, err, "curator: write not authorized for fields [decidedAt, serial]")
		require.NoError(t, fx.mock.ExpectationsWereMet())
	})

	t.Run("ForeignUserIsDenied", func(t *testing.T) {
		fx := newFixture(t)
		fx.subject = foreignSubject()
		fx.expectManuscript("m-1", []string{"id", "author_id"}, row("m-1", "u-1"))

		_, err := fx.manuscripts.Update(context.Background(), "m-1", map[string]any{"title": "x"})
		require.True(t, curator.IsAuthorization(err))
	})

	t.Run("TypeWithoutInputRejects", func(t *testing.T) {
		fx := newFixture(t)
		fx.subject = ownerSubject()
		_, err := fx.journals.Update(context.Background(), "j-1", map[string]any{"name": "x"})
		require.True(t, curator.IsLogic(err))
		require.NoError(t, fx.mock.ExpectationsWereMet())
	})
}

func TestDestroy(t *testing.T) {
	t.Run("AppliesStateAndCancelsProcess", func(t *testing.T) {
		fx := newFixture(t)
		fx.subject = ownerSubject()
		fx.engine.instances = []workflow.ProcessInstance{
			{ID: "pi-7", BusinessKey: "M-1"},
			{ID: "pi-8", BusinessKey: "m-9"},
		}
		fx.expectManuscript("m-1", []string{"id", "state", "author_id"}, row("m-1", "submitted", "u-1"))
		fx.mock.ExpectExec("UPDATE manuscripts SET state = $1, updated = $2 WHERE id = $3").
			WithArgs("withdrawn", fixedNow, "m-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		got, err := fx.manuscripts.Destroy(selection("id", "state"), "m-1", map[string]any{
			"state": "withdrawn",
			"note":  "duplicate submission",
		})
		require.NoError(t, err)
		require.Equal(t, curator.Entity{"id": "m-1", "state": "withdrawn"}, got)

		// The business key comparison is case-insensitive; only the
		// matching instance is cancelled.
		require.Equal(t, []string{"pi-7"}, fx.engine.deletedInstances())
		require.NoError(t, fx.mock.ExpectationsWereMet())
	})

	t.Run("NonStateKeysAreDroppedWithoutSave", func(t *testing.T) {
		fx := newFixture(t)
		fx.subject = ownerSubject()
		fx.expectManuscript("m-1", []string{"id", "state", "author_id"}, row("m-1", "submitted", "u-1"))

		got, err := fx.manuscripts.Destroy(selection("id", "state"), "m-1", map[string]any{"note": "x"})
		require.NoError(t, err)
		require.Equal(t, "submitted", got["state"])
		require.Empty(t, fx.engine.deletedInstances())
		require.NoError(t, fx.mock.ExpectationsWereMet())
	})

	t.Run("ForeignUserIsDenied", func(t *testing.T) {
		fx := newFixture(t)
		fx.subject = foreignSubject()
		fx.expectManuscript("m-1", []string{"id", "author_id"}, row("m-1", "u-1"))

		_, err := fx.manuscripts.Destroy(context.Background(), "m-1", nil)
		require.True(t, curator.IsAuthorization(err))
	})
}

func TestRestart(t *testing.T) {
	fx := newFixture(t)
	fx.subject = ownerSubject()
	fx.expectManuscript("m-1", []string{"id", "state", "author_id"}, row("m-1", "submitted", "u-1"))

	require.NoError(t, fx.manuscripts.Restart(context.Background(), "m-1", "Activity_review"))

	started := fx.engine.startedRequests()
	require.Len(t, started, 1)
	require.Equal(t, workflow.StartProcessRequest{
		Key:         "manuscript-review",
		BusinessKey: "m-1",
		StartInstructions: []workflow.StartInstruction{
			{Type: workflow.StartAfterActivity, ActivityID: "Activity_review"},
		},
		Variables: workflow.Variables{"state": {Value: "submitted"}},
	}, started[0])
	require.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestGetTasks(t *testing.T) {
	openTasks := []workflow.Task{
		{ID: "t-1", TaskDefinitionKey: "review-manuscript", Links: map[string]any{"self": "/task/t-1"}},
		{ID: "t-2", TaskDefinitionKey: "publish-issue"},
	}

	t.Run("FiltersByTaskACLAndStripsLinks", func(t *testing.T) {
		fx := newFixture(t)
		fx.subject = ownerSubject()
		fx.engine.tasks = openTasks
		fx.expectManuscript("m-1", []string{"id", "author_id"}, row("m-1", "u-1"))

		tasks, err := fx.manuscripts.GetTasks(context.Background(), "m-1")
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		require.Equal(t, "t-1", tasks[0].ID)
		require.Nil(t, tasks[0].Links)
	})

	t.Run("UnconstrainedMatchSeesAllTasks", func(t *testing.T) {
		fx := newFixture(t)
		fx.subject = adminSubject()
		fx.engine.tasks = openTasks
		fx.expectManuscript("m-1", []string{"id", "author_id"}, row("m-1", "u-1"))

		tasks, err := fx.manuscripts.GetTasks(context.Background(), "m-1")
		require.NoError(t, err)
		require.Len(t, tasks, 2)
	})
}

func TestRequestCache(t *testing.T) {
	fx := newFixture(t)
	fx.subject = ownerSubject()
	fx.engine.tasks = []workflow.Task{{ID: "t-1", TaskDefinitionKey: "review-manuscript"}}
	ctx := resolver.WithRequest(context.Background())

	fx.expectManuscript("m-1", []string{"id", "author_id"}, row("m-1", "u-1"))
	_, err := fx.manuscripts.GetTasks(ctx, "m-1")
	require.NoError(t, err)
	_, err = fx.manuscripts.GetTasks(ctx, "m-1")
	require.NoError(t, err)

	// The instance and the subject were each resolved once for the whole
	// request.
	require.Equal(t, 1, fx.identityCalls)
	require.NoError(t, fx.mock.ExpectationsWereMet())

	// A different resolver never sees the cached instance, even for the
	// same id.
	fx.mock.ExpectQuery("SELECT * FROM journals WHERE id = $1 LIMIT 1").
		WithArgs("m-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("m-1", "Nature"))
	_, err = fx.journals.GetTasks(ctx, "m-1")
	require.NoError(t, err)
	require.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestTopics(t *testing.T) {
	fx := newFixture(t)
	require.Equal(t, "Manuscript.created", fx.manuscripts.TopicCreated())
	require.Equal(t, "Manuscript.updated", fx.manuscripts.TopicUpdated())
}

package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkshift/linkshift/internal/config"
	"github.com/linkshift/linkshift/internal/rules"
)

func rule(matcher string, redirect rules.Redirect) *rules.Rule {
	return &rules.Rule{ID: "r1", Matcher: matcher, Redirect: redirect}
}

func TestScenarios(t *testing.T) {
	cases := []struct {
		name string
		rule *rules.Rule
		url  string
		want string
	}{
		{
			"partial-keeps-query",
			rule("/old-section", rules.Partial{Target: "/new-section"}),
			"https://oldapp.com/old-section/article/123",
			"https://new.com/new-section/article/123",
		},
		{
			"domain-swap",
			rule("oldapp.com", rules.Domain{Target: "https://brand-new-domain.com"}),
			"https://oldapp.com/any/path/here?q=1",
			"https://brand-new-domain.com/any/path/here?q=1",
		},
		{
			"wildcard-drops-query",
			rule("/Produkte/", rules.Wildcard{Target: "https://neueapp.com/products/new"}),
			"https://oldapp.com/Produkte/linkteil/seite.aspx",
			"https://neueapp.com/products/new",
		},
		{
			"wildcard-forwards-query",
			rule("/Produkte/", rules.Wildcard{Target: "https://neueapp.com/products/new", ForwardQuery: true}),
			"https://oldapp.com/Produkte/linkteil/seite.aspx?id=123&ref=google",
			"https://neueapp.com/products/new?id=123&ref=google",
		},
		{
			"wildcard-relative-target",
			rule("/blog/*", rules.Wildcard{Target: "/news"}),
			"http://old.com/blog/article-123",
			"https://new.com/news",
		},
		{
			"partial-mid-path-keeps-casing",
			rule("/old-section", rules.Partial{Target: "/new-section"}),
			"/Lang/DE/Old-Section/X",
			"https://new.com/Lang/DE/new-section/X",
		},
		{
			"partial-domain-matcher",
			rule("oldapp.com", rules.Partial{Target: "/archive"}),
			"https://oldapp.com/a/b?q=1",
			"https://new.com/archive/a/b?q=1",
		},
		{
			"partial-matcher-not-found",
			rule("/docs/:id", rules.Partial{Target: "/help"}),
			"/docs/42/view",
			"https://new.com/docs/42/view/help",
		},
	}

	for _, tt := range cases {
		res := Trace(tt.url, tt.rule, "https://new.com", Settings{})
		assert.Equal(t, tt.want, res.Final, tt.name)
		assert.Equal(t, tt.url, res.Original, tt.name)
		assert.Empty(t, res.SearchFallback, tt.name)
	}
}

func TestEncodedPartialMatch(t *testing.T) {
	r := rule(
		"/unterstuetzung/hrm/lohn,%20versicherungen,%20arbeitszeit,%20absenzen,%20hr-to/",
		rules.Partial{Target: "/sites/Intranet-hrm/Lohn,%20Versicherungen,%20Arbeitszeit,%20Absenzen,%20HR-To/"},
	)
	url := "/Unterstuetzung/hrm/Lohn%2c%20Versicherungen%2c%20Arbeitszeit%2c%20Absenzen%2c%20HR-To/Personalverg%c3%bcnstigungen_%20Events%202026.pdf"

	res := Trace(url, r, "https://example.com", Settings{})
	assert.Equal(t,
		"https://example.com/sites/Intranet-hrm/Lohn,%20Versicherungen,%20Arbeitszeit,%20Absenzen,%20HR-To/Personalverg%c3%bcnstigungen_%20Events%202026.pdf",
		res.Final)
}

func TestPartialMatcherIgnoresQuery(t *testing.T) {
	r := rule("/old", rules.Partial{Target: "/new"})

	res := Trace("https://o.com/x?r=/old/y", r, "https://n.com", Settings{})
	assert.Equal(t, "https://n.com/x/new?r=/old/y", res.Final)

	res = Trace("https://o.com/old/page?r=/old/y#old", r, "https://n.com", Settings{})
	assert.Equal(t, "https://n.com/new/page?r=/old/y#old", res.Final)

	abs := rule("/old", rules.Partial{Target: "https://docs.n.com/"})
	res = Trace("https://o.com/old/page?q=1", abs, "https://n.com", Settings{})
	assert.Equal(t, "https://docs.n.com/page?q=1", res.Final)
}

func TestStepsRecordOnlyChanges(t *testing.T) {
	r := rule("/Produkte/", rules.Wildcard{Target: "https://neueapp.com/products/new", ForwardQuery: true})
	res := Trace("https://oldapp.com/Produkte/x?id=1", r, "https://new.com", Settings{})

	require.Len(t, res.Steps, 2)
	assert.Equal(t, CategoryRule, res.Steps[0].Category)
	assert.Equal(t, "https://oldapp.com/Produkte/x?id=1", res.Steps[0].Before)
	assert.Equal(t, "https://neueapp.com/products/new", res.Steps[0].After)
	assert.True(t, res.Steps[0].Changed)
	assert.Equal(t, res.Steps[0].After, res.Steps[1].Before)
	assert.Equal(t, res.Final, res.Steps[1].After)

	res = Trace("https://oldapp.com/Produkte/x", r, "https://new.com", Settings{})
	assert.Len(t, res.Steps, 1)
}

func TestDomainDiscardKeepsFragment(t *testing.T) {
	r := rule("a.com", rules.Domain{Target: "https://b.com", DiscardQuery: true})
	res := Trace("https://a.com/x?q=1#frag", r, "", Settings{})

	assert.Equal(t, "https://b.com/x#frag", res.Final)
	require.Len(t, res.Steps, 2)
	assert.Equal(t, CategoryCleanup, res.Steps[1].Category)
}

func TestKeptParams(t *testing.T) {
	r := rule("/partial-discard", rules.Partial{
		Target:       "/target-discard",
		DiscardQuery: true,
		Kept:         []rules.KeptParam{{KeyPattern: "(["}, {KeyPattern: "keepme"}},
	})
	res := Trace("http://old.com/partial-discard?keepme=old&dropme=val", r, "https://new.com", Settings{})
	assert.Equal(t, "https://new.com/target-discard?keepme=old", res.Final)
	assert.Empty(t, res.Applied)
}

func TestKeptParamsRenameValuePatternAndGlobal(t *testing.T) {
	r := rule("/old", rules.Wildcard{
		Target: "https://new.com/landing",
		Kept:   []rules.KeptParam{{KeyPattern: "^id$", ValuePattern: `^(\d+)`, TargetKey: "ref"}},
	})
	s := Settings{KeptParams: []rules.KeptParam{
		{ID: "g-utm", KeyPattern: "^utm_"},
		{ID: "g-id", KeyPattern: "id"},
	}}

	res := Trace("/old?id=42abc&utm_source=mail%20news&x=1", r, "https://new.com", s)
	assert.Equal(t, "https://new.com/landing?ref=42&utm_source=mail%20news", res.Final)
	assert.Equal(t, []AppliedRule{{ID: "g-utm", Kind: AppliedKept, Description: "Kept: ^utm_"}}, res.Applied)
}

func TestKeptSkipEncoding(t *testing.T) {
	r := rule("/a", rules.Partial{
		Target:       "/b",
		DiscardQuery: true,
		Kept:         []rules.KeptParam{{KeyPattern: "q", SkipEncoding: true}},
	})
	res := Trace("/a?q=x%2Fy", r, "https://new.com", Settings{})
	assert.Equal(t, "https://new.com/b?q=x/y", res.Final)
}

func TestStaticParams(t *testing.T) {
	r := rule("/a", rules.Partial{Target: "/b"})
	r.StaticParams = []rules.StaticParam{{Key: "lang", Value: "en"}}
	s := Settings{StaticParams: []rules.StaticParam{
		{ID: "gs1", Key: "src", Value: "old site"},
		{ID: "gs2", Key: "lang", Value: "de"},
	}}

	res := Trace("https://old.com/a?q=1", r, "https://new.com", s)
	assert.Equal(t, "https://new.com/b?q=1&src=old%20site&lang=en", res.Final)
	assert.Equal(t, []AppliedRule{{ID: "gs1", Kind: AppliedStatic, Description: "Static: src=old site"}}, res.Applied)
	assert.Equal(t, CategoryGlobal, res.Steps[len(res.Steps)-1].Category)

	res = Trace("https://old.com/a#top", r, "https://new.com", s)
	assert.Equal(t, "https://new.com/b?src=old%20site&lang=en#top", res.Final)
}

func TestSearchReplaceOverride(t *testing.T) {
	r := rule("/test", rules.Partial{Target: "/target"})
	r.SearchAndReplace = []rules.SearchReplace{{Search: "FOO", Replace: "zzz"}}
	s := Settings{SearchAndReplace: []rules.SearchReplace{
		{ID: "g1", Search: "foo", Replace: "bar"},
		{ID: "g2", Search: "Baz", Replace: "qux"},
	}}

	res := Trace("http://old.com/test?p=foo&b=baz", r, "https://new.com", s)
	assert.Equal(t, "https://new.com/target?p=zzz&b=qux", res.Final)
	assert.Equal(t, []AppliedRule{{ID: "g2", Kind: AppliedSearch, Description: `S&R: "Baz" -> "qux"`}}, res.Applied)

	require.Len(t, res.Steps, 3)
	assert.Equal(t, CategoryGlobal, res.Steps[1].Category)
	assert.Equal(t, CategoryRule, res.Steps[2].Category)
}

func TestSearchReplaceOnKeptQuery(t *testing.T) {
	r := rule("/test", rules.Partial{Target: "/target"})
	s := Settings{SearchAndReplace: []rules.SearchReplace{{ID: "global1", Search: "foo", Replace: "bar"}}}

	res := Trace("http://old.com/test?param=foo", r, "https://new.com", s)
	assert.Equal(t, "https://new.com/target?param=bar", res.Final)
}

func TestMerge(t *testing.T) {
	r := &rules.Rule{
		Matcher:          "/x",
		Redirect:         rules.Partial{Target: "/y", DiscardQuery: true, Kept: []rules.KeptParam{{KeyPattern: "a"}}},
		SearchAndReplace: []rules.SearchReplace{{Search: "FOO"}, {Search: "exact", CaseSensitive: true}},
	}
	s := Settings{
		SearchAndReplace: []rules.SearchReplace{
			{ID: "sensitive", Search: "foo", CaseSensitive: true},
			{ID: "insensitive", Search: "foo"},
			{ID: "same", Search: "exact"},
		},
		KeptParams: []rules.KeptParam{{ID: "g", KeyPattern: "b"}},
	}

	eff := Merge(r, s)
	var ids []string
	for _, item := range eff.Replacements {
		ids = append(ids, string(item.Origin)+":"+item.ID+item.Search)
	}
	assert.Equal(t, []string{"global:sensitivefoo", "rule:FOO", "rule:exact"}, ids)

	require.Len(t, eff.Kept, 2)
	assert.Equal(t, OriginRule, eff.Kept[0].Origin)
	assert.Equal(t, "g", eff.Kept[1].ID)

	none := Merge(nil, s)
	assert.Len(t, none.Replacements, 3)
	assert.Len(t, none.Kept, 1)
}

func TestSearchFallbackTerminates(t *testing.T) {
	s := Settings{
		FallbackMode:     config.FallbackSearch,
		DefaultSearchURL: "https://search.com?q=",
		StaticParams:     []rules.StaticParam{{ID: "s", Key: "x", Value: "1"}},
	}

	res := Trace("http://old.com/products/red%20shoes", nil, "https://new.com", s)
	assert.Equal(t, "https://search.com?q=red%20shoes", res.Final)
	assert.Equal(t, res.Final, res.SearchFallback)
	require.Len(t, res.Steps, 1)
	assert.Equal(t, `Smart Search Fallback: "red shoes"`, res.Steps[0].Description)
	assert.Empty(t, res.Applied)

	s.DefaultSkipEncoding = true
	res = Trace("http://old.com/products/red%20shoes", nil, "https://new.com", s)
	assert.Equal(t, "https://search.com?q=red shoes", res.Final)
}

func TestSearchFallbackWithoutTermSwapsDomain(t *testing.T) {
	s := Settings{FallbackMode: config.FallbackSearch, DefaultSearchURL: "https://search.com?q="}
	res := Trace("http://old.com/", nil, "https://new.com", s)
	assert.Equal(t, "https://new.com/", res.Final)
	assert.Empty(t, res.SearchFallback)

	s.DefaultSearchURL = ""
	res = Trace("http://old.com/item", nil, "https://new.com", s)
	assert.Equal(t, "https://new.com/item", res.Final)
}

func TestDomainFallback(t *testing.T) {
	s := Settings{StaticParams: []rules.StaticParam{{ID: "s", Key: "from", Value: "old"}}}

	res := Trace("http://old.com//a//b?x=1", nil, "https://new.com/", s)
	assert.Equal(t, "https://new.com/a/b?x=1&from=old", res.Final)

	res = Trace("http://old.com/a", nil, "", Settings{})
	assert.Equal(t, "https://thisisthenewurl.com/a", res.Final)
	require.Len(t, res.Steps, 1)
	assert.Equal(t, "Fallback Generation (Default Redirect)", res.Steps[0].Description)
}

func TestFinalStageCollapsesSlashes(t *testing.T) {
	res := Trace("/a//c", rule("/a", rules.Partial{Target: "/b/"}), "https://new.com", Settings{})
	assert.Equal(t, "https://new.com/b/c", res.Final)
	last := res.Steps[len(res.Steps)-1]
	assert.Equal(t, CategoryFinal, last.Category)
}

type explodingRedirect struct{}

func (explodingRedirect) Kind() rules.Kind              { return rules.KindPartial }
func (explodingRedirect) TargetURL() string             { panic("boom") }
func (explodingRedirect) KeptParams() []rules.KeptParam { return nil }

func TestTraceRecoversPanics(t *testing.T) {
	res := Trace("https://old.com/a/b", rule("/a", explodingRedirect{}), "https://new.com", Settings{})
	assert.Equal(t, "https://new.com/a/b", res.Final)
	assert.NotNil(t, res.Steps)
	assert.Empty(t, res.Steps)
	assert.Empty(t, res.Applied)
}

func TestTraceIsDeterministic(t *testing.T) {
	r := rule("/a", rules.Partial{Target: "/b", DiscardQuery: true, Kept: []rules.KeptParam{{KeyPattern: "."}}})
	s := Settings{
		SearchAndReplace: []rules.SearchReplace{{ID: "g", Search: "b", Replace: "c"}},
		StaticParams:     []rules.StaticParam{{ID: "s", Key: "k", Value: "v"}},
	}
	first := Trace("/a/x?z=1&y=2", r, "https://new.com", s)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Trace("/a/x?z=1&y=2", r, "https://new.com", s))
	}
}

func TestGenerate(t *testing.T) {
	s := Settings{StaticParams: []rules.StaticParam{{ID: "s", Key: "k", Value: "v"}}}
	got := Generate("/a", rule("/a", rules.Partial{Target: "/b"}), "https://new.com", s)
	assert.Equal(t, "https://new.com/b?k=v", got.URL)
	assert.Len(t, got.Applied, 1)
	assert.Empty(t, got.SearchFallback)
}

func TestSettingsFromConfig(t *testing.T) {
	s := SettingsFromConfig(config.Settings{
		FallbackMode:      config.FallbackSearch,
		DefaultSearchURL:  "https://s.com?q=",
		SmartSearchRules:  []config.SmartSearchRule{{PathPattern: "/kb", SearchURL: "https://kb.com?q="}},
		StaticQueryParams: []config.StaticParam{{ID: "x", Key: "a", Value: "b"}},
	})
	require.NotNil(t, s.Search)
	assert.Len(t, s.StaticParams, 1)

	res := Trace("https://old.com/kb/article-9", nil, "https://new.com", s)
	assert.Equal(t, "https://kb.com?q=article-9", res.SearchFallback)
}

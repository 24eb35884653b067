package urlsync

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"tyres_bot/internal/filter"
	"tyres_bot/internal/model"
)

type memPersister struct {
	stored model.Filters
}

func (m *memPersister) Save(_ context.Context, f model.Filters) { m.stored = f.Clone() }

func (m *memPersister) Load(_ context.Context) (model.Filters, bool) {
	if m.stored == nil {
		return nil, false
	}
	return m.stored.Clone(), true
}

func (m *memPersister) Clear(_ context.Context) { m.stored = nil }

func filters(kv ...string) model.Filters {
	f := model.EmptyFilters()
	for i := 0; i+1 < len(kv); i += 2 {
		f[model.Field(kv[i])] = kv[i+1]
	}
	return f
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		f    model.Filters
		sort model.SortKey
		want string
	}{
		{name: "nothing set", f: model.EmptyFilters(), sort: model.SortNewest, want: ""},
		{name: "canonical order", f: filters("season", "Літо", "width", "195"), sort: model.SortNewest, want: "width=195&season=%D0%9B%D1%96%D1%82%D0%BE"},
		{name: "non-default sort", f: filters("radius", "16"), sort: model.SortPriceAsc, want: "radius=16&sort=priceAsc"},
		{name: "explicit none sort", f: model.EmptyFilters(), sort: model.SortNone, want: "sort="},
		{name: "spaces", f: filters("title", "Pilot Sport"), sort: model.SortNewest, want: "title=Pilot+Sport"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Encode(tt.f, tt.sort)); diff != "" {
				t.Errorf("Encode mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  filter.Seed
	}{
		{
			name:  "empty",
			query: "",
			want:  filter.Seed{Filters: model.Filters{}},
		},
		{
			name:  "fields and sort",
			query: "?width=195&sort=priceDesc",
			want:  filter.Seed{Filters: model.Filters{model.FieldWidth: "195"}, Sort: model.SortPriceDesc, HasSort: true},
		},
		{
			name:  "unknown params and bad sort ignored",
			query: "utm_source=tg&brand=x&sort=cheap&height=65",
			want:  filter.Seed{Filters: model.Filters{model.FieldHeight: "65"}},
		},
		{
			name:  "empty values are absent",
			query: "width=&radius=15",
			want:  filter.Seed{Filters: model.Filters{model.FieldRadius: "15"}},
		},
		{
			name:  "empty sort is none",
			query: "sort=",
			want:  filter.Seed{Filters: model.Filters{}, Sort: model.SortNone, HasSort: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Decode(tt.query)); diff != "" {
				t.Errorf("Decode mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncodeDecodeAgree(t *testing.T) {
	f := filters("width", "205", "height", "55", "title", "Ice & Snow", "condition", "Б/У")
	seed := Decode(Encode(f, model.SortOldest))

	for _, k := range model.Fields() {
		if diff := cmp.Diff(f[k], seed.Filters[k]); diff != "" {
			t.Errorf("field %s mismatch (-want +got):\n%s", k, diff)
		}
	}
	if diff := cmp.Diff(model.SortOldest, seed.Sort); diff != "" {
		t.Errorf("sort mismatch (-want +got):\n%s", diff)
	}
}

func TestSyncSkipsUnchanged(t *testing.T) {
	loc := NewMemLocation("width=195")
	s := New(loc)

	if s.Sync(filters("width", "195"), model.SortNewest) {
		t.Error("Sync reported a write for an identical query")
	}
	if diff := cmp.Diff(0, loc.Writes()); diff != "" {
		t.Errorf("writes mismatch (-want +got):\n%s", diff)
	}

	if !s.Sync(filters("width", "205"), model.SortNewest) {
		t.Error("Sync did not write a changed query")
	}
	s.Sync(filters("width", "205"), model.SortNewest)
	if diff := cmp.Diff(1, loc.Writes()); diff != "" {
		t.Errorf("writes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("width=205", loc.Query()); diff != "" {
		t.Errorf("query mismatch (-want +got):\n%s", diff)
	}
}

func TestMount(t *testing.T) {
	ctx := context.Background()
	p := &memPersister{stored: filters("width", "195", "season", "Зима")}
	state := filter.New(p)
	loc := NewMemLocation("?radius=16&sort=oldest")

	New(loc).Mount(ctx, state, filter.KeepPersisted)

	want := model.Query{Filters: filters("width", "195", "season", "Зима", "radius", "16"), Sort: model.SortOldest}
	if diff := cmp.Diff(want, state.Snapshot()); diff != "" {
		t.Errorf("mounted state mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(0, loc.Writes()); diff != "" {
		t.Errorf("Mount must not write the location (-want +got):\n%s", diff)
	}
}

func TestLink(t *testing.T) {
	s := New(NewMemLocation(""))
	if diff := cmp.Diff("https://tyres.example.com", s.Link("https://tyres.example.com")); diff != "" {
		t.Errorf("bare link mismatch (-want +got):\n%s", diff)
	}
	s.Sync(filters("width", "195"), model.SortPriceAsc)
	if diff := cmp.Diff("https://tyres.example.com?width=195&sort=priceAsc", s.Link("https://tyres.example.com")); diff != "" {
		t.Errorf("link mismatch (-want +got):\n%s", diff)
	}
}

func TestQueryFromLink(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "https://tyres.example.com/?width=195&sort=oldest", want: "width=195&sort=oldest"},
		{in: "  width=195 ", want: "width=195"},
		{in: "https://tyres.example.com/?radius=15#top", want: "radius=15"},
		{in: "https://tyres.example.com/", want: ""},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, QueryFromLink(tt.in)); diff != "" {
			t.Errorf("QueryFromLink(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

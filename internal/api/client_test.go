package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/h2non/gock"

	"tyres_bot/internal/model"
)

const testBase = "http://api.test"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newGockClient(t *testing.T) *Client {
	t.Helper()
	hc := &http.Client{}
	gock.InterceptClient(hc)
	t.Cleanup(func() {
		gock.RestoreClient(hc)
		gock.Off()
	})
	return New(testBase, hc, testLogger())
}

type capturingHTTP struct {
	mu   sync.Mutex
	reqs []*http.Request
	body string
}

func (m *capturingHTTP) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs = append(m.reqs, req)
	return &http.Response{
		StatusCode: 200,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

func filters(kv ...string) model.Filters {
	f := model.EmptyFilters()
	for i := 0; i+1 < len(kv); i += 2 {
		f[model.Field(kv[i])] = kv[i+1]
	}
	return f
}

func TestFetchPageQuery(t *testing.T) {
	tests := []struct {
		name string
		req  model.PageRequest
		want string
	}{
		{
			name: "empty filters omitted",
			req:  model.PageRequest{Filters: filters("width", "195"), Sort: model.SortNewest, Page: 2, Limit: 6},
			want: "limit=6&page=2&sort=newest&width=195",
		},
		{
			name: "no sort omitted",
			req:  model.PageRequest{Filters: model.EmptyFilters(), Sort: model.SortNone, Page: 1, Limit: 6},
			want: "limit=6&page=1",
		},
		{
			name: "non-ascii values escaped",
			req:  model.PageRequest{Filters: filters("season", "Зима", "title", "Pilot Sport"), Page: 1, Limit: 6},
			want: "limit=6&page=1&season=%D0%97%D0%B8%D0%BC%D0%B0&title=Pilot+Sport",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &capturingHTTP{body: `{"tyres":[],"total":0}`}
			c := New(testBase, mock, testLogger())

			if _, err := c.FetchPage(context.Background(), tt.req); err != nil {
				t.Fatalf("FetchPage: %v", err)
			}
			if diff := cmp.Diff(1, len(mock.reqs)); diff != "" {
				t.Fatalf("request count (-want +got):\n%s", diff)
			}
			got := mock.reqs[0].URL.Query().Encode()
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("query mismatch (-want +got):\n%s", diff)
			}
			if mock.reqs[0].Header.Get("X-Request-Id") == "" {
				t.Error("expected X-Request-Id header")
			}
		})
	}
}

func TestFetchPageInvalidRequest(t *testing.T) {
	mock := &capturingHTTP{}
	c := New(testBase, mock, testLogger())

	if _, err := c.FetchPage(context.Background(), model.PageRequest{Page: 0, Limit: 6}); err == nil {
		t.Fatal("expected error for page 0")
	}
	if len(mock.reqs) != 0 {
		t.Errorf("invalid request reached the transport %d times", len(mock.reqs))
	}
}

func TestFetchPageDecodes(t *testing.T) {
	c := newGockClient(t).WithToken("tok")

	gock.New(testBase).
		Get("/api/tyres").
		MatchParam("width", "195").
		MatchParam("page", "1").
		MatchHeader("Authorization", "^Bearer tok$").
		Reply(200).
		JSON(map[string]any{
			"tyres": []map[string]any{
				{"_id": "a1", "brand": "Michelin", "width": "195", "height": "65", "radius": "15", "price": 2400},
				{"_id": "a2", "brand": "Nokian", "width": "195", "height": "65", "radius": "15", "price": 1800},
			},
			"total": 14,
		})

	page, err := c.FetchPage(context.Background(), model.PageRequest{Filters: filters("width", "195"), Page: 1, Limit: 6})
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}

	var ids []string
	for _, it := range page.Items {
		ids = append(ids, it.ID)
	}
	if diff := cmp.Diff([]string{"a1", "a2"}, ids); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(14, page.Total); diff != "" {
		t.Errorf("total mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("195/65R15", page.Items[0].Size()); diff != "" {
		t.Errorf("size mismatch (-want +got):\n%s", diff)
	}
	if !gock.IsDone() {
		t.Error("expected all mocks to be consumed")
	}
}

func TestFetchPageFailures(t *testing.T) {
	tests := []struct {
		name       string
		setup      func()
		wantKind   Kind
		wantStatus int
		wantMsg    string
	}{
		{
			name: "server error with message",
			setup: func() {
				gock.New(testBase).Get("/api/tyres").Reply(500).JSON(map[string]string{"message": "db down"})
			},
			wantKind:   ServerError,
			wantStatus: 500,
			wantMsg:    "db down",
		},
		{
			name: "not found without body",
			setup: func() {
				gock.New(testBase).Get("/api/tyres").Reply(404)
			},
			wantKind:   ServerError,
			wantStatus: 404,
		},
		{
			name: "undecodable body",
			setup: func() {
				gock.New(testBase).Get("/api/tyres").Reply(200).BodyString("<html>")
			},
			wantKind:   ServerError,
			wantStatus: 200,
		},
		{
			name: "transport failure",
			setup: func() {
				gock.New(testBase).Get("/api/tyres").ReplyError(errors.New("connection refused"))
			},
			wantKind: NetworkError,
		},
		{
			name: "deadline",
			setup: func() {
				gock.New(testBase).Get("/api/tyres").ReplyError(context.DeadlineExceeded)
			},
			wantKind: Timeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newGockClient(t)
			tt.setup()

			_, err := c.FetchPage(context.Background(), model.PageRequest{Page: 1, Limit: 6})
			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want *Error", err)
			}
			if diff := cmp.Diff(tt.wantKind, apiErr.Kind); diff != "" {
				t.Errorf("kind mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantStatus, apiErr.Status); diff != "" {
				t.Errorf("status mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantMsg, apiErr.Message); diff != "" {
				t.Errorf("message mismatch (-want +got):\n%s", diff)
			}
			if apiErr.RequestID == "" {
				t.Error("expected request id on error")
			}
		})
	}
}

func TestLogin(t *testing.T) {
	c := newGockClient(t)

	gock.New(testBase).
		Post("/api/auth/login").
		JSON(map[string]string{"email": "a@b.c", "password": "pw"}).
		Reply(200).
		JSON(map[string]string{"token": "jwt", "userId": "u1", "name": "Olena"})

	s, err := c.Login(context.Background(), "a@b.c", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if diff := cmp.Diff(Session{Token: "jwt", UserID: "u1", Name: "Olena"}, s); diff != "" {
		t.Errorf("session mismatch (-want +got):\n%s", diff)
	}
}

func TestLoginRejected(t *testing.T) {
	c := newGockClient(t)
	gock.New(testBase).Post("/api/auth/login").Reply(401).JSON(map[string]string{"message": "Невірний email або пароль"})

	_, err := c.Login(context.Background(), "a@b.c", "bad")
	if !IsUnauthorized(err) {
		t.Fatalf("error = %v, want unauthorized", err)
	}
}

func TestFavoriteIDs(t *testing.T) {
	t.Run("authorised", func(t *testing.T) {
		c := newGockClient(t).WithToken("tok")
		gock.New(testBase).Get("/api/favorites/ids").Reply(200).JSON([]string{"a1", "b2"})

		ids, err := c.FavoriteIDs(context.Background())
		if err != nil {
			t.Fatalf("FavoriteIDs: %v", err)
		}
		if diff := cmp.Diff([]string{"a1", "b2"}, ids); diff != "" {
			t.Errorf("ids mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("unauthorised is empty", func(t *testing.T) {
		c := newGockClient(t)
		gock.New(testBase).Get("/api/favorites/ids").Reply(401)

		ids, err := c.FavoriteIDs(context.Background())
		if err != nil {
			t.Fatalf("FavoriteIDs: %v", err)
		}
		if len(ids) != 0 {
			t.Errorf("ids = %v, want none", ids)
		}
	})
}

func TestFetchByIDs(t *testing.T) {
	c := newGockClient(t)

	if got, err := c.FetchByIDs(context.Background(), nil); err != nil || got != nil {
		t.Fatalf("FetchByIDs(nil) = %v, %v; want nil, nil", got, err)
	}

	gock.New(testBase).
		Post("/api/tyres/by-ids").
		JSON(map[string][]string{"ids": {"a1"}}).
		Reply(200).
		JSON(map[string]any{"tyres": []map[string]any{{"_id": "a1"}}})

	got, err := c.FetchByIDs(context.Background(), []string{"a1"})
	if err != nil {
		t.Fatalf("FetchByIDs: %v", err)
	}
	if diff := cmp.Diff(1, len(got)); diff != "" {
		t.Fatalf("count mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("a1", got[0].ID); diff != "" {
		t.Errorf("id mismatch (-want +got):\n%s", diff)
	}
}

func TestListingActions(t *testing.T) {
	tests := []struct {
		name  string
		route func(r *gock.Request) *gock.Request
		call  func(c *Client) error
	}{
		{
			name:  "add favourite",
			route: func(r *gock.Request) *gock.Request { return r.Post("/api/favorites").JSON(map[string]string{"tyreId": "a1"}) },
			call:  func(c *Client) error { return c.AddFavorite(context.Background(), "a1") },
		},
		{
			name:  "remove favourite",
			route: func(r *gock.Request) *gock.Request { return r.Delete("/api/favorites/a1") },
			call:  func(c *Client) error { return c.RemoveFavorite(context.Background(), "a1") },
		},
		{
			name:  "renew",
			route: func(r *gock.Request) *gock.Request { return r.Patch("/api/tyres/a1/renew") },
			call:  func(c *Client) error { return c.Renew(context.Background(), "a1") },
		},
		{
			name:  "activate",
			route: func(r *gock.Request) *gock.Request { return r.Patch("/api/tyres/a1/activate") },
			call:  func(c *Client) error { return c.Activate(context.Background(), "a1") },
		},
		{
			name:  "deactivate",
			route: func(r *gock.Request) *gock.Request { return r.Put("/api/tyres/a1") },
			call:  func(c *Client) error { return c.Deactivate(context.Background(), "a1") },
		},
		{
			name:  "delete",
			route: func(r *gock.Request) *gock.Request { return r.Delete("/api/tyres/a1") },
			call:  func(c *Client) error { return c.Delete(context.Background(), "a1") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newGockClient(t).WithToken("tok")
			tt.route(gock.New(testBase).MatchHeader("Authorization", "^Bearer tok$")).
				Reply(200).
				JSON(map[string]string{"message": "ok"})

			if err := tt.call(c); err != nil {
				t.Fatalf("call: %v", err)
			}
			if !gock.IsDone() {
				t.Error("expected mock to be consumed")
			}
		})
	}
}

func TestAdminStats(t *testing.T) {
	c := newGockClient(t).WithToken("admin")

	gock.New(testBase).Get("/api/admin/stats$").Reply(200).JSON(map[string]int{"users": 12, "tyres": 40})
	gock.New(testBase).Get("/api/admin/stats/daily-listings").Reply(200).JSON([]map[string]any{{"date": "2025-06-01", "count": 3}})
	gock.New(testBase).Get("/api/admin/stats/daily-users").Reply(200).JSON([]map[string]any{{"date": "2025-06-01", "count": 1}})
	gock.New(testBase).Get("/api/admin/stats/listing-categories").Reply(200).JSON([]map[string]any{{"name": "Зима", "value": 25}})
	gock.New(testBase).Get("/api/admin/stats/listing-status").Reply(200).JSON([]map[string]any{{"name": "active", "value": 30}})

	got, err := c.AdminStats(context.Background())
	if err != nil {
		t.Fatalf("AdminStats: %v", err)
	}

	want := model.Stats{
		Users:             12,
		Tyres:             40,
		DailyListings:     []model.DailyCount{{Date: "2025-06-01", Count: 3}},
		DailyUsers:        []model.DailyCount{{Date: "2025-06-01", Count: 1}},
		ListingCategories: []model.NamedCount{{Name: "Зима", Value: 25}},
		ListingStatus:     []model.NamedCount{{Name: "active", Value: 30}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("AdminStats mismatch (-want +got):\n%s", diff)
	}
}

func TestAdminStatsFailure(t *testing.T) {
	c := newGockClient(t)

	gock.New(testBase).Get("/api/admin/stats$").Reply(403).JSON(map[string]string{"message": "forbidden"})
	gock.New(testBase).Get("/api/admin/stats/.*").Persist().Reply(200).JSON([]any{})

	_, err := c.AdminStats(context.Background())
	if !IsKind(err, ServerError) {
		t.Fatalf("error = %v, want server error", err)
	}
}

func TestMineSource(t *testing.T) {
	c := newGockClient(t).WithToken("tok")
	gock.New(testBase).
		Get("/api/tyres/my").
		MatchParam("page", "2").
		MatchParam("limit", "6").
		Reply(200).
		JSON(map[string]any{"tyres": []map[string]any{{"_id": "m7"}}, "total": 7})

	page, err := c.Mine().FetchPage(context.Background(), model.PageRequest{Filters: filters("width", "195"), Page: 2, Limit: 6})
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if diff := cmp.Diff(7, page.Total); diff != "" {
		t.Errorf("total mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchByID(t *testing.T) {
	c := newGockClient(t)
	gock.New(testBase).
		Get("/api/tyres/a1$").
		Reply(200).
		JSON(map[string]any{"_id": "a1", "brand": "Nokian", "year": 2022, "contact": "380501112233"})

	got, err := c.FetchByID(context.Background(), "a1")
	if err != nil {
		t.Fatalf("FetchByID: %v", err)
	}
	want := model.Tyre{ID: "a1", Brand: "Nokian", Year: 2022, Contact: "380501112233"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("listing mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchByIDNotFound(t *testing.T) {
	c := newGockClient(t)
	gock.New(testBase).Get("/api/tyres/gone").Reply(404).JSON(map[string]string{"message": "Оголошення не знайдено"})

	_, err := c.FetchByID(context.Background(), "gone")
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if diff := cmp.Diff(404, apiErr.Status); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}
	if !IsNotFound(err) {
		t.Errorf("IsNotFound(%v) = false", err)
	}
}

func TestCreateAndUpdateSendTitle(t *testing.T) {
	draft := model.Draft{"brand": "Nokian", "width": "205", "height": "55", "radius": "16", "price": "3000"}
	wantBody := map[string]string{
		"brand": "Nokian", "width": "205", "height": "55", "radius": "16", "price": "3000",
		"title": "205/55/16",
	}

	t.Run("create", func(t *testing.T) {
		c := newGockClient(t).WithToken("tok")
		gock.New(testBase).
			Post("/api/tyres$").
			MatchHeader("Authorization", "^Bearer tok$").
			JSON(wantBody).
			Reply(201).
			JSON(map[string]any{"_id": "n1", "brand": "Nokian"})

		got, err := c.Create(context.Background(), draft)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if diff := cmp.Diff("n1", got.ID); diff != "" {
			t.Errorf("id mismatch (-want +got):\n%s", diff)
		}
		if !gock.IsDone() {
			t.Error("expected mock to be consumed")
		}
	})

	t.Run("update", func(t *testing.T) {
		c := newGockClient(t).WithToken("tok")
		gock.New(testBase).
			Patch("/api/tyres/n1$").
			JSON(wantBody).
			Reply(200).
			JSON(map[string]any{"_id": "n1", "price": 3000})

		got, err := c.Update(context.Background(), "n1", draft)
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if diff := cmp.Diff(3000.0, got.Price); diff != "" {
			t.Errorf("price mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("validation message", func(t *testing.T) {
		c := newGockClient(t).WithToken("tok")
		gock.New(testBase).Post("/api/tyres$").Reply(400).JSON(map[string]string{"message": "Підтвердіть номер телефону"})

		_, err := c.Create(context.Background(), draft)
		var apiErr *Error
		if !errors.As(err, &apiErr) {
			t.Fatalf("error = %v, want *Error", err)
		}
		if diff := cmp.Diff("Підтвердіть номер телефону", apiErr.Message); diff != "" {
			t.Errorf("message mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestProfile(t *testing.T) {
	c := newGockClient(t).WithToken("tok")
	gock.New(testBase).
		Get("/api/user/profile").
		MatchHeader("Authorization", "^Bearer tok$").
		Reply(200).
		JSON(map[string]any{"_id": "u1", "name": "Olena", "email": "o@example.com", "city": "Львів", "phoneVerified": true})
	gock.New(testBase).
		Put("/api/user/profile").
		JSON(map[string]string{"name": "Olena K", "city": "Київ"}).
		Reply(200).
		JSON(map[string]any{"_id": "u1", "name": "Olena K", "city": "Київ"})

	got, err := c.Profile(context.Background())
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	want := model.Profile{ID: "u1", Name: "Olena", Email: "o@example.com", City: "Львів", PhoneVerified: true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("profile mismatch (-want +got):\n%s", diff)
	}

	updated, err := c.UpdateProfile(context.Background(), model.ProfileUpdate{Name: "Olena K", City: "Київ"})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if diff := cmp.Diff("Olena K", updated.Name); diff != "" {
		t.Errorf("name mismatch (-want +got):\n%s", diff)
	}
}

func TestAccountCalls(t *testing.T) {
	tests := []struct {
		name  string
		route func(r *gock.Request) *gock.Request
		call  func(c *Client) error
	}{
		{
			name: "change password",
			route: func(r *gock.Request) *gock.Request {
				return r.Put("/api/user/updatePassword").JSON(map[string]string{
					"currentPassword": "Old1!x",
					"newPassword":     "New2@y",
					"confirmPassword": "New2@y",
				})
			},
			call: func(c *Client) error { return c.ChangePassword(context.Background(), "Old1!x", "New2@y") },
		},
		{
			name:  "send phone code",
			route: func(r *gock.Request) *gock.Request { return r.Post("/api/phone/send").JSON(map[string]string{"phone": "+380501112233"}) },
			call: func(c *Client) error {
				_, err := c.SendPhoneCode(context.Background(), "+380501112233")
				return err
			},
		},
		{
			name:  "verify phone code",
			route: func(r *gock.Request) *gock.Request { return r.Post("/api/phone/verify").JSON(map[string]string{"code": "123456"}) },
			call:  func(c *Client) error { return c.VerifyPhoneCode(context.Background(), "123456") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newGockClient(t).WithToken("tok")
			tt.route(gock.New(testBase).MatchHeader("Authorization", "^Bearer tok$")).
				Reply(200).
				JSON(map[string]string{"message": "ok"})

			if err := tt.call(c); err != nil {
				t.Fatalf("call: %v", err)
			}
			if !gock.IsDone() {
				t.Error("expected mock to be consumed")
			}
		})
	}
}

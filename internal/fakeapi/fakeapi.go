// Package fakeapi serves an in-memory copy of the classifieds backend
// contract over HTTP, for tests that exercise the real client end to end.
package fakeapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tyres_bot/internal/model"
)

// PhoneCode is the confirmation code every phone verification expects.
const PhoneCode = "123456"

type user struct {
	id            string
	name          string
	email         string
	password      string
	token         string
	city          string
	phone         string
	phoneVerified bool
}

// Server is a fake backend. All methods are safe for concurrent use.
type Server struct {
	srv *httptest.Server

	mu        sync.Mutex
	tyres     []model.Tyre
	users     []user
	favorites map[string][]string
	failing   bool
	hits      map[string]int
	queries   []url.Values
}

// New starts a Server holding tyres.
func New(tyres []model.Tyre) *Server {
	s := &Server{
		tyres:     slices.Clone(tyres),
		favorites: make(map[string][]string),
		hits:      make(map[string]int),
	}
	s.srv = httptest.NewServer(s.routes())
	return s
}

// URL is the base URL of the server.
func (s *Server) URL() string { return s.srv.URL }

// Client returns an HTTP client for the server.
func (s *Server) Client() *http.Client { return s.srv.Client() }

// Close shuts the server down.
func (s *Server) Close() { s.srv.Close() }

// AddUser registers credentials that log in as userID with token.
func (s *Server) AddUser(userID, email, password, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, user{id: userID, name: "User " + userID, email: email, password: password, token: token})
}

// Add appends listings to the catalogue.
func (s *Server) Add(tyres ...model.Tyre) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tyres = append(s.tyres, tyres...)
}

// SetFailing makes every route answer 500 while on.
func (s *Server) SetFailing(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = on
}

// Hits returns how many requests reached "METHOD /path".
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// ListQueries returns the query of every public list request, in order.
func (s *Server) ListQueries() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.queries)
}

// Tyre returns the stored listing with id.
func (s *Server) Tyre(id string) (model.Tyre, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tyres {
		if t.ID == id {
			return t, true
		}
	}
	return model.Tyre{}, false
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.count)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)

		r.Get("/tyres", s.handleList)
		r.With(s.auth).Post("/tyres", s.handleCreate)
		r.With(s.auth).Get("/tyres/my", s.handleMine)
		r.Post("/tyres/by-ids", s.handleByIDs)
		r.Get("/tyres/{id}", s.handleGet)
		r.With(s.auth).Patch("/tyres/{id}", s.handleUpdate)
		r.With(s.auth).Patch("/tyres/{id}/renew", s.handleRenew)
		r.With(s.auth).Patch("/tyres/{id}/activate", s.handleActivate)
		r.With(s.auth).Put("/tyres/{id}", s.handleDeactivate)
		r.With(s.auth).Delete("/tyres/{id}", s.handleDelete)

		r.With(s.auth).Get("/favorites/ids", s.handleFavoriteIDs)
		r.With(s.auth).Post("/favorites", s.handleAddFavorite)
		r.With(s.auth).Delete("/favorites/{id}", s.handleRemoveFavorite)

		r.Route("/user", func(r chi.Router) {
			r.Use(s.auth)
			r.Get("/profile", s.handleProfile)
			r.Put("/profile", s.handleUpdateProfile)
			r.Put("/updatePassword", s.handleChangePassword)
		})
		r.With(s.auth).Post("/phone/send", s.handleSendPhone)
		r.With(s.auth).Post("/phone/verify", s.handleVerifyPhone)

		r.Route("/admin/stats", func(r chi.Router) {
			r.Use(s.auth)
			r.Get("/", s.handleStats)
			r.Get("/daily-listings", s.handleDaily)
			r.Get("/daily-users", s.handleDaily)
			r.Get("/listing-categories", s.handleCategories)
			r.Get("/listing-status", s.handleStatus)
		})
	})
	return r
}

type ctxKey struct{}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.Method+" "+r.URL.Path]++
		failing := s.failing
		s.mu.Unlock()

		if failing {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "maintenance"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		var uid string
		for _, u := range s.users {
			if token != "" && u.token == token {
				uid = u.id
			}
		}
		s.mu.Unlock()

		if uid == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Неавторизований доступ"})
			return
		}
		next.ServeHTTP(w, r.WithContext(contextWithUser(r, uid)))
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad request"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.email == req.Email && u.password == req.Password {
			writeJSON(w, http.StatusOK, map[string]string{"token": u.token, "userId": u.id, "name": u.name, "email": u.email})
			return
		}
	}
	writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Невірний email або пароль"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.mu.Lock()
	s.queries = append(s.queries, q)
	var matched []model.Tyre
	for _, t := range s.tyres {
		if !t.IsDeleted && matches(t, q) {
			matched = append(matched, t)
		}
	}
	s.mu.Unlock()

	sortTyres(matched, model.SortKey(q.Get("sort")))
	writePage(w, matched, q)
}

func (s *Server) handleMine(w http.ResponseWriter, r *http.Request) {
	uid := userFrom(r)
	s.mu.Lock()
	var mine []model.Tyre
	for _, t := range s.tyres {
		if t.UserID == uid {
			mine = append(mine, t)
		}
	}
	s.mu.Unlock()

	sortTyres(mine, model.SortNewest)
	writePage(w, mine, r.URL.Query())
}

func (s *Server) handleByIDs(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad request"})
		return
	}

	s.mu.Lock()
	var out []model.Tyre
	for _, t := range s.tyres {
		if slices.Contains(req.IDs, t.ID) {
			out = append(out, t)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"tyres": out})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	t, ok := s.Tyre(chi.URLParam(r, "id"))
	if !ok || t.IsDeleted {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Оголошення не знайдено"})
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var d map[string]string
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil || d["brand"] == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Обов’язкове поле: brand"})
		return
	}
	uid := userFrom(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	if u := s.userLocked(uid); u == nil || !u.phoneVerified {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "Підтвердіть номер телефону"})
		return
	}
	now := time.Now().UTC().Truncate(time.Second)
	t := model.Tyre{
		ID:              fmt.Sprintf("new-%02d", len(s.tyres)),
		UserID:          uid,
		IsActive:        true,
		CreatedAt:       now,
		ExpiresAt:       now.Add(30 * 24 * time.Hour),
		WillBeDeletedAt: now.Add(60 * 24 * time.Hour),
	}
	applyDraft(&t, d)
	s.tyres = append(s.tyres, t)
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var d map[string]string
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad request"})
		return
	}
	s.mutateOwn(w, r, func(t *model.Tyre) { applyDraft(t, d) })
}

func (s *Server) handleRenew(w http.ResponseWriter, r *http.Request) {
	s.mutateOwn(w, r, func(t *model.Tyre) {
		now := time.Now().UTC()
		t.ExpiresAt = now.Add(30 * 24 * time.Hour)
		t.WillBeDeletedAt = now.Add(60 * 24 * time.Hour)
		t.IsExpired = false
		t.IsActive = true
	})
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	s.mutateOwn(w, r, func(t *model.Tyre) {
		t.IsActive = true
		t.IsDeleted = false
	})
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	s.mutateOwn(w, r, func(t *model.Tyre) {
		t.IsActive = false
		t.WillBeDeletedAt = time.Now().UTC().Add(-time.Minute)
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.mutateOwn(w, r, func(t *model.Tyre) {
		t.IsDeleted = true
		t.IsActive = false
	})
}

func (s *Server) mutateOwn(w http.ResponseWriter, r *http.Request, fn func(t *model.Tyre)) {
	id, uid := chi.URLParam(r, "id"), userFrom(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tyres {
		if s.tyres[i].ID != id {
			continue
		}
		if s.tyres[i].UserID != uid {
			writeJSON(w, http.StatusForbidden, map[string]string{"message": "Немає доступу"})
			return
		}
		fn(&s.tyres[i])
		writeJSON(w, http.StatusOK, s.tyres[i])
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Оголошення не знайдено"})
}

func (s *Server) userLocked(id string) *user {
	for i := range s.users {
		if s.users[i].id == id {
			return &s.users[i]
		}
	}
	return nil
}

func (s *Server) profileLocked(u *user) model.Profile {
	return model.Profile{
		ID:            u.id,
		Name:          u.name,
		Email:         u.email,
		City:          u.city,
		Phone:         u.phone,
		PhoneVerified: u.phoneVerified,
	}
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.profileLocked(s.userLocked(userFrom(r))))
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req model.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Будь ласка, введіть ім'я"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userLocked(userFrom(r))
	u.name, u.city = req.Name, req.City
	if req.Phone != u.phone {
		u.phone, u.phoneVerified = req.Phone, false
	}
	writeJSON(w, http.StatusOK, s.profileLocked(u))
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Current string `json:"currentPassword"`
		New     string `json:"newPassword"`
		Confirm string `json:"confirmPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.New == "" || req.New != req.Confirm {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Паролі не співпадають"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userLocked(userFrom(r))
	if u.password != req.Current {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Невірний поточний пароль"})
		return
	}
	u.password = req.New
	writeJSON(w, http.StatusOK, map[string]string{"message": "Пароль змінено"})
}

func (s *Server) handleSendPhone(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Phone == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Вкажіть номер телефону"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userLocked(userFrom(r))
	u.phone, u.phoneVerified = req.Phone, false
	writeJSON(w, http.StatusOK, map[string]string{"message": "Код надіслано"})
}

func (s *Server) handleVerifyPhone(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code != PhoneCode {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Невірний код"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userLocked(userFrom(r))
	if u.phone == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Спочатку надішліть код"})
		return
	}
	u.phoneVerified = true
	writeJSON(w, http.StatusOK, map[string]string{"message": "Телефон підтверджено"})
}

func (s *Server) handleFavoriteIDs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	ids := slices.Clone(s.favorites[userFrom(r)])
	s.mu.Unlock()
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TyreID string `json:"tyreId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TyreID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "tyreId is required"})
		return
	}
	uid := userFrom(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.favorites[uid], req.TyreID) {
		s.favorites[uid] = append(s.favorites[uid], req.TyreID)
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "ok"})
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	id, uid := chi.URLParam(r, "id"), userFrom(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.favorites[uid] = slices.DeleteFunc(s.favorites[uid], func(v string) bool { return v == id })
	writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]int{"users": len(s.users), "tyres": len(s.tyres)})
}

func (s *Server) handleDaily(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[string]int{}
	for _, t := range s.tyres {
		counts[t.CreatedAt.Format("2006-01-02")]++
	}
	var out []model.DailyCount
	for d, n := range counts {
		out = append(out, model.DailyCount{Date: d, Count: n})
	}
	slices.SortFunc(out, func(a, b model.DailyCount) int { return strings.Compare(a.Date, b.Date) })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, groupBy(s.tyres, func(t model.Tyre) string { return t.Season }))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, groupBy(s.tyres, func(t model.Tyre) string {
		switch {
		case t.IsDeleted:
			return "deleted"
		case t.IsActive:
			return "active"
		}
		return "inactive"
	}))
}

// applyDraft copies the listing form fields in d onto t.
func applyDraft(t *model.Tyre, d map[string]string) {
	for k, v := range d {
		switch k {
		case "brand":
			t.Brand = v
		case "model":
			t.Model = v
		case "width":
			t.Width = v
		case "height":
			t.Height = v
		case "radius":
			t.Radius = v
		case "title":
			t.Title = v
		case "season":
			t.Season = v
		case "vehicle":
			t.Vehicle = v
		case "condition":
			t.Condition = v
		case "city":
			t.City = v
		case "contact":
			t.Contact = v
		case "description":
			t.Description = v
		case "treadDepth":
			t.TreadDepth = v
		case "treadPercent":
			t.TreadPercent = v
		case "quantity":
			t.Quantity, _ = strconv.Atoi(v)
		case "year":
			t.Year, _ = strconv.Atoi(v)
		case "price":
			t.Price, _ = strconv.ParseFloat(v, 64)
		}
	}
}

func groupBy(tyres []model.Tyre, key func(model.Tyre) string) []model.NamedCount {
	counts := map[string]int{}
	for _, t := range tyres {
		counts[key(t)]++
	}
	var out []model.NamedCount
	for k, n := range counts {
		out = append(out, model.NamedCount{Name: k, Value: n})
	}
	slices.SortFunc(out, func(a, b model.NamedCount) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func matches(t model.Tyre, q url.Values) bool {
	fieldValue := map[model.Field]string{
		model.FieldWidth:     t.Width,
		model.FieldHeight:    t.Height,
		model.FieldRadius:    t.Radius,
		model.FieldSeason:    t.Season,
		model.FieldVehicle:   t.Vehicle,
		model.FieldCondition: t.Condition,
	}
	for _, f := range model.Fields() {
		want := q.Get(string(f))
		if want == "" {
			continue
		}
		if f == model.FieldTitle {
			hay := strings.ToLower(t.Title + " " + t.Brand + " " + t.Model)
			if !strings.Contains(hay, strings.ToLower(want)) {
				return false
			}
			continue
		}
		if fieldValue[f] != want {
			return false
		}
	}
	return true
}

func sortTyres(tyres []model.Tyre, key model.SortKey) {
	slices.SortStableFunc(tyres, func(a, b model.Tyre) int {
		switch key {
		case model.SortPriceAsc:
			return cmpFloat(a.Price, b.Price)
		case model.SortPriceDesc:
			return cmpFloat(b.Price, a.Price)
		case model.SortOldest:
			return a.CreatedAt.Compare(b.CreatedAt)
		case model.SortNewest:
			return b.CreatedAt.Compare(a.CreatedAt)
		}
		return 0
	})
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func writePage(w http.ResponseWriter, tyres []model.Tyre, q url.Values) {
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = model.DefaultPageSize
	}
	start := min((page-1)*limit, len(tyres))
	end := min(start+limit, len(tyres))
	items := tyres[start:end]
	if items == nil {
		items = []model.Tyre{}
	}
	writeJSON(w, http.StatusOK, model.Page{Items: items, Total: len(tyres)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// MakeTyres builds n live listings of one size, newest first by id order.
// ids are "<prefix>-00", "<prefix>-01" and so on.
func MakeTyres(prefix string, n int, width string) []model.Tyre {
	base := time.Now().UTC().Truncate(time.Second)
	out := make([]model.Tyre, 0, n)
	for i := 0; i < n; i++ {
		created := base.Add(-time.Duration(i) * time.Hour)
		out = append(out, model.Tyre{
			ID:              fmt.Sprintf("%s-%02d", prefix, i),
			Brand:           "Michelin",
			Model:           "Alpin",
			Width:           width,
			Height:          "65",
			Radius:          "15",
			Title:           "Michelin Alpin",
			Season:          "Зима",
			Vehicle:         "Легковий",
			Condition:       "Б/У",
			Year:            2020,
			TreadPercent:    "70",
			Contact:         "+380501112233",
			Price:           float64(1000 + 100*i),
			City:            "Київ",
			Quantity:        4,
			IsActive:        true,
			CreatedAt:       created,
			ExpiresAt:       base.Add(30 * 24 * time.Hour),
			WillBeDeletedAt: base.Add(60 * 24 * time.Hour),
		})
	}
	return out
}

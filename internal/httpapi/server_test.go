package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"songcatalog/internal/app/songs"
	"songcatalog/internal/auth"
	"songcatalog/internal/models"
)

type stubReader struct {
	song    models.Song
	songErr error

	found    []models.Song
	findErr  error
	criteria map[string]string
}

func (s *stubReader) FindByID(_ context.Context, id int64) (models.Song, error) {
	if s.songErr != nil {
		return models.Song{}, s.songErr
	}
	song := s.song
	song.ID = id
	return song, nil
}

func (s *stubReader) Find(_ context.Context, criteria map[string]string) ([]models.Song, error) {
	s.criteria = criteria
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.found, nil
}

type stubWriter struct {
	createID  int64
	createErr error
	created   models.Song

	updateVersion int
	updateErr     error
	lastID        int64
	lastVersion   int
	lastChanges   models.Changes
	updateCalls   int

	deleteErr  error
	deletedIDs []int64
}

func (s *stubWriter) Create(_ context.Context, song models.Song) (int64, error) {
	s.created = song
	if s.createErr != nil {
		return 0, s.createErr
	}
	return s.createID, nil
}

func (s *stubWriter) Update(_ context.Context, id int64, changes models.Changes, version int) (int, error) {
	s.updateCalls++
	s.lastID = id
	s.lastChanges = changes
	s.lastVersion = version
	if s.updateErr != nil {
		return 0, s.updateErr
	}
	return s.updateVersion, nil
}

func (s *stubWriter) Delete(_ context.Context, id int64) (bool, error) {
	s.deletedIDs = append(s.deletedIDs, id)
	if s.deleteErr != nil {
		return false, s.deleteErr
	}
	return true, nil
}

type stubLogin struct {
	token auth.Token
	err   error
}

func (s stubLogin) Login(context.Context, string, string) (auth.Token, error) {
	return s.token, s.err
}

type stubHealth struct {
	err error
}

func (s stubHealth) Ping(context.Context) error {
	return s.err
}

type testServer struct {
	handler http.Handler
	reader  *stubReader
	writer  *stubWriter
	tokens  *auth.TokenManager
}

func newTestServer(t *testing.T, reader *stubReader, writer *stubWriter) *testServer {
	t.Helper()
	if reader == nil {
		reader = &stubReader{}
	}
	if writer == nil {
		writer = &stubWriter{}
	}
	tokens := auth.NewTokenManager("test-secret-0123456789", "songcatalog", time.Hour)
	server := New(Deps{
		Reader:   reader,
		Writer:   writer,
		Login:    stubLogin{err: auth.ErrInvalidCredentials},
		Health:   stubHealth{},
		Verifier: tokens,
		Logger:   zerolog.Nop(),
	})
	return &testServer{handler: server.Routes(), reader: reader, writer: writer, tokens: tokens}
}

func (ts *testServer) do(t *testing.T, req *http.Request, roles ...string) *httptest.ResponseRecorder {
	t.Helper()
	if len(roles) > 0 {
		token, err := ts.tokens.Issue("tester", roles)
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token.Value)
	}
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return bytes.NewReader(b)
}

func TestHandleFindByIDReturnsHAL(t *testing.T) {
	reader := &stubReader{song: models.Song{
		Version:  3,
		Rating:   5,
		Kind:     models.KindCD,
		Title:    "Imagine",
		Keywords: []string{"classic"},
		Artists:  []models.Artist{{ID: 1, Name: "John Lennon"}},
	}}
	ts := newTestServer(t, reader, nil)

	rr := ts.do(t, httptest.NewRequest(http.MethodGet, "/rest/7", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if etag := rr.Header().Get("ETag"); etag != `"3"` {
		t.Fatalf(`expected ETag "3", got %s`, etag)
	}

	var payload map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	for _, hidden := range []string{"id", "version", "createdAt", "updatedAt"} {
		if _, ok := payload[hidden]; ok {
			t.Fatalf("expected %q to be absent from body: %v", hidden, payload)
		}
	}
	if payload["title"] != "Imagine" {
		t.Fatalf("unexpected title: %v", payload["title"])
	}

	linksPayload, _ := payload["_links"].(map[string]any)
	self, _ := linksPayload["self"].(map[string]any)
	if self["href"] != "http://example.com/rest/7" {
		t.Fatalf("unexpected self link: %v", linksPayload)
	}
	for _, rel := range []string{"list", "add", "update", "remove"} {
		if _, ok := linksPayload[rel]; !ok {
			t.Fatalf("expected %q link, got %v", rel, linksPayload)
		}
	}
}

func TestHandleFindByIDNotModified(t *testing.T) {
	ts := newTestServer(t, &stubReader{song: models.Song{Version: 2, Title: "Imagine"}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/rest/7", nil)
	req.Header.Set("If-None-Match", `"2"`)
	rr := ts.do(t, req)

	if rr.Code != http.StatusNotModified {
		t.Fatalf("expected status 304, got %d", rr.Code)
	}
	if rr.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/rest/7", nil)
	req.Header.Set("If-None-Match", `"1"`)
	if rr := ts.do(t, req); rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 for stale If-None-Match, got %d", rr.Code)
	}
}

func TestHandleFindByIDNotFound(t *testing.T) {
	ts := newTestServer(t, &stubReader{songErr: songs.ErrNotFound}, nil)

	rr := ts.do(t, httptest.NewRequest(http.MethodGet, "/rest/99", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestHandleFindByIDNotAcceptable(t *testing.T) {
	ts := newTestServer(t, &stubReader{song: models.Song{Title: "Imagine"}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/rest/1", nil)
	req.Header.Set("Accept", "application/xml")
	rr := ts.do(t, req)

	if rr.Code != http.StatusNotAcceptable {
		t.Fatalf("expected status 406, got %d", rr.Code)
	}
}

func TestHandleFindPassesCriteria(t *testing.T) {
	reader := &stubReader{found: []models.Song{
		{ID: 1, Title: "Ain't No Mountain High Enough"},
		{ID: 2, Title: "Yesterday"},
	}}
	ts := newTestServer(t, reader, nil)

	rr := ts.do(t, httptest.NewRequest(http.MethodGet, "/rest?title=a", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if reader.criteria["title"] != "a" || len(reader.criteria) != 1 {
		t.Fatalf("unexpected criteria: %v", reader.criteria)
	}

	var payload songsModel
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	got := payload.Embedded.Songs
	if len(got) != 2 || got[1].Links.Self.Href != "http://example.com/rest/2" {
		t.Fatalf("unexpected songs payload: %#v", got)
	}
	if got[0].Links.Update != nil {
		t.Fatalf("expected only a self link in list entries, got %#v", got[0].Links)
	}
}

func TestHandleFindErrors(t *testing.T) {
	tests := []struct {
		name   string
		reader *stubReader
		want   int
	}{
		{name: "empty result", reader: &stubReader{}, want: http.StatusNotFound},
		{name: "invalid criteria", reader: &stubReader{findErr: &songs.InvalidCriteriaError{Key: "unknownKey"}}, want: http.StatusBadRequest},
		{name: "infrastructure", reader: &stubReader{findErr: errors.New("connection refused")}, want: http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t, tc.reader, nil)
			rr := ts.do(t, httptest.NewRequest(http.MethodGet, "/rest?unknownKey=x", nil))
			if rr.Code != tc.want {
				t.Fatalf("expected status %d, got %d", tc.want, rr.Code)
			}
			if strings.Contains(rr.Body.String(), "connection refused") {
				t.Fatalf("internal error leaked: %s", rr.Body.String())
			}
		})
	}
}

func TestHandleCreateRoles(t *testing.T) {
	body := songRequest{Title: "Imagine", Rating: 5, Kind: models.KindCD}

	tests := []struct {
		name  string
		roles []string
		want  int
	}{
		{name: "anonymous", want: http.StatusUnauthorized},
		{name: "customer", roles: []string{auth.RoleCustomer}, want: http.StatusForbidden},
		{name: "staff", roles: []string{auth.RoleStaff}, want: http.StatusCreated},
		{name: "admin", roles: []string{auth.RoleAdmin, auth.RoleStaff}, want: http.StatusCreated},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t, nil, &stubWriter{createID: 42})
			rr := ts.do(t, httptest.NewRequest(http.MethodPost, "/rest", jsonBody(t, body)), tc.roles...)
			if rr.Code != tc.want {
				t.Fatalf("expected status %d, got %d", tc.want, rr.Code)
			}
		})
	}
}

func TestHandleCreateSuccess(t *testing.T) {
	writer := &stubWriter{createID: 42}
	ts := newTestServer(t, nil, writer)

	body := songRequest{
		Title:       "Imagine",
		Rating:      5,
		Kind:        models.KindCD,
		ReleaseDate: "1971-10-11",
		Keywords:    []string{"classic"},
		Artists:     []artistRequest{{Name: "John Lennon"}},
	}
	rr := ts.do(t, httptest.NewRequest(http.MethodPost, "/rest", jsonBody(t, body)), auth.RoleAdmin)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if loc := rr.Header().Get("Location"); loc != "http://example.com/rest/42" {
		t.Fatalf("unexpected Location: %q", loc)
	}
	if writer.created.Title != "Imagine" || len(writer.created.Artists) != 1 || writer.created.Artists[0].Name != "John Lennon" {
		t.Fatalf("unexpected created song: %#v", writer.created)
	}
}

func TestHandleCreateValidation(t *testing.T) {
	writer := &stubWriter{}
	ts := newTestServer(t, nil, writer)

	body := map[string]any{
		"title":       "Imagine",
		"rating":      9,
		"kind":        "VINYL",
		"releaseDate": "11.10.1971",
		"keywords":    []string{"a", "a"},
	}
	rr := ts.do(t, httptest.NewRequest(http.MethodPost, "/rest", jsonBody(t, body)), auth.RoleAdmin)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	var payload errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	for _, field := range []string{"rating", "kind", "releaseDate", "keywords"} {
		if _, ok := payload.Fields[field]; !ok {
			t.Fatalf("expected field error for %q, got %v", field, payload.Fields)
		}
	}
	if writer.created.Title != "" {
		t.Fatalf("writer should not be called on invalid input")
	}
}

func TestHandleCreateRejectsKeywordWithComma(t *testing.T) {
	writer := &stubWriter{}
	ts := newTestServer(t, nil, writer)

	body := songRequest{Title: "Imagine", Keywords: []string{"live", "rock, pop"}}
	rr := ts.do(t, httptest.NewRequest(http.MethodPost, "/rest", jsonBody(t, body)), auth.RoleAdmin)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	var payload errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, ok := payload.Fields["keywords[1]"]; !ok {
		t.Fatalf("expected field error for keywords[1], got %v", payload.Fields)
	}
	if writer.created.Title != "" {
		t.Fatalf("writer should not be called on invalid input")
	}
}

func TestHandleCreateConflicts(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "title", err: &songs.TitleExistsError{Title: "Imagine"}, want: http.StatusUnprocessableEntity},
		{name: "artist", err: &songs.ArtistExistsError{Name: "John Lennon"}, want: http.StatusUnprocessableEntity},
		{name: "keyword", err: &songs.KeywordInvalidError{Keyword: "rock,pop"}, want: http.StatusBadRequest},
		{name: "infrastructure", err: errors.New("db down"), want: http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t, nil, &stubWriter{createErr: tc.err})
			body := songRequest{Title: "Imagine"}
			rr := ts.do(t, httptest.NewRequest(http.MethodPost, "/rest", jsonBody(t, body)), auth.RoleStaff)
			if rr.Code != tc.want {
				t.Fatalf("expected status %d, got %d", tc.want, rr.Code)
			}
		})
	}
}

func TestHandleUpdate(t *testing.T) {
	rating := 4
	body := songUpdateRequest{Rating: &rating}

	tests := []struct {
		name      string
		ifMatch   string
		writer    *stubWriter
		want      int
		wantCalls int
	}{
		{name: "missing If-Match", writer: &stubWriter{}, want: http.StatusPreconditionRequired},
		{name: "malformed version", ifMatch: "1", writer: &stubWriter{}, want: http.StatusPreconditionFailed},
		{name: "outdated version", ifMatch: `"0"`, writer: &stubWriter{updateErr: &songs.VersionOutdatedError{ID: 7}}, want: http.StatusPreconditionFailed, wantCalls: 1},
		{name: "missing song", ifMatch: `"0"`, writer: &stubWriter{updateErr: &songs.NotExistsError{ID: 7}}, want: http.StatusPreconditionFailed, wantCalls: 1},
		{name: "title taken", ifMatch: `"0"`, writer: &stubWriter{updateErr: &songs.TitleExistsError{Title: "x"}}, want: http.StatusUnprocessableEntity, wantCalls: 1},
		{name: "success", ifMatch: `"0"`, writer: &stubWriter{updateVersion: 1}, want: http.StatusNoContent, wantCalls: 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t, nil, tc.writer)
			req := httptest.NewRequest(http.MethodPut, "/rest/7", jsonBody(t, body))
			if tc.ifMatch != "" {
				req.Header.Set("If-Match", tc.ifMatch)
			}
			rr := ts.do(t, req, auth.RoleStaff)

			if rr.Code != tc.want {
				t.Fatalf("expected status %d, got %d", tc.want, rr.Code)
			}
			if tc.writer.updateCalls != tc.wantCalls {
				t.Fatalf("expected %d update calls, got %d", tc.wantCalls, tc.writer.updateCalls)
			}
		})
	}
}

func TestHandleUpdateSuccessHeaders(t *testing.T) {
	writer := &stubWriter{updateVersion: 4}
	ts := newTestServer(t, nil, writer)

	title := "Imagine (Remastered)"
	req := httptest.NewRequest(http.MethodPut, "/rest/7", jsonBody(t, songUpdateRequest{Title: &title}))
	req.Header.Set("If-Match", `"3"`)
	rr := ts.do(t, req, auth.RoleAdmin)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if etag := rr.Header().Get("ETag"); etag != `"4"` {
		t.Fatalf(`expected ETag "4", got %s`, etag)
	}
	if writer.lastID != 7 || writer.lastVersion != 3 {
		t.Fatalf("unexpected update call: id=%d version=%d", writer.lastID, writer.lastVersion)
	}
	if writer.lastChanges.Title == nil || *writer.lastChanges.Title != title || writer.lastChanges.Rating != nil {
		t.Fatalf("unexpected changes: %#v", writer.lastChanges)
	}
}

func TestHandleDeleteAdminOnly(t *testing.T) {
	writer := &stubWriter{}
	ts := newTestServer(t, nil, writer)

	rr := ts.do(t, httptest.NewRequest(http.MethodDelete, "/rest/7", nil), auth.RoleStaff)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 for staff, got %d", rr.Code)
	}

	rr = ts.do(t, httptest.NewRequest(http.MethodDelete, "/rest/7", nil), auth.RoleAdmin)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if len(writer.deletedIDs) != 1 || writer.deletedIDs[0] != 7 {
		t.Fatalf("unexpected deletes: %v", writer.deletedIDs)
	}
}

func TestInvalidTokenRejected(t *testing.T) {
	ts := newTestServer(t, &stubReader{song: models.Song{Title: "Imagine"}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/rest/1", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rr := ts.do(t, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestHandleLogin(t *testing.T) {
	server := New(Deps{
		Login:  stubLogin{token: auth.Token{Value: "signed", ExpiresIn: time.Hour, Roles: []string{auth.RoleAdmin}}},
		Logger: zerolog.Nop(),
	})
	handler := server.Routes()

	req := httptest.NewRequest(http.MethodPost, "/auth/login", jsonBody(t, loginRequest{Username: "admin", Password: "p"}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var payload tokenResponse
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Token != "signed" || payload.ExpiresIn != 3600 {
		t.Fatalf("unexpected token payload: %#v", payload)
	}
}

func TestHandleLoginRejected(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	rr := ts.do(t, httptest.NewRequest(http.MethodPost, "/auth/login", jsonBody(t, loginRequest{Username: "admin", Password: "wrong"})))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}

	rr = ts.do(t, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"admin"}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for missing password, got %d", rr.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	server := New(Deps{Health: stubHealth{err: errors.New("no route to host")}, Logger: zerolog.Nop()})
	handler := server.Routes()

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/liveness", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected liveness 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/readiness", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected readiness 503, got %d", rr.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	rr := ts.do(t, httptest.NewRequest(http.MethodGet, "/rest/abc", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON error, got %q", ct)
	}
}

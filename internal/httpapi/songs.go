package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"songcatalog/internal/app/songs"
	"songcatalog/internal/logging"
	"songcatalog/internal/models"
)

type link struct {
	Href string `json:"href"`
}

type links struct {
	Self   link  `json:"self"`
	List   *link `json:"list,omitempty"`
	Add    *link `json:"add,omitempty"`
	Update *link `json:"update,omitempty"`
	Remove *link `json:"remove,omitempty"`
}

type artistModel struct {
	Name string `json:"name"`
}

// songModel is the HAL representation of a song. Identity, version and
// timestamps travel in links and headers.
type songModel struct {
	Rating      int           `json:"rating"`
	Kind        models.Kind   `json:"kind,omitempty"`
	ReleaseDate string        `json:"releaseDate,omitempty"`
	Keywords    []string      `json:"keywords"`
	Title       string        `json:"title"`
	Artists     []artistModel `json:"artists"`
	Links       links         `json:"_links"`
}

type songsModel struct {
	Embedded struct {
		Songs []songModel `json:"songs"`
	} `json:"_embedded"`
}

type artistRequest struct {
	Name string `json:"name" validate:"required,max=64"`
}

type songRequest struct {
	Rating      int             `json:"rating" validate:"min=0,max=5"`
	Kind        models.Kind     `json:"kind" validate:"omitempty,oneof=CD MP3"`
	ReleaseDate string          `json:"releaseDate" validate:"omitempty,datetime=2006-01-02"`
	Keywords    []string        `json:"keywords" validate:"omitempty,unique,dive,required,excludes=0x2C"`
	Title       string          `json:"title" validate:"required,max=128"`
	Artists     []artistRequest `json:"artists" validate:"omitempty,dive"`
}

// songUpdateRequest carries the content fields only; artists are not replaced.
type songUpdateRequest struct {
	Rating      *int         `json:"rating" validate:"omitempty,min=0,max=5"`
	Kind        *models.Kind `json:"kind" validate:"omitempty,oneof=CD MP3"`
	ReleaseDate *string      `json:"releaseDate" validate:"omitempty,datetime=2006-01-02"`
	Keywords    []string     `json:"keywords" validate:"omitempty,unique,dive,required,excludes=0x2C"`
	Title       *string      `json:"title" validate:"omitempty,min=1,max=128"`
}

func (req songRequest) toSong() models.Song {
	song := models.Song{
		Rating:      req.Rating,
		Kind:        req.Kind,
		ReleaseDate: req.ReleaseDate,
		Keywords:    req.Keywords,
		Title:       req.Title,
	}
	for _, a := range req.Artists {
		song.Artists = append(song.Artists, models.Artist{Name: a.Name})
	}
	return song
}

func (req songUpdateRequest) toChanges() models.Changes {
	return models.Changes{
		Rating:      req.Rating,
		Kind:        req.Kind,
		ReleaseDate: req.ReleaseDate,
		Keywords:    req.Keywords,
		Title:       req.Title,
	}
}

func toModel(song models.Song, base string, all bool) songModel {
	self := base + "/" + strconv.FormatInt(song.ID, 10)
	l := links{Self: link{Href: self}}
	if all {
		l.List = &link{Href: base}
		l.Add = &link{Href: base}
		l.Update = &link{Href: self}
		l.Remove = &link{Href: self}
	}

	keywords := song.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	artists := make([]artistModel, 0, len(song.Artists))
	for _, a := range song.Artists {
		artists = append(artists, artistModel{Name: a.Name})
	}

	return songModel{
		Rating:      song.Rating,
		Kind:        song.Kind,
		ReleaseDate: song.ReleaseDate,
		Keywords:    keywords,
		Title:       song.Title,
		Artists:     artists,
		Links:       l,
	}
}

func (s *Server) handleFindByID(w http.ResponseWriter, r *http.Request) {
	if !acceptsJSON(r) {
		writeJSON(w, http.StatusNotAcceptable, errorResponse{Error: "only JSON representations are available"})
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	song, err := s.reader.FindByID(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	etag := songs.FormatVersionToken(song.Version)
	if r.Header.Get("If-None-Match") == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	writeJSON(w, http.StatusOK, toModel(song, baseURI(r), true))
}

// handleFind treats every query parameter as a search criterion. An empty
// result is reported as 404.
func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	if !acceptsJSON(r) {
		writeJSON(w, http.StatusNotAcceptable, errorResponse{Error: "only JSON representations are available"})
		return
	}

	criteria := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			criteria[key] = values[0]
		}
	}

	found, err := s.reader.Find(r.Context(), criteria)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if len(found) == 0 {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no songs match the criteria"})
		return
	}

	base := baseURI(r)
	var body songsModel
	body.Embedded.Songs = make([]songModel, 0, len(found))
	for _, song := range found {
		body.Embedded.Songs = append(body.Embedded.Songs, toModel(song, base, false))
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req songRequest
	if !s.decode(w, r, &req) {
		return
	}

	id, err := s.writer.Create(r.Context(), req.toSong())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", baseURI(r)+"/"+strconv.FormatInt(id, 10))
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	token := r.Header.Get("If-Match")
	if token == "" {
		writeJSON(w, http.StatusPreconditionRequired, errorResponse{Error: `header "If-Match" is missing`})
		return
	}
	version, err := songs.ParseVersionToken(token)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	var req songUpdateRequest
	if !s.decode(w, r, &req) {
		return
	}

	newVersion, err := s.writer.Update(r.Context(), id, req.toChanges(), version)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("ETag", songs.FormatVersionToken(newVersion))
	w.WriteHeader(http.StatusNoContent)
}

// handleDelete answers 204 whether or not the song existed.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if _, err := s.writer.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid id parameter"})
		return 0, false
	}
	return id, true
}

// decode reads a JSON body into dst and validates it, answering 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON payload"})
		return false
	}

	if err := s.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			logging.FromContext(r.Context(), s.logger).Error().Err(err).Msg("validate request")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
			return false
		}
		fields := make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			_, field, _ := strings.Cut(fe.Namespace(), ".")
			fields[field] = fe.Tag()
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request data", Fields: fields})
		return false
	}
	return true
}

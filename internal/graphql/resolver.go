// Package graphql serves the song catalog over GraphQL.
package graphql

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	graphqlgo "github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
	"github.com/rs/zerolog"

	"songcatalog/internal/auth"
	"songcatalog/internal/models"
)

//go:embed schema.graphql
var schemaSDL string

// SongReader describes the song lookups used by the resolvers.
type SongReader interface {
	FindByID(ctx context.Context, id int64) (models.Song, error)
	Find(ctx context.Context, criteria map[string]string) ([]models.Song, error)
}

// SongWriter describes the song mutations used by the resolvers.
type SongWriter interface {
	Create(ctx context.Context, song models.Song) (int64, error)
	Update(ctx context.Context, id int64, changes models.Changes, version int) (int, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// LoginService issues access tokens.
type LoginService interface {
	Login(ctx context.Context, username, password string) (auth.Token, error)
}

// Resolver is the root of the query and mutation types.
type Resolver struct {
	reader   SongReader
	writer   SongWriter
	login    LoginService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewSchema parses the embedded schema against a Resolver.
func NewSchema(reader SongReader, writer SongWriter, login LoginService, logger zerolog.Logger) (*graphqlgo.Schema, error) {
	logger = logger.With().Str("component", "graphql").Logger()
	resolver := &Resolver{
		reader:   reader,
		writer:   writer,
		login:    login,
		validate: newValidator(),
		logger:   logger,
	}
	schema, err := graphqlgo.ParseSchema(schemaSDL, resolver,
		graphqlgo.MaxDepth(15),
		graphqlgo.Logger(panicLogger{logger: logger}),
	)
	if err != nil {
		return nil, fmt.Errorf("parse graphql schema: %w", err)
	}
	return schema, nil
}

// Handler serves POSTed GraphQL requests against schema.
func Handler(schema *graphqlgo.Schema) http.Handler {
	return &relay.Handler{Schema: schema}
}

type panicLogger struct {
	logger zerolog.Logger
}

func (l panicLogger) LogPanic(_ context.Context, value interface{}) {
	l.logger.Error().Interface("panic", value).Msg("graphql resolver panicked")
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

type artistInput struct {
	Name string `json:"name" validate:"required,max=64"`
}

type songInput struct {
	Rating      int32          `json:"rating" validate:"min=0,max=5"`
	Kind        *string        `json:"kind" validate:"omitempty,oneof=CD MP3"`
	ReleaseDate *string        `json:"releaseDate" validate:"omitempty,datetime=2006-01-02"`
	Keywords    *[]string      `json:"keywords" validate:"omitempty,unique,dive,required,excludes=0x2C"`
	Title       string         `json:"title" validate:"required,max=128"`
	Artists     *[]artistInput `json:"artists" validate:"omitempty,dive"`
}

type songUpdateInput struct {
	ID          graphqlgo.ID `json:"id" validate:"required"`
	Version     int32        `json:"version" validate:"min=0"`
	Rating      *int32       `json:"rating" validate:"omitempty,min=0,max=5"`
	Kind        *string      `json:"kind" validate:"omitempty,oneof=CD MP3"`
	ReleaseDate *string      `json:"releaseDate" validate:"omitempty,datetime=2006-01-02"`
	Keywords    *[]string    `json:"keywords" validate:"omitempty,unique,dive,required,excludes=0x2C"`
	Title       *string      `json:"title" validate:"omitempty,min=1,max=128"`
}

func (in songInput) toSong() models.Song {
	song := models.Song{
		Rating: int(in.Rating),
		Title:  in.Title,
	}
	if in.Kind != nil {
		song.Kind = models.Kind(*in.Kind)
	}
	if in.ReleaseDate != nil {
		song.ReleaseDate = *in.ReleaseDate
	}
	if in.Keywords != nil {
		song.Keywords = *in.Keywords
	}
	if in.Artists != nil {
		for _, a := range *in.Artists {
			song.Artists = append(song.Artists, models.Artist{Name: a.Name})
		}
	}
	return song
}

func (in songUpdateInput) toChanges() models.Changes {
	changes := models.Changes{
		ReleaseDate: in.ReleaseDate,
		Title:       in.Title,
	}
	if in.Rating != nil {
		rating := int(*in.Rating)
		changes.Rating = &rating
	}
	if in.Kind != nil {
		kind := models.Kind(*in.Kind)
		changes.Kind = &kind
	}
	if in.Keywords != nil {
		changes.Keywords = *in.Keywords
	}
	return changes
}

func parseID(id graphqlgo.ID) (int64, error) {
	v, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil || v <= 0 {
		return 0, badUserInput("%q is not a valid song id", string(id))
	}
	return v, nil
}

// Song resolves the song with the given id.
func (r *Resolver) Song(ctx context.Context, args struct{ ID graphqlgo.ID }) (*songResolver, error) {
	id, err := parseID(args.ID)
	if err != nil {
		return nil, err
	}

	song, err := r.reader.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, badUserInput("no song with id %d was found", id)
		}
		return nil, translate(ctx, r.logger, err)
	}
	return &songResolver{song: song}, nil
}

// Songs resolves the songs whose title contains title, or all songs.
func (r *Resolver) Songs(ctx context.Context, args struct{ Title *string }) ([]*songResolver, error) {
	criteria := map[string]string{}
	if args.Title != nil {
		criteria[models.FieldTitle] = *args.Title
	}

	found, err := r.reader.Find(ctx, criteria)
	if err != nil {
		return nil, translate(ctx, r.logger, err)
	}
	if len(found) == 0 {
		return nil, badUserInput("no songs were found")
	}

	out := make([]*songResolver, 0, len(found))
	for _, song := range found {
		out = append(out, &songResolver{song: song})
	}
	return out, nil
}

// Create stores a new song and resolves its id.
func (r *Resolver) Create(ctx context.Context, args struct{ Input songInput }) (graphqlgo.ID, error) {
	if err := requireRoles(ctx, auth.RoleAdmin, auth.RoleStaff); err != nil {
		return "", err
	}
	if err := r.validate.Struct(args.Input); err != nil {
		return "", translate(ctx, r.logger, err)
	}

	id, err := r.writer.Create(ctx, args.Input.toSong())
	if err != nil {
		return "", translate(ctx, r.logger, err)
	}
	return graphqlgo.ID(strconv.FormatInt(id, 10)), nil
}

// Update applies the input to the stored song and resolves the new version.
func (r *Resolver) Update(ctx context.Context, args struct{ Input songUpdateInput }) (int32, error) {
	if err := requireRoles(ctx, auth.RoleAdmin, auth.RoleStaff); err != nil {
		return 0, err
	}
	if err := r.validate.Struct(args.Input); err != nil {
		return 0, translate(ctx, r.logger, err)
	}
	id, err := parseID(args.Input.ID)
	if err != nil {
		return 0, err
	}

	version, err := r.writer.Update(ctx, id, args.Input.toChanges(), int(args.Input.Version))
	if err != nil {
		return 0, translate(ctx, r.logger, err)
	}
	return int32(version), nil
}

// Delete removes a song and reports whether it existed.
func (r *Resolver) Delete(ctx context.Context, args struct{ ID graphqlgo.ID }) (bool, error) {
	if err := requireRoles(ctx, auth.RoleAdmin); err != nil {
		return false, err
	}
	id, err := parseID(args.ID)
	if err != nil {
		return false, err
	}

	deleted, err := r.writer.Delete(ctx, id)
	if err != nil {
		return false, translate(ctx, r.logger, err)
	}
	return deleted, nil
}

// Login exchanges credentials for an access token.
func (r *Resolver) Login(ctx context.Context, args struct {
	Username string
	Password string
}) (*loginResolver, error) {
	token, err := r.login.Login(ctx, args.Username, args.Password)
	if err != nil {
		return nil, translate(ctx, r.logger, err)
	}
	return &loginResolver{token: token}, nil
}

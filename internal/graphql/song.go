package graphql

import (
	"strconv"

	graphqlgo "github.com/graph-gophers/graphql-go"

	"songcatalog/internal/auth"
	"songcatalog/internal/models"
)

type songResolver struct {
	song models.Song
}

func (r *songResolver) ID() graphqlgo.ID {
	return graphqlgo.ID(strconv.FormatInt(r.song.ID, 10))
}

func (r *songResolver) Version() int32 {
	return int32(r.song.Version)
}

func (r *songResolver) Rating() int32 {
	return int32(r.song.Rating)
}

func (r *songResolver) Kind() *string {
	if r.song.Kind == "" {
		return nil
	}
	kind := string(r.song.Kind)
	return &kind
}

func (r *songResolver) ReleaseDate() *string {
	if r.song.ReleaseDate == "" {
		return nil
	}
	return &r.song.ReleaseDate
}

func (r *songResolver) Keywords() []string {
	if r.song.Keywords == nil {
		return []string{}
	}
	return r.song.Keywords
}

func (r *songResolver) Title() string {
	return r.song.Title
}

func (r *songResolver) Artists() []*artistResolver {
	out := make([]*artistResolver, 0, len(r.song.Artists))
	for _, a := range r.song.Artists {
		out = append(out, &artistResolver{name: a.Name})
	}
	return out
}

type artistResolver struct {
	name string
}

func (r *artistResolver) Name() string {
	return r.name
}

type loginResolver struct {
	token auth.Token
}

func (r *loginResolver) Token() string {
	return r.token.Value
}

// ExpiresIn is the token lifetime in seconds.
func (r *loginResolver) ExpiresIn() int32 {
	return int32(r.token.ExpiresIn.Seconds())
}

func (r *loginResolver) Roles() []string {
	return r.token.Roles
}

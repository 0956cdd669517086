package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"songcatalog/internal/models"
	"songcatalog/internal/store"
)

type songSeeder interface {
	CountSongs(ctx context.Context) (int, error)
	InsertSong(ctx context.Context, song models.Song) (models.Song, error)
}

func demoSongs() []models.Song {
	return []models.Song{
		{
			Title:       "Imagine",
			Rating:      5,
			Kind:        models.KindCD,
			ReleaseDate: "1971-10-11",
			Keywords:    []string{"ROCK"},
			Artists:     []models.Artist{{Name: "John Lennon"}},
		},
		{
			Title:       "Ain't No Mountain High Enough",
			Rating:      4,
			Kind:        models.KindMP3,
			ReleaseDate: "1967-04-20",
			Keywords:    []string{"POP"},
			Artists:     []models.Artist{{Name: "Marvin Gaye"}, {Name: "Tammi Terrell"}},
		},
		{
			Title:       "Yesterday",
			Rating:      5,
			Kind:        models.KindCD,
			ReleaseDate: "1965-08-06",
			Keywords:    []string{"POP"},
			Artists:     []models.Artist{{Name: "The Beatles"}},
		},
		{
			Title:       "Bohemian Rhapsody",
			Rating:      5,
			Kind:        models.KindCD,
			ReleaseDate: "1975-10-31",
			Keywords:    []string{"ROCK", "POP"},
			Artists:     []models.Artist{{Name: "Queen"}},
		},
		{
			Title:       "Respect",
			Rating:      4,
			Kind:        models.KindMP3,
			ReleaseDate: "1967-04-29",
			Keywords:    []string{},
			Artists:     []models.Artist{{Name: "Aretha Franklin"}},
		},
		{
			Title:       "Smells Like Teen Spirit",
			Rating:      3,
			Kind:        models.KindMP3,
			ReleaseDate: "1991-09-10",
			Keywords:    []string{"ROCK"},
			Artists:     []models.Artist{{Name: "Nirvana"}},
		},
	}
}

// bootstrapDemoData fills an empty catalog with demo songs. A catalog that
// already holds songs is left alone.
func bootstrapDemoData(ctx context.Context, seeder songSeeder, logger zerolog.Logger) error {
	count, err := seeder.CountSongs(ctx)
	if err != nil {
		return fmt.Errorf("count songs: %w", err)
	}
	if count > 0 {
		logger.Debug().Int("songs", count).Msg("catalog not empty, skipping demo data")
		return nil
	}

	for _, song := range demoSongs() {
		if _, err := seeder.InsertSong(ctx, song); err != nil {
			if errors.Is(err, store.ErrDuplicateTitle) || errors.Is(err, store.ErrDuplicateArtist) {
				continue
			}
			return fmt.Errorf("insert demo song %q: %w", song.Title, err)
		}
	}
	logger.Warn().Int("songs", len(demoSongs())).Msg("demo songs loaded")
	return nil
}

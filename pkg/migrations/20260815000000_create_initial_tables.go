package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		statements := []string{
			`CREATE TABLE jobs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				type TEXT NOT NULL,
				status TEXT NOT NULL,
				data TEXT NOT NULL DEFAULT '',
				progress INTEGER NOT NULL DEFAULT 0,
				process_id TEXT,
				library_id INTEGER REFERENCES libraries (id)
			)`,
			`CREATE TABLE libraries (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				name TEXT NOT NULL,
				type TEXT NOT NULL DEFAULT 'manga',
				watch_enabled BOOLEAN NOT NULL DEFAULT TRUE,
				manage_collections BOOLEAN NOT NULL DEFAULT TRUE,
				last_scanned_at TIMESTAMPTZ,
				deleted_at TIMESTAMPTZ
			)`,
			`CREATE TABLE library_paths (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				library_id INTEGER REFERENCES libraries (id) NOT NULL,
				filepath TEXT NOT NULL
			)`,
			`CREATE INDEX ix_library_paths_library_id ON library_paths (library_id)`,
			`CREATE TABLE library_exclude_patterns (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				library_id INTEGER REFERENCES libraries (id) NOT NULL,
				pattern TEXT NOT NULL
			)`,
			`CREATE INDEX ix_library_exclude_patterns_library_id ON library_exclude_patterns (library_id)`,
			`CREATE TABLE series (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				deleted_at TIMESTAMPTZ,
				library_id INTEGER REFERENCES libraries (id) NOT NULL,
				name TEXT NOT NULL,
				normalized_name TEXT NOT NULL,
				original_name TEXT NOT NULL,
				sort_name TEXT,
				sort_name_locked BOOLEAN NOT NULL DEFAULT FALSE,
				localized_name TEXT NOT NULL DEFAULT '',
				normalized_localized_name TEXT NOT NULL DEFAULT '',
				localized_name_locked BOOLEAN NOT NULL DEFAULT FALSE,
				name_locked BOOLEAN NOT NULL DEFAULT FALSE,
				format TEXT NOT NULL,
				folder_path TEXT NOT NULL DEFAULT '',
				lowest_folder_path TEXT NOT NULL DEFAULT '',
				last_folder_scanned_at TIMESTAMPTZ
			)`,
			`CREATE INDEX ix_series_library_id ON series (library_id)`,
			`CREATE INDEX ix_series_normalized_name ON series (normalized_name)`,
			`CREATE TABLE series_metadata (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				series_id INTEGER REFERENCES series (id) ON DELETE CASCADE NOT NULL,
				summary TEXT NOT NULL DEFAULT '',
				summary_locked BOOLEAN NOT NULL DEFAULT FALSE,
				language TEXT NOT NULL DEFAULT '',
				language_locked BOOLEAN NOT NULL DEFAULT FALSE,
				release_year INTEGER NOT NULL DEFAULT 0,
				release_year_locked BOOLEAN NOT NULL DEFAULT FALSE,
				age_rating INTEGER NOT NULL DEFAULT 0,
				age_rating_locked BOOLEAN NOT NULL DEFAULT FALSE,
				total_count INTEGER NOT NULL DEFAULT 0,
				max_count INTEGER NOT NULL DEFAULT 0,
				publication_status TEXT NOT NULL DEFAULT 'ongoing',
				publication_status_locked BOOLEAN NOT NULL DEFAULT FALSE,
				genres_locked BOOLEAN NOT NULL DEFAULT FALSE,
				tags_locked BOOLEAN NOT NULL DEFAULT FALSE,
				people_locked BOOLEAN NOT NULL DEFAULT FALSE
			)`,
			`CREATE UNIQUE INDEX ux_series_metadata_series_id ON series_metadata (series_id)`,
			`CREATE TABLE volumes (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				series_id INTEGER REFERENCES series (id) ON DELETE CASCADE NOT NULL,
				name TEXT NOT NULL,
				min_number REAL NOT NULL DEFAULT 0,
				max_number REAL NOT NULL DEFAULT 0
			)`,
			`CREATE INDEX ix_volumes_series_id ON volumes (series_id)`,
			`CREATE TABLE chapters (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				volume_id INTEGER REFERENCES volumes (id) ON DELETE CASCADE NOT NULL,
				"range" TEXT NOT NULL,
				min_number REAL NOT NULL DEFAULT 0,
				max_number REAL NOT NULL DEFAULT 0,
				sort_order REAL NOT NULL DEFAULT 0,
				sort_order_locked BOOLEAN NOT NULL DEFAULT FALSE,
				is_special BOOLEAN NOT NULL DEFAULT FALSE,
				special_index INTEGER NOT NULL DEFAULT 0,
				title TEXT NOT NULL DEFAULT '',
				title_locked BOOLEAN NOT NULL DEFAULT FALSE,
				summary TEXT NOT NULL DEFAULT '',
				summary_locked BOOLEAN NOT NULL DEFAULT FALSE,
				language TEXT NOT NULL DEFAULT '',
				age_rating INTEGER NOT NULL DEFAULT 0,
				release_date TIMESTAMPTZ,
				page_count INTEGER NOT NULL DEFAULT 0,
				total_count INTEGER NOT NULL DEFAULT 0,
				count INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE INDEX ix_chapters_volume_id ON chapters (volume_id)`,
			`CREATE TABLE files (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				chapter_id INTEGER REFERENCES chapters (id) ON DELETE CASCADE NOT NULL,
				filepath TEXT NOT NULL,
				format TEXT NOT NULL,
				extension TEXT NOT NULL DEFAULT '',
				filesize_bytes INTEGER NOT NULL DEFAULT 0,
				pages INTEGER NOT NULL DEFAULT 0,
				last_modified TIMESTAMPTZ,
				last_analyzed TIMESTAMPTZ
			)`,
			`CREATE INDEX ix_files_chapter_id ON files (chapter_id)`,
			`CREATE INDEX ix_files_filepath ON files (filepath)`,
			`CREATE TABLE genres (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				name TEXT NOT NULL,
				normalized_name TEXT NOT NULL
			)`,
			`CREATE UNIQUE INDEX ux_genres_normalized_name ON genres (normalized_name)`,
			`CREATE TABLE tags (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				name TEXT NOT NULL,
				normalized_name TEXT NOT NULL
			)`,
			`CREATE UNIQUE INDEX ux_tags_normalized_name ON tags (normalized_name)`,
			`CREATE TABLE people (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				name TEXT NOT NULL,
				normalized_name TEXT NOT NULL,
				role TEXT NOT NULL
			)`,
			`CREATE UNIQUE INDEX ux_people_normalized_name_role ON people (normalized_name, role)`,
			`CREATE TABLE collections (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				name TEXT NOT NULL,
				normalized_name TEXT NOT NULL,
				age_rating INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE UNIQUE INDEX ux_collections_normalized_name ON collections (normalized_name)`,
			`CREATE TABLE collection_series (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				collection_id INTEGER REFERENCES collections (id) ON DELETE CASCADE NOT NULL,
				series_id INTEGER REFERENCES series (id) ON DELETE CASCADE NOT NULL
			)`,
			`CREATE UNIQUE INDEX ux_collection_series ON collection_series (collection_id, series_id)`,
			`CREATE TABLE series_metadata_genres (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				series_metadata_id INTEGER REFERENCES series_metadata (id) ON DELETE CASCADE NOT NULL,
				genre_id INTEGER REFERENCES genres (id) ON DELETE CASCADE NOT NULL
			)`,
			`CREATE UNIQUE INDEX ux_series_metadata_genres ON series_metadata_genres (series_metadata_id, genre_id)`,
			`CREATE TABLE series_metadata_tags (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				series_metadata_id INTEGER REFERENCES series_metadata (id) ON DELETE CASCADE NOT NULL,
				tag_id INTEGER REFERENCES tags (id) ON DELETE CASCADE NOT NULL
			)`,
			`CREATE UNIQUE INDEX ux_series_metadata_tags ON series_metadata_tags (series_metadata_id, tag_id)`,
			`CREATE TABLE series_metadata_people (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				series_metadata_id INTEGER REFERENCES series_metadata (id) ON DELETE CASCADE NOT NULL,
				person_id INTEGER REFERENCES people (id) ON DELETE CASCADE NOT NULL
			)`,
			`CREATE UNIQUE INDEX ux_series_metadata_people ON series_metadata_people (series_metadata_id, person_id)`,
			`CREATE TABLE chapter_genres (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				chapter_id INTEGER REFERENCES chapters (id) ON DELETE CASCADE NOT NULL,
				genre_id INTEGER REFERENCES genres (id) ON DELETE CASCADE NOT NULL
			)`,
			`CREATE UNIQUE INDEX ux_chapter_genres ON chapter_genres (chapter_id, genre_id)`,
			`CREATE TABLE chapter_tags (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				chapter_id INTEGER REFERENCES chapters (id) ON DELETE CASCADE NOT NULL,
				tag_id INTEGER REFERENCES tags (id) ON DELETE CASCADE NOT NULL
			)`,
			`CREATE UNIQUE INDEX ux_chapter_tags ON chapter_tags (chapter_id, tag_id)`,
			`CREATE TABLE chapter_people (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				chapter_id INTEGER REFERENCES chapters (id) ON DELETE CASCADE NOT NULL,
				person_id INTEGER REFERENCES people (id) ON DELETE CASCADE NOT NULL
			)`,
			`CREATE UNIQUE INDEX ux_chapter_people ON chapter_people (chapter_id, person_id)`,
		}

		for _, statement := range statements {
			if _, err := db.Exec(statement); err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	down := func(_ context.Context, db *bun.DB) error {
		tables := []string{
			"chapter_people", "chapter_tags", "chapter_genres",
			"series_metadata_people", "series_metadata_tags", "series_metadata_genres",
			"collection_series", "collections", "people", "tags", "genres",
			"files", "chapters", "volumes", "series_metadata", "series",
			"library_exclude_patterns", "library_paths", "libraries", "jobs",
		}
		for _, table := range tables {
			if _, err := db.Exec("DROP TABLE IF EXISTS " + table); err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	Migrations.MustRegister(up, down)
}

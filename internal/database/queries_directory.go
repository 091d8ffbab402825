package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/henboffman/lifecycle-tool-sub002/internal/models"
)

// ReplaceDirectory swaps in a fresh directory snapshot atomically. The
// directory source is authoritative, so the previous snapshot is discarded
// rather than merged.
func (db *DB) ReplaceDirectory(ctx context.Context, users []models.DirectoryUser) error {
	return db.InTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM directory_aliases`); err != nil {
			return fmt.Errorf("clearing directory aliases: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM directory_users`); err != nil {
			return fmt.Errorf("clearing directory users: %w", err)
		}

		userStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO directory_users (login, display_name, synced_at)
			VALUES (?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing user statement: %w", err)
		}
		defer func() { _ = userStmt.Close() }()

		aliasStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO directory_aliases (user_id, alias)
			VALUES (?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing alias statement: %w", err)
		}
		defer func() { _ = aliasStmt.Close() }()

		now := time.Now()
		for _, user := range users {
			syncedAt := user.SyncedAt
			if syncedAt.IsZero() {
				syncedAt = now
			}

			result, err := userStmt.ExecContext(ctx, user.Login, user.DisplayName, syncedAt)
			if err != nil {
				return fmt.Errorf("inserting directory user %q: %w", user.Login, err)
			}

			userID, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("getting last insert id: %w", err)
			}

			for _, alias := range user.Aliases {
				if _, err := aliasStmt.ExecContext(ctx, userID, alias); err != nil {
					return fmt.Errorf("inserting alias %q for %q: %w", alias, user.Login, err)
				}
			}
		}

		return nil
	})
}

// ListDirectoryUsers loads the full directory snapshot with aliases.
func (db *DB) ListDirectoryUsers(ctx context.Context) ([]models.DirectoryUser, error) {
	query := `
		SELECT id, login, display_name, synced_at
		FROM directory_users
		ORDER BY login
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing directory users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []models.DirectoryUser
	byID := make(map[int64]int)
	for rows.Next() {
		var user models.DirectoryUser
		if err := rows.Scan(&user.ID, &user.Login, &user.DisplayName, &user.SyncedAt); err != nil {
			return nil, fmt.Errorf("scanning directory user: %w", err)
		}
		byID[user.ID] = len(users)
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	aliasRows, err := db.QueryContext(ctx, `SELECT user_id, alias FROM directory_aliases ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing directory aliases: %w", err)
	}
	defer func() { _ = aliasRows.Close() }()

	for aliasRows.Next() {
		var userID int64
		var alias string
		if err := aliasRows.Scan(&userID, &alias); err != nil {
			return nil, fmt.Errorf("scanning directory alias: %w", err)
		}
		if idx, ok := byID[userID]; ok {
			users[idx].Aliases = append(users[idx].Aliases, alias)
		}
	}

	return users, aliasRows.Err()
}

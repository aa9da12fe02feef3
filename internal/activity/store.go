package activity

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/skridlevsky/commitboard/internal/db"
)

// RowStore is the read-only query surface the aggregator depends on.
// Errors are real failures; an empty result is not an error.
type RowStore interface {
	Commits(ctx context.Context) ([]CommitRecord, error)
	Profiles(ctx context.Context) ([]ProfileRecord, error)
	Users(ctx context.Context) ([]UserRecord, error)
	FeedCommits(ctx context.Context, limit, offset int) ([]FeedRow, error)
	CountFeedCommits(ctx context.Context) (int, error)
}

// PGStore provides database queries for commits, profiles and users
type PGStore struct {
	db db.DBTX
}

// NewPGStore creates a new row store
func NewPGStore(conn db.DBTX) *PGStore {
	return &PGStore{db: conn}
}

// commitColumns is the standard column list for commit queries
const commitColumns = `c.id, c.user_id, c.message_id, c.committed_at,
			c.is_private, c.is_explicitly_private, c.approved`

// feedEligible restricts commits to ones that may appear in a public feed
const feedEligible = `c.approved
		  AND NOT p.is_private
		  AND NOT c.is_private
		  AND NOT c.is_explicitly_private`

// Commits returns every approved commit, oldest first
func (s *PGStore) Commits(ctx context.Context) ([]CommitRecord, error) {
	query := `
		SELECT ` + commitColumns + `
		FROM commits c
		WHERE c.approved
		ORDER BY c.committed_at ASC, c.id ASC
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query commits: %w", err)
	}
	defer rows.Close()

	commits := []CommitRecord{}
	for rows.Next() {
		var c CommitRecord
		if err := scanCommit(rows, &c); err != nil {
			return nil, fmt.Errorf("failed to scan commit: %w", err)
		}
		commits = append(commits, c)
	}
	return commits, rows.Err()
}

// Profiles returns every participant profile
func (s *PGStore) Profiles(ctx context.Context) ([]ProfileRecord, error) {
	rows, err := s.db.Query(ctx, `SELECT user_id, timezone, thread_id, is_private FROM profiles`)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	profiles := []ProfileRecord{}
	for rows.Next() {
		var p ProfileRecord
		if err := rows.Scan(&p.UserID, &p.Timezone, &p.ThreadID, &p.IsPrivate); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// Users returns every known user
func (s *PGStore) Users(ctx context.Context) ([]UserRecord, error) {
	rows, err := s.db.Query(ctx, `SELECT id, display_name, COALESCE(avatar_url, '') FROM users`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []UserRecord{}
	for rows.Next() {
		var u UserRecord
		if err := rows.Scan(&u.UserID, &u.DisplayName, &u.AvatarURL); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// FeedCommits returns a page of feed-eligible commits, newest first
func (s *PGStore) FeedCommits(ctx context.Context, limit, offset int) ([]FeedRow, error) {
	query := `
		SELECT ` + commitColumns + `,
			p.thread_id,
			COALESCE(u.display_name, ''), COALESCE(u.avatar_url, '')
		FROM commits c
		JOIN profiles p ON p.user_id = c.user_id
		LEFT JOIN users u ON u.id = c.user_id
		WHERE ` + feedEligible + `
		ORDER BY c.committed_at DESC, c.id DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query feed commits: %w", err)
	}
	defer rows.Close()

	feed := []FeedRow{}
	for rows.Next() {
		var r FeedRow
		c := &r.Commit
		err := rows.Scan(
			&c.ID, &c.UserID, &c.MessageID, &c.CommittedAt,
			&c.IsPrivate, &c.IsExplicitlyPrivate, &c.Approved,
			&r.ThreadID, &r.DisplayName, &r.AvatarURL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed commit: %w", err)
		}
		feed = append(feed, r)
	}
	return feed, rows.Err()
}

// CountFeedCommits returns the number of feed-eligible commits
func (s *PGStore) CountFeedCommits(ctx context.Context) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM commits c
		JOIN profiles p ON p.user_id = c.user_id
		WHERE ` + feedEligible

	var total int
	if err := s.db.QueryRow(ctx, query).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count feed commits: %w", err)
	}
	return total, nil
}

func scanCommit(row pgx.Row, c *CommitRecord) error {
	return row.Scan(
		&c.ID, &c.UserID, &c.MessageID, &c.CommittedAt,
		&c.IsPrivate, &c.IsExplicitlyPrivate, &c.Approved,
	)
}

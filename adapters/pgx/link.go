package pgx

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/kairan-app/kairan/core"
)

const linkColumns = `internal_user_id, external_user_id, display_name, picture_url, notifications_enabled, created_at, updated_at`

func (a *Adapter) GetLinkByExternalID(externalID string) (*core.IdentityLink, error) {
	q := `SELECT ` + linkColumns + ` FROM identity_links WHERE external_user_id = $1`
	return scanLink(a.pool.QueryRow(context.Background(), q, externalID))
}

func (a *Adapter) GetLinkByInternalID(internalID string) (*core.IdentityLink, error) {
	q := `SELECT ` + linkColumns + ` FROM identity_links WHERE internal_user_id = $1`
	return scanLink(a.pool.QueryRow(context.Background(), q, internalID))
}

// UpsertLink is keyed by external_user_id: a retried registration refreshes
// the display metadata instead of inserting a second row. Repointing the
// row at a different internal account is not part of the update set, the
// unique internal_user_id constraint rejects hijacks the service layer
// missed.
func (a *Adapter) UpsertLink(l *core.IdentityLink) error {
	q := `INSERT INTO identity_links (internal_user_id, external_user_id, display_name, picture_url, notifications_enabled)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (external_user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			picture_url = EXCLUDED.picture_url,
			notifications_enabled = EXCLUDED.notifications_enabled,
			updated_at = now()
		RETURNING created_at, updated_at`

	err := a.pool.QueryRow(context.Background(), q,
		l.InternalUserID, l.ExternalUserID, l.DisplayName, l.PictureURL, l.NotificationsEnabled).
		Scan(&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrLinkConflict
		}
		return err
	}
	return nil
}

func (a *Adapter) UpdateLinkProfile(externalID, displayName, pictureURL string) error {
	q := `UPDATE identity_links SET display_name = $1, picture_url = $2, updated_at = now() WHERE external_user_id = $3`
	tag, err := a.pool.Exec(context.Background(), q, displayName, pictureURL, externalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrLinkNotFound
	}
	return nil
}

func (a *Adapter) DeleteLink(externalID string) error {
	tag, err := a.pool.Exec(context.Background(),
		`DELETE FROM identity_links WHERE external_user_id = $1`, externalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrLinkNotFound
	}
	return nil
}

func scanLink(row pgx.Row) (*core.IdentityLink, error) {
	link := &core.IdentityLink{}
	err := row.Scan(&link.InternalUserID, &link.ExternalUserID, &link.DisplayName,
		&link.PictureURL, &link.NotificationsEnabled, &link.CreatedAt, &link.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrLinkNotFound
		}
		return nil, err
	}
	return link, nil
}

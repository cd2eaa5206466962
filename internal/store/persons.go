package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tallyapp/tallysync/internal/model"
)

// --- Profiles ----------------------------------------------------------------

const profileCols = `id, user_id, name, phone, phone_hash, updated_at, deleted_at`

func scanProfile(sc scanner) (model.Profile, error) {
	var p model.Profile
	var updated string
	var deleted sql.NullString
	if err := sc.Scan(&p.ID, &p.UserID, &p.Name, &p.Phone, &p.PhoneHash, &updated, &deleted); err != nil {
		return p, err
	}
	p.UpdatedAt, _ = parseTime(updated)
	p.DeletedAt = parseTimePtr(deleted)
	return p, nil
}

func upsertProfile(ctx context.Context, q querier, p *model.Profile) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO profiles (id, user_id, name, phone, phone_hash, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    user_id    = excluded.user_id,
		    name       = excluded.name,
		    phone      = excluded.phone,
		    phone_hash = excluded.phone_hash,
		    updated_at = excluded.updated_at,
		    deleted_at = excluded.deleted_at`,
		p.ID, p.UserID, p.Name, p.Phone, p.PhoneHash, formatTime(p.UpdatedAt), formatTimePtr(p.DeletedAt))
	if err != nil {
		return fmt.Errorf("upserting profile %s: %w", p.ID, err)
	}
	return nil
}

// SaveProfile creates or updates the account owner's profile. An empty ID is
// assigned; UpdatedAt is stamped with the current time.
func (s *Store) SaveProfile(ctx context.Context, p *model.Profile) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.UpdatedAt = time.Now().UTC()
	if err := upsertProfile(ctx, s.db, p); err != nil {
		return err
	}
	s.notify("profiles", "upsert")
	return nil
}

// ProfileByUser returns the profile for the given account user ID, or
// (nil, nil) if none exists.
func (s *Store) ProfileByUser(ctx context.Context, userID string) (*model.Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+profileCols+` FROM profiles WHERE user_id = ?`, userID)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	if err != nil {
		return nil, fmt.Errorf("scanning profile row: %w", err)
	}
	return &p, nil
}

func listProfiles(ctx context.Context, q querier, owner string) ([]model.Profile, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+profileCols+` FROM profiles WHERE user_id = ?`, owner)
	if err != nil {
		return nil, fmt.Errorf("querying profiles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning profile row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// --- Persons -----------------------------------------------------------------

const personCols = `id, owner_id, name, phone, phone_hash, profile_id, self, updated_at, deleted_at`

func scanPerson(sc scanner) (model.Person, error) {
	var p model.Person
	var profileID sql.NullString
	var self int
	var updated string
	var deleted sql.NullString
	if err := sc.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Phone, &p.PhoneHash,
		&profileID, &self, &updated, &deleted); err != nil {
		return p, err
	}
	p.ProfileID = strPtr(profileID)
	p.Self = self != 0
	p.UpdatedAt, _ = parseTime(updated)
	p.DeletedAt = parseTimePtr(deleted)
	return p, nil
}

func upsertPerson(ctx context.Context, q querier, p *model.Person) error {
	self := 0
	if p.Self {
		self = 1
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO persons (id, owner_id, name, phone, phone_hash, profile_id, self, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    owner_id   = excluded.owner_id,
		    name       = excluded.name,
		    phone      = excluded.phone,
		    phone_hash = excluded.phone_hash,
		    profile_id = excluded.profile_id,
		    self       = excluded.self,
		    updated_at = excluded.updated_at,
		    deleted_at = excluded.deleted_at`,
		p.ID, p.OwnerID, p.Name, p.Phone, p.PhoneHash, nullStr(p.ProfileID), self,
		formatTime(p.UpdatedAt), formatTimePtr(p.DeletedAt))
	if err != nil {
		return fmt.Errorf("upserting person %s: %w", p.ID, err)
	}
	return nil
}

// SavePerson creates or updates a contact. The phone hash is derived from the
// phone number on every save so the two never drift apart.
func (s *Store) SavePerson(ctx context.Context, p *model.Person) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.PhoneHash = model.HashPhone(p.Phone)
	p.UpdatedAt = time.Now().UTC()
	if err := upsertPerson(ctx, s.db, p); err != nil {
		return err
	}
	s.notify("persons", "upsert")
	return nil
}

// DeletePerson tombstones a contact. The row stays local until the tombstone
// has round-tripped through the remote store.
func (s *Store) DeletePerson(ctx context.Context, id string) error {
	if err := tombstone(ctx, s.db, "persons", id); err != nil {
		return err
	}
	s.notify("persons", "delete")
	return nil
}

func getPerson(ctx context.Context, q querier, id string) (*model.Person, error) {
	row := q.QueryRowContext(ctx, `SELECT `+personCols+` FROM persons WHERE id = ?`, id)
	p, err := scanPerson(row)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	if err != nil {
		return nil, fmt.Errorf("scanning person row: %w", err)
	}
	return &p, nil
}

// PersonByID returns the person with the given ID, or (nil, nil) if absent.
func (s *Store) PersonByID(ctx context.Context, id string) (*model.Person, error) {
	return getPerson(ctx, s.db, id)
}

func listPersons(ctx context.Context, q querier, owner string) ([]model.Person, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+personCols+` FROM persons WHERE owner_id = ?`, owner)
	if err != nil {
		return nil, fmt.Errorf("querying persons: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning person row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListPersons returns all of owner's contacts, tombstoned rows included.
func (s *Store) ListPersons(ctx context.Context, owner string) ([]model.Person, error) {
	return listPersons(ctx, s.db, owner)
}

// --- Groups ------------------------------------------------------------------

const groupCols = `id, owner_id, name, updated_at, deleted_at`

func scanGroup(sc scanner) (model.Group, error) {
	var g model.Group
	var updated string
	var deleted sql.NullString
	if err := sc.Scan(&g.ID, &g.OwnerID, &g.Name, &updated, &deleted); err != nil {
		return g, err
	}
	g.UpdatedAt, _ = parseTime(updated)
	g.DeletedAt = parseTimePtr(deleted)
	return g, nil
}

func upsertGroup(ctx context.Context, q querier, g *model.Group) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO groups (id, owner_id, name, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    owner_id   = excluded.owner_id,
		    name       = excluded.name,
		    updated_at = excluded.updated_at,
		    deleted_at = excluded.deleted_at`,
		g.ID, g.OwnerID, g.Name, formatTime(g.UpdatedAt), formatTimePtr(g.DeletedAt))
	if err != nil {
		return fmt.Errorf("upserting group %s: %w", g.ID, err)
	}
	return nil
}

func replaceGroupMembers(ctx context.Context, q querier, groupID string, memberIDs []string) error {
	if _, err := q.ExecContext(ctx,
		`DELETE FROM group_members WHERE group_id = ?`, groupID); err != nil {
		return fmt.Errorf("clearing members of group %s: %w", groupID, err)
	}
	for _, pid := range memberIDs {
		if _, err := q.ExecContext(ctx,
			`INSERT OR IGNORE INTO group_members (group_id, person_id) VALUES (?, ?)`,
			groupID, pid); err != nil {
			return fmt.Errorf("inserting member of group %s: %w", groupID, err)
		}
	}
	return nil
}

func groupMembers(ctx context.Context, q querier, groupID string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT person_id FROM group_members WHERE group_id = ? ORDER BY person_id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("querying members of group %s: %w", groupID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var pid string
		if err := rows.Scan(&pid); err != nil {
			return nil, fmt.Errorf("scanning group member: %w", err)
		}
		out = append(out, pid)
	}
	return out, rows.Err()
}

// SaveGroup creates or updates a group and fully replaces its membership.
func (s *Store) SaveGroup(ctx context.Context, g *model.Group) error {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	g.UpdatedAt = time.Now().UTC()
	err := s.Apply(ctx, func(tx *Tx) error {
		if err := upsertGroup(ctx, tx.tx, g); err != nil {
			return err
		}
		return replaceGroupMembers(ctx, tx.tx, g.ID, g.MemberIDs)
	})
	if err != nil {
		return err
	}
	s.notify("groups", "upsert")
	return nil
}

// DeleteGroup tombstones a group.
func (s *Store) DeleteGroup(ctx context.Context, id string) error {
	if err := tombstone(ctx, s.db, "groups", id); err != nil {
		return err
	}
	s.notify("groups", "delete")
	return nil
}

// GroupByID returns the group with its membership, or (nil, nil) if absent.
func (s *Store) GroupByID(ctx context.Context, id string) (*model.Group, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+groupCols+` FROM groups WHERE id = ?`, id)
	g, err := scanGroup(row)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	if err != nil {
		return nil, fmt.Errorf("scanning group row: %w", err)
	}
	if g.MemberIDs, err = groupMembers(ctx, s.db, g.ID); err != nil {
		return nil, err
	}
	return &g, nil
}

func listGroups(ctx context.Context, q querier, owner string) ([]model.Group, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+groupCols+` FROM groups WHERE owner_id = ?`, owner)
	if err != nil {
		return nil, fmt.Errorf("querying groups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning group row: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].MemberIDs, err = groupMembers(ctx, q, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// tombstone soft-deletes a row: deleted_at and updated_at are stamped so the
// next push uploads the tombstone instead of silently dropping the row.
func tombstone(ctx context.Context, q querier, table, id string) error {
	now := formatTime(time.Now().UTC())
	res, err := q.ExecContext(ctx,
		`UPDATE `+table+` SET deleted_at = ?, updated_at = ? WHERE id = ?`, now, now, id)
	if err != nil {
		return fmt.Errorf("tombstoning %s %s: %w", table, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("tombstoning %s %s: no such row", table, id)
	}
	return nil
}

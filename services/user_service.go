package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"friendZoneAPI/internal/reconcile"
	"friendZoneAPI/internal/types/user"
)

// AccountListener hears about users removed from the store.
type AccountListener interface {
	AccountDeleted(ctx context.Context, userID string)
}

type UserService struct {
	db        *pgxpool.Pool
	notifier  ChangeNotifier
	listeners []AccountListener
}

func NewUserService(db *pgxpool.Pool, notifier ChangeNotifier) *UserService {
	return &UserService{db: db, notifier: orNoop(notifier)}
}

// AddAccountListener must be called before the service handles requests.
func (s *UserService) AddAccountListener(l AccountListener) {
	s.listeners = append(s.listeners, l)
}

const userColumns = `id, clerk_id, phone_number, display_name, image_url, created_at, updated_at`

func scanUser(row pgx.Row) (*user.User, error) {
	u := &user.User{}
	err := row.Scan(&u.ID, &u.ClerkID, &u.PhoneNumber, &u.DisplayName, &u.ImageURL, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// CreateUser upserts on clerk_id so webhook redeliveries are harmless. Any
// phone-addressed invitations and friend records waiting for this number are
// linked to the new account.
func (s *UserService) CreateUser(ctx context.Context, req *user.CreateUserRequest) (*user.User, error) {
	req.ClerkID = strings.TrimSpace(req.ClerkID)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	now := time.Now()
	query := `
	INSERT INTO users (id, clerk_id, phone_number, display_name, image_url, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $6)
	ON CONFLICT (clerk_id) DO UPDATE
	SET phone_number = EXCLUDED.phone_number,
	    display_name = EXCLUDED.display_name,
	    image_url = EXCLUDED.image_url,
	    updated_at = EXCLUDED.updated_at
	RETURNING ` + userColumns

	created, err := scanUser(s.db.QueryRow(ctx, query,
		uuid.New().String(),
		req.ClerkID,
		reconcile.NormalizePhone(req.PhoneNumber),
		strings.TrimSpace(req.DisplayName),
		req.ImageURL,
		now,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.linkPhoneInvitations(ctx, created); err != nil {
		// The account exists; linking is retried on the next profile update.
		log.Printf("CreateUser: failed to link invitations for %s: %v", created.ID, err)
	}

	return created, nil
}

func (s *UserService) linkPhoneInvitations(ctx context.Context, u *user.User) error {
	if u.PhoneNumber == "" {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		UPDATE zone_requests
		SET to_user_id = $1, updated_at = NOW()
		WHERE to_user_id IS NULL AND to_phone_number = $2 AND status = 'pending' AND from_user_id <> $1
		RETURNING from_user_id
	`, u.ID, u.PhoneNumber)
	if err != nil {
		return fmt.Errorf("failed to link requests: %w", err)
	}
	owners, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("failed to read linked requests: %w", err)
	}

	rows, err = tx.Query(ctx, `
		UPDATE friends
		SET counterpart_user_id = $1
		WHERE counterpart_user_id IS NULL AND phone_number = $2 AND owner_id <> $1
		RETURNING owner_id
	`, u.ID, u.PhoneNumber)
	if err != nil {
		return fmt.Errorf("failed to link friend records: %w", err)
	}
	friendOwners, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("failed to read linked friend records: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	changed := reconcile.SortedUnique(append(append(owners, friendOwners...), u.ID))
	if len(changed) > 1 {
		log.Printf("linkPhoneInvitations: linked %s to %d owners", u.ID, len(changed)-1)
	}
	s.notifier.OwnersChanged(ctx, changed...)
	return nil
}

func (s *UserService) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE clerk_id = $1`, clerkID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (s *UserService) GetUserByID(ctx context.Context, id string) (*user.User, error) {
	return getUserByID(ctx, s.db, id)
}

func getUserByID(ctx context.Context, q querier, id string) (*user.User, error) {
	u, err := scanUser(q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetUserByPhone matches on the normalized number. ErrNotFound means the
// number has no account yet.
func (s *UserService) GetUserByPhone(ctx context.Context, phone string) (*user.User, error) {
	return getUserByPhone(ctx, s.db, phone)
}

func getUserByPhone(ctx context.Context, q querier, phone string) (*user.User, error) {
	normalized := reconcile.NormalizePhone(phone)
	if normalized == "" {
		return nil, ErrNotFound
	}
	u, err := scanUser(q.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE phone_number = $1
		ORDER BY created_at LIMIT 1
	`, normalized))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by phone: %w", err)
	}
	return u, nil
}

// ResolveUserID maps the authenticated Clerk subject to the internal id.
func (s *UserService) ResolveUserID(ctx context.Context, clerkID string) (string, error) {
	var id string
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve user: %w", err)
	}
	return id, nil
}

func (s *UserService) UpdateUserByClerkID(ctx context.Context, clerkID string, req *user.UpdateUserRequest) (*user.User, error) {
	query := `
	UPDATE users
	SET phone_number = COALESCE(NULLIF($2, ''), phone_number),
	    display_name = COALESCE(NULLIF($3, ''), display_name),
	    image_url = COALESCE(NULLIF($4, ''), image_url),
	    updated_at = NOW()
	WHERE clerk_id = $1
	RETURNING ` + userColumns

	updated, err := scanUser(s.db.QueryRow(ctx, query,
		clerkID,
		reconcile.NormalizePhone(req.PhoneNumber),
		strings.TrimSpace(req.DisplayName),
		req.ImageURL,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	if err := s.linkPhoneInvitations(ctx, updated); err != nil {
		log.Printf("UpdateUserByClerkID: failed to link invitations for %s: %v", updated.ID, err)
	}

	return updated, nil
}

// DeleteUserByClerkID removes the account. Foreign keys cascade to zones,
// friend records, requests and devices; owners that pointed at the user are
// told their views changed.
func (s *UserService) DeleteUserByClerkID(ctx context.Context, clerkID string) error {
	id, err := s.ResolveUserID(ctx, clerkID)
	if err != nil {
		return err
	}

	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT owner_id FROM friends WHERE counterpart_user_id = $1
		UNION
		SELECT DISTINCT from_user_id FROM zone_requests WHERE to_user_id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return fmt.Errorf("failed to find affected owners: %w", err)
	}
	affected, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("failed to read affected owners: %w", err)
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	// The deleted user's own feed is dropped, not refreshed.
	affected = slices.DeleteFunc(affected, func(owner string) bool { return owner == id })
	s.notifier.OwnersChanged(ctx, affected...)
	for _, l := range s.listeners {
		l.AccountDeleted(ctx, id)
	}
	return nil
}

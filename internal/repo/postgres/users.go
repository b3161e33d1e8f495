package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/profilehub/internal/domain/user"
	"github.com/geocoder89/profilehub/internal/identity"
	"github.com/geocoder89/profilehub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, name, google_id, session_token, created_at,
	address, job_type, availability_start, availability_end, version`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (u user.User, err error) {
	err = r.prom.ObserveDB("users.find", func() error {
		u, err = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+`
			 FROM users
			 WHERE email = $1`,
			email,
		))
		return err
	})
	return u, err
}

// FindOrCreate returns the row for id.Email, inserting it with sessionToken
// when it does not exist yet. An existing row is returned untouched. When a
// concurrent signup wins the insert, the winner's row is re-read.
func (r *UsersRepo) FindOrCreate(ctx context.Context, id identity.Identity, sessionToken string) (user.User, bool, error) {
	u, err := r.GetByEmail(ctx, id.Email)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return user.User{}, false, err
	}

	err = r.prom.ObserveDB("users.insert", func() error {
		u, err = scanUser(r.pool.QueryRow(ctx,
			`INSERT INTO users (email, name, google_id, session_token, created_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (email) DO NOTHING
			 RETURNING `+userColumns,
			id.Email, id.Name, id.Subject, sessionToken, time.Now().UTC(),
		))
		return err
	})

	if err == nil {
		return u, true, nil
	}

	// DO NOTHING returns no row when another request inserted first.
	var pgErr *pgconn.PgError
	if errors.Is(err, user.ErrNotFound) || (errors.As(err, &pgErr) && pgErr.Code == "23505") {
		u, err = r.GetByEmail(ctx, id.Email)
		if err != nil {
			return user.User{}, false, fmt.Errorf("re-read after conflict: %w", err)
		}
		return u, false, nil
	}

	return user.User{}, false, err
}

// UpdateProfile writes only the fields present in patch, in one statement.
func (r *UsersRepo) UpdateProfile(ctx context.Context, email string, patch user.ProfilePatch) (u user.User, err error) {
	address, setAddress := patch.Address.Get()
	jobType, setJobType := patch.JobType.Get()
	start, setStart := patch.AvailabilityStart.Get()
	end, setEnd := patch.AvailabilityEnd.Get()

	err = r.prom.ObserveDB("users.update", func() error {
		u, err = scanUser(r.pool.QueryRow(ctx,
			`UPDATE users SET
				address            = CASE WHEN $2::boolean THEN $3::text ELSE address END,
				job_type           = CASE WHEN $4::boolean THEN $5::text ELSE job_type END,
				availability_start = CASE WHEN $6::boolean THEN $7::time ELSE availability_start END,
				availability_end   = CASE WHEN $8::boolean THEN $9::time ELSE availability_end END,
				version            = version + 1
			 WHERE email = $1
			 RETURNING `+userColumns,
			email,
			setAddress, address,
			setJobType, jobType,
			setStart, toPGTime(start, setStart),
			setEnd, toPGTime(end, setEnd),
		))
		return err
	})
	return u, err
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User
	var start, end pgtype.Time

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.GoogleID,
		&u.SessionToken,
		&u.CreatedAt,
		&u.Address,
		&u.JobType,
		&start,
		&end,
		&u.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}

	u.AvailabilityStart = fromPGTime(start)
	u.AvailabilityEnd = fromPGTime(end)
	return u, nil
}

func toPGTime(t user.TimeOfDay, valid bool) pgtype.Time {
	if !valid {
		return pgtype.Time{}
	}
	return pgtype.Time{Microseconds: t.SinceMidnight().Microseconds(), Valid: true}
}

func fromPGTime(t pgtype.Time) *user.TimeOfDay {
	if !t.Valid {
		return nil
	}
	tod := user.TimeOfDayFromDuration(time.Duration(t.Microseconds) * time.Microsecond)
	return &tod
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const userColumns = "u.id, u.name, u.phone_number, u.password_hash, u.role, u.photo_url, u.specialty, " +
	"u.hospital_name, u.experience_years, u.study_years, u.is_disabled, u.disabled_at, u.created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner, extra ...any) (User, error) {
	var (
		u          User
		disabledAt sql.NullTime
	)
	dest := []any{
		&u.Id,
		&u.Name,
		&u.PhoneNumber,
		&u.PasswordHash,
		&u.Role,
		&u.PhotoURL,
		&u.Specialty,
		&u.HospitalName,
		&u.ExperienceYears,
		&u.StudyYears,
		&u.Disabled,
		&disabledAt,
		&u.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return User{}, err
	}
	u.DisabledAt = timePtr(disabledAt)

	return u, nil
}

func (db *PgRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	row := db.q.QueryRowContext(ctx,
		"INSERT INTO users AS u (id, name, phone_number, password_hash, role, specialty, hospital_name, "+
			"experience_years, study_years, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING "+userColumns,
		params.Id,
		params.Name,
		params.PhoneNumber,
		params.PasswordHash,
		params.Role,
		params.Specialty,
		params.HospitalName,
		params.ExperienceYears,
		params.StudyYears,
		params.CreatedAt,
	)

	u, err := scanUser(row)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", translate(err))
	}

	return u, nil
}

func (db *PgRepository) GetUserById(ctx context.Context, id string) (User, error) {
	row := db.q.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users u WHERE u.id = $1 LIMIT 1", id)

	u, err := scanUser(row)
	if err != nil {
		return User{}, translate(err)
	}

	return u, nil
}

func (db *PgRepository) GetUserByPhone(ctx context.Context, phone string) (User, error) {
	row := db.q.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users u WHERE u.phone_number = $1 LIMIT 1", phone)

	u, err := scanUser(row)
	if err != nil {
		return User{}, translate(err)
	}

	return u, nil
}

func (db *PgRepository) UpdatePassword(ctx context.Context, userId, passwordHash string) error {
	res, err := db.q.ExecContext(ctx, "UPDATE users SET password_hash = $2 WHERE id = $1", userId, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := expectOne(res); err != nil {
		return ErrNotFound
	}

	return nil
}

func (db *PgRepository) RenameUser(ctx context.Context, userId, name string) error {
	res, err := db.q.ExecContext(ctx, "UPDATE users SET name = $2 WHERE id = $1", userId, name)
	if err != nil {
		return fmt.Errorf("rename user: %w", err)
	}

	if err := expectOne(res); err != nil {
		return ErrNotFound
	}

	return nil
}

func (db *PgRepository) UpdateDoctorProfile(ctx context.Context, params UpdateDoctorProfileParams) (User, error) {
	row := db.q.QueryRowContext(ctx,
		"UPDATE users AS u SET specialty = $2, hospital_name = $3, experience_years = $4, study_years = $5 "+
			"WHERE u.id = $1 RETURNING "+userColumns,
		params.UserId,
		params.Specialty,
		params.HospitalName,
		params.ExperienceYears,
		params.StudyYears,
	)

	u, err := scanUser(row)
	if err != nil {
		return User{}, translate(err)
	}

	return u, nil
}

func (db *PgRepository) UpdatePhoto(ctx context.Context, userId, photoURL string) (User, error) {
	row := db.q.QueryRowContext(ctx,
		"UPDATE users AS u SET photo_url = $2 WHERE u.id = $1 RETURNING "+userColumns,
		userId,
		photoURL,
	)

	u, err := scanUser(row)
	if err != nil {
		return User{}, translate(err)
	}

	return u, nil
}

func (db *PgRepository) ListDoctors(ctx context.Context) ([]User, error) {
	rows, err := db.q.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users u "+
			"WHERE u.role = 'doctor' AND u.is_disabled = FALSE ORDER BY u.created_at DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	var doctors []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		doctors = append(doctors, u)
	}

	return doctors, rows.Err()
}

func (db *PgRepository) ListUsersWithPresence(ctx context.Context) ([]User, error) {
	rows, err := db.q.QueryContext(ctx,
		"SELECT "+userColumns+", ap.last_seen_at FROM users u "+
			"LEFT JOIN app_presence ap ON ap.user_id = u.id "+
			"ORDER BY u.created_at DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var lastSeen sql.NullTime
		u, err := scanUser(rows, &lastSeen)
		if err != nil {
			return nil, err
		}
		u.LastSeenAt = timePtr(lastSeen)
		users = append(users, u)
	}

	return users, rows.Err()
}

func (db *PgRepository) SetUserDisabled(ctx context.Context, userId string, disabled bool, at time.Time) (User, error) {
	var disabledAt sql.NullTime
	if disabled {
		disabledAt = sql.NullTime{Time: at, Valid: true}
	}

	row := db.q.QueryRowContext(ctx,
		"UPDATE users AS u SET is_disabled = $2, disabled_at = $3 WHERE u.id = $1 RETURNING "+userColumns,
		userId,
		disabled,
		disabledAt,
	)

	u, err := scanUser(row)
	if err != nil {
		return User{}, translate(err)
	}

	return u, nil
}

// DeleteUser removes a user and everything authored by or addressed to them.
// Callers should run it inside WithTx.
func (db *PgRepository) DeleteUser(ctx context.Context, userId string) error {
	stmts := []string{
		"DELETE FROM messages WHERE sender_id = $1",
		"DELETE FROM room_presence WHERE user_id = $1",
		"DELETE FROM consultation_requests WHERE patient_id = $1 OR target_doctor_id = $1",
		"DELETE FROM rooms WHERE patient_id = $1 OR doctor_id = $1",
		"DELETE FROM blogs WHERE author_id = $1",
	}
	for _, stmt := range stmts {
		if _, err := db.q.ExecContext(ctx, stmt, userId); err != nil {
			return fmt.Errorf("delete user data: %w", err)
		}
	}

	res, err := db.q.ExecContext(ctx, "DELETE FROM users WHERE id = $1", userId)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	if err := expectOne(res); err != nil {
		return ErrNotFound
	}

	return nil
}

package database

import (
	"context"
	"fmt"
	"time"
)

func (db *PgRepository) GetDashboardSummary(ctx context.Context, q DashboardQuery) (DashboardSummary, error) {
	var s DashboardSummary
	err := db.q.QueryRowContext(ctx,
		"SELECT COUNT(1), "+
			"COUNT(1) FILTER (WHERE role = 'doctor'), "+
			"COUNT(1) FILTER (WHERE role = 'patient'), "+
			"COUNT(1) FILTER (WHERE is_disabled) "+
			"FROM users WHERE phone_number <> $1",
		q.ExcludePhone,
	).Scan(&s.TotalUsers, &s.DoctorsCount, &s.PatientsCount, &s.DisabledUsersCount)
	if err != nil {
		return DashboardSummary{}, fmt.Errorf("dashboard summary: %w", err)
	}

	return s, nil
}

func (db *PgRepository) GetVisitorCounts(ctx context.Context, q DashboardQuery) (VisitorCounts, error) {
	var v VisitorCounts
	err := db.q.QueryRowContext(ctx,
		"SELECT "+
			"COUNT(DISTINCT a.user_id) FILTER (WHERE a.activity_date = $1), "+
			"COUNT(DISTINCT a.user_id) FILTER (WHERE a.activity_date >= $2), "+
			"COUNT(DISTINCT a.user_id) FILTER (WHERE a.activity_date >= $3) "+
			"FROM user_daily_activity a JOIN users u ON u.id = a.user_id "+
			"WHERE u.phone_number <> $4",
		q.DayStart.Format(time.DateOnly),
		q.MonthStart.Format(time.DateOnly),
		q.YearStart.Format(time.DateOnly),
		q.ExcludePhone,
	).Scan(&v.Today, &v.Month, &v.Year)
	if err != nil {
		return VisitorCounts{}, fmt.Errorf("visitor counts: %w", err)
	}

	err = db.q.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM app_presence p JOIN users u ON u.id = p.user_id "+
			"WHERE p.last_seen_at >= $1 AND u.phone_number <> $2 AND u.is_disabled = FALSE",
		q.OnlineSince,
		q.ExcludePhone,
	).Scan(&v.CurrentOnline)
	if err != nil {
		return VisitorCounts{}, fmt.Errorf("online visitors: %w", err)
	}

	return v, nil
}

// ListDoctorActivity counts distinct patients and rooms opened per doctor
// since the start of the current day, month and year.
func (db *PgRepository) ListDoctorActivity(ctx context.Context, q DashboardQuery) ([]DoctorActivity, error) {
	rows, err := db.q.QueryContext(ctx,
		"SELECT u.id, u.name, u.phone_number, u.photo_url, u.specialty, u.hospital_name, u.is_disabled, "+
			"COUNT(DISTINCT r.patient_id) FILTER (WHERE r.created_at >= $1) AS patients_today, "+
			"COUNT(DISTINCT r.patient_id) FILTER (WHERE r.created_at >= $2) AS patients_month, "+
			"COUNT(DISTINCT r.patient_id) FILTER (WHERE r.created_at >= $3) AS patients_year, "+
			"COUNT(r.id) FILTER (WHERE r.created_at >= $1), "+
			"COUNT(r.id) FILTER (WHERE r.created_at >= $2), "+
			"COUNT(r.id) FILTER (WHERE r.created_at >= $3) "+
			"FROM users u LEFT JOIN rooms r ON r.doctor_id = u.id "+
			"WHERE u.role = 'doctor' AND u.phone_number <> $4 "+
			"GROUP BY u.id "+
			"ORDER BY patients_year DESC, patients_month DESC, patients_today DESC, u.created_at DESC",
		q.DayStart,
		q.MonthStart,
		q.YearStart,
		q.ExcludePhone,
	)
	if err != nil {
		return nil, fmt.Errorf("doctor activity: %w", err)
	}
	defer rows.Close()

	var out []DoctorActivity
	for rows.Next() {
		var d DoctorActivity
		if err := rows.Scan(
			&d.DoctorId,
			&d.DoctorName,
			&d.PhoneNumber,
			&d.PhotoURL,
			&d.Specialty,
			&d.HospitalName,
			&d.Disabled,
			&d.PatientsToday,
			&d.PatientsMonth,
			&d.PatientsYear,
			&d.ConsultationsToday,
			&d.ConsultationsMonth,
			&d.ConsultationsYear,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}

	return out, rows.Err()
}

func (db *PgRepository) ListCurrentVisitors(ctx context.Context, q DashboardQuery) ([]Visitor, error) {
	rows, err := db.q.QueryContext(ctx,
		"SELECT u.id, u.name, u.phone_number, u.role, u.photo_url, u.is_disabled, p.last_seen_at "+
			"FROM app_presence p JOIN users u ON u.id = p.user_id "+
			"WHERE p.last_seen_at >= $1 AND u.phone_number <> $2 "+
			"ORDER BY p.last_seen_at DESC LIMIT $3",
		q.OnlineSince,
		q.ExcludePhone,
		q.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("current visitors: %w", err)
	}
	defer rows.Close()

	var out []Visitor
	for rows.Next() {
		var v Visitor
		if err := rows.Scan(&v.UserId, &v.Name, &v.PhoneNumber, &v.Role, &v.PhotoURL, &v.Disabled, &v.LastSeenAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}

	return out, rows.Err()
}

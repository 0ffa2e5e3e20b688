package profiles

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dmitrijs2005/medaccount/internal/common"
	"github.com/dmitrijs2005/medaccount/internal/dbx"
	"github.com/dmitrijs2005/medaccount/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, p *models.Profile) error {
	query :=
		`INSERT INTO profiles (identity_id, bio, website, location, birth_place, blood_type, allergies,
		     medical_history, current_medications, license_number, specialization, years_of_experience,
		     education, certifications, visibility, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 `

	_, err := r.db.ExecContext(ctx, query,
		p.IdentityID, p.Bio, p.Website, p.Location, p.BirthPlace, p.BloodType, p.Allergies,
		p.MedicalHistory, p.CurrentMedications, p.LicenseNumber, p.Specialization, p.YearsOfExperience,
		p.Education, p.Certifications, string(p.Visibility), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return dbx.WrapError(err)
	}
	return nil
}

func (r *PostgresRepository) GetByIdentityID(ctx context.Context, identityID string) (*models.Profile, error) {
	query :=
		`SELECT identity_id, bio, website, location, birth_place, blood_type, allergies,
		     medical_history, current_medications, license_number, specialization, years_of_experience,
		     education, certifications, visibility, created_at, updated_at
		 FROM profiles
		 WHERE identity_id = $1
		 `

	var (
		p          models.Profile
		visibility string
	)
	err := r.db.QueryRowContext(ctx, query, identityID).Scan(
		&p.IdentityID, &p.Bio, &p.Website, &p.Location, &p.BirthPlace, &p.BloodType, &p.Allergies,
		&p.MedicalHistory, &p.CurrentMedications, &p.LicenseNumber, &p.Specialization, &p.YearsOfExperience,
		&p.Education, &p.Certifications, &visibility, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, dbx.WrapError(err)
	}

	p.Visibility = models.Visibility(visibility)
	return &p, nil
}

func (r *PostgresRepository) Update(ctx context.Context, p *models.Profile) error {
	query :=
		`UPDATE profiles SET bio = $2, website = $3, location = $4, birth_place = $5, blood_type = $6,
		     allergies = $7, medical_history = $8, current_medications = $9, license_number = $10,
		     specialization = $11, years_of_experience = $12, education = $13, certifications = $14,
		     visibility = $15, updated_at = $16
		 WHERE identity_id = $1
		 `

	res, err := r.db.ExecContext(ctx, query,
		p.IdentityID, p.Bio, p.Website, p.Location, p.BirthPlace, p.BloodType,
		p.Allergies, p.MedicalHistory, p.CurrentMedications, p.LicenseNumber,
		p.Specialization, p.YearsOfExperience, p.Education, p.Certifications,
		string(p.Visibility), p.UpdatedAt)
	if err != nil {
		return dbx.WrapError(err)
	}
	return requireRow(res)
}

func (r *PostgresRepository) DeleteByIdentityID(ctx context.Context, identityID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM profiles WHERE identity_id = $1`, identityID)
	if err != nil {
		return dbx.WrapError(err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return dbx.WrapError(err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

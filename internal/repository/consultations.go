// Package repository is the Postgres record store for submitted consultations.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"consult-intake/internal/models"
)

// ErrNotFound is returned when no consultation carries the requested id.
var ErrNotFound = errors.New("consultation not found")

const formColumns = `maladie_presumee, symptomes, diagnostic_anterieur, autres_symptomes,
	zones_douleur, apparition_soudaine, medicaments_reguliers, facteurs_risque,
	facteurs_risque_details, type_arret, profession, date_debut, date_fin,
	date_fin_lettres, nom_prenom, date_naissance, email, adresse, code_postal,
	ville, pays, situation_pro, localisation_medecin, numero_securite_sociale,
	conditions_acceptees`

const recordColumns = `id, numero_dossier, payment_status, payment_id, confirmed_via,
	confirmation_sent, created_at, updated_at, ` + formColumns

// Filter narrows Find. Zero values do not filter.
type Filter struct {
	Status        models.PaymentStatus
	CreatedBefore time.Time
}

type ConsultationRepository struct {
	db    *sql.DB
	newID func() string
}

func NewConsultationRepository(db *sql.DB) *ConsultationRepository {
	return &ConsultationRepository{db: db, newID: uuid.NewString}
}

// Insert stores c with status pending and returns the generated id.
// The id is generated here and nowhere else.
func (r *ConsultationRepository) Insert(ctx context.Context, c *models.Consultation) (string, error) {
	id := r.newID()
	query := `INSERT INTO consultations (id, numero_dossier, payment_status, ` + formColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)`

	_, err := r.db.ExecContext(ctx, query,
		id, models.NumeroDossierFor(id), models.PaymentPending,
		c.MaladiePresumee, pq.Array(c.Symptomes), c.DiagnosticAnterieur, c.AutresSymptomes,
		pq.Array(c.ZonesDouleur), c.ApparitionSoudaine, c.MedicamentsReguliers, c.FacteursRisque,
		pq.Array(nonNil(c.FacteursRisqueDetails)), c.TypeArret, c.Profession, c.DateDebut, c.DateFin,
		c.DateFinLettres, c.NomPrenom, c.DateNaissance, c.Email, c.Adresse, c.CodePostal,
		c.Ville, c.Pays, c.SituationPro, c.LocalisationMedecin, c.NumeroSecuriteSociale,
		c.ConditionsAcceptees,
	)
	if err != nil {
		return "", fmt.Errorf("insert consultation: %w", err)
	}
	return id, nil
}

// FindByID returns ErrNotFound when id matches no row, including ids that
// are not valid UUIDs.
func (r *ConsultationRepository) FindByID(ctx context.Context, id string) (*models.SubmittedRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	query := `SELECT ` + recordColumns + ` FROM consultations WHERE id = $1`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("find consultation %s: %w", id, err)
	}
	return rec, nil
}

// MarkPaid performs the guarded pending -> done transition. It reports
// whether this call flipped the row; a record already done is left as is.
// A nil paymentRef keeps the stored reference.
func (r *ConsultationRepository) MarkPaid(ctx context.Context, id string, paymentRef *string, via models.ConfirmedVia) (bool, error) {
	query := `UPDATE consultations
		SET payment_status = $2, payment_id = COALESCE($3, payment_id), confirmed_via = $4, updated_at = NOW()
		WHERE id = $1 AND payment_status = $5`

	res, err := r.db.ExecContext(ctx, query, id, models.PaymentDone, paymentRef, via, models.PaymentPending)
	if err != nil {
		return false, fmt.Errorf("mark consultation %s paid: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark consultation %s paid: %w", id, err)
	}
	return n == 1, nil
}

func (r *ConsultationRepository) MarkConfirmationSent(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE consultations SET confirmation_sent = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark confirmation sent %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Find lists records oldest first. It backs support tooling only.
func (r *ConsultationRepository) Find(ctx context.Context, f Filter, limit int) ([]models.SubmittedRecord, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("payment_status = $%d", len(args)))
	}
	if !f.CreatedBefore.IsZero() {
		args = append(args, f.CreatedBefore)
		where = append(where, fmt.Sprintf("created_at < $%d", len(args)))
	}

	query := `SELECT ` + recordColumns + ` FROM consultations`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at ASC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find consultations: %w", err)
	}
	defer rows.Close()

	var out []models.SubmittedRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan consultation: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consultations: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*models.SubmittedRecord, error) {
	var (
		rec       models.SubmittedRecord
		paymentID sql.NullString
		via       sql.NullString
	)
	c := &rec.Consultation
	err := s.Scan(
		&rec.ID, &rec.NumeroDossier, &rec.PaymentStatus, &paymentID, &via,
		&rec.ConfirmationSent, &rec.CreatedAt, &rec.UpdatedAt,
		&c.MaladiePresumee, pq.Array(&c.Symptomes), &c.DiagnosticAnterieur, &c.AutresSymptomes,
		pq.Array(&c.ZonesDouleur), &c.ApparitionSoudaine, &c.MedicamentsReguliers, &c.FacteursRisque,
		pq.Array(&c.FacteursRisqueDetails), &c.TypeArret, &c.Profession, &c.DateDebut, &c.DateFin,
		&c.DateFinLettres, &c.NomPrenom, &c.DateNaissance, &c.Email, &c.Adresse, &c.CodePostal,
		&c.Ville, &c.Pays, &c.SituationPro, &c.LocalisationMedecin, &c.NumeroSecuriteSociale,
		&c.ConditionsAcceptees,
	)
	if err != nil {
		return nil, err
	}
	if paymentID.Valid {
		rec.PaymentID = &paymentID.String
	}
	if via.Valid {
		v := models.ConfirmedVia(via.String)
		rec.ConfirmedVia = &v
	}
	return &rec, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
